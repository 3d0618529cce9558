package engine

import (
	"fmt"
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// keyLocks serializes event application per aggregate key with a fixed set of
// striped mutexes. Events for the same property always hash to the same
// stripe, so mirror writes for one aggregate never interleave.
type keyLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (k *keyLocks) lock(key string) func() {
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(key))
	stripe := &k.stripes[hash.Sum32()%lockStripes]
	stripe.Lock()
	return stripe.Unlock
}

func propertyKey(propertyID uint64) string {
	return fmt.Sprintf("property:%d", propertyID)
}
