package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/terrachain/registry/internal/registry/ledger"
)

// DefaultRoleCacheTTL bounds how stale a cached role lookup may be.
const DefaultRoleCacheTTL = time.Minute

type roleEntry struct {
	granted   bool
	fetchedAt time.Time
}

// roleCache memoizes contract role lookups. Role changes on the ledger become
// visible after at most the TTL, or immediately after Invalidate.
type roleCache struct {
	client ledger.Client
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]roleEntry
}

func newRoleCache(client ledger.Client, ttl time.Duration, now func() time.Time) *roleCache {
	if ttl <= 0 {
		ttl = DefaultRoleCacheTTL
	}
	return &roleCache{
		client:  client,
		ttl:     ttl,
		now:     now,
		entries: make(map[string]roleEntry),
	}
}

func (c *roleCache) has(ctx context.Context, account, role string) (bool, error) {
	key := account + ":" + role
	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.granted, nil
	}

	granted, err := c.client.HasRole(ctx, account, role)
	if err != nil {
		// A stale entry beats failing the precondition check outright.
		if ok {
			return entry.granted, nil
		}
		return false, err
	}
	c.mu.Lock()
	c.entries[key] = roleEntry{granted: granted, fetchedAt: c.now()}
	c.mu.Unlock()
	return granted, nil
}

// invalidate drops every cached role for an account.
func (c *roleCache) invalidate(account string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, account+":") {
			delete(c.entries, key)
		}
	}
}
