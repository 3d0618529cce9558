// Package registryfakes provides in-memory store fakes for registry tests.
package registryfakes

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/terrachain/registry/internal/registry/domain/property"
	"github.com/terrachain/registry/internal/registry/domain/transfer"
	"github.com/terrachain/registry/internal/registry/storage"
)

// Store is a lightweight in-memory storage.Store fake for tests.
type Store struct {
	mu sync.Mutex

	Properties map[uint64]property.Property
	Transfers  map[uint64]transfer.Request
	Parked     map[string]storage.ParkedEvent
	Applied    map[string]time.Time

	// FailPut, when set, is returned by every property and transfer write.
	FailPut error
}

var _ storage.Store = (*Store)(nil)

// NewStore constructs a Store fake with initialized state maps.
func NewStore() *Store {
	return &Store{
		Properties: make(map[uint64]property.Property),
		Transfers:  make(map[uint64]transfer.Request),
		Parked:     make(map[string]storage.ParkedEvent),
		Applied:    make(map[string]time.Time),
	}
}

func (s *Store) PutProperty(_ context.Context, p property.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPut != nil {
		return s.FailPut
	}
	s.Properties[p.ID] = p
	return nil
}

func (s *Store) GetProperty(_ context.Context, id uint64) (property.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Properties[id]
	if !ok {
		return property.Property{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProperties(_ context.Context, filter storage.PropertyFilter, page storage.Page) ([]property.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []property.Property
	for _, p := range s.Properties {
		if filter.Owner != "" && p.Owner != filter.Owner {
			continue
		}
		if filter.Status != property.StatusUnspecified && p.Status != filter.Status {
			continue
		}
		if filter.LocationContains != "" && !strings.Contains(p.Location, filter.LocationContains) {
			continue
		}
		matches = append(matches, p)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return paginate(matches, page), nil
}

func (s *Store) PutTransfer(_ context.Context, r transfer.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPut != nil {
		return s.FailPut
	}
	s.Transfers[r.ID] = r
	return nil
}

func (s *Store) GetTransfer(_ context.Context, id uint64) (transfer.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.Transfers[id]
	if !ok {
		return transfer.Request{}, storage.ErrNotFound
	}
	return r, nil
}

func (s *Store) ListTransfers(_ context.Context, filter storage.TransferFilter, page storage.Page) ([]transfer.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []transfer.Request
	for _, r := range s.Transfers {
		if filter.PropertyID != 0 && r.PropertyID != filter.PropertyID {
			continue
		}
		if filter.Participant != "" && r.From != filter.Participant && r.To != filter.Participant {
			continue
		}
		if filter.Status != transfer.StatusUnspecified && r.Status != filter.Status {
			continue
		}
		matches = append(matches, r)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return paginate(matches, page), nil
}

func (s *Store) Park(_ context.Context, parked storage.ParkedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := parked.Event.ID()
	if existing, ok := s.Parked[id]; ok {
		existing.Reason = parked.Reason
		existing.Attempts++
		s.Parked[id] = existing
		return nil
	}
	s.Parked[id] = parked
	return nil
}

func (s *Store) ListParked(_ context.Context, page storage.Page) ([]storage.ParkedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []storage.ParkedEvent
	for _, parked := range s.Parked {
		entries = append(entries, parked)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].ParkedAt.Equal(entries[j].ParkedAt) {
			return entries[i].ParkedAt.Before(entries[j].ParkedAt)
		}
		return entries[i].Event.ID() < entries[j].Event.ID()
	})
	return paginate(entries, page), nil
}

func (s *Store) RemoveParked(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Parked[eventID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.Parked, eventID)
	return nil
}

func (s *Store) MarkApplied(_ context.Context, eventID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Applied[eventID]; ok {
		return storage.ErrAlreadyExists
	}
	s.Applied[eventID] = at
	return nil
}

func (s *Store) WasApplied(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Applied[eventID]
	return ok, nil
}

func paginate[T any](items []T, page storage.Page) []T {
	if page.Offset > 0 {
		if page.Offset >= len(items) {
			return nil
		}
		items = items[page.Offset:]
	}
	if page.Limit > 0 && len(items) > page.Limit {
		items = items[:page.Limit]
	}
	return items
}
