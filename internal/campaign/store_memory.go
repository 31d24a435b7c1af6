package campaign

import (
	"context"
	"strconv"
	"sync"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	campaigns map[int64]*Campaign
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{campaigns: make(map[int64]*Campaign)}
}

func (s *MemoryStore) Add(c *Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = c
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (*Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.campaigns[id]; ok {
		return c, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Lookup(ctx context.Context, idOrName string) (*Campaign, error) {
	if id, err := strconv.ParseInt(idOrName, 10, 64); err == nil {
		return s.Get(ctx, id)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.campaigns {
		if c.Name == idOrName {
			return c, nil
		}
	}
	return nil, ErrNotFound
}
