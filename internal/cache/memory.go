package cache

import (
	"context"
	"strings"
	"sync"
)

// Memory is an in-process Store. It backs tests and single-node
// deployments that reload datasets on boot.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]Record
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string][]Record)}
}

func (m *Memory) Get(_ context.Context, key string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.items[key]
	out := make([]Record, len(recs))
	copy(out, recs)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = records
	return nil
}

func (m *Memory) SetMany(_ context.Context, items map[string][]Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range items {
		m.items[k] = v
	}
	return nil
}

// SearchPrefix walks every key. O(n) over the whole cache, acceptable
// only for small datasets and interactive admin searches.
func (m *Memory) SearchPrefix(_ context.Context, prefix string) (map[string][]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]Record)
	for k, v := range m.items {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
