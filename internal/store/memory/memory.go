package memory

import (
	"context"
	"slices"
	"sync"
)

// Map is an in-process ordered map. Contents are lost on restart.
type Map[V any] struct {
	mu    sync.RWMutex
	items map[string]V
	keys  []string // sorted
}

func New[V any]() *Map[V] {
	return &Map[V]{items: make(map[string]V)}
}

func (m *Map[V]) Get(_ context.Context, key string) (V, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *Map[V]) Insert(_ context.Context, key string, value V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[key]; !exists {
		i, _ := slices.BinarySearch(m.keys, key)
		m.keys = slices.Insert(m.keys, i, key)
	}
	m.items[key] = value
	return nil
}

func (m *Map[V]) Remove(_ context.Context, key string) (V, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	if !ok {
		return v, false, nil
	}
	delete(m.items, key)
	if i, found := slices.BinarySearch(m.keys, key); found {
		m.keys = slices.Delete(m.keys, i, i+1)
	}
	return v, true, nil
}

// Values returns the stored values in ascending key order.
func (m *Map[V]) Values(_ context.Context) ([]V, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.items[k])
	}
	return out, nil
}

// Len returns the number of stored entries.
func (m *Map[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
