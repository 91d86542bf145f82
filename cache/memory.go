package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Memory is an in-process TTL cache guarded by a RWMutex.
// Expired entries are dropped lazily on read.
type Memory[V any] struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]entry[V]
}

// NewMemory creates a memory cache. ttl <= 0 uses DefaultTTL; a nil clock uses time.Now.
func NewMemory[V any](ttl time.Duration, clock func() time.Time) *Memory[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &Memory[V]{
		ttl:   ttl,
		now:   clock,
		items: make(map[string]entry[V]),
	}
}

// Get returns the cached value if present and unexpired
func (m *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry
		if cur, ok := m.items[key]; ok && !m.now().Before(cur.expiresAt) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return zero, false, nil
	}
	return e.value, true, nil
}

// Set stores value for the cache TTL
func (m *Memory[V]) Set(_ context.Context, key string, value V) error {
	m.mu.Lock()
	m.items[key] = entry[V]{value: value, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

// Delete removes key
func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet dropped
func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// TTL returns the configured entry lifetime
func (m *Memory[V]) TTL() time.Duration {
	return m.ttl
}
