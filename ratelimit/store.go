// Package ratelimit caps the number of requests each client IP may make per fixed
// window. Counters live behind CounterStore so several API instances can share
// them through the database; a single instance can keep them in memory.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// CounterStore increments the counter of key in its current window. The count
// returned includes this request. resetAt is when the window ends.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

type bucket struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps counters in process. Expired windows are reset lazily on the
// next Incr and evicted by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*bucket), now: time.Now}
}

func (m *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(window)}
		m.buckets[key] = b
	}
	b.count++
	return b.count, b.resetAt, nil
}

// Sweep drops every window that ended before now and returns how many were dropped.
func (m *MemoryStore) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, b := range m.buckets {
		if !now.Before(b.resetAt) {
			delete(m.buckets, key)
			removed++
		}
	}
	return removed
}

// Len is the number of live windows.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
