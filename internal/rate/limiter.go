package rate

import (
	"sync"
	"time"
)

// Limiter enforces a per-key request cap over a fixed window. Allow
// reports whether the request may proceed and how long until the
// window resets.
type Limiter interface {
	Allow(key string, limit int, window time.Duration) (bool, time.Duration)
}

const maxIdleBuckets = 4096

// MemoryLimiter keeps counters in process memory. Limits apply per
// instance, which is enough for a single-node deployment.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	count   int
	resetAt time.Time
	window  time.Duration
}

func NewMemory() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*bucket)}
}

func (m *MemoryLimiter) Allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if len(m.buckets) > maxIdleBuckets {
		m.prune(now)
	}

	b, ok := m.buckets[key]
	if !ok || now.After(b.resetAt) || b.window != window {
		b = &bucket{resetAt: now.Add(window), window: window}
		m.buckets[key] = b
	}

	if b.count >= limit {
		return false, time.Until(b.resetAt)
	}

	b.count++
	return true, time.Until(b.resetAt)
}

// prune drops buckets whose window already ended. Keys are per client
// IP, so the map grows unbounded without it.
func (m *MemoryLimiter) prune(now time.Time) {
	for key, b := range m.buckets {
		if now.After(b.resetAt) {
			delete(m.buckets, key)
		}
	}
}
