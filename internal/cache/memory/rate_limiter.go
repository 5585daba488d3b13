package memory

import (
	"context"
	"sync"
	"time"

	"github.com/eguzmanz/dexdash/internal/domain"
)

// RateLimiter implements a sliding-window limiter over per-key timestamp
// lists. Suitable for a single process; use the Redis limiter when running
// more than one instance.
type RateLimiter struct {
	mu    sync.Mutex
	hits  map[string][]time.Time
	sweep time.Time
}

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{hits: make(map[string][]time.Time), sweep: time.Now()}
}

// Allow reports whether another request under key fits within limit requests
// per window, and records the request when it does.
func (l *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	cutoff := now.Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.hits[key][:0]
	for _, ts := range l.hits[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= limit {
		l.hits[key] = recent
		return false, nil
	}

	l.hits[key] = append(recent, now)

	// Drop idle keys occasionally so the map does not grow unbounded.
	if now.Sub(l.sweep) > 10*time.Minute {
		for k, v := range l.hits {
			if len(v) == 0 || !v[len(v)-1].After(cutoff) {
				delete(l.hits, k)
			}
		}
		l.sweep = now
	}
	return true, nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
