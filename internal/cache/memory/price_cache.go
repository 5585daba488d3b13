// Package memory provides in-process implementations of the cache and
// rate-limit interfaces. They are the defaults when Redis is disabled.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/eguzmanz/dexdash/internal/domain"
)

type priceEntry struct {
	quotes   domain.PriceMap
	storedAt time.Time
}

// PriceCache keeps price quotes in a map. Entries are never evicted so the
// most recent quotes stay available as a last-known-good fallback even after
// they go stale.
type PriceCache struct {
	mu      sync.RWMutex
	entries map[string]priceEntry
}

// NewPriceCache creates an empty PriceCache.
func NewPriceCache() *PriceCache {
	return &PriceCache{entries: make(map[string]priceEntry)}
}

// SetQuotes stores quotes under key, stamped with the current time.
func (c *PriceCache) SetQuotes(_ context.Context, key string, quotes domain.PriceMap) error {
	cloned := make(domain.PriceMap, len(quotes))
	for id, q := range quotes {
		cloned[id] = q
	}

	c.mu.Lock()
	c.entries[key] = priceEntry{quotes: cloned, storedAt: time.Now()}
	c.mu.Unlock()
	return nil
}

// GetQuotes returns the quotes stored under key and when they were stored.
// It returns domain.ErrNotFound when the key has never been set.
func (c *PriceCache) GetQuotes(_ context.Context, key string) (domain.PriceMap, time.Time, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}

	cloned := make(domain.PriceMap, len(entry.quotes))
	for id, q := range entry.quotes {
		cloned[id] = q
	}
	return cloned, entry.storedAt, nil
}

var _ domain.PriceCache = (*PriceCache)(nil)
