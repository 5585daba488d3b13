package domain

import (
	"context"
	"time"
)

// StateStore persists the full portfolio state. Save must be an atomic group
// write: either the entire {balances, trades, summary} state becomes durable
// or none of it does, so a crash can never leave the ledger and the trade
// log inconsistent with each other.
type StateStore interface {
	Load(ctx context.Context) (PortfolioState, error)
	Save(ctx context.Context, state PortfolioState) error
}

// PriceCache stores the most recent quote batch per lookup key. Entries are
// kept past their freshness window so the oracle can fall back to
// last-known-good values when the upstream API is down; the caller decides
// staleness from the returned timestamp.
type PriceCache interface {
	SetQuotes(ctx context.Context, key string, quotes PriceMap) error
	// GetQuotes returns ErrNotFound when the key has never been stored.
	GetQuotes(ctx context.Context, key string) (PriceMap, time.Time, error)
}

// RateLimiter provides fixed-window request limiting for the HTTP surface.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// EventBus carries JSON event payloads between the core and its subscribers
// (the WebSocket hub and the notifier).
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel that emits payloads published to the given
	// bus channel until ctx is cancelled, at which point it is closed.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
