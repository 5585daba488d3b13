package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eguzmanz/dexdash/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. The full quote
// map is stored as a JSON blob at "quotes:{key}" with fields "payload" and
// "ts" (Unix nanosecond timestamp). Entries carry no TTL so stale quotes
// remain available as a last-known-good fallback.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func quotesKey(key string) string {
	return "quotes:" + key
}

// SetQuotes stores the quote map under key, stamped with the current time.
func (pc *PriceCache) SetQuotes(ctx context.Context, key string, quotes domain.PriceMap) error {
	payload, err := json.Marshal(quotes)
	if err != nil {
		return fmt.Errorf("redis: marshal quotes %s: %w", key, err)
	}

	fields := map[string]interface{}{
		"payload": payload,
		"ts":      strconv.FormatInt(time.Now().UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, quotesKey(key), fields).Err(); err != nil {
		return fmt.Errorf("redis: set quotes %s: %w", key, err)
	}
	return nil
}

// GetQuotes retrieves the quote map stored under key and when it was stored.
// It returns domain.ErrNotFound when the key does not exist.
func (pc *PriceCache) GetQuotes(ctx context.Context, key string) (domain.PriceMap, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, quotesKey(key)).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: get quotes %s: %w", key, err)
	}
	if len(vals) == 0 {
		return nil, time.Time{}, domain.ErrNotFound
	}

	payload, ok := vals["payload"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	var quotes domain.PriceMap
	if err := json.Unmarshal([]byte(payload), &quotes); err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: parse quotes %s: %w", key, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", key, err)
	}

	return quotes, time.Unix(0, tsNano), nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
