package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eguzmanz/dexdash/internal/domain"
)

func TestPriceCacheRoundTrip(t *testing.T) {
	cache := NewPriceCache()
	ctx := context.Background()

	quotes := domain.PriceMap{
		"ethereum": {USD: decimal.NewFromInt(3500), Change24h: 2.1},
	}
	require.NoError(t, cache.SetQuotes(ctx, "prices:default", quotes))

	got, storedAt, err := cache.GetQuotes(ctx, "prices:default")
	require.NoError(t, err)
	assert.True(t, got["ethereum"].USD.Equal(decimal.NewFromInt(3500)))
	assert.WithinDuration(t, time.Now(), storedAt, time.Second)
}

func TestPriceCacheMissing(t *testing.T) {
	cache := NewPriceCache()

	_, _, err := cache.GetQuotes(context.Background(), "prices:nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPriceCacheCopyOnRead(t *testing.T) {
	cache := NewPriceCache()
	ctx := context.Background()

	require.NoError(t, cache.SetQuotes(ctx, "k", domain.PriceMap{
		"solana": {USD: decimal.NewFromInt(150)},
	}))

	got, _, err := cache.GetQuotes(ctx, "k")
	require.NoError(t, err)
	got["solana"] = domain.PriceQuote{USD: decimal.Zero}

	again, _, err := cache.GetQuotes(ctx, "k")
	require.NoError(t, err)
	assert.True(t, again["solana"].USD.Equal(decimal.NewFromInt(150)))
}

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	limiter := NewRateLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be allowed", i+1)
	}

	ok, err := limiter.Allow(ctx, "1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "fourth request should be rejected")
}

func TestRateLimiterKeysIndependent(t *testing.T) {
	limiter := NewRateLimiter()
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = limiter.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = limiter.Allow(ctx, "b", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	limiter := NewRateLimiter()
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "k", 1, 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	ok, err = limiter.Allow(ctx, "k", 1, 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok, "request after window should be allowed")
}
