package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eguzmanz/dexdash/internal/cache/memory"
	"github.com/eguzmanz/dexdash/internal/domain"
)

func newTestOracle(client MarketClient, ttl time.Duration) *OracleService {
	return NewOracleService(client, memory.NewPriceCache(), ttl, time.Minute, testLogger())
}

func TestOracleLiveFetch(t *testing.T) {
	client := &stubMarket{prices: ethPrices()}
	oracle := newTestOracle(client, time.Minute)

	prices := oracle.GetPrices(context.Background(), []string{"ethereum", "usdt"})

	assert.True(t, prices["ethereum"].USD.Equal(decimal.NewFromInt(3500)))
	assert.Equal(t, PriceSourceLive, oracle.Source())
}

func TestOracleServesFreshCache(t *testing.T) {
	client := &stubMarket{prices: ethPrices()}
	oracle := newTestOracle(client, time.Minute)
	ctx := context.Background()

	oracle.GetPrices(ctx, []string{"ethereum"})
	oracle.GetPrices(ctx, []string{"ethereum"})

	assert.Equal(t, 1, client.calls, "second lookup must hit the cache")
	assert.Equal(t, PriceSourceCached, oracle.Source())
}

func TestOracleLastKnownGoodOnUpstreamError(t *testing.T) {
	client := &stubMarket{prices: ethPrices()}
	// Zero TTL: every cached entry is immediately stale.
	oracle := newTestOracle(client, 0)
	ctx := context.Background()

	oracle.GetPrices(ctx, []string{"ethereum"})
	client.mu.Lock()
	client.err = errors.New("upstream down")
	client.mu.Unlock()

	prices := oracle.GetPrices(ctx, []string{"ethereum"})

	assert.True(t, prices["ethereum"].USD.Equal(decimal.NewFromInt(3500)),
		"stale cache entry must be served as last known good")
	assert.Equal(t, PriceSourceCached, oracle.Source())
}

func TestOracleStaticFallbackOnColdStart(t *testing.T) {
	client := &stubMarket{err: errors.New("upstream down")}
	oracle := newTestOracle(client, time.Minute)

	prices := oracle.GetPrices(context.Background(), []string{"ethereum", "cardano", "unknown-token"})

	assert.True(t, prices["ethereum"].USD.Equal(decimal.NewFromInt(3500)))
	assert.True(t, prices["cardano"].USD.Equal(dec(0.85)))
	_, ok := prices["unknown-token"]
	assert.False(t, ok, "tokens outside the fallback table are simply absent")
	assert.Equal(t, PriceSourceFallback, oracle.Source())
}

func TestOracleMissingPriceIsZeroDownstream(t *testing.T) {
	client := &stubMarket{err: errors.New("upstream down")}
	oracle := newTestOracle(client, time.Minute)

	prices := oracle.GetPrices(context.Background(), []string{"unknown-token"})
	assert.True(t, prices.USDOrZero("unknown-token").IsZero())
}

func TestOracleGlobalFallback(t *testing.T) {
	client := &stubMarket{err: errors.New("upstream down")}
	oracle := newTestOracle(client, time.Minute)

	global := oracle.GetGlobalMarket(context.Background())
	assert.InDelta(t, 2.5e12, global.TotalMarketCapUSD, 1)
	assert.Equal(t, 15000, global.ActiveCryptocurrencies)
}

func TestOracleGlobalCaches(t *testing.T) {
	client := &stubMarket{global: domain.GlobalMarket{TotalMarketCapUSD: 1e12, ActiveCryptocurrencies: 9000}}
	oracle := newTestOracle(client, time.Minute)
	ctx := context.Background()

	first := oracle.GetGlobalMarket(ctx)
	require.Equal(t, 9000, first.ActiveCryptocurrencies)

	// Upstream failures inside the TTL window are invisible to callers.
	client.mu.Lock()
	client.err = errors.New("upstream down")
	client.mu.Unlock()

	second := oracle.GetGlobalMarket(ctx)
	assert.Equal(t, 9000, second.ActiveCryptocurrencies)
}
