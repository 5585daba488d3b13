// Package service contains the core business logic: price oracle, portfolio
// ledger and valuation, risk validation, trade orchestration, and the
// periodic broadcast loop.
package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eguzmanz/dexdash/internal/domain"
)

// Price source labels reported by the health endpoint.
const (
	PriceSourceLive     = "live"
	PriceSourceCached   = "cached"
	PriceSourceFallback = "fallback"
)

// MarketClient is the upstream market-data API consumed by the oracle.
type MarketClient interface {
	SimplePrices(ctx context.Context, tokenIDs []string) (domain.PriceMap, error)
	Global(ctx context.Context) (domain.GlobalMarket, error)
}

// fallbackPrices are served when both the upstream API and the cache fail.
var fallbackPrices = domain.PriceMap{
	"ethereum": {USD: decimal.NewFromInt(3500), Change24h: 5.2},
	"cardano":  {USD: decimal.NewFromFloat(0.85), Change24h: 2.1},
	"solana":   {USD: decimal.NewFromInt(180), Change24h: 8.5},
	"usdt":     {USD: decimal.NewFromInt(1)},
}

// fallbackGlobal mirrors the static market overview used when the upstream
// API is unreachable.
var fallbackGlobal = domain.GlobalMarket{
	TotalMarketCapUSD:      2_500_000_000_000,
	TotalVolumeUSD:         100_000_000_000,
	MarketCapChange24h:     2.5,
	ActiveCryptocurrencies: 15000,
}

// OracleService serves spot prices with a soft-fail chain: live fetch, then
// last-known-good cache entry, then the static fallback table. It never
// returns a hard error for price lookups; callers treat missing tokens as
// price zero.
type OracleService struct {
	client    MarketClient
	cache     domain.PriceCache
	ttl       time.Duration
	globalTTL time.Duration
	logger    *slog.Logger

	mu         sync.RWMutex
	lastSource string
	global     domain.GlobalMarket
	globalAt   time.Time
}

// NewOracleService creates an OracleService.
func NewOracleService(client MarketClient, cache domain.PriceCache, ttl, globalTTL time.Duration, logger *slog.Logger) *OracleService {
	return &OracleService{
		client:     client,
		cache:      cache,
		ttl:        ttl,
		globalTTL:  globalTTL,
		logger:     logger.With(slog.String("component", "oracle")),
		lastSource: PriceSourceFallback,
	}
}

func pricesCacheKey(tokenIDs []string) string {
	sorted := append([]string(nil), tokenIDs...)
	sort.Strings(sorted)
	return "prices:" + strings.Join(sorted, ",")
}

// GetPrices returns quotes for the given token IDs. A fresh cache entry is
// served directly; otherwise the upstream API is queried and the result
// cached. On upstream failure a stale cache entry is served as
// last-known-good, and the static table covers a cold start.
func (s *OracleService) GetPrices(ctx context.Context, tokenIDs []string) domain.PriceMap {
	key := pricesCacheKey(tokenIDs)

	cached, storedAt, cacheErr := s.cache.GetQuotes(ctx, key)
	if cacheErr == nil && time.Since(storedAt) <= s.ttl {
		s.setSource(PriceSourceCached)
		return cached
	}

	quotes, err := s.client.SimplePrices(ctx, tokenIDs)
	if err == nil && len(quotes) > 0 {
		if setErr := s.cache.SetQuotes(ctx, key, quotes); setErr != nil {
			s.logger.WarnContext(ctx, "price cache write failed",
				slog.String("error", setErr.Error()))
		}
		s.setSource(PriceSourceLive)
		return quotes
	}
	if err != nil {
		s.logger.WarnContext(ctx, "upstream price fetch failed",
			slog.String("error", err.Error()))
	}

	// Last known good, even past its freshness window.
	if cacheErr == nil && len(cached) > 0 {
		s.setSource(PriceSourceCached)
		return cached
	}

	s.setSource(PriceSourceFallback)
	out := make(domain.PriceMap, len(tokenIDs))
	for _, id := range tokenIDs {
		if q, ok := fallbackPrices[id]; ok {
			out[id] = q
		}
	}
	return out
}

// GetGlobalMarket returns aggregate market statistics with its own cache and
// static fallback.
func (s *OracleService) GetGlobalMarket(ctx context.Context) domain.GlobalMarket {
	s.mu.RLock()
	if !s.globalAt.IsZero() && time.Since(s.globalAt) <= s.globalTTL {
		global := s.global
		s.mu.RUnlock()
		return global
	}
	s.mu.RUnlock()

	global, err := s.client.Global(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "global market fetch failed",
			slog.String("error", err.Error()))
		s.mu.RLock()
		defer s.mu.RUnlock()
		if !s.globalAt.IsZero() {
			return s.global
		}
		return fallbackGlobal
	}

	s.mu.Lock()
	s.global = global
	s.globalAt = time.Now()
	s.mu.Unlock()
	return global
}

// Source reports where the most recent price lookup was answered from.
func (s *OracleService) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSource
}

func (s *OracleService) setSource(source string) {
	s.mu.Lock()
	s.lastSource = source
	s.mu.Unlock()
}
