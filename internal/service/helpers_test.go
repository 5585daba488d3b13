package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/eguzmanz/dexdash/internal/domain"
	"github.com/eguzmanz/dexdash/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory StateStore. failNext makes the next Save fail.
type memStore struct {
	mu       sync.Mutex
	state    *domain.PortfolioState
	failNext bool
	saves    int
}

func (m *memStore) Load(context.Context) (domain.PortfolioState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return domain.PortfolioState{}, domain.ErrNotFound
	}
	return m.state.Clone(), nil
}

func (m *memStore) Save(_ context.Context, state domain.PortfolioState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return errors.New("disk full")
	}
	cloned := state.Clone()
	m.state = &cloned
	m.saves++
	return nil
}

// stubMarket is a canned MarketClient.
type stubMarket struct {
	mu     sync.Mutex
	prices domain.PriceMap
	global domain.GlobalMarket
	err    error
	calls  int
}

func (s *stubMarket) SimplePrices(context.Context, []string) (domain.PriceMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.prices, nil
}

func (s *stubMarket) Global(context.Context) (domain.GlobalMarket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.GlobalMarket{}, s.err
	}
	return s.global, nil
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func seedETHUSDT() PortfolioSeed {
	return PortfolioSeed{
		Balances: map[string]decimal.Decimal{
			"usdt":     decimal.NewFromInt(5000),
			"ethereum": dec(1.2),
		},
		TotalInvested: decimal.NewFromInt(10000),
	}
}

func ethPrices() domain.PriceMap {
	return domain.PriceMap{
		"ethereum": {USD: decimal.NewFromInt(3500), Change24h: 2.0},
		"usdt":     {USD: decimal.NewFromInt(1)},
	}
}

func newTestPortfolio(t *testing.T, store domain.StateStore, seed PortfolioSeed, delay time.Duration) *PortfolioService {
	t.Helper()
	if store == nil {
		store = &memStore{}
	}
	p, err := NewPortfolioService(context.Background(), store, events.NewBus(), seed, delay, testLogger())
	require.NoError(t, err)
	return p
}
