package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/eguzmanz/dexdash/internal/domain"
)

// ChannelPrices is the event bus channel for market updates.
const ChannelPrices = "prices"

// EventMarketUpdate is published on every broadcast tick.
const EventMarketUpdate = "market_update"

// BroadcastService periodically publishes a market and portfolio update so
// connected WebSocket clients see fresh data without polling.
type BroadcastService struct {
	oracle    *OracleService
	portfolio *PortfolioService
	bus       domain.EventBus
	tokens    []string
	interval  time.Duration
	logger    *slog.Logger
}

// NewBroadcastService creates a BroadcastService.
func NewBroadcastService(oracle *OracleService, portfolio *PortfolioService, bus domain.EventBus, tokens []string, interval time.Duration, logger *slog.Logger) *BroadcastService {
	return &BroadcastService{
		oracle:    oracle,
		portfolio: portfolio,
		bus:       bus,
		tokens:    tokens,
		interval:  interval,
		logger:    logger.With(slog.String("component", "broadcast")),
	}
}

// Run broadcasts until the context is cancelled. A zero or negative interval
// disables the loop.
func (s *BroadcastService) Run(ctx context.Context) error {
	if s.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *BroadcastService) tick(ctx context.Context) {
	prices := s.oracle.GetPrices(ctx, s.tokens)
	snapshot := s.portfolio.Valuate(ctx, prices)

	update := struct {
		Prices    domain.PriceMap          `json:"prices"`
		Portfolio domain.PortfolioSnapshot `json:"portfolio"`
	}{Prices: prices, Portfolio: snapshot}

	payload, err := json.Marshal(Event{Type: EventMarketUpdate, Data: update, At: time.Now().UTC()})
	if err != nil {
		s.logger.WarnContext(ctx, "market update marshal failed",
			slog.String("error", err.Error()))
		return
	}

	for _, channel := range []string{ChannelPrices, ChannelPortfolio} {
		if err := s.bus.Publish(ctx, channel, payload); err != nil {
			s.logger.WarnContext(ctx, "market update publish failed",
				slog.String("channel", channel),
				slog.String("error", err.Error()))
		}
	}
}
