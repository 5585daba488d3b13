package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eguzmanz/dexdash/internal/domain"
)

// Event bus channels the portfolio service publishes to.
const (
	ChannelTrades    = "trades"
	ChannelPortfolio = "portfolio"
)

// Event types carried on the trades channel.
const (
	EventTradeExecuted = "trade_executed"
	EventTradeSettled  = "trade_settled"
	EventEmergencyStop = "emergency_stop"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	At   time.Time   `json:"at"`
}

// mockSellGainRate is the placeholder daily P&L credited per completed sell
// (2% of total cost). A known simplification, kept deliberately; real
// realized P&L accounting is out of scope.
var mockSellGainRate = decimal.NewFromFloat(0.02)

// PortfolioSeed is the initial state applied when no persisted state exists.
type PortfolioSeed struct {
	Balances      map[string]decimal.Decimal
	TotalInvested decimal.Decimal
}

// PortfolioService owns the balance ledger, the append-only trade log, and
// the persisted summary. A single mutex scopes every mutation; at most one
// trade is applied to the ledger at a time, and the durable write happens
// inside the critical section so balances and history never diverge.
type PortfolioService struct {
	store           domain.StateStore
	bus             domain.EventBus
	settlementDelay time.Duration
	logger          *slog.Logger

	mu    sync.Mutex
	state domain.PortfolioState
}

// NewPortfolioService loads persisted state from the store, seeding it on
// first run.
func NewPortfolioService(ctx context.Context, store domain.StateStore, bus domain.EventBus, seed PortfolioSeed, settlementDelay time.Duration, logger *slog.Logger) (*PortfolioService, error) {
	s := &PortfolioService{
		store:           store,
		bus:             bus,
		settlementDelay: settlementDelay,
		logger:          logger.With(slog.String("component", "portfolio")),
	}

	state, err := store.Load(ctx)
	switch {
	case err == nil:
		s.state = state
	case errors.Is(err, domain.ErrNotFound):
		now := time.Now().UTC()
		s.state = domain.PortfolioState{
			Balances: cloneBalances(seed.Balances),
			Summary: domain.PortfolioSummary{
				UserID:        1,
				TotalInvested: seed.TotalInvested,
				CreatedAt:     now,
				LastUpdated:   now,
			},
		}
		if err := store.Save(ctx, s.state); err != nil {
			return nil, fmt.Errorf("portfolio: seed state: %w", err)
		}
		s.logger.InfoContext(ctx, "seeded initial portfolio state",
			slog.Int("tokens", len(s.state.Balances)))
	default:
		return nil, fmt.Errorf("portfolio: load state: %w", err)
	}

	if s.state.Balances == nil {
		s.state.Balances = make(map[string]decimal.Decimal)
	}
	return s, nil
}

// Balances returns a snapshot of the ledger.
func (s *PortfolioService) Balances() map[string]decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneBalances(s.state.Balances)
}

// State returns a deep copy of the full portfolio state.
func (s *PortfolioService) State() domain.PortfolioState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Trades returns the most recent trades, newest first. limit <= 0 returns
// all of them.
func (s *PortfolioService) Trades(limit int) []domain.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.state.Trades)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.Trade, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.state.Trades[i])
	}
	return out
}

// AddFunds credits the ledger outside the trade path and persists.
func (s *PortfolioService) AddFunds(ctx context.Context, tokenID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidTrade)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.state.Balances[tokenID]
	s.state.Balances[tokenID] = prev.Add(amount)
	if err := s.persistLocked(ctx); err != nil {
		if existed {
			s.state.Balances[tokenID] = prev
		} else {
			delete(s.state.Balances, tokenID)
		}
		return decimal.Zero, err
	}
	return s.state.Balances[tokenID], nil
}

// SetBalance overwrites one ledger entry and persists. Administrative entry
// point; still enforces non-negativity.
func (s *PortfolioService) SetBalance(ctx context.Context, tokenID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: balance must not be negative", domain.ErrInvalidTrade)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.state.Balances[tokenID]
	s.state.Balances[tokenID] = amount
	if err := s.persistLocked(ctx); err != nil {
		if existed {
			s.state.Balances[tokenID] = prev
		} else {
			delete(s.state.Balances, tokenID)
		}
		return err
	}
	return nil
}

// ExecuteTrade applies one trade to the ledger atomically. Callers are
// expected to have run risk validation already; prices must be resolved
// before this call so no network I/O happens under the lock.
//
// On insufficient balance the ledger is left untouched, a status=failed
// record is still appended for audit, and a typed
// *domain.InsufficientBalanceError is returned.
func (s *PortfolioService) ExecuteTrade(ctx context.Context, req domain.TradeRequest) (domain.Trade, error) {
	if err := req.Validate(); err != nil {
		return domain.Trade{}, err
	}

	totalCost := req.Notional()
	fee := totalCost.Mul(domain.FeeRate)
	now := time.Now().UTC()

	trade := domain.Trade{
		ID:        uuid.NewString(),
		Pair:      req.Pair,
		Side:      req.Side,
		Amount:    req.Amount,
		Price:     req.Price,
		TotalCost: totalCost,
		Fee:       fee,
		DEX:       req.DEX,
		CreatedAt: now,
	}

	base := req.BaseToken()
	quote := req.QuoteToken()

	s.mu.Lock()

	var debitToken string
	var debitAmount decimal.Decimal
	var creditToken string
	var creditAmount decimal.Decimal
	if req.Side == domain.TradeSideBuy {
		debitToken, debitAmount = quote, totalCost.Add(fee)
		creditToken, creditAmount = base, req.Amount
	} else {
		debitToken, debitAmount = base, req.Amount
		creditToken, creditAmount = quote, totalCost.Sub(fee)
	}

	available := s.state.Balances[debitToken]
	if available.LessThan(debitAmount) {
		insufficientErr := &domain.InsufficientBalanceError{
			Token:     debitToken,
			Required:  debitAmount,
			Available: available,
		}
		trade.Status = domain.TradeStatusFailed
		trade.Error = insufficientErr.Error()
		s.state.Trades = append(s.state.Trades, trade)
		if err := s.persistLocked(ctx); err != nil {
			s.state.Trades = s.state.Trades[:len(s.state.Trades)-1]
			s.logger.ErrorContext(ctx, "failed trade audit record not persisted",
				slog.String("trade_id", trade.ID),
				slog.String("error", err.Error()))
		}
		s.mu.Unlock()
		return trade, insufficientErr
	}

	// Apply the mutation in memory.
	s.state.Balances[debitToken] = available.Sub(debitAmount)
	s.state.Balances[creditToken] = s.state.Balances[creditToken].Add(creditAmount)

	if s.settlementDelay > 0 {
		trade.Status = domain.TradeStatusPending
	} else {
		trade.Status = domain.TradeStatusCompleted
		executed := time.Now().UTC()
		trade.ExecutedAt = &executed
		trade.TxHash = mockTxHash()
	}
	s.state.Trades = append(s.state.Trades, trade)
	s.state.Summary.LastUpdated = now

	if err := s.persistLocked(ctx); err != nil {
		// Roll back the in-memory mutation: success must never be reported
		// when the durable write did not complete.
		s.state.Balances[debitToken] = available
		s.state.Balances[creditToken] = s.state.Balances[creditToken].Sub(creditAmount)
		s.state.Trades = s.state.Trades[:len(s.state.Trades)-1]
		s.mu.Unlock()
		return domain.Trade{}, err
	}
	s.mu.Unlock()

	s.publish(ctx, ChannelTrades, EventTradeExecuted, trade)
	s.logger.InfoContext(ctx, "trade executed",
		slog.String("trade_id", trade.ID),
		slog.String("pair", trade.Pair),
		slog.String("side", string(trade.Side)),
		slog.String("status", string(trade.Status)))

	if trade.Status == domain.TradeStatusPending {
		s.scheduleSettlement(trade.ID)
	}
	return trade, nil
}

// scheduleSettlement transitions a pending trade to completed after the
// configured delay, reapplying the lock discipline at settlement time.
func (s *PortfolioService) scheduleSettlement(tradeID string) {
	time.AfterFunc(s.settlementDelay, func() {
		ctx := context.Background()

		s.mu.Lock()
		var settled *domain.Trade
		for i := range s.state.Trades {
			t := &s.state.Trades[i]
			if t.ID == tradeID && t.Status == domain.TradeStatusPending {
				t.Status = domain.TradeStatusCompleted
				executed := time.Now().UTC()
				t.ExecutedAt = &executed
				t.TxHash = mockTxHash()
				copied := *t
				settled = &copied
				break
			}
		}
		if settled == nil {
			s.mu.Unlock()
			return
		}
		if err := s.persistLocked(ctx); err != nil {
			s.logger.ErrorContext(ctx, "settlement persist failed",
				slog.String("trade_id", tradeID),
				slog.String("error", err.Error()))
		}
		s.mu.Unlock()

		s.publish(ctx, ChannelTrades, EventTradeSettled, *settled)
		s.logger.InfoContext(ctx, "trade settled", slog.String("trade_id", tradeID))
	})
}

// Valuate computes the portfolio snapshot at the given prices and persists
// the derived summary fields as a side effect. The summary is recomputed
// every call and never trusted as source of truth.
func (s *PortfolioService) Valuate(ctx context.Context, prices domain.PriceMap) domain.PortfolioSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	totalValue := decimal.Zero
	var positions []domain.Position

	for tokenID, amount := range s.state.Balances {
		if amount.Sign() <= 0 {
			continue
		}

		price := prices.USDOrZero(tokenID)
		change := float64(0)
		if q, ok := prices[tokenID]; ok {
			change = q.Change24h
		}
		if tokenID == domain.CashToken {
			price = decimal.NewFromInt(1)
			change = 0
		}

		value := amount.Mul(price)
		totalValue = totalValue.Add(value)
		if value.Sign() <= 0 {
			continue
		}
		positions = append(positions, domain.Position{
			Symbol:    domain.SymbolForTokenID(tokenID),
			TokenID:   tokenID,
			Amount:    amount,
			Price:     price,
			Value:     value,
			Change24h: change,
		})
	}

	if totalValue.Sign() > 0 {
		for i := range positions {
			pct, _ := positions[i].Value.Div(totalValue).Mul(decimal.NewFromInt(100)).Float64()
			positions[i].Percentage = pct
		}
	}

	invested := s.state.Summary.TotalInvested
	totalPnL := totalValue.Sub(invested)
	pnlPercent := float64(0)
	if invested.Sign() > 0 {
		pnlPercent, _ = totalPnL.Div(invested).Mul(decimal.NewFromInt(100)).Float64()
	}

	stats := computeStatsLocked(s.state.Trades, now)

	snapshot := domain.PortfolioSnapshot{
		TotalValue:      totalValue,
		TotalPnL:        totalPnL,
		TotalPnLPercent: pnlPercent,
		Positions:       positions,
		CapitalUSDT:     s.state.Balances[domain.CashToken],
		ActiveTrades:    stats.ActiveTrades,
		DailyPnL:        stats.DailyPnL,
		TotalTrades:     stats.TotalTrades,
		WinRate:         stats.WinRate,
		LastUpdated:     now,
	}

	// Persist the derived summary. A failure here degrades the cached
	// summary, not the snapshot, so it is logged and not propagated.
	s.state.Summary.TotalValue = totalValue
	s.state.Summary.TotalPnL = totalPnL
	s.state.Summary.TotalPnLPercent = pnlPercent
	s.state.Summary.LastUpdated = now
	if err := s.persistLocked(ctx); err != nil {
		s.logger.WarnContext(ctx, "summary persist failed",
			slog.String("error", err.Error()))
	}

	return snapshot
}

// Summary returns the persisted portfolio summary.
func (s *PortfolioService) Summary() domain.PortfolioSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Summary
}

// Stats aggregates trade-log derived metrics.
func (s *PortfolioService) Stats() domain.TradingStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return computeStatsLocked(s.state.Trades, time.Now().UTC())
}

func computeStatsLocked(trades []domain.Trade, now time.Time) domain.TradingStats {
	stats := domain.TradingStats{
		TotalTrades: len(trades),
		DailyVolume: decimal.Zero,
		DailyPnL:    decimal.Zero,
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	hourAgo := now.Add(-time.Hour)
	sells := 0

	for i := range trades {
		t := trades[i]
		switch t.Status {
		case domain.TradeStatusCompleted:
			stats.CompletedTrades++
			if t.Side == domain.TradeSideSell {
				sells++
			}
			if !t.CreatedAt.Before(dayStart) {
				stats.DailyVolume = stats.DailyVolume.Add(t.TotalCost)
				// Placeholder daily P&L: fees lost on buys, a fixed mock
				// gain on sells.
				if t.Side == domain.TradeSideBuy {
					stats.DailyPnL = stats.DailyPnL.Sub(t.Fee)
				} else {
					stats.DailyPnL = stats.DailyPnL.Add(t.TotalCost.Mul(mockSellGainRate))
				}
			}
		case domain.TradeStatusFailed:
			stats.FailedTrades++
		case domain.TradeStatusPending:
			stats.ActiveTrades++
		}
		if t.CreatedAt.After(hourAgo) {
			stats.TradesLastHour++
		}
	}

	if stats.CompletedTrades > 0 {
		stats.WinRate = float64(sells) / float64(stats.CompletedTrades) * 100
	}
	if n := len(trades); n > 0 {
		last := trades[n-1].CreatedAt
		stats.LastTradeAt = &last
	}
	return stats
}

// persistLocked writes the full state through the store. Callers must hold
// the mutex.
func (s *PortfolioService) persistLocked(ctx context.Context) error {
	if err := s.store.Save(ctx, s.state.Clone()); err != nil {
		return fmt.Errorf("portfolio: persist: %w", err)
	}
	return nil
}

func (s *PortfolioService) publish(ctx context.Context, channel, eventType string, data interface{}) {
	payload, err := json.Marshal(Event{Type: eventType, Data: data, At: time.Now().UTC()})
	if err != nil {
		s.logger.WarnContext(ctx, "event marshal failed", slog.String("type", eventType))
		return
	}
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			slog.String("type", eventType),
			slog.String("error", err.Error()))
	}
}

func cloneBalances(in map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func mockTxHash() string {
	const hexDigits = "0123456789abcdef"
	b := make([]byte, 64)
	for i := range b {
		b[i] = hexDigits[rand.Intn(len(hexDigits))]
	}
	return "0x" + string(b)
}
