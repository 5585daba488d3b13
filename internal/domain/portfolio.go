package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashToken is the distinguished ledger key treated as cash. Its price is
// always exactly 1.0 regardless of what the oracle reports.
const CashToken = "usdt"

// Position is a single non-zero holding valued at current prices.
type Position struct {
	Symbol     string          `json:"symbol"`
	TokenID    string          `json:"tokenId"`
	Amount     decimal.Decimal `json:"amount"`
	Price      decimal.Decimal `json:"price"`
	Value      decimal.Decimal `json:"value"`
	Change24h  float64         `json:"change_24h"`
	Percentage float64         `json:"percentage"` // share of total value, 0-100
}

// PortfolioSnapshot is the derived valuation of the ledger at a set of
// prices, plus the aggregate trading stats the dashboard shows alongside it.
// It is recomputed on every call and never stored as source of truth.
type PortfolioSnapshot struct {
	TotalValue      decimal.Decimal `json:"totalValue"`
	TotalPnL        decimal.Decimal `json:"totalPnL"`
	TotalPnLPercent float64         `json:"totalPnLPercent"`
	Positions       []Position      `json:"positions"`
	CapitalUSDT     decimal.Decimal `json:"capital_usdt"`
	ActiveTrades    int             `json:"active_trades"`
	DailyPnL        decimal.Decimal `json:"daily_pnl"`
	TotalTrades     int             `json:"total_trades"`
	WinRate         float64         `json:"win_rate"`
	LastUpdated     time.Time       `json:"last_updated"`
}

// PortfolioSummary is the persisted summary of the single-user portfolio.
// TotalValue/TotalPnL/TotalPnLPercent/LastUpdated are derived fields written
// back by the valuation engine; TotalInvested is the configured baseline
// deposit used for P&L.
type PortfolioSummary struct {
	UserID          int             `json:"userId"`
	TotalInvested   decimal.Decimal `json:"totalInvested"`
	TotalValue      decimal.Decimal `json:"totalValue"`
	TotalPnL        decimal.Decimal `json:"totalPnL"`
	TotalPnLPercent float64         `json:"totalPnLPercent"`
	CreatedAt       time.Time       `json:"createdAt"`
	LastUpdated     time.Time       `json:"lastUpdated"`
}

// PortfolioState is the full durable state of the portfolio: the balance
// ledger, the append-only trade log, and the summary. It is always persisted
// as one group so balances and history cannot diverge.
type PortfolioState struct {
	Balances map[string]decimal.Decimal `json:"balances"`
	Trades   []Trade                    `json:"trades"`
	Summary  PortfolioSummary           `json:"portfolio"`
}

// Clone returns a deep copy of the state. Stores and services use it to hand
// out snapshots without sharing the underlying map or slice.
func (s PortfolioState) Clone() PortfolioState {
	out := PortfolioState{
		Balances: make(map[string]decimal.Decimal, len(s.Balances)),
		Trades:   make([]Trade, len(s.Trades)),
		Summary:  s.Summary,
	}
	for k, v := range s.Balances {
		out.Balances[k] = v
	}
	copy(out.Trades, s.Trades)
	return out
}

// TradingStats aggregates trade-log derived metrics used by the risk
// validator and the stats endpoint.
type TradingStats struct {
	TotalTrades     int             `json:"total_trades"`
	CompletedTrades int             `json:"completed_trades"`
	FailedTrades    int             `json:"failed_trades"`
	ActiveTrades    int             `json:"active_trades"`
	TradesLastHour  int             `json:"trades_last_hour"`
	DailyVolume     decimal.Decimal `json:"daily_volume"`
	DailyPnL        decimal.Decimal `json:"daily_pnl"`
	WinRate         float64         `json:"win_rate"`
	LastTradeAt     *time.Time      `json:"last_trade_at,omitempty"`
}
