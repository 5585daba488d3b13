package handler

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/eguzmanz/dexdash/internal/domain"
)

// Oracle is the price-source surface the handlers consume.
type Oracle interface {
	GetPrices(ctx context.Context, tokenIDs []string) domain.PriceMap
	GetGlobalMarket(ctx context.Context) domain.GlobalMarket
	Source() string
}

// Portfolio is the ledger and valuation surface the handlers consume.
type Portfolio interface {
	Valuate(ctx context.Context, prices domain.PriceMap) domain.PortfolioSnapshot
	Balances() map[string]decimal.Decimal
	Trades(limit int) []domain.Trade
	Stats() domain.TradingStats
	Summary() domain.PortfolioSummary
	AddFunds(ctx context.Context, tokenID string, amount decimal.Decimal) (decimal.Decimal, error)
}

// Risk is the risk-management surface the handlers consume.
type Risk interface {
	CheckHealth(ctx context.Context, prices domain.PriceMap) domain.HealthReport
	EmergencyStopLoss(ctx context.Context, tokenID string, prices domain.PriceMap) domain.StopLossResult
	Rules() domain.RiskRules
	UpdateRules(patch domain.RiskRulesPatch) domain.RiskRules
	RiskStats() domain.RiskStats
}

// TradeExecutor is the orchestrated trade path the trading handler consumes.
type TradeExecutor interface {
	Execute(ctx context.Context, req domain.TradeRequest) (domain.Trade, domain.ValidationResult, error)
	PricesFor(ctx context.Context, req domain.TradeRequest) domain.PriceMap
}
