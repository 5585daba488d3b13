package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskRules is the tunable rule set the risk validator evaluates proposed
// trades against. It is passed in explicitly at construction and replaced as
// a whole by UpdateRules; there is no hidden shared instance.
type RiskRules struct {
	MaxTradePercent       float64         `json:"maxTradePercent" toml:"max_trade_percent"`
	MaxDailyVolumePercent float64         `json:"maxDailyVolumePercent" toml:"max_daily_volume_percent"`
	MinUSDTBalance        decimal.Decimal `json:"minUSDTBalance" toml:"min_usdt_balance"`
	MaxPositionPercent    float64         `json:"maxPositionPercent" toml:"max_position_percent"`
	StopLossPercent       float64         `json:"stopLossPercent" toml:"stop_loss_percent"`
	MaxTradesPerHour      int             `json:"maxTradesPerHour" toml:"max_trades_per_hour"`
	MinTimeBetweenTrades  int             `json:"minTimeBetweenTrades" toml:"min_time_between_trades"` // seconds
	MaxSlippagePercent    float64         `json:"maxSlippagePercent" toml:"max_slippage_percent"`
	BlacklistedTokens     []string        `json:"blacklistedTokens" toml:"blacklisted_tokens"`
	MinTradeUSD           decimal.Decimal `json:"minTradeUSD" toml:"min_trade_usd"`
}

// DefaultRiskRules returns the stock rule set.
func DefaultRiskRules() RiskRules {
	return RiskRules{
		MaxTradePercent:       10,
		MaxDailyVolumePercent: 50,
		MinUSDTBalance:        decimal.NewFromInt(100),
		MaxPositionPercent:    30,
		StopLossPercent:       15,
		MaxTradesPerHour:      5,
		MinTimeBetweenTrades:  60,
		MaxSlippagePercent:    5,
		BlacklistedTokens:     []string{"shib", "doge", "safemoon"},
		MinTradeUSD:           decimal.NewFromInt(10),
	}
}

// RiskRulesPatch is a partial rule update. Only non-nil fields are applied.
type RiskRulesPatch struct {
	MaxTradePercent       *float64         `json:"maxTradePercent,omitempty"`
	MaxDailyVolumePercent *float64         `json:"maxDailyVolumePercent,omitempty"`
	MinUSDTBalance        *decimal.Decimal `json:"minUSDTBalance,omitempty"`
	MaxPositionPercent    *float64         `json:"maxPositionPercent,omitempty"`
	StopLossPercent       *float64         `json:"stopLossPercent,omitempty"`
	MaxTradesPerHour      *int             `json:"maxTradesPerHour,omitempty"`
	MinTimeBetweenTrades  *int             `json:"minTimeBetweenTrades,omitempty"`
	MaxSlippagePercent    *float64         `json:"maxSlippagePercent,omitempty"`
	BlacklistedTokens     []string         `json:"blacklistedTokens,omitempty"`
	MinTradeUSD           *decimal.Decimal `json:"minTradeUSD,omitempty"`
}

// Apply merges the patch into a copy of the rules and returns it.
func (r RiskRules) Apply(p RiskRulesPatch) RiskRules {
	if p.MaxTradePercent != nil {
		r.MaxTradePercent = *p.MaxTradePercent
	}
	if p.MaxDailyVolumePercent != nil {
		r.MaxDailyVolumePercent = *p.MaxDailyVolumePercent
	}
	if p.MinUSDTBalance != nil {
		r.MinUSDTBalance = *p.MinUSDTBalance
	}
	if p.MaxPositionPercent != nil {
		r.MaxPositionPercent = *p.MaxPositionPercent
	}
	if p.StopLossPercent != nil {
		r.StopLossPercent = *p.StopLossPercent
	}
	if p.MaxTradesPerHour != nil {
		r.MaxTradesPerHour = *p.MaxTradesPerHour
	}
	if p.MinTimeBetweenTrades != nil {
		r.MinTimeBetweenTrades = *p.MinTimeBetweenTrades
	}
	if p.MaxSlippagePercent != nil {
		r.MaxSlippagePercent = *p.MaxSlippagePercent
	}
	if p.BlacklistedTokens != nil {
		r.BlacklistedTokens = append([]string(nil), p.BlacklistedTokens...)
	}
	if p.MinTradeUSD != nil {
		r.MinTradeUSD = *p.MinTradeUSD
	}
	return r
}

// Adjustments carries advisory changes suggested by the validator. The
// validator never applies them itself.
type Adjustments struct {
	SuggestedAmount *decimal.Decimal `json:"suggestedAmount,omitempty"`
}

// ValidationResult is the outcome of the risk pipeline. Valid is false iff
// at least one error was appended; warnings never invalidate on their own.
type ValidationResult struct {
	Valid       bool        `json:"valid"`
	Errors      []string    `json:"errors"`
	Warnings    []string    `json:"warnings"`
	Adjustments Adjustments `json:"adjustments"`
}

// HealthReport is a deterministic portfolio health score. The score starts
// at 100 and deductions can take it below zero.
type HealthReport struct {
	Score           int      `json:"score"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// StopLossResult is the outcome of an emergency stop-loss request. Failures
// are reported as a message, not an error.
type StopLossResult struct {
	Success bool    `json:"success"`
	Trade   *Trade  `json:"trade,omitempty"`
	Message string  `json:"message,omitempty"`
}

// RiskStats summarizes recent trading activity against the effective rules.
type RiskStats struct {
	DailyVolume    decimal.Decimal `json:"dailyVolume"`
	DailyTrades    int             `json:"dailyTrades"`
	TradesLastHour int             `json:"tradesLastHour"`
	LastTradeTime  *time.Time      `json:"lastTradeTime,omitempty"`
	RiskRules      RiskRules       `json:"riskRules"`
}
