package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eguzmanz/dexdash/internal/domain"
)

// ChannelRisk is the event bus channel for risk events.
const ChannelRisk = "risk"

// emergencyDiscount biases the emergency sell price 5% under market for a
// fast fill.
var emergencyDiscount = decimal.NewFromFloat(0.95)

// RiskService evaluates proposed trades against the configured rule set and
// scores overall portfolio health. The rule set is an explicit object held
// by the service; UpdateRules replaces it wholesale after a partial merge.
// Validation never mutates portfolio state.
type RiskService struct {
	portfolio *PortfolioService
	logger    *slog.Logger

	mu    sync.RWMutex
	rules domain.RiskRules
}

// NewRiskService creates a RiskService with the given initial rules.
func NewRiskService(portfolio *PortfolioService, rules domain.RiskRules, logger *slog.Logger) *RiskService {
	return &RiskService{
		portfolio: portfolio,
		rules:     rules,
		logger:    logger.With(slog.String("component", "risk")),
	}
}

// Rules returns the effective rule set.
func (s *RiskService) Rules() domain.RiskRules {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// UpdateRules merges the patch into the current rules and returns the new
// effective rule set.
func (s *RiskService) UpdateRules(patch domain.RiskRulesPatch) domain.RiskRules {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = s.rules.Apply(patch)
	return s.rules
}

// ValidateTrade runs the full check pipeline against the proposed trade.
// Every check runs; errors and warnings accumulate so the caller sees the
// complete picture. Valid is false iff at least one error was appended.
func (s *RiskService) ValidateTrade(ctx context.Context, req domain.TradeRequest, prices domain.PriceMap) domain.ValidationResult {
	rules := s.Rules()
	// Errors and Warnings marshal as [] rather than null, even when empty.
	result := domain.ValidationResult{
		Valid:    true,
		Errors:   []string{},
		Warnings: []string{},
	}

	if err := req.Validate(); err != nil {
		result.Errors = append(result.Errors, err.Error())
		result.Valid = false
		return result
	}

	state := s.portfolio.State()
	stats := computeStatsLocked(state.Trades, time.Now().UTC())
	totalValue := totalValueAt(state, prices)
	notional := req.Notional()
	baseSymbol, _, _ := domain.ParsePair(req.Pair)
	baseToken := req.BaseToken()
	quoteToken := req.QuoteToken()

	// 1. Blacklist.
	for _, blocked := range rules.BlacklistedTokens {
		if strings.EqualFold(blocked, baseSymbol) || strings.EqualFold(blocked, baseToken) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("token %s is blacklisted", baseSymbol))
			break
		}
	}

	// 2. Minimum notional.
	if notional.LessThan(rules.MinTradeUSD) {
		result.Errors = append(result.Errors,
			fmt.Sprintf("trade value $%s is below minimum $%s", notional.StringFixed(2), rules.MinTradeUSD.String()))
	}

	// 3. Maximum trade size. Advisory: suggest the largest compliant amount.
	maxTradeValue := percentOf(totalValue, rules.MaxTradePercent)
	if notional.GreaterThan(maxTradeValue) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("trade value $%s exceeds %.1f%% of portfolio ($%s)",
				notional.StringFixed(2), rules.MaxTradePercent, maxTradeValue.StringFixed(2)))
		if req.Price.IsPositive() {
			suggested := maxTradeValue.Div(req.Price)
			result.Adjustments.SuggestedAmount = &suggested
		}
	}

	// 4. Daily volume cap.
	maxDailyVolume := percentOf(totalValue, rules.MaxDailyVolumePercent)
	if stats.DailyVolume.Add(notional).GreaterThan(maxDailyVolume) {
		result.Errors = append(result.Errors,
			fmt.Sprintf("daily volume limit reached ($%s of $%s)",
				stats.DailyVolume.StringFixed(2), maxDailyVolume.StringFixed(2)))
	}

	// 5. Balance sufficiency.
	if req.Side == domain.TradeSideBuy {
		required := notional.Mul(decimal.NewFromInt(1).Add(domain.FeeRate))
		available := state.Balances[quoteToken]
		if available.LessThan(required) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("insufficient %s balance: required %s, available %s",
					quoteToken, required.StringFixed(2), available.StringFixed(2)))
		} else if quoteToken == domain.CashToken &&
			available.Sub(required).LessThan(rules.MinUSDTBalance) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("balance would fall below minimum reserve of $%s", rules.MinUSDTBalance.String()))
		}
	} else {
		available := state.Balances[baseToken]
		if available.LessThan(req.Amount) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("insufficient %s balance: required %s, available %s",
					baseToken, req.Amount.String(), available.String()))
		}
	}

	// 6. Position concentration, buys only.
	if req.Side == domain.TradeSideBuy && totalValue.Sign() > 0 {
		current := positionValueAt(state, baseToken, prices)
		projected := current.Add(notional)
		pct, _ := projected.Div(totalValue).Mul(decimal.NewFromInt(100)).Float64()
		if pct > rules.MaxPositionPercent {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("position would be %.1f%% of portfolio (max %.1f%%)",
					pct, rules.MaxPositionPercent))
		}
	}

	// 7. Trade frequency.
	if stats.TradesLastHour >= rules.MaxTradesPerHour {
		result.Errors = append(result.Errors,
			fmt.Sprintf("maximum %d trades per hour reached", rules.MaxTradesPerHour))
	}

	// 8. Cooldown between trades.
	if stats.LastTradeAt != nil && rules.MinTimeBetweenTrades > 0 {
		elapsed := time.Since(*stats.LastTradeAt)
		cooldown := time.Duration(rules.MinTimeBetweenTrades) * time.Second
		if elapsed < cooldown {
			remaining := int((cooldown - elapsed).Round(time.Second).Seconds())
			result.Errors = append(result.Errors,
				fmt.Sprintf("please wait %d seconds between trades", remaining))
		}
	}

	// 9. Slippage against the live market price. Warning only.
	if market := prices.USDOrZero(baseToken); market.IsPositive() {
		slippage, _ := req.Price.Sub(market).Abs().Div(market).Mul(decimal.NewFromInt(100)).Float64()
		if slippage > rules.MaxSlippagePercent {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("price deviates %.2f%% from market (max %.1f%%)",
					slippage, rules.MaxSlippagePercent))
		}
	}

	// 10. Portfolio-wide stop-loss advisory scan.
	for tokenID, amount := range state.Balances {
		if tokenID == domain.CashToken || amount.Sign() <= 0 {
			continue
		}
		if q, ok := prices[tokenID]; ok && q.Change24h < -rules.StopLossPercent {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s is down %.1f%% in 24h, consider stop-loss",
					domain.SymbolForTokenID(tokenID), -q.Change24h))
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// EmergencyStopLoss sells the entire balance of tokenID at 5% under market,
// bypassing the validation pipeline. Failures are reported as a message
// rather than an error.
func (s *RiskService) EmergencyStopLoss(ctx context.Context, tokenID string, prices domain.PriceMap) domain.StopLossResult {
	balance := s.portfolio.Balances()[tokenID]
	if balance.Sign() <= 0 {
		return domain.StopLossResult{Message: fmt.Sprintf("no %s balance to sell", tokenID)}
	}

	market := prices.USDOrZero(tokenID)
	if !market.IsPositive() {
		return domain.StopLossResult{Message: fmt.Sprintf("no market price available for %s", tokenID)}
	}

	req := domain.TradeRequest{
		Pair:   domain.SymbolForTokenID(tokenID) + "/USDT",
		Side:   domain.TradeSideSell,
		Amount: balance,
		Price:  market.Mul(emergencyDiscount),
	}

	trade, err := s.portfolio.ExecuteTrade(ctx, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "emergency stop-loss failed",
			slog.String("token", tokenID),
			slog.String("error", err.Error()))
		return domain.StopLossResult{Message: err.Error()}
	}

	s.logger.WarnContext(ctx, "emergency stop-loss executed",
		slog.String("token", tokenID),
		slog.String("trade_id", trade.ID))
	s.portfolio.publish(ctx, ChannelRisk, EventEmergencyStop, trade)

	return domain.StopLossResult{Success: true, Trade: &trade}
}

// CheckHealth scores the portfolio from 100 with deterministic deductions.
// The score is not floored and can go negative.
func (s *RiskService) CheckHealth(ctx context.Context, prices domain.PriceMap) domain.HealthReport {
	rules := s.Rules()
	state := s.portfolio.State()
	totalValue := totalValueAt(state, prices)

	report := domain.HealthReport{Score: 100}

	nonCash := 0
	declining := 0
	cashValue := decimal.Zero
	for tokenID, amount := range state.Balances {
		if amount.Sign() <= 0 {
			continue
		}
		if tokenID == domain.CashToken {
			cashValue = amount
			continue
		}
		nonCash++

		if totalValue.Sign() > 0 {
			value := positionValueAt(state, tokenID, prices)
			pct, _ := value.Div(totalValue).Mul(decimal.NewFromInt(100)).Float64()
			if pct > rules.MaxPositionPercent {
				report.Score -= 15
				report.Issues = append(report.Issues,
					fmt.Sprintf("%s is %.1f%% of portfolio", domain.SymbolForTokenID(tokenID), pct))
				report.Recommendations = append(report.Recommendations,
					fmt.Sprintf("reduce %s position below %.0f%%",
						domain.SymbolForTokenID(tokenID), rules.MaxPositionPercent))
			}
		}
		if q, ok := prices[tokenID]; ok && q.Change24h < -10 {
			declining++
		}
	}

	if nonCash < 3 {
		report.Score -= 10
		report.Issues = append(report.Issues, "low diversification: fewer than 3 positions")
	}

	if totalValue.Sign() > 0 {
		cashPct, _ := cashValue.Div(totalValue).Mul(decimal.NewFromInt(100)).Float64()
		if cashPct < 10 {
			report.Score -= 10
			report.Issues = append(report.Issues,
				fmt.Sprintf("low cash reserve: %.1f%% of portfolio", cashPct))
		}
	}

	if declining > 0 {
		report.Score -= 5 * declining
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d position(s) down more than 10%% in 24h", declining))
	}

	invested := state.Summary.TotalInvested
	if invested.Sign() > 0 {
		pnlPct, _ := totalValue.Sub(invested).Div(invested).Mul(decimal.NewFromInt(100)).Float64()
		if pnlPct < -20 {
			report.Score -= 20
			report.Issues = append(report.Issues,
				fmt.Sprintf("portfolio is down %.1f%% from invested capital", -pnlPct))
		}
	}

	return report
}

// RiskStats summarizes recent trading activity against the effective rules.
// The daily figures cover a trailing 24h window over all trades regardless
// of status; the validation pipeline's volume cap uses its own
// completed-since-midnight figure.
func (s *RiskService) RiskStats() domain.RiskStats {
	state := s.portfolio.State()
	now := time.Now().UTC()
	stats := computeStatsLocked(state.Trades, now)

	dayAgo := now.Add(-24 * time.Hour)
	dailyTrades := 0
	dailyVolume := decimal.Zero
	for i := range state.Trades {
		if state.Trades[i].CreatedAt.After(dayAgo) {
			dailyTrades++
			dailyVolume = dailyVolume.Add(state.Trades[i].TotalCost)
		}
	}

	return domain.RiskStats{
		DailyVolume:    dailyVolume,
		DailyTrades:    dailyTrades,
		TradesLastHour: stats.TradesLastHour,
		LastTradeTime:  stats.LastTradeAt,
		RiskRules:      s.Rules(),
	}
}

// totalValueAt values the full ledger at the given prices, cash at 1.0.
func totalValueAt(state domain.PortfolioState, prices domain.PriceMap) decimal.Decimal {
	total := decimal.Zero
	for tokenID, amount := range state.Balances {
		if amount.Sign() <= 0 {
			continue
		}
		total = total.Add(positionValueAt(state, tokenID, prices))
	}
	return total
}

// positionValueAt values a single holding at the given prices.
func positionValueAt(state domain.PortfolioState, tokenID string, prices domain.PriceMap) decimal.Decimal {
	amount := state.Balances[tokenID]
	if amount.Sign() <= 0 {
		return decimal.Zero
	}
	if tokenID == domain.CashToken {
		return amount
	}
	return amount.Mul(prices.USDOrZero(tokenID))
}

// percentOf returns pct% of value.
func percentOf(value decimal.Decimal, pct float64) decimal.Decimal {
	return value.Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100))
}
