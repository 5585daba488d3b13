package service

import (
	"context"
	"log/slog"

	"github.com/eguzmanz/dexdash/internal/domain"
)

// TradeService orchestrates the primary trade path: resolve prices, run the
// risk pipeline, apply any suggested downsizing, then execute.
type TradeService struct {
	oracle        *OracleService
	portfolio     *PortfolioService
	risk          *RiskService
	defaultTokens []string
	logger        *slog.Logger
}

// NewTradeService creates a TradeService.
func NewTradeService(oracle *OracleService, portfolio *PortfolioService, risk *RiskService, defaultTokens []string, logger *slog.Logger) *TradeService {
	return &TradeService{
		oracle:        oracle,
		portfolio:     portfolio,
		risk:          risk,
		defaultTokens: defaultTokens,
		logger:        logger.With(slog.String("component", "trade")),
	}
}

// Execute validates and executes a trade request. Price lookups complete
// before the ledger's critical section is entered. When the validator
// suggests a smaller amount, it is applied automatically and the executed
// trade reflects the adjusted size.
//
// On rejection the validation result carries the itemized errors and
// warnings and the returned error wraps domain.ErrTradeRejected.
func (s *TradeService) Execute(ctx context.Context, req domain.TradeRequest) (domain.Trade, domain.ValidationResult, error) {
	prices := s.PricesFor(ctx, req)

	result := s.risk.ValidateTrade(ctx, req, prices)
	if !result.Valid {
		s.logger.WarnContext(ctx, "trade rejected",
			slog.String("pair", req.Pair),
			slog.String("side", string(req.Side)),
			slog.Int("errors", len(result.Errors)))
		return domain.Trade{}, result, domain.ErrTradeRejected
	}

	if result.Adjustments.SuggestedAmount != nil {
		s.logger.InfoContext(ctx, "applying suggested trade size",
			slog.String("pair", req.Pair),
			slog.String("original", req.Amount.String()),
			slog.String("adjusted", result.Adjustments.SuggestedAmount.String()))
		req.Amount = *result.Adjustments.SuggestedAmount
	}

	trade, err := s.portfolio.ExecuteTrade(ctx, req)
	if err != nil {
		return trade, result, err
	}
	return trade, result, nil
}

// PricesFor resolves quotes for the default token set plus the request's
// base and quote assets.
func (s *TradeService) PricesFor(ctx context.Context, req domain.TradeRequest) domain.PriceMap {
	ids := append([]string(nil), s.defaultTokens...)
	for _, token := range []string{req.BaseToken(), req.QuoteToken()} {
		if token == "" {
			continue
		}
		seen := false
		for _, id := range ids {
			if id == token {
				seen = true
				break
			}
		}
		if !seen {
			ids = append(ids, token)
		}
	}
	return s.oracle.GetPrices(ctx, ids)
}
