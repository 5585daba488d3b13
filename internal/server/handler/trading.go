package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/eguzmanz/dexdash/internal/domain"
)

// TradingHandler serves trade execution, history, and stats.
type TradingHandler struct {
	trades    TradeExecutor
	oracle    Oracle
	portfolio Portfolio
	risk      Risk
	tokens    []string
	logger    *slog.Logger
}

// NewTradingHandler creates a TradingHandler.
func NewTradingHandler(trades TradeExecutor, oracle Oracle, portfolio Portfolio, risk Risk, tokens []string, logger *slog.Logger) *TradingHandler {
	return &TradingHandler{
		trades:    trades,
		oracle:    oracle,
		portfolio: portfolio,
		risk:      risk,
		tokens:    tokens,
		logger:    logger,
	}
}

// Portfolio returns the current valuation snapshot.
// GET /api/trading/portfolio
func (h *TradingHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	prices := h.oracle.GetPrices(ctx, h.tokens)
	writeJSON(w, http.StatusOK, h.portfolio.Valuate(ctx, prices))
}

// Execute validates and executes a trade request.
// POST /api/trading/execute
func (h *TradingHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req domain.TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	trade, result, err := h.trades.Execute(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"trade":      trade,
			"validation": result,
		})

	case errors.Is(err, domain.ErrTradeRejected):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "trade rejected",
			"validation": result,
		})

	case errors.Is(err, domain.ErrInsufficientBalance):
		// The failed trade is still recorded for audit.
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": err.Error(),
			"trade": trade,
		})

	case errors.Is(err, domain.ErrInvalidTrade):
		writeError(w, http.StatusBadRequest, err.Error())

	default:
		h.logger.ErrorContext(r.Context(), "handler: execute trade failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "trade execution failed")
	}
}

// Trades returns recent trades, newest first.
// GET /api/trading/trades?limit=50
func (h *TradingHandler) Trades(w http.ResponseWriter, r *http.Request) {
	trades := h.portfolio.Trades(parseLimit(r, 50))
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": trades})
}

// Stats returns trade-log derived metrics alongside risk activity.
// GET /api/trading/stats
func (h *TradingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"trading": h.portfolio.Stats(),
		"risk":    h.risk.RiskStats(),
	})
}
