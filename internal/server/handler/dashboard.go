package handler

import (
	"log/slog"
	"net/http"
)

// DashboardHandler serves the aggregate dashboard view.
type DashboardHandler struct {
	oracle    Oracle
	portfolio Portfolio
	risk      Risk
	tokens    []string
	logger    *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler over the default token set.
func NewDashboardHandler(oracle Oracle, portfolio Portfolio, risk Risk, tokens []string, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		oracle:    oracle,
		portfolio: portfolio,
		risk:      risk,
		tokens:    tokens,
		logger:    logger,
	}
}

// Stats returns the valuation snapshot, portfolio health, and global market
// overview in one response.
// GET /api/dashboard/stats
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	prices := h.oracle.GetPrices(ctx, h.tokens)

	writeJSON(w, http.StatusOK, map[string]any{
		"portfolio":        h.portfolio.Valuate(ctx, prices),
		"portfolio_health": h.risk.CheckHealth(ctx, prices),
		"global_market":    h.oracle.GetGlobalMarket(ctx),
	})
}
