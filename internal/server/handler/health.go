package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	oracle    Oracle
	portfolio Portfolio
	risk      Risk
	probe     []string
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler. probeTokens is the token set
// fetched to determine whether live market data is available.
func NewHealthHandler(oracle Oracle, portfolio Portfolio, risk Risk, probeTokens []string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		oracle:    oracle,
		portfolio: portfolio,
		risk:      risk,
		probe:     probeTokens,
		startedAt: time.Now().UTC(),
		logger:    logger,
	}
}

// HealthCheck reports server status, the current market-data source, the
// persisted portfolio summary, and risk activity stats.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	// Touch the oracle so the reported source reflects current upstream
	// availability rather than the last organic request.
	h.oracle.GetPrices(r.Context(), h.probe)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds":     int64(time.Since(h.startedAt).Seconds()),
		"market_data_source": h.oracle.Source(),
		"portfolio":          h.portfolio.Summary(),
		"risk":               h.risk.RiskStats(),
	})
}
