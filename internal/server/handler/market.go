package handler

import (
	"log/slog"
	"net/http"
	"strings"
)

// MarketHandler serves price and global market endpoints.
type MarketHandler struct {
	oracle        Oracle
	defaultTokens []string
	logger        *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(oracle Oracle, defaultTokens []string, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{oracle: oracle, defaultTokens: defaultTokens, logger: logger}
}

// Prices returns quotes for the requested tokens, or the default
// watchlist when none are given.
// GET /api/market/prices?tokens=ethereum,solana
func (h *MarketHandler) Prices(w http.ResponseWriter, r *http.Request) {
	tokens := h.defaultTokens
	if raw := r.URL.Query().Get("tokens"); raw != "" {
		tokens = tokens[:0:0]
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tokens = append(tokens, strings.ToLower(t))
			}
		}
	}
	if len(tokens) == 0 {
		writeError(w, http.StatusBadRequest, "no tokens requested")
		return
	}

	prices := h.oracle.GetPrices(r.Context(), tokens)
	writeJSON(w, http.StatusOK, map[string]any{
		"prices": prices,
		"source": h.oracle.Source(),
	})
}

// Global returns aggregate market statistics.
// GET /api/market/global
func (h *MarketHandler) Global(w http.ResponseWriter, r *http.Request) {
	global := h.oracle.GetGlobalMarket(r.Context())
	writeJSON(w, http.StatusOK, global)
}
