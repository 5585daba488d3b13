package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/eguzmanz/dexdash/internal/domain"
)

// PortfolioHandler serves raw ledger endpoints.
type PortfolioHandler struct {
	portfolio Portfolio
	logger    *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(portfolio Portfolio, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolio: portfolio, logger: logger}
}

// Balances returns the balance ledger.
// GET /api/portfolio/balances
func (h *PortfolioHandler) Balances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"balances": h.portfolio.Balances()})
}

// addFundsRequest is the body for the add-funds endpoint.
type addFundsRequest struct {
	Token  string          `json:"token"`
	Amount decimal.Decimal `json:"amount"`
}

// AddFunds credits the ledger outside the trade path.
// POST /api/portfolio/add-funds
func (h *PortfolioHandler) AddFunds(w http.ResponseWriter, r *http.Request) {
	var req addFundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	balance, err := h.portfolio.AddFunds(r.Context(), req.Token, req.Amount)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTrade) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: add funds failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to add funds")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":   req.Token,
		"balance": balance,
	})
}
