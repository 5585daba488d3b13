package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/eguzmanz/dexdash/internal/domain"
)

// RiskHandler serves risk rule management and emergency controls.
type RiskHandler struct {
	risk          Risk
	oracle        Oracle
	defaultTokens []string
	logger        *slog.Logger
}

// NewRiskHandler creates a RiskHandler.
func NewRiskHandler(risk Risk, oracle Oracle, defaultTokens []string, logger *slog.Logger) *RiskHandler {
	return &RiskHandler{risk: risk, oracle: oracle, defaultTokens: defaultTokens, logger: logger}
}

// Health returns the portfolio health report.
// GET /api/risk/health
func (h *RiskHandler) Health(w http.ResponseWriter, r *http.Request) {
	prices := h.oracle.GetPrices(r.Context(), h.defaultTokens)
	report := h.risk.CheckHealth(r.Context(), prices)
	writeJSON(w, http.StatusOK, report)
}

// GetRules returns the active risk rules.
// GET /api/risk/rules
func (h *RiskHandler) GetRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.risk.Rules())
}

// UpdateRules applies a partial update to the risk rules and returns
// the merged result.
// PUT /api/risk/rules
func (h *RiskHandler) UpdateRules(w http.ResponseWriter, r *http.Request) {
	var patch domain.RiskRulesPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rules := h.risk.UpdateRules(patch)
	h.logger.InfoContext(r.Context(), "risk rules updated")
	writeJSON(w, http.StatusOK, rules)
}

// emergencyStopRequest is the body for the emergency stop endpoint.
type emergencyStopRequest struct {
	Token string `json:"token"`
}

// EmergencyStop liquidates the full position in a token at a discount
// to the current market price.
// POST /api/risk/emergency-stop
func (h *RiskHandler) EmergencyStop(w http.ResponseWriter, r *http.Request) {
	var req emergencyStopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	tokenID := domain.SymbolToTokenID(req.Token)
	prices := h.oracle.GetPrices(r.Context(), append([]string{tokenID}, h.defaultTokens...))
	result := h.risk.EmergencyStopLoss(r.Context(), tokenID, prices)
	if !result.Success {
		h.logger.WarnContext(r.Context(), "emergency stop did not execute",
			slog.String("token", tokenID),
			slog.String("message", result.Message))
	}
	writeJSON(w, http.StatusOK, result)
}
