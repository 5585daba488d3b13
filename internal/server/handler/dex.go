package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/eguzmanz/dexdash/internal/platform/oneinch"
)

// DexClient is the aggregator surface the handler depends on.
type DexClient interface {
	GetQuote(ctx context.Context, chainID int, src, dst, amount string) (oneinch.Quote, error)
	GetTokens(ctx context.Context, chainID int) (map[string]oneinch.Token, error)
}

// supportedChains mirrors the networks the aggregator serves quotes on.
var supportedChains = []map[string]any{
	{"id": 1, "name": "Ethereum"},
	{"id": 10, "name": "Optimism"},
	{"id": 56, "name": "BNB Chain"},
	{"id": 137, "name": "Polygon"},
	{"id": 8453, "name": "Base"},
	{"id": 42161, "name": "Arbitrum"},
}

// DexHandler proxies quote data from the swap aggregator.
type DexHandler struct {
	client  DexClient
	chainID int
	logger  *slog.Logger
}

// NewDexHandler creates a DexHandler.
func NewDexHandler(client DexClient, chainID int, logger *slog.Logger) *DexHandler {
	if chainID == 0 {
		chainID = oneinch.EthereumChainID
	}
	return &DexHandler{client: client, chainID: chainID, logger: logger}
}

// Quote fetches a swap quote for src -> dst. Amount is in the source
// token's smallest unit.
// GET /api/dex/quote?src=0x..&dst=0x..&amount=1000000
func (h *DexHandler) Quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	src, dst, amount := q.Get("src"), q.Get("dst"), q.Get("amount")
	if src == "" || dst == "" || amount == "" {
		writeError(w, http.StatusBadRequest, "src, dst and amount are required")
		return
	}

	quote, err := h.client.GetQuote(r.Context(), h.chainID, src, dst, amount)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: dex quote failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "quote unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"chain_id":   h.chainID,
		"src":        src,
		"dst":        dst,
		"amount":     amount,
		"dst_amount": quote.DstAmount,
		"gas":        quote.Gas,
	})
}

// Tokens lists the tokens tradable on the configured chain.
// GET /api/dex/tokens
func (h *DexHandler) Tokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.client.GetTokens(r.Context(), h.chainID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: dex tokens failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "token list unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"chain_id": h.chainID,
		"tokens":   tokens,
	})
}

// Chains lists the supported networks.
// GET /api/dex/chains
func (h *DexHandler) Chains(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"chains": supportedChains})
}
