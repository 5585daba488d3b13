package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eguzmanz/dexdash/internal/domain"
	"github.com/eguzmanz/dexdash/internal/platform/oneinch"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubOracle struct {
	prices domain.PriceMap
	global domain.GlobalMarket
	source string
	gotIDs []string
}

func (s *stubOracle) GetPrices(_ context.Context, ids []string) domain.PriceMap {
	s.gotIDs = ids
	return s.prices
}

func (s *stubOracle) GetGlobalMarket(context.Context) domain.GlobalMarket { return s.global }

func (s *stubOracle) Source() string { return s.source }

type stubPortfolio struct {
	snapshot   domain.PortfolioSnapshot
	balances   map[string]decimal.Decimal
	trades     []domain.Trade
	stats      domain.TradingStats
	summary    domain.PortfolioSummary
	addErr     error
	addedToken string
	addedAmt   decimal.Decimal
}

func (s *stubPortfolio) Valuate(context.Context, domain.PriceMap) domain.PortfolioSnapshot {
	return s.snapshot
}

func (s *stubPortfolio) Balances() map[string]decimal.Decimal { return s.balances }

func (s *stubPortfolio) Trades(limit int) []domain.Trade {
	if limit < len(s.trades) {
		return s.trades[:limit]
	}
	return s.trades
}

func (s *stubPortfolio) Stats() domain.TradingStats { return s.stats }

func (s *stubPortfolio) Summary() domain.PortfolioSummary { return s.summary }

func (s *stubPortfolio) AddFunds(_ context.Context, tokenID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if s.addErr != nil {
		return decimal.Zero, s.addErr
	}
	s.addedToken = tokenID
	s.addedAmt = amount
	return s.balances[tokenID].Add(amount), nil
}

type stubRisk struct {
	report   domain.HealthReport
	stop     domain.StopLossResult
	rules    domain.RiskRules
	stats    domain.RiskStats
	gotPatch domain.RiskRulesPatch
	gotToken string
}

func (s *stubRisk) CheckHealth(context.Context, domain.PriceMap) domain.HealthReport {
	return s.report
}

func (s *stubRisk) EmergencyStopLoss(_ context.Context, tokenID string, _ domain.PriceMap) domain.StopLossResult {
	s.gotToken = tokenID
	return s.stop
}

func (s *stubRisk) Rules() domain.RiskRules { return s.rules }

func (s *stubRisk) UpdateRules(patch domain.RiskRulesPatch) domain.RiskRules {
	s.gotPatch = patch
	s.rules = s.rules.Apply(patch)
	return s.rules
}

func (s *stubRisk) RiskStats() domain.RiskStats { return s.stats }

type stubExecutor struct {
	trade  domain.Trade
	result domain.ValidationResult
	err    error
	prices domain.PriceMap
	gotReq domain.TradeRequest
}

func (s *stubExecutor) Execute(_ context.Context, req domain.TradeRequest) (domain.Trade, domain.ValidationResult, error) {
	s.gotReq = req
	return s.trade, s.result, s.err
}

func (s *stubExecutor) PricesFor(context.Context, domain.TradeRequest) domain.PriceMap {
	return s.prices
}

type stubDex struct {
	quote  oneinch.Quote
	tokens map[string]oneinch.Token
	err    error
}

func (s *stubDex) GetQuote(_ context.Context, _ int, _, _, _ string) (oneinch.Quote, error) {
	return s.quote, s.err
}

func (s *stubDex) GetTokens(context.Context, int) (map[string]oneinch.Token, error) {
	return s.tokens, s.err
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestTradingExecuteSuccess(t *testing.T) {
	exec := &stubExecutor{
		trade:  domain.Trade{ID: "t-1", Pair: "ETH/USDT", Status: domain.TradeStatusCompleted},
		result: domain.ValidationResult{Valid: true},
	}
	h := NewTradingHandler(exec, &stubOracle{}, &stubPortfolio{}, &stubRisk{}, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/trading/execute",
		strings.NewReader(`{"pair":"ETH/USDT","side":"buy","amount":"0.5","price":"3500"}`))
	rec := httptest.NewRecorder()
	h.Execute(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	trade := body["trade"].(map[string]any)
	assert.Equal(t, "t-1", trade["id"])
	assert.Equal(t, "ETH/USDT", exec.gotReq.Pair)
}

func TestTradingExecuteRejected(t *testing.T) {
	exec := &stubExecutor{
		result: domain.ValidationResult{Valid: false, Errors: []string{"token DOGE is blacklisted"}},
		err:    domain.ErrTradeRejected,
	}
	h := NewTradingHandler(exec, &stubOracle{}, &stubPortfolio{}, &stubRisk{}, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/trading/execute",
		strings.NewReader(`{"pair":"DOGE/USDT","side":"buy","amount":"10","price":"0.1"}`))
	rec := httptest.NewRecorder()
	h.Execute(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "trade rejected", body["error"])
	validation := body["validation"].(map[string]any)
	assert.Equal(t, false, validation["valid"])
}

func TestTradingExecuteInsufficientBalance(t *testing.T) {
	exec := &stubExecutor{
		trade: domain.Trade{ID: "t-2", Status: domain.TradeStatusFailed},
		err: &domain.InsufficientBalanceError{
			Token:     "usdt",
			Required:  decimal.NewFromInt(1000),
			Available: decimal.NewFromInt(5),
		},
	}
	h := NewTradingHandler(exec, &stubOracle{}, &stubPortfolio{}, &stubRisk{}, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/trading/execute",
		strings.NewReader(`{"pair":"ETH/USDT","side":"buy","amount":"10","price":"3500"}`))
	rec := httptest.NewRecorder()
	h.Execute(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "insufficient")
	trade := body["trade"].(map[string]any)
	assert.Equal(t, "failed", trade["status"])
}

func TestTradingExecuteBadBody(t *testing.T) {
	h := NewTradingHandler(&stubExecutor{}, &stubOracle{}, &stubPortfolio{}, &stubRisk{}, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/trading/execute", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	h.Execute(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTradingTradesEmptyIsArray(t *testing.T) {
	h := NewTradingHandler(&stubExecutor{}, &stubOracle{}, &stubPortfolio{}, &stubRisk{}, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/trading/trades", nil)
	rec := httptest.NewRecorder()
	h.Trades(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"trades":[]}`, rec.Body.String())
}

func TestTradingTradesLimit(t *testing.T) {
	pf := &stubPortfolio{trades: []domain.Trade{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	h := NewTradingHandler(&stubExecutor{}, &stubOracle{}, pf, &stubRisk{}, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/trading/trades?limit=2", nil)
	rec := httptest.NewRecorder()
	h.Trades(rec, req)

	body := decodeBody(t, rec)
	assert.Len(t, body["trades"], 2)
}

func TestPortfolioAddFunds(t *testing.T) {
	pf := &stubPortfolio{balances: map[string]decimal.Decimal{"usdt": decimal.NewFromInt(100)}}
	h := NewPortfolioHandler(pf, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/portfolio/add-funds",
		strings.NewReader(`{"token":"usdt","amount":"250.5"}`))
	rec := httptest.NewRecorder()
	h.AddFunds(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "usdt", pf.addedToken)
	assert.True(t, pf.addedAmt.Equal(decimal.RequireFromString("250.5")))
	body := decodeBody(t, rec)
	assert.Equal(t, "usdt", body["token"])
	assert.Equal(t, "350.5", body["balance"])
}

func TestPortfolioAddFundsRejectsInvalid(t *testing.T) {
	pf := &stubPortfolio{addErr: domain.ErrInvalidTrade}
	h := NewPortfolioHandler(pf, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/portfolio/add-funds",
		strings.NewReader(`{"token":"usdt","amount":"-5"}`))
	rec := httptest.NewRecorder()
	h.AddFunds(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPortfolioAddFundsRequiresToken(t *testing.T) {
	h := NewPortfolioHandler(&stubPortfolio{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/portfolio/add-funds",
		strings.NewReader(`{"amount":"10"}`))
	rec := httptest.NewRecorder()
	h.AddFunds(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarketPricesQueryParsing(t *testing.T) {
	oracle := &stubOracle{
		prices: domain.PriceMap{"ethereum": {USD: decimal.NewFromInt(3500)}},
		source: "live",
	}
	h := NewMarketHandler(oracle, []string{"ethereum", "cardano"}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/market/prices?tokens=Ethereum,%20solana", nil)
	rec := httptest.NewRecorder()
	h.Prices(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ethereum", "solana"}, oracle.gotIDs)
	body := decodeBody(t, rec)
	assert.Equal(t, "live", body["source"])
}

func TestMarketPricesDefaultsWatchlist(t *testing.T) {
	oracle := &stubOracle{source: "fallback"}
	h := NewMarketHandler(oracle, []string{"ethereum", "cardano"}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/market/prices", nil)
	rec := httptest.NewRecorder()
	h.Prices(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ethereum", "cardano"}, oracle.gotIDs)
}

func TestRiskUpdateRulesMergesPatch(t *testing.T) {
	risk := &stubRisk{rules: domain.DefaultRiskRules()}
	h := NewRiskHandler(risk, &stubOracle{}, nil, testLogger())

	req := httptest.NewRequest(http.MethodPut, "/api/risk/rules",
		strings.NewReader(`{"maxTradePercent":25}`))
	rec := httptest.NewRecorder()
	h.UpdateRules(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var rules domain.RiskRules
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
	assert.Equal(t, 25.0, rules.MaxTradePercent)
	// Untouched fields keep their previous values.
	assert.True(t, rules.MinTradeUSD.Equal(domain.DefaultRiskRules().MinTradeUSD))
}

func TestRiskEmergencyStopMapsSymbol(t *testing.T) {
	risk := &stubRisk{stop: domain.StopLossResult{Success: true, Message: "ok"}}
	h := NewRiskHandler(risk, &stubOracle{}, []string{"usdt"}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/risk/emergency-stop",
		strings.NewReader(`{"token":"ETH"}`))
	rec := httptest.NewRecorder()
	h.EmergencyStop(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ethereum", risk.gotToken)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
}

func TestRiskEmergencyStopFailureStill200(t *testing.T) {
	risk := &stubRisk{stop: domain.StopLossResult{Success: false, Message: "no ethereum balance to sell"}}
	h := NewRiskHandler(risk, &stubOracle{}, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/risk/emergency-stop",
		strings.NewReader(`{"token":"ethereum"}`))
	rec := httptest.NewRecorder()
	h.EmergencyStop(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "no ethereum balance")
}

func TestDexQuote(t *testing.T) {
	dex := &stubDex{quote: oneinch.Quote{DstAmount: "123456", Gas: 210000}}
	h := NewDexHandler(dex, 1, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/dex/quote?src=0xa&dst=0xb&amount=1000", nil)
	rec := httptest.NewRecorder()
	h.Quote(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "123456", body["dst_amount"])
	assert.Equal(t, float64(210000), body["gas"])
}

func TestDexQuoteRequiresParams(t *testing.T) {
	h := NewDexHandler(&stubDex{}, 1, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/dex/quote?src=0xa", nil)
	rec := httptest.NewRecorder()
	h.Quote(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDexQuoteUpstreamError(t *testing.T) {
	h := NewDexHandler(&stubDex{err: errors.New("boom")}, 1, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/dex/quote?src=0xa&dst=0xb&amount=1", nil)
	rec := httptest.NewRecorder()
	h.Quote(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHealthReportsComponents(t *testing.T) {
	oracle := &stubOracle{prices: domain.PriceMap{"ethereum": {USD: decimal.NewFromInt(3500)}}, source: "live"}
	pf := &stubPortfolio{snapshot: domain.PortfolioSnapshot{TotalValue: decimal.NewFromInt(9200)}}
	risk := &stubRisk{report: domain.HealthReport{Score: 80}}
	h := NewHealthHandler(oracle, pf, risk, []string{"ethereum"}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "live", body["market_data_source"])
}
