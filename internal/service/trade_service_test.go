package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eguzmanz/dexdash/internal/domain"
)

func newTestTradeService(t *testing.T, seed PortfolioSeed, rules domain.RiskRules, market MarketClient) (*TradeService, *PortfolioService) {
	t.Helper()
	p := newTestPortfolio(t, nil, seed, 0)
	risk := NewRiskService(p, rules, testLogger())
	oracle := newTestOracle(market, time.Minute)
	svc := NewTradeService(oracle, p, risk, []string{"ethereum"}, testLogger())
	return svc, p
}

func TestTradeServiceExecute(t *testing.T) {
	svc, p := newTestTradeService(t, seedETHUSDT(), domain.DefaultRiskRules(), &stubMarket{prices: ethPrices()})

	trade, result, err := svc.Execute(context.Background(), domain.TradeRequest{
		Pair: "ETH/USDT", Side: domain.TradeSideSell,
		Amount: dec(0.2), Price: decimal.NewFromInt(3500),
	})
	require.NoError(t, err)

	assert.True(t, result.Valid)
	assert.Equal(t, domain.TradeStatusCompleted, trade.Status)
	assert.True(t, p.Balances()["ethereum"].Equal(dec(1.0)))
}

func TestTradeServiceRejectsInvalid(t *testing.T) {
	svc, p := newTestTradeService(t, seedETHUSDT(), domain.DefaultRiskRules(), &stubMarket{prices: ethPrices()})

	_, result, err := svc.Execute(context.Background(), domain.TradeRequest{
		Pair: "DOGE/USDT", Side: domain.TradeSideBuy,
		Amount: decimal.NewFromInt(100), Price: dec(0.2),
	})

	require.ErrorIs(t, err, domain.ErrTradeRejected)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
	// Rejection never touches the ledger or the trade log.
	assert.Empty(t, p.Trades(0))
	assert.True(t, p.Balances()["usdt"].Equal(decimal.NewFromInt(5000)))
}

func TestTradeServiceAppliesSuggestedAmount(t *testing.T) {
	svc, _ := newTestTradeService(t, seedETHUSDT(), domain.DefaultRiskRules(), &stubMarket{prices: ethPrices()})

	// 1 ETH at 3500 is over the max trade size; the suggested compliant
	// amount is applied automatically.
	trade, result, err := svc.Execute(context.Background(), domain.TradeRequest{
		Pair: "ETH/USDT", Side: domain.TradeSideBuy,
		Amount: decimal.NewFromInt(1), Price: decimal.NewFromInt(3500),
	})
	require.NoError(t, err)

	require.NotNil(t, result.Adjustments.SuggestedAmount)
	assert.True(t, trade.Amount.Equal(*result.Adjustments.SuggestedAmount))
	assert.True(t, trade.Amount.LessThan(decimal.NewFromInt(1)))
}

func TestPricesForIncludesPairTokens(t *testing.T) {
	market := &stubMarket{prices: domain.PriceMap{
		"ethereum": {USD: decimal.NewFromInt(3500)},
		"solana":   {USD: decimal.NewFromInt(180)},
		"usdt":     {USD: decimal.NewFromInt(1)},
	}}
	svc, _ := newTestTradeService(t, seedETHUSDT(), domain.DefaultRiskRules(), market)

	prices := svc.PricesFor(context.Background(), domain.TradeRequest{
		Pair: "SOL/USDT", Side: domain.TradeSideBuy,
		Amount: decimal.NewFromInt(1), Price: decimal.NewFromInt(180),
	})

	assert.True(t, prices.USDOrZero("solana").Equal(decimal.NewFromInt(180)))
	assert.True(t, prices.USDOrZero("ethereum").Equal(decimal.NewFromInt(3500)))
}
