package domain

import "github.com/shopspring/decimal"

// PriceQuote is a normalized spot price for one token: USD value and the
// 24-hour percentage change.
type PriceQuote struct {
	USD       decimal.Decimal `json:"usd"`
	Change24h float64         `json:"usd_24h_change"`
}

// PriceMap maps token ids to their latest quotes. A missing token is treated
// as price 0 by all consumers.
type PriceMap map[string]PriceQuote

// USDOrZero returns the USD price for a token, or zero when unknown.
func (m PriceMap) USDOrZero(tokenID string) decimal.Decimal {
	if q, ok := m[tokenID]; ok {
		return q.USD
	}
	return decimal.Zero
}

// GlobalMarket is the aggregate market overview shown on the dashboard.
type GlobalMarket struct {
	TotalMarketCapUSD      float64 `json:"total_market_cap_usd"`
	TotalVolumeUSD         float64 `json:"total_volume_usd"`
	MarketCapChange24h     float64 `json:"market_cap_change_24h"`
	ActiveCryptocurrencies int     `json:"active_cryptocurrencies"`
}
