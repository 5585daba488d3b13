package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimplePrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "ethereum,cardano", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"ethereum": {"usd": 3500.12, "usd_24h_change": 2.4},
			"cardano": {"usd": 0.45, "usd_24h_change": -1.1}
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	quotes, err := client.SimplePrices(context.Background(), []string{"ethereum", "cardano"})
	require.NoError(t, err)

	require.Len(t, quotes, 2)
	assert.True(t, quotes["ethereum"].USD.Equal(decimal.NewFromFloat(3500.12)))
	assert.InDelta(t, -1.1, quotes["cardano"].Change24h, 1e-9)
}

func TestSimplePricesAPIKeyHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-cg-demo-api-key"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")
	_, err := client.SimplePrices(context.Background(), []string{"ethereum"})
	require.NoError(t, err)
}

func TestSimplePricesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.SimplePrices(context.Background(), []string{"ethereum"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGlobal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/global", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"data": {
				"total_market_cap": {"usd": 2500000000000},
				"total_volume": {"usd": 98000000000},
				"market_cap_change_percentage_24h_usd": 1.7,
				"active_cryptocurrencies": 12345
			}
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	global, err := client.Global(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 2.5e12, global.TotalMarketCapUSD, 1)
	assert.InDelta(t, 1.7, global.MarketCapChange24h, 1e-9)
	assert.Equal(t, 12345, global.ActiveCryptocurrencies)
}
