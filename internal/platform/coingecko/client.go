// Package coingecko is the REST client for the CoinGecko public API, the
// live price source for the dashboard.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eguzmanz/dexdash/internal/domain"
)

// DefaultBaseURL is the public CoinGecko API root.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// Client is the REST client for the CoinGecko API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new CoinGecko client. apiKey may be empty; the public
// endpoints work without one, just with tighter upstream rate limits.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SimplePrices returns USD quotes with 24h change for the given token IDs
// (CoinGecko IDs such as "ethereum", "cardano").
func (c *Client) SimplePrices(ctx context.Context, tokenIDs []string) (domain.PriceMap, error) {
	params := url.Values{}
	params.Set("ids", strings.Join(tokenIDs, ","))
	params.Set("vs_currencies", "usd")
	params.Set("include_24hr_change", "true")

	body, err := c.doRequest(ctx, "/simple/price?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("coingecko: simple prices: %w", err)
	}

	var quotes domain.PriceMap
	if err := json.Unmarshal(body, &quotes); err != nil {
		return nil, fmt.Errorf("coingecko: decode prices: %w", err)
	}
	return quotes, nil
}

// Global returns aggregate market statistics.
func (c *Client) Global(ctx context.Context) (domain.GlobalMarket, error) {
	body, err := c.doRequest(ctx, "/global")
	if err != nil {
		return domain.GlobalMarket{}, fmt.Errorf("coingecko: global: %w", err)
	}

	var resp struct {
		Data struct {
			TotalMarketCap         map[string]float64 `json:"total_market_cap"`
			TotalVolume            map[string]float64 `json:"total_volume"`
			MarketCapChange24h     float64            `json:"market_cap_change_percentage_24h_usd"`
			ActiveCryptocurrencies int                `json:"active_cryptocurrencies"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.GlobalMarket{}, fmt.Errorf("coingecko: decode global: %w", err)
	}

	return domain.GlobalMarket{
		TotalMarketCapUSD:      resp.Data.TotalMarketCap["usd"],
		TotalVolumeUSD:         resp.Data.TotalVolume["usd"],
		MarketCapChange24h:     resp.Data.MarketCapChange24h,
		ActiveCryptocurrencies: resp.Data.ActiveCryptocurrencies,
	}, nil
}

func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
