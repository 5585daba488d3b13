// Package oneinch is the REST client for the 1inch aggregation API, used by
// the DEX endpoints to fetch swap quotes and token lists.
package oneinch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the 1inch API root.
const DefaultBaseURL = "https://api.1inch.dev"

// EthereumChainID is the default chain for quotes.
const EthereumChainID = 1

// Client is the REST client for the 1inch API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new 1inch client. The API requires a key; requests
// without one fail with 401. baseURL is the API root; a trailing
// /swap/v6.0 segment is stripped since request paths already carry it.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/swap/v6.0")
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Quote is a swap quote from the aggregator.
type Quote struct {
	DstAmount string `json:"dstAmount"`
	Gas       int64  `json:"gas"`
}

// Token describes an ERC-20 token known to the aggregator.
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
	LogoURI  string `json:"logoURI"`
}

// GetQuote fetches a swap quote on the given chain. src and dst are token
// contract addresses and amount is in the source token's smallest unit.
func (c *Client) GetQuote(ctx context.Context, chainID int, src, dst, amount string) (Quote, error) {
	params := url.Values{}
	params.Set("src", src)
	params.Set("dst", dst)
	params.Set("amount", amount)
	params.Set("includeGas", "true")

	path := fmt.Sprintf("/swap/v6.0/%d/quote?%s", chainID, params.Encode())
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return Quote{}, fmt.Errorf("oneinch: get quote: %w", err)
	}

	var quote Quote
	if err := json.Unmarshal(body, &quote); err != nil {
		return Quote{}, fmt.Errorf("oneinch: decode quote: %w", err)
	}
	return quote, nil
}

// GetTokens returns the tokens tradable on the given chain, keyed by
// contract address.
func (c *Client) GetTokens(ctx context.Context, chainID int) (map[string]Token, error) {
	path := fmt.Sprintf("/swap/v6.0/%d/tokens", chainID)
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("oneinch: get tokens: %w", err)
	}

	var resp struct {
		Tokens map[string]Token `json:"tokens"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("oneinch: decode tokens: %w", err)
	}
	return resp.Tokens, nil
}

func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
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
