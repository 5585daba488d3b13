package oneinch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/swap/v6.0/1/quote", r.URL.Path)
		assert.Equal(t, "Bearer key123", r.Header.Get("Authorization"))
		assert.Equal(t, "1000000000000000000", r.URL.Query().Get("amount"))
		_, _ = w.Write([]byte(`{"dstAmount": "3497120000", "gas": 210000}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key123")
	quote, err := client.GetQuote(context.Background(), EthereumChainID,
		"0xsrc", "0xdst", "1000000000000000000")
	require.NoError(t, err)

	assert.Equal(t, "3497120000", quote.DstAmount)
	assert.Equal(t, int64(210000), quote.Gas)
}

func TestGetTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/swap/v6.0/1/tokens", r.URL.Path)
		_, _ = w.Write([]byte(`{"tokens": {
			"0xabc": {"address": "0xabc", "symbol": "WETH", "name": "Wrapped Ether", "decimals": 18}
		}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key123")
	tokens, err := client.GetTokens(context.Background(), EthereumChainID)
	require.NoError(t, err)

	require.Len(t, tokens, 1)
	assert.Equal(t, "WETH", tokens["0xabc"].Symbol)
	assert.Equal(t, 18, tokens["0xabc"].Decimals)
}

func TestVersionedBaseURLNotDoubled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/swap/v6.0/1/quote", r.URL.Path)
		_, _ = w.Write([]byte(`{"dstAmount": "1", "gas": 1}`))
	}))
	defer srv.Close()

	// Operators sometimes configure the documented endpoint root, which
	// already ends in the version segment.
	client := NewClient(srv.URL+"/swap/v6.0", "key123")
	_, err := client.GetQuote(context.Background(), EthereumChainID, "0xa", "0xb", "1")
	require.NoError(t, err)
}

func TestGetQuoteUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.GetQuote(context.Background(), EthereumChainID, "0xa", "0xb", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
