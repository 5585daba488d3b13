package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FeeRate is the flat taker fee applied to every executed trade (0.3%).
var FeeRate = decimal.NewFromFloat(0.003)

// TradeSide is the direction of a trade relative to the base asset.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// TradeStatus is the lifecycle state of a trade record. Records are
// append-only; the only transitions allowed are pending->completed and
// pending->failed.
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "pending"
	TradeStatusCompleted TradeStatus = "completed"
	TradeStatusFailed    TradeStatus = "failed"
)

// TradeRequest is a proposed trade as submitted by a client, before risk
// validation and execution.
type TradeRequest struct {
	Pair   string          `json:"pair"` // "BASE/QUOTE", e.g. "ETH/USDT"
	Side   TradeSide       `json:"side"`
	Amount decimal.Decimal `json:"amount"` // base-asset quantity
	Price  decimal.Decimal `json:"price"`  // quote-asset unit price
	DEX    string          `json:"dex,omitempty"`
}

// Validate checks the request at the boundary: pair format, side, and
// strictly positive amount and price.
func (r TradeRequest) Validate() error {
	if _, _, err := ParsePair(r.Pair); err != nil {
		return err
	}
	if r.Side != TradeSideBuy && r.Side != TradeSideSell {
		return fmt.Errorf("%w: side must be %q or %q", ErrInvalidTrade, TradeSideBuy, TradeSideSell)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTrade)
	}
	if !r.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidTrade)
	}
	return nil
}

// Notional returns the quote-asset value of the request (amount * price).
func (r TradeRequest) Notional() decimal.Decimal {
	return r.Amount.Mul(r.Price)
}

// BaseToken returns the ledger token id of the request's base asset.
func (r TradeRequest) BaseToken() string {
	base, _, _ := ParsePair(r.Pair)
	return SymbolToTokenID(base)
}

// QuoteToken returns the ledger token id of the request's quote asset.
func (r TradeRequest) QuoteToken() string {
	_, quote, _ := ParsePair(r.Pair)
	return SymbolToTokenID(quote)
}

// Trade is an immutable record of a submitted trade. TotalCost and Fee are
// denominated in the quote asset.
type Trade struct {
	ID         string          `json:"id"`
	Pair       string          `json:"pair"`
	Side       TradeSide       `json:"side"`
	Amount     decimal.Decimal `json:"amount"`
	Price      decimal.Decimal `json:"price"`
	TotalCost  decimal.Decimal `json:"totalCost"`
	Fee        decimal.Decimal `json:"fee"`
	DEX        string          `json:"dex,omitempty"`
	Status     TradeStatus     `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	ExecutedAt *time.Time      `json:"executedAt,omitempty"`
	TxHash     string          `json:"txHash,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// ParsePair splits a "BASE/QUOTE" pair string into its two symbols.
func ParsePair(pair string) (base, quote string, err error) {
	parts := strings.Split(pair, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: pair must be BASE/QUOTE, got %q", ErrInvalidTrade, pair)
	}
	return parts[0], parts[1], nil
}

// tokenIDBySymbol maps ticker symbols to the CoinGecko token ids used as
// ledger keys.
var tokenIDBySymbol = map[string]string{
	"ETH":  "ethereum",
	"ADA":  "cardano",
	"SOL":  "solana",
	"DOT":  "polkadot",
	"LINK": "chainlink",
	"USDT": "usdt",
	"USDC": "usdc",
	"BTC":  "bitcoin",
}

// SymbolToTokenID resolves a ticker symbol to its ledger token id. Unknown
// symbols fall back to the lower-cased symbol itself.
func SymbolToTokenID(symbol string) string {
	if id, ok := tokenIDBySymbol[strings.ToUpper(symbol)]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

var symbolByTokenID = func() map[string]string {
	m := make(map[string]string, len(tokenIDBySymbol))
	for sym, id := range tokenIDBySymbol {
		m[id] = sym
	}
	return m
}()

// SymbolForTokenID is the inverse of SymbolToTokenID. Unknown token ids fall
// back to the upper-cased id itself.
func SymbolForTokenID(tokenID string) string {
	if sym, ok := symbolByTokenID[tokenID]; ok {
		return sym
	}
	return strings.ToUpper(tokenID)
}
