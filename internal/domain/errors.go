package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPriceUnavailable    = errors.New("price unavailable")
	ErrInvalidTrade        = errors.New("invalid trade parameters")
	ErrTradeRejected       = errors.New("trade rejected by risk management")
)

// InsufficientBalanceError reports a debit that would drive a balance
// negative. It wraps ErrInsufficientBalance so callers can match with
// errors.Is while still seeing the exact shortfall.
type InsufficientBalanceError struct {
	Token     string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance. Required: %s, Available: %s",
		e.Token, e.Required.String(), e.Available.String())
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}
