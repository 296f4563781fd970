package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Balance is the amount of a single currency held by the account.
type Balance struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// BalanceSet maps currency to balance; at most one entry per currency.
type BalanceSet map[string]Balance

// NewBalanceSet indexes balances by currency. Later entries win on duplicates.
func NewBalanceSet(balances []Balance) BalanceSet {
	set := make(BalanceSet, len(balances))
	for _, b := range balances {
		set[b.Currency] = b
	}
	return set
}

// Lookup returns the balance for currency and whether one was present.
func (s BalanceSet) Lookup(currency string) (Balance, bool) {
	b, ok := s[currency]
	return b, ok
}

// Validate checks balance field constraints.
func (b *Balance) Validate() error {
	if b.Currency == "" {
		return errors.New("balance currency must not be empty")
	}
	if b.Amount.IsNegative() {
		return errors.New("balance amount must not be negative")
	}
	return nil
}

// OpenOrder is a resting order owned by the account.
type OpenOrder struct {
	OrderID  string `json:"order_id"`
	MarketID int64  `json:"market_id"`
	Side     Side   `json:"side"`
}

// Validate checks open order field constraints. An order without a market
// cannot be matched against the traded market and must not be ignored.
func (o *OpenOrder) Validate() error {
	if o.OrderID == "" {
		return errors.New("open order id must not be empty")
	}
	if o.MarketID <= 0 {
		return errors.New("open order market id must be positive")
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return fmt.Errorf("open order side %q is not BUY or SELL", o.Side)
	}
	return nil
}
