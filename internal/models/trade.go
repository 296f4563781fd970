package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one historical fill on the market.
type Trade struct {
	Price     decimal.Decimal `json:"price"`
	BidAmount decimal.Decimal `json:"bid_amount"`
	AskAmount decimal.Decimal `json:"ask_amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// Validate checks trade field constraints.
func (t *Trade) Validate() error {
	if !t.Price.IsPositive() {
		return errors.New("trade price must be positive")
	}
	if t.BidAmount.IsNegative() {
		return errors.New("trade bid amount must not be negative")
	}
	if t.AskAmount.IsNegative() {
		return errors.New("trade ask amount must not be negative")
	}
	return nil
}

// Volume is the traded amount on both legs of the fill.
func (t *Trade) Volume() decimal.Decimal {
	return t.BidAmount.Add(t.AskAmount)
}

// OrderBookLevel is one aggregated price level of the book.
// Amount carries the wire "bid" field for bids and the "ask" field for asks.
type OrderBookLevel struct {
	Level  decimal.Decimal `json:"level"`
	Amount decimal.Decimal `json:"amount"`
	Count  decimal.Decimal `json:"count"`
}

// Validate checks level field constraints.
func (l *OrderBookLevel) Validate() error {
	if !l.Level.IsPositive() {
		return errors.New("order book level price must be positive")
	}
	if l.Amount.IsNegative() {
		return errors.New("order book level amount must not be negative")
	}
	if l.Count.IsNegative() {
		return errors.New("order book level count must not be negative")
	}
	return nil
}

// Depth is the volume contributed by the level.
func (l *OrderBookLevel) Depth() decimal.Decimal {
	return l.Amount.Mul(l.Count)
}

// OrderBook is a ready snapshot; both sides are ordered best-first.
type OrderBook struct {
	Bids []OrderBookLevel `json:"bids"`
	Asks []OrderBookLevel `json:"asks"`
}

// Side returns the levels walked when trading on the given side.
func (b *OrderBook) Side(side Side) []OrderBookLevel {
	if side == SideBuy {
		return b.Bids
	}
	return b.Asks
}
