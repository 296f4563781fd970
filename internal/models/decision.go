package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trend is the directional signal read from the last two trades.
type Trend string

const (
	TrendBuy      Trend = "BUY"
	TrendSell     Trend = "SELL"
	TrendSideways Trend = "SIDEWAYS"
)

// Side maps a directional trend to an order side. Sideways has no side.
func (t Trend) Side() (Side, bool) {
	switch t {
	case TrendBuy:
		return SideBuy, true
	case TrendSell:
		return SideSell, true
	default:
		return "", false
	}
}

// MarketStats is derived once per cycle from the history sample.
type MarketStats struct {
	Average     decimal.Decimal `json:"average"`
	StdDev      decimal.Decimal `json:"stddev"`
	Volatility  decimal.Decimal `json:"volatility"`
	Trend       Trend           `json:"trend"`
	TotalVolume decimal.Decimal `json:"total_volume"`
}

// OrderIntent is a fully specified limit order, consumed immediately by execution.
type OrderIntent struct {
	Side     Side            `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (o OrderIntent) String() string {
	return fmt.Sprintf("%s %s @ %s", o.Side, o.Quantity, o.Price)
}

// OutcomeKind classifies how a cycle ended.
type OutcomeKind string

const (
	OutcomeNoAction OutcomeKind = "NO_ACTION"
	OutcomeError    OutcomeKind = "ERROR"
	OutcomeExecuted OutcomeKind = "EXECUTED"
)

// Outcome is the decision event emitted by one evaluation cycle.
type Outcome struct {
	Kind   OutcomeKind  `json:"kind"`
	Symbol string       `json:"symbol"`
	Reason string       `json:"reason"`
	Intent *OrderIntent `json:"intent,omitempty"`
	Stats  *MarketStats `json:"stats,omitempty"`
	At     time.Time    `json:"at"`
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeExecuted:
		if o.Intent != nil {
			return fmt.Sprintf("%s executed %s", o.Symbol, o.Intent)
		}
		return fmt.Sprintf("%s executed", o.Symbol)
	case OutcomeError:
		return fmt.Sprintf("%s error: %s", o.Symbol, o.Reason)
	default:
		return fmt.Sprintf("%s no action: %s", o.Symbol, o.Reason)
	}
}
