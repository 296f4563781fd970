package strategy

import (
	"math"

	"github.com/shopspring/decimal"
)

// TradingDaysPerYear annualizes the per-sample volatility in the risk budget.
const TradingDaysPerYear = 252

// PositionSizer turns capital into an integer order quantity.
type PositionSizer struct {
	RiskFactor decimal.Decimal
}

// Size returns floor(min(risk*capital / (price*volatility*sqrt(252)), capital/price)).
// A non-positive result means no trade. The affordability cap is exact, so
// quantity*price never exceeds capital.
func (s PositionSizer) Size(capital, price, volatility decimal.Decimal) decimal.Decimal {
	if !capital.IsPositive() || !price.IsPositive() {
		return decimal.Zero
	}

	affordable := capital.Div(price).Floor()
	// Div rounds at DivisionPrecision and can land on the next integer.
	if affordable.Mul(price).GreaterThan(capital) {
		affordable = affordable.Sub(decimal.NewFromInt(1))
	}
	if !volatility.IsPositive() {
		return affordable
	}

	denom := price.Mul(volatility).Mul(decimal.NewFromFloat(math.Sqrt(TradingDaysPerYear)))
	risked := s.RiskFactor.Mul(capital).Div(denom).Floor()

	qty := decimal.Min(risked, affordable)
	if qty.IsNegative() {
		return decimal.Zero
	}
	return qty
}
