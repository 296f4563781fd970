package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/rewired-gh/dexrisk/internal/models"
)

// LiquidityGate decides whether the sampled market trades enough to act on.
//
// The floor is a fraction of the average single-trade volume, compared against the
// total volume of the sample. For any fraction <= |sample| this always passes; the
// comparison is kept as the configured policy rather than recomputed against an
// average total volume across windows.
type LiquidityGate struct {
	MinimumVolumeFraction decimal.Decimal
}

// MinimumVolume is the fraction of the average traded volume per trade, both legs.
func (g LiquidityGate) MinimumVolume(sample []models.Trade) decimal.Decimal {
	bid, err := Average(sample, FieldBidAmount)
	if err != nil {
		return decimal.Zero
	}
	ask, err := Average(sample, FieldAskAmount)
	if err != nil {
		return decimal.Zero
	}
	return g.MinimumVolumeFraction.Mul(bid.Add(ask))
}

// Sufficient reports whether total volume reaches the minimum. An empty sample never does.
func (g LiquidityGate) Sufficient(sample []models.Trade) bool {
	if len(sample) == 0 {
		return false
	}
	return TotalVolume(sample).GreaterThanOrEqual(g.MinimumVolume(sample))
}
