package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/rewired-gh/dexrisk/internal/models"
)

// DefaultDepthParticipation is the share of traded volume a single order targets.
var DefaultDepthParticipation = decimal.RequireFromString("0.1")

// DepthLocator searches one side of the book for an executable price level.
type DepthLocator struct {
	Participation decimal.Decimal
}

// Locate walks the side's levels best-first and returns the first level whose
// cumulative depth reaches Participation*target. The bool is false when the book
// is too thin; callers must not submit without a level.
func (d DepthLocator) Locate(side models.Side, book models.OrderBook, target decimal.Decimal) (decimal.Decimal, bool) {
	threshold := d.Participation.Mul(target)
	cumulative := decimal.Zero
	for _, level := range book.Side(side) {
		cumulative = cumulative.Add(level.Depth())
		if cumulative.GreaterThanOrEqual(threshold) {
			return level.Level, true
		}
	}
	return decimal.Zero, false
}
