package strategy

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/dexrisk/internal/models"
)

var (
	ErrEmptySample = errors.New("history sample is empty")
	ErrShortSample = errors.New("history sample needs at least two trades")
	ErrZeroMean    = errors.New("average price is zero")
)

// Field selects the numeric attribute of a trade that statistics run over.
type Field func(models.Trade) decimal.Decimal

var (
	FieldPrice     Field = func(t models.Trade) decimal.Decimal { return t.Price }
	FieldBidAmount Field = func(t models.Trade) decimal.Decimal { return t.BidAmount }
	FieldAskAmount Field = func(t models.Trade) decimal.Decimal { return t.AskAmount }
)

func Average(sample []models.Trade, field Field) (decimal.Decimal, error) {
	if len(sample) == 0 {
		return decimal.Zero, ErrEmptySample
	}
	sum := decimal.Zero
	for _, t := range sample {
		sum = sum.Add(field(t))
	}
	return sum.Div(decimal.NewFromInt(int64(len(sample)))), nil
}

// StandardDeviation is the population deviation (divides by N) of field around mean.
func StandardDeviation(sample []models.Trade, mean decimal.Decimal, field Field) (decimal.Decimal, error) {
	if len(sample) == 0 {
		return decimal.Zero, ErrEmptySample
	}
	sum := decimal.Zero
	for _, t := range sample {
		d := field(t).Sub(mean)
		sum = sum.Add(d.Mul(d))
	}
	variance := sum.Div(decimal.NewFromInt(int64(len(sample))))
	if variance.IsZero() {
		return decimal.Zero, nil
	}
	return decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64())), nil
}

// Volatility is the coefficient of variation: stddev / mean.
func Volatility(mean, stddev decimal.Decimal) (decimal.Decimal, error) {
	if mean.IsZero() {
		return decimal.Zero, ErrZeroMean
	}
	return stddev.Div(mean), nil
}

func TotalVolume(sample []models.Trade) decimal.Decimal {
	volume := decimal.Zero
	for _, t := range sample {
		volume = volume.Add(t.Volume())
	}
	return volume
}

// DetermineTrend only looks at the last two prices of the sample.
func DetermineTrend(sample []models.Trade) (models.Trend, error) {
	n := len(sample)
	if n < 2 {
		return "", ErrShortSample
	}
	last, prev := sample[n-1].Price, sample[n-2].Price
	switch last.Cmp(prev) {
	case 1:
		return models.TrendBuy, nil
	case -1:
		return models.TrendSell, nil
	default:
		return models.TrendSideways, nil
	}
}

// ComputeStats derives every per-cycle statistic from the price history.
func ComputeStats(sample []models.Trade) (models.MarketStats, error) {
	avg, err := Average(sample, FieldPrice)
	if err != nil {
		return models.MarketStats{}, err
	}
	stddev, err := StandardDeviation(sample, avg, FieldPrice)
	if err != nil {
		return models.MarketStats{}, err
	}
	vol, err := Volatility(avg, stddev)
	if err != nil {
		return models.MarketStats{}, err
	}
	trend, err := DetermineTrend(sample)
	if err != nil {
		return models.MarketStats{}, err
	}
	return models.MarketStats{
		Average:     avg,
		StdDev:      stddev,
		Volatility:  vol,
		Trend:       trend,
		TotalVolume: TotalVolume(sample),
	}, nil
}
