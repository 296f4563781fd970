package strategy

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/dexrisk/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// trades builds a history sample with one unit of volume on each leg per trade.
func trades(prices ...string) []models.Trade {
	out := make([]models.Trade, len(prices))
	for i, p := range prices {
		out[i] = models.Trade{Price: d(p), BidAmount: d("1"), AskAmount: d("1")}
	}
	return out
}

func TestAverage(t *testing.T) {
	sample := trades("10", "20", "30", "40")
	avg, err := Average(sample, FieldPrice)
	require.NoError(t, err)
	assert.True(t, avg.Equal(d("25")), "got %s", avg)

	sample[0].BidAmount = d("5")
	avg, err = Average(sample, FieldBidAmount)
	require.NoError(t, err)
	assert.True(t, avg.Equal(d("2")), "got %s", avg)
}

func TestAverage_MatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		n := rng.Intn(40) + 1
		sample := make([]models.Trade, n)
		sum := int64(0)
		for j := range sample {
			v := rng.Int63n(1_000_000) + 1
			sum += v
			sample[j] = models.Trade{Price: decimal.New(v, -4)}
		}
		want := decimal.New(sum, -4).Div(decimal.NewFromInt(int64(n)))
		got, err := Average(sample, FieldPrice)
		require.NoError(t, err)
		assert.True(t, got.Equal(want), "n=%d got %s want %s", n, got, want)
	}
}

func TestAverage_Empty(t *testing.T) {
	_, err := Average(nil, FieldPrice)
	assert.ErrorIs(t, err, ErrEmptySample)
}

func TestStandardDeviation_Population(t *testing.T) {
	// population stddev of 2,4,4,4,5,5,7,9 is exactly 2
	sample := trades("2", "4", "4", "4", "5", "5", "7", "9")
	mean, err := Average(sample, FieldPrice)
	require.NoError(t, err)
	sd, err := StandardDeviation(sample, mean, FieldPrice)
	require.NoError(t, err)
	assert.True(t, sd.Equal(d("2")), "got %s", sd)
}

func TestStandardDeviation_ConstantSample(t *testing.T) {
	sample := trades("3.5", "3.5", "3.5", "3.5")
	mean, err := Average(sample, FieldPrice)
	require.NoError(t, err)
	sd, err := StandardDeviation(sample, mean, FieldPrice)
	require.NoError(t, err)
	assert.True(t, sd.IsZero())

	vol, err := Volatility(mean, sd)
	require.NoError(t, err)
	assert.True(t, vol.IsZero())
}

func TestVolatility_ZeroMean(t *testing.T) {
	_, err := Volatility(decimal.Zero, d("1"))
	assert.ErrorIs(t, err, ErrZeroMean)
}

func TestDetermineTrend(t *testing.T) {
	tests := []struct {
		name   string
		sample []models.Trade
		want   models.Trend
	}{
		{"rising", trades("50", "10", "12"), models.TrendBuy},
		{"falling", trades("5", "12", "10"), models.TrendSell},
		{"flat", trades("99", "10", "10"), models.TrendSideways},
		{"only last two count", trades("1", "1000", "10", "10.0"), models.TrendSideways},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetermineTrend(tt.sample)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetermineTrend_ShortSample(t *testing.T) {
	_, err := DetermineTrend(trades("10"))
	assert.ErrorIs(t, err, ErrShortSample)
}

func TestTotalVolume_Additive(t *testing.T) {
	a := []models.Trade{
		{Price: d("1"), BidAmount: d("1.5"), AskAmount: d("2")},
		{Price: d("1"), BidAmount: d("0.25"), AskAmount: d("0")},
	}
	b := []models.Trade{
		{Price: d("2"), BidAmount: d("10"), AskAmount: d("3.3")},
	}
	joined := append(append([]models.Trade{}, a...), b...)

	assert.True(t, TotalVolume(a).Equal(d("3.75")))
	assert.True(t, TotalVolume(joined).Equal(TotalVolume(a).Add(TotalVolume(b))))
	assert.True(t, TotalVolume(nil).IsZero())
}

func TestComputeStats(t *testing.T) {
	stats, err := ComputeStats(trades("100", "100", "100", "90"))
	require.NoError(t, err)

	assert.True(t, stats.Average.Equal(d("97.5")), "average %s", stats.Average)
	assert.InDelta(t, 4.330127, stats.StdDev.InexactFloat64(), 1e-6)
	assert.InDelta(t, 0.044411, stats.Volatility.InexactFloat64(), 1e-6)
	assert.Equal(t, models.TrendSell, stats.Trend)
	assert.True(t, stats.TotalVolume.Equal(d("8")))
}
