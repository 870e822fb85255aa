package aggregate

import (
	"testing"

	"github.com/yourorg/defi-portfolio-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullCoverage() []model.APYQuote {
	return []model.APYQuote{
		{Protocol: model.ProtocolLending, Source: "aave", APY: 4.0, TVL: 1000},
		{Protocol: model.ProtocolLending, Source: "compound", APY: 6.0, TVL: 3000},
		{Protocol: model.ProtocolLiquidityPool, Source: "uniswap", APY: 12.0, TVL: 500},
		{Protocol: model.ProtocolYieldFarm, Source: "yearn", APY: 30.0, TVL: 200},
	}
}

func TestWeighted(t *testing.T) {
	got, err := Weighted(fullCoverage())
	require.NoError(t, err)

	// (4*1000 + 6*3000) / 4000 = 5.5
	assert.InDelta(t, 5.5, got.Lending, 1e-9)
	assert.InDelta(t, 12.0, got.LiquidityPool, 1e-9)
	assert.InDelta(t, 30.0, got.YieldFarm, 1e-9)
}

func TestWeighted_UnitWeightWithoutTVL(t *testing.T) {
	quotes := []model.APYQuote{
		{Protocol: model.ProtocolLending, Source: "aave", APY: 4.0},
		{Protocol: model.ProtocolLending, Source: "compound", APY: 6.0},
		{Protocol: model.ProtocolLiquidityPool, Source: "uniswap", APY: 10.0},
		{Protocol: model.ProtocolYieldFarm, Source: "yearn", APY: 20.0},
	}

	got, err := Weighted(quotes)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, got.Lending, 1e-9, "missing TVL means plain average")
}

func TestWeighted_MissingProtocol(t *testing.T) {
	quotes := []model.APYQuote{
		{Protocol: model.ProtocolLending, Source: "aave", APY: 4.0, TVL: 1000},
		{Protocol: model.ProtocolLiquidityPool, Source: "uniswap", APY: 12.0, TVL: 500},
	}

	_, err := Weighted(quotes)
	require.Error(t, err)

	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestWeighted_SkipsUnusableQuotes(t *testing.T) {
	quotes := append(fullCoverage(),
		model.APYQuote{Protocol: model.Protocol(9), Source: "bogus", APY: 50, TVL: 1e9},
		model.APYQuote{Protocol: model.ProtocolLending, Source: "bad", APY: -3, TVL: 1e9},
	)

	got, err := Weighted(quotes)
	require.NoError(t, err)
	assert.InDelta(t, 5.5, got.Lending, 1e-9, "negative and unknown-bucket quotes are ignored")
}

func TestMedian(t *testing.T) {
	quotes := []model.APYQuote{
		{Protocol: model.ProtocolLending, Source: "a", APY: 3.0},
		{Protocol: model.ProtocolLending, Source: "b", APY: 5.0},
		{Protocol: model.ProtocolLending, Source: "c", APY: 100.0}, // outlier
		{Protocol: model.ProtocolLiquidityPool, Source: "d", APY: 10.0},
		{Protocol: model.ProtocolLiquidityPool, Source: "e", APY: 14.0},
		{Protocol: model.ProtocolYieldFarm, Source: "f", APY: 25.0},
	}

	got, err := Median(quotes)
	require.NoError(t, err)

	assert.InDelta(t, 5.0, got.Lending, 1e-9, "median ignores the outlier")
	assert.InDelta(t, 12.0, got.LiquidityPool, 1e-9, "even count averages the middle pair")
	assert.InDelta(t, 25.0, got.YieldFarm, 1e-9)
}

func TestTrimmedMean(t *testing.T) {
	quotes := []model.APYQuote{}
	for _, apy := range []float64{1, 4, 5, 5, 5, 5, 5, 5, 6, 90} {
		quotes = append(quotes, model.APYQuote{
			Protocol: model.ProtocolLending, Source: "s", APY: apy,
		})
	}
	quotes = append(quotes,
		model.APYQuote{Protocol: model.ProtocolLiquidityPool, Source: "u", APY: 10},
		model.APYQuote{Protocol: model.ProtocolYieldFarm, Source: "y", APY: 20},
	)

	got, err := TrimmedMean(quotes, 0.1)
	require.NoError(t, err)

	// 10 lending values trimmed by one from each end: mean of 4,5,5,5,5,5,5,6 = 5
	assert.InDelta(t, 5.0, got.Lending, 1e-9)

	// Buckets too small to trim fall back to the plain mean.
	assert.InDelta(t, 10.0, got.LiquidityPool, 1e-9)
	assert.InDelta(t, 20.0, got.YieldFarm, 1e-9)
}

func TestTrimmedMean_InvalidTrimFallsBackToWeighted(t *testing.T) {
	got, err := TrimmedMean(fullCoverage(), 0.7)
	require.NoError(t, err)
	assert.InDelta(t, 5.5, got.Lending, 1e-9)
}

func TestByMode(t *testing.T) {
	quotes := fullCoverage()

	weighted, err := ByMode("weighted", quotes)
	require.NoError(t, err)
	assert.InDelta(t, 5.5, weighted.Lending, 1e-9)

	median, err := ByMode("median", quotes)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, median.Lending, 1e-9)

	unknown, err := ByMode("", quotes)
	require.NoError(t, err)
	assert.Equal(t, weighted, unknown, "unknown mode falls back to weighted")
}
