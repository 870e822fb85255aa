package allocation

import (
	"testing"

	"github.com/yourorg/defi-portfolio-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_PercentagesAlwaysSumTo100(t *testing.T) {
	for score := 0; score <= 100; score++ {
		s, err := Build(score, model.ProtocolAPYs{})
		require.NoError(t, err, "score %d", score)

		sum := s.LendingPct + s.LPPct + s.FarmPct
		assert.Equal(t, 100, sum, "score %d: percentages must sum to 100", score)
		assert.GreaterOrEqual(t, s.LendingPct, 0)
		assert.GreaterOrEqual(t, s.LPPct, 0)
		assert.GreaterOrEqual(t, s.FarmPct, 0)
	}
}

func TestBuild_BandTemplates(t *testing.T) {
	apys := model.ProtocolAPYs{Lending: 4.0, LiquidityPool: 12.0, YieldFarm: 30.0}

	tests := []struct {
		name            string
		score           int
		lending, lp, fm int
		riskLevel       model.RiskProfile
		expectedAPY     float64
	}{
		{"conservative floor", 0, 70, 30, 0, model.ProfileConservative, 0.70*4.0 + 0.30*12.0},
		{"conservative ceiling", 33, 70, 30, 0, model.ProfileConservative, 0.70*4.0 + 0.30*12.0},
		{"balanced floor", 34, 40, 40, 20, model.ProfileBalanced, 0.40*4.0 + 0.40*12.0 + 0.20*30.0},
		{"balanced ceiling", 66, 40, 40, 20, model.ProfileBalanced, 0.40*4.0 + 0.40*12.0 + 0.20*30.0},
		{"aggressive floor", 67, 20, 30, 50, model.ProfileAggressive, 0.20*4.0 + 0.30*12.0 + 0.50*30.0},
		{"aggressive ceiling", 100, 20, 30, 50, model.ProfileAggressive, 0.20*4.0 + 0.30*12.0 + 0.50*30.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Build(tt.score, apys)
			require.NoError(t, err)
			assert.Equal(t, tt.lending, s.LendingPct)
			assert.Equal(t, tt.lp, s.LPPct)
			assert.Equal(t, tt.fm, s.FarmPct)
			assert.Equal(t, tt.riskLevel, s.RiskLevel)
			assert.InDelta(t, tt.expectedAPY, s.ExpectedAPY, 1e-9)
		})
	}
}

func TestBuild_MonotonicAcrossScores(t *testing.T) {
	prev, err := Build(0, model.ProtocolAPYs{})
	require.NoError(t, err)

	for score := 1; score <= 100; score++ {
		cur, err := Build(score, model.ProtocolAPYs{})
		require.NoError(t, err)

		assert.GreaterOrEqual(t, cur.FarmPct, prev.FarmPct,
			"farm allocation must be non-decreasing at score %d", score)
		assert.LessOrEqual(t, cur.LendingPct, prev.LendingPct,
			"lending allocation must be non-increasing at score %d", score)
		prev = cur
	}
}

func TestBuild_RejectsOutOfRangeScores(t *testing.T) {
	for _, score := range []int{-1, -100, 101, 1000} {
		_, err := Build(score, model.ProtocolAPYs{})
		require.Error(t, err, "score %d", score)

		var verr *model.ValidationError
		assert.ErrorAs(t, err, &verr)
	}
}

func TestExpectedAPY_ZeroAPYs(t *testing.T) {
	s, err := Build(50, model.ProtocolAPYs{})
	require.NoError(t, err)
	assert.Zero(t, s.ExpectedAPY)
}
