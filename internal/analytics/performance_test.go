package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/yourorg/defi-portfolio-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

// historyOf builds a newest-first history from total values, one snapshot per
// day ending at day0.
func historyOf(values ...float64) []model.PortfolioSnapshot {
	history := make([]model.PortfolioSnapshot, len(values))
	for i, v := range values {
		history[i] = model.PortfolioSnapshot{
			Timestamp:  day0.AddDate(0, 0, -i),
			TotalValue: v,
		}
	}
	return history
}

func TestCompute_InsufficientData(t *testing.T) {
	tests := []struct {
		name    string
		history []model.PortfolioSnapshot
	}{
		{"empty history", nil},
		{"single snapshot", historyOf(1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.history, 1000, DefaultOptions())

			assert.True(t, got.InsufficientData)
			assert.Zero(t, got.DailyReturn)
			assert.Zero(t, got.AnnualizedReturn)
			assert.Zero(t, got.Volatility)
			assert.Zero(t, got.SharpeRatio)
			assert.Zero(t, got.MaxDrawdown)
			assert.Zero(t, got.WinRate)
		})
	}
}

func TestCompute_DailyReturn(t *testing.T) {
	got := Compute(historyOf(110, 100), 100, DefaultOptions())

	assert.False(t, got.InsufficientData)
	assert.InDelta(t, 10.0, got.DailyReturn, 1e-9)
}

func TestCompute_ZeroBaseValueGuard(t *testing.T) {
	// Yesterday's value is zero; the division must be skipped, not crash.
	got := Compute(historyOf(110, 0, 100), 100, DefaultOptions())
	assert.Zero(t, got.DailyReturn)
}

func TestCompute_WeeklyMonthlyClampToOldest(t *testing.T) {
	// Only 4 snapshots: weekly and monthly both fall back to the oldest.
	got := Compute(historyOf(120, 115, 110, 100), 100, DefaultOptions())

	assert.InDelta(t, 20.0, got.WeeklyReturn, 1e-9)
	assert.InDelta(t, 20.0, got.MonthlyReturn, 1e-9)
	assert.InDelta(t, 240.0, got.AnnualizedReturn, 1e-9, "annualized is monthly x12")
}

func TestCompute_WeeklyUsesSeventhSnapshot(t *testing.T) {
	// 10 snapshots: weekly return measures against index 7.
	values := []float64{150, 149, 148, 147, 146, 145, 144, 100, 90, 80}
	got := Compute(historyOf(values...), 100, DefaultOptions())

	assert.InDelta(t, 50.0, got.WeeklyReturn, 1e-9)
}

func TestCompute_MaxDrawdown(t *testing.T) {
	// Oldest-first the journey is 100 -> 80 -> 120: running peaks are
	// [100, 100, 120], drawdowns [0%, 20%, 0%], so max drawdown is -20%.
	got := Compute(historyOf(120, 80, 100), 100, DefaultOptions())

	assert.InDelta(t, -20.0, got.MaxDrawdown, 1e-9)
	assert.LessOrEqual(t, got.MaxDrawdown, 0.0)
}

func TestCompute_MaxDrawdownNeverPositive(t *testing.T) {
	// Strictly rising portfolio has zero drawdown.
	got := Compute(historyOf(130, 120, 110, 100), 100, DefaultOptions())
	assert.Zero(t, got.MaxDrawdown)
	assert.Zero(t, got.CalmarRatio, "calmar is zero when drawdown is zero")
}

func TestCompute_FlatHistoryHasZeroVolatility(t *testing.T) {
	got := Compute(historyOf(100, 100, 100, 100), 100, DefaultOptions())

	assert.Zero(t, got.Volatility)
	assert.Zero(t, got.SharpeRatio, "sharpe must be 0, not NaN, when volatility is 0")
	assert.Zero(t, got.SortinoRatio)
	assert.False(t, math.IsNaN(got.SharpeRatio))
	assert.False(t, math.IsInf(got.SharpeRatio, 0))
}

func TestCompute_VolatilityAndVaR(t *testing.T) {
	got := Compute(historyOf(121, 110, 100), 100, DefaultOptions())

	// Two daily returns of exactly +10% each: sample stdev 0, so both
	// volatility and VaR collapse to zero.
	assert.Zero(t, got.Volatility)
	assert.Zero(t, got.ValueAtRisk95)

	varied := Compute(historyOf(126, 120, 100), 100, DefaultOptions())
	assert.Greater(t, varied.Volatility, 0.0)
	assert.InDelta(t, -(varied.Volatility * 1.65), varied.ValueAtRisk95, 1e-9)
}

func TestCompute_SharpeAndDerivedRatios(t *testing.T) {
	got := Compute(historyOf(126, 90, 120, 100), 100, DefaultOptions())
	require.Greater(t, got.Volatility, 0.0)

	wantSharpe := (got.AnnualizedReturn - 2.0) / got.Volatility
	assert.InDelta(t, wantSharpe, got.SharpeRatio, 1e-9)
	assert.InDelta(t, got.SharpeRatio*1.15, got.SortinoRatio, 1e-9)

	require.NotZero(t, got.MaxDrawdown)
	assert.InDelta(t, math.Abs(got.AnnualizedReturn/got.MaxDrawdown), got.CalmarRatio, 1e-9)
	assert.GreaterOrEqual(t, got.CalmarRatio, 0.0)
}

func TestCompute_CustomRiskFreeRate(t *testing.T) {
	history := historyOf(126, 120, 100)
	def := Compute(history, 100, DefaultOptions())
	hot := Compute(history, 100, Options{RiskFreeRate: 5.0})

	assert.Less(t, hot.SharpeRatio, def.SharpeRatio,
		"a higher risk-free rate must lower the sharpe ratio")
}

func TestCompute_WinRateAndExtremeDays(t *testing.T) {
	// Chronological journey: 100 -> 110 (+10%), 110 -> 99 (-10%), 99 -> 118.8 (+20%)
	got := Compute(historyOf(118.8, 99, 110, 100), 100, DefaultOptions())

	assert.InDelta(t, 100.0*2/3, got.WinRate, 1e-9)
	assert.InDelta(t, 20.0, got.BestDay.ReturnPct, 1e-9)
	assert.Equal(t, day0, got.BestDay.Date)
	assert.InDelta(t, -10.0, got.WorstDay.ReturnPct, 1e-9)
	assert.Equal(t, day0.AddDate(0, 0, -1), got.WorstDay.Date)
}

func TestCompute_TotalReturnOverPrincipal(t *testing.T) {
	got := Compute(historyOf(150, 100), 120, DefaultOptions())
	assert.InDelta(t, 25.0, got.TotalReturnPct, 1e-9)

	noPrincipal := Compute(historyOf(150, 100), 0, DefaultOptions())
	assert.Zero(t, noPrincipal.TotalReturnPct, "zero principal must not divide")
}

func TestCompute_Deterministic(t *testing.T) {
	history := historyOf(118.8, 99, 110, 100, 95, 90)

	first := Compute(history, 100, DefaultOptions())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Compute(history, 100, DefaultOptions()))
	}
}
