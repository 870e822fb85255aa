// Package analytics converts an ordered portfolio valuation history into
// return, volatility, and risk-adjusted metrics.
//
// The history convention throughout this package is newest-first: index 0 is
// the most recent snapshot. Callers with oldest-first data should normalize
// with validation.NormalizeHistory before calling in.
package analytics

import (
	"math"

	"github.com/yourorg/defi-portfolio-engine/internal/model"
)

// Options tunes the metric computation.
type Options struct {
	// RiskFreeRate is the annual risk-free rate in percent, used by the
	// Sharpe ratio. Defaults to 2%.
	RiskFreeRate float64
}

// DefaultOptions returns the standard computation parameters.
func DefaultOptions() Options {
	return Options{RiskFreeRate: 2.0}
}

// Trading-math constants.
const (
	// daysPerYear annualizes per-period volatility
	daysPerYear = 365

	// var95Z is the one-tailed z-score at 95% confidence
	var95Z = 1.65

	// sortinoFactor approximates the Sortino ratio from the Sharpe ratio.
	// Inherited simplification: a true downside-deviation calculation would
	// replace this factor.
	sortinoFactor = 1.15
)

// Compute derives the full metric set from a newest-first snapshot history
// and the total principal deposited. It never fails on short histories:
// with fewer than two snapshots the result carries InsufficientData=true and
// zeroed metrics so callers can render a "not enough data yet" state.
//
// All metrics are pure functions of the inputs; identical inputs always
// produce identical outputs.
func Compute(history []model.PortfolioSnapshot, principal float64, opts Options) model.PerformanceMetrics {
	if len(history) < 2 {
		return model.PerformanceMetrics{InsufficientData: true}
	}

	m := model.PerformanceMetrics{}

	latest := history[0].TotalValue
	m.DailyReturn = periodReturn(latest, history[1].TotalValue)
	m.WeeklyReturn = periodReturn(latest, history[minIdx(7, len(history)-1)].TotalValue)
	m.MonthlyReturn = periodReturn(latest, history[minIdx(30, len(history)-1)].TotalValue)

	// Linear extrapolation of the monthly return, not compounding.
	m.AnnualizedReturn = m.MonthlyReturn * 12

	if principal > 0 {
		m.TotalReturnPct = (latest - principal) / principal * 100
	}

	returns := dailyReturns(history)
	m.Volatility = stdev(returns) * math.Sqrt(daysPerYear)

	if m.Volatility > 0 {
		m.SharpeRatio = (m.AnnualizedReturn - opts.RiskFreeRate) / m.Volatility
	}
	m.SortinoRatio = m.SharpeRatio * sortinoFactor

	m.MaxDrawdown = maxDrawdown(history)
	if m.MaxDrawdown != 0 {
		m.CalmarRatio = math.Abs(m.AnnualizedReturn / m.MaxDrawdown)
	}

	m.ValueAtRisk95 = -(m.Volatility * var95Z)

	m.WinRate = winRate(returns)
	m.BestDay, m.WorstDay = extremeDays(returns)

	return m
}

// periodReturn is the percentage change from a base value to the current
// value, guarded against a zero base.
func periodReturn(current, base float64) float64 {
	if base == 0 {
		return 0
	}
	return (current - base) / base * 100
}

// dailyReturns computes per-adjacent-pair percentage changes across the full
// history in chronological order. Pairs with a zero base value are skipped.
func dailyReturns(history []model.PortfolioSnapshot) []model.DayReturn {
	returns := make([]model.DayReturn, 0, len(history)-1)
	for i := len(history) - 1; i >= 1; i-- {
		older := history[i].TotalValue
		newer := history[i-1]
		if older == 0 {
			continue
		}
		returns = append(returns, model.DayReturn{
			Date:      newer.Timestamp,
			ReturnPct: (newer.TotalValue - older) / older * 100,
		})
	}
	return returns
}

// maxDrawdown scans the history chronologically, tracking the running peak.
// Drawdown at each point is (peak-value)/peak*100; the result is the worst
// drawdown negated, so it is always <= 0.
func maxDrawdown(history []model.PortfolioSnapshot) float64 {
	var peak, worst float64
	for i := len(history) - 1; i >= 0; i-- {
		v := history[i].TotalValue
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak * 100
			if dd > worst {
				worst = dd
			}
		}
	}
	return -worst
}

// winRate is the percentage of periods where the portfolio value increased.
func winRate(returns []model.DayReturn) float64 {
	if len(returns) == 0 {
		return 0
	}
	wins := 0
	for _, r := range returns {
		if r.ReturnPct > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns)) * 100
}

// extremeDays picks the best and worst single-period returns with their dates.
func extremeDays(returns []model.DayReturn) (best, worst model.DayReturn) {
	if len(returns) == 0 {
		return model.DayReturn{}, model.DayReturn{}
	}
	best, worst = returns[0], returns[0]
	for _, r := range returns[1:] {
		if r.ReturnPct > best.ReturnPct {
			best = r
		}
		if r.ReturnPct < worst.ReturnPct {
			worst = r
		}
	}
	return best, worst
}

// stdev is the sample standard deviation of the return percentages. Returns 0
// for fewer than two observations.
func stdev(returns []model.DayReturn) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r.ReturnPct
	}
	mean := sum / float64(n)

	var variance float64
	for _, r := range returns {
		diff := r.ReturnPct - mean
		variance += diff * diff
	}
	variance /= float64(n - 1)

	return math.Sqrt(variance)
}

// minIdx clamps an offset to the last valid history index.
func minIdx(want, last int) int {
	if want < last {
		return want
	}
	return last
}
