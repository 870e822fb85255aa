// Package allocation maps a risk score to a target percentage split across
// the three protocols and an expected blended APY.
package allocation

import (
	"github.com/yourorg/defi-portfolio-engine/internal/model"
)

// Band templates, keyed by the same score bands as model.RiskProfile. The
// split is a deliberate step function over discrete bands, not a smooth ramp:
// farm exposure only moves at band transitions.
var templates = map[model.RiskProfile]struct {
	lending, lp, farm int
}{
	model.ProfileConservative: {lending: 70, lp: 30, farm: 0},
	model.ProfileBalanced:     {lending: 40, lp: 40, farm: 20},
	model.ProfileAggressive:   {lending: 20, lp: 30, farm: 50},
}

// Build selects the allocation template for a risk score and blends the
// supplied per-protocol APYs into the expected portfolio APY. Scores outside
// [0,100] are rejected with a ValidationError.
func Build(score int, apys model.ProtocolAPYs) (model.AllocationStrategy, error) {
	if score < 0 || score > 100 {
		return model.AllocationStrategy{}, model.NewValidationError(
			"score", "risk score %d outside [0,100]", score)
	}

	profile := model.ProfileForScore(score)
	tpl := templates[profile]

	// The templates already sum to 100, but the invariant is load-bearing
	// for every downstream consumer: park any remainder in lending.
	lending := 100 - tpl.lp - tpl.farm

	strategy := model.AllocationStrategy{
		LendingPct: lending,
		LPPct:      tpl.lp,
		FarmPct:    tpl.farm,
		RiskLevel:  profile,
	}
	strategy.ExpectedAPY = ExpectedAPY(strategy, apys)

	return strategy, nil
}

// ExpectedAPY computes the allocation-weighted blend of current APYs:
// sum(pct_i/100 * apy_i) over the three protocols.
func ExpectedAPY(s model.AllocationStrategy, apys model.ProtocolAPYs) float64 {
	return float64(s.LendingPct)/100*apys.Lending +
		float64(s.LPPct)/100*apys.LiquidityPool +
		float64(s.FarmPct)/100*apys.YieldFarm
}
