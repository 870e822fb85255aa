// Package rebalance compares current and target allocations and decides
// whether rebalancing should be recommended. It never submits a transaction;
// acting on the recommendation is the caller's responsibility.
package rebalance

import (
	"math"

	"github.com/yourorg/defi-portfolio-engine/internal/model"
)

// DefaultThresholdBps mirrors the vault contract's drift threshold constant,
// expressed in basis points of allocation (500/10000 = 5 percentage points).
const DefaultThresholdBps = 500

// DefaultThresholdPct is the same threshold in percentage points.
const DefaultThresholdPct = float64(DefaultThresholdBps) / 100

// Recommend computes per-protocol drift between the current and target
// allocations and recommends rebalancing when any protocol's drift reaches
// the threshold. The boundary is inclusive: drift of exactly the threshold
// triggers a recommendation.
//
// A non-positive threshold selects DefaultThresholdPct.
func Recommend(current, target model.Allocation, thresholdPct float64) model.RebalanceRecommendation {
	if thresholdPct <= 0 {
		thresholdPct = DefaultThresholdPct
	}

	drift := model.Allocation{
		Lending:       math.Abs(current.Lending - target.Lending),
		LiquidityPool: math.Abs(current.LiquidityPool - target.LiquidityPool),
		YieldFarm:     math.Abs(current.YieldFarm - target.YieldFarm),
	}

	should := drift.Lending >= thresholdPct ||
		drift.LiquidityPool >= thresholdPct ||
		drift.YieldFarm >= thresholdPct

	return model.RebalanceRecommendation{
		ShouldRebalance:   should,
		CurrentAllocation: current,
		TargetAllocation:  target,
		Drift:             drift,
		ThresholdPct:      thresholdPct,
	}
}
