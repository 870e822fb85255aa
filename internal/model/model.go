// Package model defines the core data structures for the portfolio engine.
package model

import (
	"fmt"
	"time"
)

// Protocol identifies one of the three yield-bearing protocols the vault
// allocates across. The integer values match the on-chain bucket indexes.
type Protocol int

// Supported protocols
const (
	ProtocolLending       Protocol = iota // over-collateralized lending market
	ProtocolLiquidityPool                 // AMM liquidity provision
	ProtocolYieldFarm                     // incentivized farming vault
)

// NumProtocols is the fixed number of allocation buckets.
const NumProtocols = 3

// String returns the canonical name for a protocol bucket.
func (p Protocol) String() string {
	switch p {
	case ProtocolLending:
		return "lending"
	case ProtocolLiquidityPool:
		return "liquidity_pool"
	case ProtocolYieldFarm:
		return "yield_farm"
	default:
		return "unknown"
	}
}

// RiskProfile categorizes an investor's risk tolerance.
type RiskProfile string

// Risk profile categories. Boundaries are contiguous and non-overlapping:
// Conservative [0,33], Balanced [34,66], Aggressive [67,100].
const (
	ProfileConservative RiskProfile = "conservative"
	ProfileBalanced     RiskProfile = "balanced"
	ProfileAggressive   RiskProfile = "aggressive"
)

// ProfileForScore maps a risk score in [0,100] to its profile band.
func ProfileForScore(score int) RiskProfile {
	switch {
	case score <= 33:
		return ProfileConservative
	case score <= 66:
		return ProfileBalanced
	default:
		return ProfileAggressive
	}
}

// QuestionnaireAnswer is one answer from the risk-assessment questionnaire:
// the question it answers and the option the user selected.
type QuestionnaireAnswer struct {
	QuestionID string `json:"question_id"`
	OptionID   string `json:"option_id"`
}

// RiskAssessment is the result of scoring a complete questionnaire.
type RiskAssessment struct {
	// Score is the normalized risk score in [0,100]
	Score int `json:"score"`

	// Profile is the score's risk band
	Profile RiskProfile `json:"profile"`

	// Version of the question table the score was computed against
	Version string `json:"version"`
}

// RiskProfileRecord is the server-side authoritative risk profile for a user.
// Replaced wholesale on re-assessment, never partially mutated.
type RiskProfileRecord struct {
	UserID     string      `json:"user_id"`
	Score      int         `json:"score"`
	Profile    RiskProfile `json:"profile"`
	Version    string      `json:"version"`
	AssessedAt time.Time   `json:"assessed_at"`
}

// ProtocolAPYs carries the current annual percentage yield for each protocol,
// expressed in percent (5.0 means 5% APY).
type ProtocolAPYs struct {
	Lending       float64 `json:"lending"`
	LiquidityPool float64 `json:"liquidity_pool"`
	YieldFarm     float64 `json:"yield_farm"`
}

// AllocationStrategy is a target percentage split across the three protocols.
// The three percentages always sum to exactly 100.
type AllocationStrategy struct {
	LendingPct int `json:"lending_pct"`
	LPPct      int `json:"lp_pct"`
	FarmPct    int `json:"farm_pct"`

	// ExpectedAPY is the allocation-weighted blend of the current
	// per-protocol APYs, in percent
	ExpectedAPY float64 `json:"expected_apy"`

	// RiskLevel is derived from the same bands as RiskProfile
	RiskLevel RiskProfile `json:"risk_level"`
}

// Allocation is a percentage split expressed as floats, used for the current
// on-chain allocation and for drift reporting where fractional points matter.
type Allocation struct {
	Lending       float64 `json:"lending"`
	LiquidityPool float64 `json:"liquidity_pool"`
	YieldFarm     float64 `json:"yield_farm"`
}

// AsAllocation converts an integer target strategy to a float allocation.
func (s AllocationStrategy) AsAllocation() Allocation {
	return Allocation{
		Lending:       float64(s.LendingPct),
		LiquidityPool: float64(s.LPPct),
		YieldFarm:     float64(s.FarmPct),
	}
}

// PortfolioSnapshot is one entry in a user's valuation history. Histories are
// append-only; snapshots are never mutated in place.
type PortfolioSnapshot struct {
	Timestamp  time.Time             `json:"timestamp"`
	TotalValue float64               `json:"total_value"`
	Protocols  [NumProtocols]float64 `json:"protocols"`
}

// CurrentAllocation derives percentage weights from the snapshot's
// per-protocol values. Returns the zero allocation when the total is zero.
func (s PortfolioSnapshot) CurrentAllocation() Allocation {
	var total float64
	for _, v := range s.Protocols {
		total += v
	}
	if total <= 0 {
		return Allocation{}
	}
	return Allocation{
		Lending:       s.Protocols[ProtocolLending] / total * 100,
		LiquidityPool: s.Protocols[ProtocolLiquidityPool] / total * 100,
		YieldFarm:     s.Protocols[ProtocolYieldFarm] / total * 100,
	}
}

// DayReturn is a single-period return tagged with the date it was realized.
type DayReturn struct {
	Date      time.Time `json:"date"`
	ReturnPct float64   `json:"return_pct"`
}

// PerformanceMetrics is derived from a snapshot history and never persisted;
// it is recomputed from current inputs on every call.
type PerformanceMetrics struct {
	// Point-in-time returns, in percent
	DailyReturn   float64 `json:"daily_return"`
	WeeklyReturn  float64 `json:"weekly_return"`
	MonthlyReturn float64 `json:"monthly_return"`

	// AnnualizedReturn is the monthly return linearly extrapolated (x12),
	// not compounded
	AnnualizedReturn float64 `json:"annualized_return"`

	// TotalReturnPct is the gain over the deposited principal, in percent
	TotalReturnPct float64 `json:"total_return_pct"`

	// Annualized standard deviation of single-period returns, always >= 0
	Volatility float64 `json:"volatility"`

	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"`
	CalmarRatio  float64 `json:"calmar_ratio"`

	// ValueAtRisk95 is a parametric one-day VaR at 95% confidence
	ValueAtRisk95 float64 `json:"value_at_risk_95"`

	// MaxDrawdown is the worst peak-to-trough decline, always <= 0
	MaxDrawdown float64 `json:"max_drawdown"`

	// WinRate is the share of up periods, in [0,100]
	WinRate float64 `json:"win_rate"`

	BestDay  DayReturn `json:"best_day"`
	WorstDay DayReturn `json:"worst_day"`

	// InsufficientData is set when fewer than two snapshots were available;
	// all numeric metrics are zero in that case
	InsufficientData bool `json:"insufficient_data"`
}

// RebalanceRecommendation reports whether the current allocation has drifted
// far enough from the target to justify rebalancing, along with everything a
// caller needs to render or act on the decision.
type RebalanceRecommendation struct {
	ShouldRebalance   bool       `json:"should_rebalance"`
	CurrentAllocation Allocation `json:"current_allocation"`
	TargetAllocation  Allocation `json:"target_allocation"`

	// Drift holds the absolute percentage-point difference per protocol
	Drift Allocation `json:"drift"`

	// ThresholdPct is the drift threshold the decision was made against
	ThresholdPct float64 `json:"threshold_pct"`
}

// APYQuote is a single APY observation from a market-data source.
type APYQuote struct {
	Protocol    Protocol `json:"protocol"`
	Source      string   `json:"source"`
	APY         float64  `json:"apy"`
	TVL         float64  `json:"tvl,omitempty"`
	CollectedAt int64    `json:"collected_at"`
}

// ValidationError describes malformed or incomplete input to one of the
// engines. It always fails the single computation it was raised in.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewValidationError constructs a ValidationError for a field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
