// Package validation is the typed boundary in front of the engines: it checks
// payload shapes, filters implausible market data, and normalizes snapshot
// histories to the ordering the analytics engine expects.
package validation

import (
	"sort"
	"time"

	"github.com/yourorg/defi-portfolio-engine/internal/model"
	"github.com/sirupsen/logrus"
)

// Options holds configuration for the validation boundary
type Options struct {
	// MaxQuoteAge defines how recent APY quotes must be to be usable
	MaxQuoteAge time.Duration

	// MaxAPY defines the maximum plausible APY in percent
	MaxAPY float64
}

// DefaultOptions returns sensible defaults for validation
func DefaultOptions() Options {
	return Options{
		MaxQuoteAge: 1 * time.Hour,
		MaxAPY:      200.0,
	}
}

// ValidateAnswers performs shape-level checks on a questionnaire payload
// before it reaches the scoring engine. Semantic checks (completeness,
// recognized options) belong to the engine itself.
func ValidateAnswers(answers []model.QuestionnaireAnswer) error {
	if len(answers) == 0 {
		return model.NewValidationError("answers", "empty answer set")
	}
	for i, a := range answers {
		if a.QuestionID == "" {
			return model.NewValidationError("answers", "answer %d has no question id", i)
		}
		if a.OptionID == "" {
			return model.NewValidationError("answers", "answer %d has no option id", i)
		}
	}
	return nil
}

// FilterQuotes removes APY quotes that fail plausibility criteria.
func FilterQuotes(quotes []model.APYQuote, opts Options) []model.APYQuote {
	valid := make([]model.APYQuote, 0, len(quotes))
	for _, q := range quotes {
		if isValidQuote(q, opts) {
			valid = append(valid, q)
		} else {
			logrus.WithFields(logrus.Fields{
				"source":   q.Source,
				"protocol": q.Protocol.String(),
				"apy":      q.APY,
			}).Debug("Filtered invalid APY quote")
		}
	}
	return valid
}

// isValidQuote checks a single quote against all plausibility criteria
func isValidQuote(q model.APYQuote, opts Options) bool {
	if q.APY < 0 || q.APY > opts.MaxAPY {
		return false
	}
	if q.Source == "" {
		return false
	}
	if q.Protocol < 0 || q.Protocol >= model.NumProtocols {
		return false
	}
	collectedAt := time.Unix(q.CollectedAt, 0)
	return time.Since(collectedAt) <= opts.MaxQuoteAge
}

// ValidateHistory rejects malformed snapshot lists before they reach the
// analytics engine. A valid history has timestamps and non-negative values
// throughout; ordering is not required here, NormalizeHistory fixes that.
func ValidateHistory(history []model.PortfolioSnapshot) error {
	for i, s := range history {
		if s.Timestamp.IsZero() {
			return model.NewValidationError("history", "snapshot %d has no timestamp", i)
		}
		if s.TotalValue < 0 {
			return model.NewValidationError("history", "snapshot %d has negative total value", i)
		}
		for p, v := range s.Protocols {
			if v < 0 {
				return model.NewValidationError(
					"history", "snapshot %d has negative value for protocol %s", i, model.Protocol(p))
			}
		}
	}
	return nil
}

// NormalizeHistory returns a newest-first copy of the history, the ordering
// the analytics engine declares at its boundary. The input is never mutated;
// snapshot histories are append-only upstream.
func NormalizeHistory(history []model.PortfolioSnapshot) []model.PortfolioSnapshot {
	normalized := make([]model.PortfolioSnapshot, len(history))
	copy(normalized, history)
	sort.SliceStable(normalized, func(i, j int) bool {
		return normalized[i].Timestamp.After(normalized[j].Timestamp)
	})
	return normalized
}
