// Package risk converts questionnaire answers into a normalized risk score
// and profile. Scoring is deterministic: identical answer sets always produce
// identical scores.
package risk

import (
	"math"

	"github.com/yourorg/defi-portfolio-engine/internal/model"
)

// Score evaluates a complete set of questionnaire answers against the static
// question table. Every required question must be answered exactly once with
// a recognized option, otherwise a ValidationError is returned.
//
// The score is the sum of selected option points over the sum of per-question
// maximums, scaled to [0,100] and rounded half-up. All-minimum answers yield
// 0, all-maximum answers yield 100.
func Score(answers []model.QuestionnaireAnswer) (model.RiskAssessment, error) {
	byID := questionByID()

	selected := make(map[string]Option, len(answers))
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			return model.RiskAssessment{}, model.NewValidationError(
				"answers", "unknown question %q", a.QuestionID)
		}
		if _, dup := selected[a.QuestionID]; dup {
			return model.RiskAssessment{}, model.NewValidationError(
				"answers", "duplicate answer for question %q", a.QuestionID)
		}
		opt, ok := optionByID(q, a.OptionID)
		if !ok {
			return model.RiskAssessment{}, model.NewValidationError(
				"answers", "option %q is not valid for question %q", a.OptionID, a.QuestionID)
		}
		selected[a.QuestionID] = opt
	}

	var points, maxPoints int
	for _, q := range Questions {
		opt, ok := selected[q.ID]
		if !ok {
			return model.RiskAssessment{}, model.NewValidationError(
				"answers", "required question %q is unanswered", q.ID)
		}
		points += opt.Points
		maxPoints += q.MaxPoints()
	}

	score := roundHalfUp(float64(points) / float64(maxPoints) * 100)

	return model.RiskAssessment{
		Score:   score,
		Profile: model.ProfileForScore(score),
		Version: QuestionnaireVersion,
	}, nil
}

// roundHalfUp rounds to the nearest integer with ties going up. Input is
// always non-negative here, so Floor(x+0.5) is exact.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// optionByID finds a question's option by its identifier.
func optionByID(q Question, id string) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}
