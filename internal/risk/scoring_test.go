package risk

import (
	"errors"
	"testing"

	"github.com/yourorg/defi-portfolio-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// answersAt builds a complete answer set by picking each question's option at
// the given position: first, middle, or last.
func answersAt(pick func(q Question) Option) []model.QuestionnaireAnswer {
	answers := make([]model.QuestionnaireAnswer, 0, len(Questions))
	for _, q := range Questions {
		answers = append(answers, model.QuestionnaireAnswer{
			QuestionID: q.ID,
			OptionID:   pick(q).ID,
		})
	}
	return answers
}

func TestScore_Extremes(t *testing.T) {
	minAnswers := answersAt(func(q Question) Option { return q.Options[0] })
	maxAnswers := answersAt(func(q Question) Option { return q.Options[len(q.Options)-1] })

	low, err := Score(minAnswers)
	require.NoError(t, err)
	assert.Equal(t, 0, low.Score, "all-minimum answers must score 0")
	assert.Equal(t, model.ProfileConservative, low.Profile)

	high, err := Score(maxAnswers)
	require.NoError(t, err)
	assert.Equal(t, 100, high.Score, "all-maximum answers must score 100")
	assert.Equal(t, model.ProfileAggressive, high.Profile)
}

func TestScore_MiddleAnswersAreBalanced(t *testing.T) {
	mid := answersAt(func(q Question) Option { return q.Options[len(q.Options)/2] })

	got, err := Score(mid)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Score)
	assert.Equal(t, model.ProfileBalanced, got.Profile)
	assert.Equal(t, QuestionnaireVersion, got.Version)
}

func TestScore_Deterministic(t *testing.T) {
	answers := answersAt(func(q Question) Option { return q.Options[1%len(q.Options)] })

	first, err := Score(answers)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := Score(answers)
		require.NoError(t, err)
		assert.Equal(t, first, again, "identical answer sets must yield identical scores")
	}
}

func TestScore_AnswerOrderIrrelevant(t *testing.T) {
	answers := answersAt(func(q Question) Option { return q.Options[len(q.Options)-1] })
	reversed := make([]model.QuestionnaireAnswer, len(answers))
	for i, a := range answers {
		reversed[len(answers)-1-i] = a
	}

	a, err := Score(answers)
	require.NoError(t, err)
	b, err := Score(reversed)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestScore_ValidationFailures(t *testing.T) {
	complete := answersAt(func(q Question) Option { return q.Options[0] })

	tests := []struct {
		name    string
		answers []model.QuestionnaireAnswer
	}{
		{
			name:    "missing required question",
			answers: complete[1:],
		},
		{
			name:    "empty answer set",
			answers: nil,
		},
		{
			name: "unknown question",
			answers: append(append([]model.QuestionnaireAnswer{}, complete...),
				model.QuestionnaireAnswer{QuestionID: "favorite_color", OptionID: "blue"}),
		},
		{
			name: "unrecognized option",
			answers: append(append([]model.QuestionnaireAnswer{}, complete[1:]...),
				model.QuestionnaireAnswer{QuestionID: complete[0].QuestionID, OptionID: "not_an_option"}),
		},
		{
			name:    "duplicate answer",
			answers: append(append([]model.QuestionnaireAnswer{}, complete...), complete[0]),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Score(tt.answers)
			require.Error(t, err)

			var verr *model.ValidationError
			assert.True(t, errors.As(err, &verr), "expected a ValidationError, got %T", err)
		})
	}
}

func TestProfileForScore_Boundaries(t *testing.T) {
	tests := []struct {
		score int
		want  model.RiskProfile
	}{
		{0, model.ProfileConservative},
		{33, model.ProfileConservative},
		{34, model.ProfileBalanced},
		{50, model.ProfileBalanced},
		{66, model.ProfileBalanced},
		{67, model.ProfileAggressive},
		{100, model.ProfileAggressive},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, model.ProfileForScore(tt.score), "score %d", tt.score)
	}
}

func TestQuestions_TableSanity(t *testing.T) {
	seen := map[string]bool{}
	for _, q := range Questions {
		assert.False(t, seen[q.ID], "duplicate question id %q", q.ID)
		seen[q.ID] = true

		require.NotEmpty(t, q.Options, "question %q has no options", q.ID)
		assert.Equal(t, 0, q.Options[0].Points, "question %q should start at zero points", q.ID)
		assert.Greater(t, q.MaxPoints(), 0, "question %q has no positive option", q.ID)

		optIDs := map[string]bool{}
		for _, o := range q.Options {
			assert.False(t, optIDs[o.ID], "duplicate option id %q in question %q", o.ID, q.ID)
			optIDs[o.ID] = true
		}
	}
}
