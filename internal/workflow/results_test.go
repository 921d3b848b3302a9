package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kingrea/report-evaluator/internal/api"
)

func TestPercentage(t *testing.T) {
	assert.Equal(t, "0", FormatPercentage(0, 0))
	assert.Equal(t, "75.00", FormatPercentage(45, 60))
	assert.Equal(t, "33.33", FormatPercentage(1, 3))
	assert.Equal(t, "0", FormatPercentage(5, -1))
	assert.Equal(t, 66.67, Percentage(2, 3))
	assert.Zero(t, Percentage(10, 0))
}

func TestClampScore(t *testing.T) {
	cases := []struct {
		in, max, want float64
	}{
		{-3, 10, 0},
		{4.44, 10, 4.4},
		{4.45, 10, 4.5},
		{12, 10, 10},
		{2.26, 2.25, 2.25},
		{1, 0, 0},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, ClampScore(tc.in, tc.max), 1e-9, "clamp(%v, %v)", tc.in, tc.max)
	}
}

func TestParseScore(t *testing.T) {
	assert.Equal(t, 7.5, ParseScore(" 7.5 "))
	assert.Equal(t, 7.5, ParseScore("7,5"))
	assert.Zero(t, ParseScore(""))
	assert.Zero(t, ParseScore("abc"))
	assert.Zero(t, ParseScore("NaN"))
	assert.Zero(t, ParseScore("Inf"))
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("llm")
	assert.NoError(t, err)
	assert.Equal(t, MethodLLM, m)
	assert.True(t, m.Automated())
	assert.False(t, MethodManual.Automated())

	for _, raw := range []string{"", "MANUAL", " llm ", "Rule-Based", "rule_based"} {
		_, err = ParseMethod(raw)
		assert.ErrorIs(t, err, ErrUnknownMethod, "method %q", raw)
	}
}

func TestResultRowsPreferLoadedRubrics(t *testing.T) {
	score := 8.0
	feedback := "good"
	eval := api.Evaluation{
		Rubrics: []api.ScoredRubric{
			{Rubric: api.Rubric{ID: 1, SectionName: "stale", MaxPoints: 5}, Score: &score, Feedback: &feedback},
			{Rubric: api.Rubric{ID: 2, SectionName: "Only in payload", MaxPoints: 15}},
			{Rubric: api.Rubric{ID: 3}},
		},
	}
	rubrics := []api.Rubric{{ID: 1, SectionName: "Introduction", MaxPoints: 10}}

	rows := ResultRows(eval, rubrics)
	assert.Equal(t, []ResultRow{
		{RubricID: 1, SectionName: "Introduction", Score: 8, MaxPoints: 10, Feedback: "good"},
		{RubricID: 2, SectionName: "Only in payload", Score: 0, MaxPoints: 15},
		{RubricID: 3, SectionName: "Section 3"},
	}, rows)
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "Collecting Identity", StateCollectingIdentity.String())
	assert.Equal(t, "Results", StateSubmitted.FriendlyName())
	assert.Equal(t, 2, StateAwaitingMethodSelection.Step())
	assert.Equal(t, "Unknown", State(42).String())
}

func TestDraftHeaderFallbacks(t *testing.T) {
	d := Draft{StudentFirstName: "Jane", StudentLastName: "Doe"}
	assert.Equal(t, "Jane Doe – Report: (no title)", d.Header())
	assert.Error(t, d.Validate())
	d.StudentID, d.ReportTypeID = 1, 2
	assert.NoError(t, d.Validate())
}
