// internal/workflow/results.go
//
// Result view helpers: percentage and the per-rubric table rows.

package workflow

import (
	"math"
	"strconv"

	"github.com/kingrea/report-evaluator/internal/api"
)

// Percentage is total/max*100 rounded to two decimals, or 0 when max <= 0.
func Percentage(total, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return math.Round(total/max*100*100) / 100
}

// FormatPercentage renders the percentage the way the results card shows
// it: "0" when there is no maximum, otherwise two decimals.
func FormatPercentage(total, max float64) string {
	if max <= 0 {
		return "0"
	}
	return strconv.FormatFloat(Percentage(total, max), 'f', 2, 64)
}

// ResultRow is one line of the results table.
type ResultRow struct {
	RubricID    int
	SectionName string
	Score       float64
	MaxPoints   float64
	Feedback    string
}

// ResultRows maps the scored rubrics of an evaluation to display rows.
// Section names and max points come from the rubric list loaded for the
// step when the id matches, else from the evaluation itself.
func ResultRows(evaluation api.Evaluation, rubrics []api.Rubric) []ResultRow {
	byID := make(map[int]api.Rubric, len(rubrics))
	for _, r := range rubrics {
		byID[r.ID] = r
	}
	rows := make([]ResultRow, 0, len(evaluation.Rubrics))
	for _, scored := range evaluation.Rubrics {
		row := ResultRow{
			RubricID:    scored.ID,
			SectionName: scored.SectionName,
			Score:       scored.ScoreValue(),
			MaxPoints:   scored.MaxPoints,
			Feedback:    scored.FeedbackText(),
		}
		if known, ok := byID[scored.ID]; ok {
			row.SectionName = known.SectionName
			row.MaxPoints = known.MaxPoints
		}
		if row.SectionName == "" {
			row.SectionName = "Section " + strconv.Itoa(scored.ID)
		}
		rows = append(rows, row)
	}
	return rows
}
