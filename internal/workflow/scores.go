// internal/workflow/scores.go
//
// Submission inputs and the manual score builder.

package workflow

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/kingrea/report-evaluator/internal/api"
)

// Method selects how step 2 scores the report.
type Method string

const (
	MethodManual    Method = api.MethodManual
	MethodLLM       Method = api.MethodLLM
	MethodRuleBased Method = api.MethodRuleBased
)

// Methods lists the selectable methods in menu order.
var Methods = []Method{MethodManual, MethodLLM, MethodRuleBased}

var (
	// ErrContentRequired is returned for automated methods without report text.
	ErrContentRequired = errors.New("workflow: report content required")
	// ErrUnknownMethod is returned for a method outside Methods.
	ErrUnknownMethod = errors.New("Unknown evaluation method")
)

// Automated reports whether the backend scores the rubrics itself.
func (m Method) Automated() bool {
	return m == MethodLLM || m == MethodRuleBased
}

// Label is the menu text for the method.
func (m Method) Label() string {
	switch m {
	case MethodManual:
		return "Manual Evaluation"
	case MethodLLM:
		return "Language Model Evaluation"
	case MethodRuleBased:
		return "Rule-Based Evaluation"
	default:
		return string(m)
	}
}

// ParseMethod accepts exactly one of the Methods values; anything else,
// including case or whitespace variants, is an unknown method.
func ParseMethod(value string) (Method, error) {
	m := Method(value)
	for _, known := range Methods {
		if m == known {
			return m, nil
		}
	}
	return "", ErrUnknownMethod
}

// ContentError names the automated method that needed report content.
type ContentError struct {
	Method Method
}

func (e *ContentError) Error() string {
	if e.Method == MethodLLM {
		return "Please provide report content for language model evaluation"
	}
	return "Please provide report content for rule-based evaluation"
}

func (e *ContentError) Unwrap() error {
	return ErrContentRequired
}

// ScoreEntry is the raw text typed for one rubric.
type ScoreEntry struct {
	Score    string
	Feedback string
}

// Submission is the step-two input.
type Submission struct {
	Method  Method
	Scores  map[int]ScoreEntry
	Content string
}

// BuildScores produces exactly one score per rubric, in rubric order.
// Missing or unparseable scores count as 0; values are rounded to 0.1 and
// clamped to [0, max points]. Blank feedback is sent as null.
func BuildScores(rubrics []api.Rubric, entries map[int]ScoreEntry) []api.ScoreInput {
	scores := make([]api.ScoreInput, 0, len(rubrics))
	for _, rubric := range rubrics {
		entry := entries[rubric.ID]
		scores = append(scores, api.ScoreInput{
			RubricID: rubric.ID,
			Score:    ClampScore(ParseScore(entry.Score), rubric.MaxPoints),
			Feedback: optional(entry.Feedback),
		})
	}
	return scores
}

// ParseScore reads a typed score, accepting a decimal comma. Anything that
// is not a finite number yields 0.
func ParseScore(raw string) float64 {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ClampScore rounds to one decimal and bounds the result to [0, max].
func ClampScore(score, max float64) float64 {
	score = math.Round(score*10) / 10
	if max < 0 {
		max = 0
	}
	if score > max {
		score = max
	}
	if score < 0 {
		score = 0
	}
	return score
}
