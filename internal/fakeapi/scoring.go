package fakeapi

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"

	"github.com/kingrea/report-evaluator/internal/api"
)

// keywordRule awards a share of a rubric's points when its section name
// contains one of sections and the content mentions one of words.
type keywordRule struct {
	sections []string
	words    []string
	feedback string
}

var keywordRules = []keywordRule{
	{[]string{"introduction"}, []string{"introduction", "introduce", "overview"}, "Introduction section found."},
	{[]string{"objective", "overview"}, []string{"objective", "goal", "aim", "purpose"}, "Objectives section found."},
	{[]string{"requirement"}, []string{"requirement", "specification", "spec"}, "Requirements section found."},
	{[]string{"design"}, []string{"design", "architecture", "structure"}, "Design section found."},
	{[]string{"result", "discussion"}, []string{"result", "discussion", "finding"}, "Results/discussion section found."},
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// scoreRuleBased scores each rubric by keyword presence: 70% of the points
// when a known section's keywords appear, 50% when an unknown section is
// named verbatim, otherwise 0.
func scoreRuleBased(rubrics []api.Rubric, content string) []scoredInput {
	lower := strings.ToLower(content)
	scores := make([]scoredInput, 0, len(rubrics))
	for _, r := range rubrics {
		section := strings.ToLower(r.SectionName)
		score, feedback := 0.0, ""
		matched := false
		for _, rule := range keywordRules {
			if !containsAny(section, rule.sections) {
				continue
			}
			matched = true
			if containsAny(lower, rule.words) {
				score = r.MaxPoints * 0.7
				feedback = rule.feedback
			}
			break
		}
		if !matched && strings.Contains(lower, section) {
			score = r.MaxPoints * 0.5
			feedback = r.SectionName + " section found."
		}
		if feedback == "" {
			feedback = "Rule-based evaluation for " + r.SectionName
		}
		scores = append(scores, scoredInput{rubricID: r.ID, score: score, feedback: &feedback})
	}
	return scores
}

// scoreLanguageModel stands in for a model call: each rubric earns points
// for the share of its section terms found in the content, scaled by how
// substantial the content is.
func scoreLanguageModel(rubrics []api.Rubric, content string) []scoredInput {
	lower := strings.ToLower(content)
	words := len(strings.Fields(content))
	substance := math.Min(1, float64(words)/300)
	scores := make([]scoredInput, 0, len(rubrics))
	for _, r := range rubrics {
		terms := sectionTerms(r.SectionName)
		found := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				found++
			}
		}
		coverage := 0.0
		if len(terms) > 0 {
			coverage = float64(found) / float64(len(terms))
		}
		score := math.Round(r.MaxPoints*(0.3*substance+0.6*coverage)*10) / 10
		score = math.Min(score, r.MaxPoints)
		feedback := fmt.Sprintf("%s: %d of %d key terms addressed across %d words.", r.SectionName, found, len(terms), words)
		scores = append(scores, scoredInput{rubricID: r.ID, score: score, feedback: &feedback})
	}
	return scores
}

func sectionTerms(section string) []string {
	var terms []string
	for _, field := range strings.FieldsFunc(strings.ToLower(section), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if len(field) > 3 {
			terms = append(terms, field)
		}
	}
	return terms
}

// scoreAutomated dispatches on the automated method name.
func scoreAutomated(method string, rubrics []api.Rubric, content string) ([]scoredInput, error) {
	if len(rubrics) == 0 {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "No rubrics found for this report type")
	}
	switch method {
	case api.MethodRuleBased:
		return scoreRuleBased(rubrics, content), nil
	case api.MethodLLM:
		return scoreLanguageModel(rubrics, content), nil
	default:
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Unknown evaluation method")
	}
}
