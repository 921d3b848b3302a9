// internal/workflow/catalog.go
//
// Report-type catalog helpers: display ordering, categories and lookup.

package workflow

import (
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/kingrea/report-evaluator/internal/api"
)

// Category is a report category offered on the identity form.
type Category struct {
	Value string
	Label string
}

// Categories lists the report categories in form order.
var Categories = []Category{
	{Value: "bachelor", Label: "Bachelor Thesis"},
	{Value: "master", Label: "Master Thesis"},
	{Value: "seminar", Label: "Seminar Report"},
	{Value: "research", Label: "Research Project"},
}

// ValidCategory reports whether value names one of Categories.
func ValidCategory(value string) bool {
	for _, c := range Categories {
		if c.Value == value {
			return true
		}
	}
	return false
}

// suggestions maps a category to the report types usually filed under it.
// They are highlighted only; the list itself is never filtered.
var suggestions = map[string][]string{
	"bachelor": {"Research-Driven Thesis", "Design-Driven Thesis", "Design-Driven and Small Evaluation Thesis"},
	"master":   {"Research-Driven Thesis", "Design-Driven Thesis", "Design-Driven and Small Evaluation Thesis", "Machine Learning or NLP-Based Theses"},
	"seminar":  {"Seminar Report"},
	"research": {"Research-Driven Thesis", "Machine Learning or NLP-Based Theses"},
}

// Suggested reports whether a report type is usual for a category.
func Suggested(category, reportType string) bool {
	for _, name := range suggestions[category] {
		if name == reportType {
			return true
		}
	}
	return false
}

// preferredOrder is the fixed display order; unlisted types follow in
// server order.
var preferredOrder = []string{
	"Machine Learning or NLP-Based Theses",
	"Research-Driven Thesis",
	"Design-Driven and Small Evaluation Thesis",
	"Design-Driven Thesis",
	"Seminar Report",
}

// OrderReportTypes returns the report types in display order. Every type is
// shown regardless of the selected category.
func OrderReportTypes(types []api.ReportType) []api.ReportType {
	ordered := make([]api.ReportType, 0, len(types))
	used := make([]bool, len(types))
	for _, name := range preferredOrder {
		for i, rt := range types {
			if !used[i] && rt.Name == name {
				ordered = append(ordered, rt)
				used[i] = true
				break
			}
		}
	}
	for i, rt := range types {
		if !used[i] {
			ordered = append(ordered, rt)
		}
	}
	return ordered
}

type reportTypeNames []api.ReportType

func (r reportTypeNames) String(i int) string { return r[i].Name }
func (r reportTypeNames) Len() int            { return len(r) }

// FindReportType resolves a typed query by id, by case-insensitive name,
// then by the best fuzzy match.
func FindReportType(types []api.ReportType, query string) (api.ReportType, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return api.ReportType{}, false
	}
	if id, err := strconv.Atoi(query); err == nil {
		for _, rt := range types {
			if rt.ID == id {
				return rt, true
			}
		}
	}
	for _, rt := range types {
		if strings.EqualFold(rt.Name, query) {
			return rt, true
		}
	}
	matches := fuzzy.FindFrom(query, reportTypeNames(types))
	if len(matches) == 0 {
		return api.ReportType{}, false
	}
	return types[matches[0].Index], true
}
