package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kingrea/report-evaluator/internal/api"
)

func serverTypes() []api.ReportType {
	return []api.ReportType{
		{ID: 1, Name: "Seminar Report"},
		{ID: 2, Name: "Research-Driven Thesis"},
		{ID: 3, Name: "Internship Report"},
		{ID: 4, Name: "Design-Driven Thesis"},
		{ID: 5, Name: "Machine Learning or NLP-Based Theses"},
		{ID: 6, Name: "Design-Driven and Small Evaluation Thesis"},
		{ID: 7, Name: "Project Documentation"},
	}
}

func TestOrderReportTypes(t *testing.T) {
	var names []string
	for _, rt := range OrderReportTypes(serverTypes()) {
		names = append(names, rt.Name)
	}
	assert.Equal(t, []string{
		"Machine Learning or NLP-Based Theses",
		"Research-Driven Thesis",
		"Design-Driven and Small Evaluation Thesis",
		"Design-Driven Thesis",
		"Seminar Report",
		"Internship Report",
		"Project Documentation",
	}, names)
}

func TestOrderReportTypesKeepsDuplicates(t *testing.T) {
	types := []api.ReportType{{ID: 1, Name: "Seminar Report"}, {ID: 2, Name: "Seminar Report"}}
	assert.Len(t, OrderReportTypes(types), 2)
	assert.Empty(t, OrderReportTypes(nil))
}

func TestFindReportType(t *testing.T) {
	types := serverTypes()

	rt, ok := FindReportType(types, "4")
	assert.True(t, ok)
	assert.Equal(t, "Design-Driven Thesis", rt.Name)

	rt, ok = FindReportType(types, "seminar report")
	assert.True(t, ok)
	assert.Equal(t, 1, rt.ID)

	rt, ok = FindReportType(types, "nlp")
	assert.True(t, ok)
	assert.Equal(t, 5, rt.ID)

	_, ok = FindReportType(types, "zzzz")
	assert.False(t, ok)
	_, ok = FindReportType(types, "  ")
	assert.False(t, ok)
}

func TestCategories(t *testing.T) {
	assert.Len(t, Categories, 4)
	assert.True(t, ValidCategory("master"))
	assert.False(t, ValidCategory("phd"))
	assert.True(t, Suggested("seminar", "Seminar Report"))
	assert.False(t, Suggested("seminar", "Research-Driven Thesis"))
}
