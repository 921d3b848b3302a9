package fakeapi

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/kingrea/report-evaluator/internal/api"
	"github.com/kingrea/report-evaluator/internal/workflow"
)

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Evaluation {{.ID}}: {{.ReportTitle}}</title></head>
<body>
<h1>{{.ReportTitle}}</h1>
<p>{{.Student.FirstName}} {{.Student.LastName}} ({{.Student.MatriculationNumber}}) · {{.ReportType.Name}}</p>
<p>Method: {{.EvaluationMethod}} · Score: {{printf "%.1f" .TotalScore}} / {{printf "%.1f" .MaxPossibleScore}} ({{.Percentage}}%)</p>
<table>
<tr><th>Section</th><th>Score</th><th>Max</th><th>Feedback</th></tr>
{{range .Rows}}<tr><td>{{.SectionName}}</td><td>{{printf "%.1f" .Score}}</td><td>{{printf "%.1f" .MaxPoints}}</td><td>{{.Feedback}}</td></tr>
{{end}}</table>
</body>
</html>
`))

type reportView struct {
	api.Evaluation
	Percentage string
	Rows       []workflow.ResultRow
}

func newReportView(eval api.Evaluation) reportView {
	return reportView{
		Evaluation: eval,
		Percentage: workflow.FormatPercentage(eval.TotalScore, eval.MaxPossibleScore),
		Rows:       workflow.ResultRows(eval, nil),
	}
}

func renderHTMLReport(eval api.Evaluation) ([]byte, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, newReportView(eval)); err != nil {
		return nil, fmt.Errorf("render report %d: %w", eval.ID, err)
	}
	return buf.Bytes(), nil
}

// renderPDFReport writes a single-page PDF listing the evaluation in
// Helvetica. Lines past the page bottom are dropped.
func renderPDFReport(eval api.Evaluation) []byte {
	view := newReportView(eval)
	lines := []string{
		eval.ReportTitle,
		fmt.Sprintf("%s %s (%s) - %s", eval.Student.FirstName, eval.Student.LastName, eval.Student.MatriculationNumber, eval.ReportType.Name),
		fmt.Sprintf("Method: %s   Score: %.1f / %.1f (%s%%)", eval.EvaluationMethod, eval.TotalScore, eval.MaxPossibleScore, view.Percentage),
		"",
	}
	for _, row := range view.Rows {
		lines = append(lines, fmt.Sprintf("%s: %.1f / %.1f", row.SectionName, row.Score, row.MaxPoints))
		if row.Feedback != "" {
			lines = append(lines, "    "+row.Feedback)
		}
	}

	var content strings.Builder
	content.WriteString("BT /F1 11 Tf 14 TL 56 780 Td\n")
	for i, line := range lines {
		if i >= 50 {
			break
		}
		fmt.Fprintf(&content, "(%s) Tj T*\n", pdfEscape(line))
	}
	content.WriteString("ET\n")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func pdfEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '(' || r == ')' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 32 || r > 126:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
