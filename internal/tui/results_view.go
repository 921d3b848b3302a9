package tui

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/report-evaluator/internal/api"
	"github.com/kingrea/report-evaluator/internal/workflow"
)

type resultsView struct {
	app        *App
	evaluation api.Evaluation
	rows       []workflow.ResultRow
	table      table.Model
	message    string
}

func newResultsView(app *App) *resultsView {
	t := table.New(
		table.WithColumns(resultColumns(100)),
		table.WithHeight(8),
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#F7B801"))
	t.SetStyles(styles)
	return &resultsView{app: app, table: t}
}

func resultColumns(width int) []table.Column {
	feedback := max(20, width-52)
	return []table.Column{
		{Title: "Section", Width: 28},
		{Title: "Score", Width: 7},
		{Title: "Max", Width: 7},
		{Title: "Feedback", Width: feedback},
	}
}

func (v *resultsView) resize(width, height int) {
	v.table.SetColumns(resultColumns(width))
	if height > 20 {
		v.table.SetHeight(height - 20)
	}
}

func (v *resultsView) enter(evaluation api.Evaluation, rubrics []api.Rubric) {
	v.evaluation = evaluation
	v.rows = workflow.ResultRows(evaluation, rubrics)
	rows := make([]table.Row, 0, len(v.rows))
	for _, r := range v.rows {
		rows = append(rows, table.Row{
			r.SectionName,
			fmt.Sprintf("%.1f", r.Score),
			fmt.Sprintf("%.1f", r.MaxPoints),
			r.Feedback,
		})
	}
	v.table.SetRows(rows)
	v.table.GotoTop()
	v.message = ""
}

func (v *resultsView) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "h":
			return v.app.download(api.FormatHTML)
		case "p":
			return v.app.download(api.FormatPDF)
		case "n", "esc":
			return v.app.startNewEvaluation()
		case "q":
			return tea.Quit
		}
	}
	var cmd tea.Cmd
	v.table, cmd = v.table.Update(msg)
	return cmd
}

func (v *resultsView) View() string {
	e := v.evaluation
	summary := fmt.Sprintf("%s · %s · %s", e.Student.FullName(), e.ReportType.Name, e.ReportTitle)
	score := fmt.Sprintf("Total %.1f / %.1f  (%s%%)  · method %s",
		e.TotalScore, e.MaxPossibleScore, workflow.FormatPercentage(e.TotalScore, e.MaxPossibleScore), e.EvaluationMethod)
	lines := []string{
		titleStyle.Render(fmt.Sprintf("Evaluation #%d", e.ID)),
		summary,
		okStyle.Render(score),
		"",
		v.table.View(),
	}
	if v.message != "" {
		lines = append(lines, "", v.message)
	}
	lines = append(lines, hintStyle.Render("h → HTML report    p → PDF report    n → new evaluation    q → quit"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func writeReportFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
