package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/report-evaluator/internal/api"
	"github.com/kingrea/report-evaluator/internal/workflow"
)

// evaluateView is step 2. Focus 0 is the method row; manual scoring uses
// two inputs per rubric after it, automated methods a single text area.
type evaluateView struct {
	app      *App
	draft    workflow.Draft
	rubrics  []api.Rubric
	method   int
	scores   []textinput.Model
	feedback []textinput.Model
	content  textarea.Model
	focus    int
	message  string
}

func newEvaluateView(app *App) *evaluateView {
	content := textarea.New()
	content.Placeholder = "Paste the report text here"
	content.ShowLineNumbers = false
	content.CharLimit = 0
	content.SetHeight(8)
	content.Cursor.SetMode(cursor.CursorStatic)
	return &evaluateView{app: app, content: content, method: methodIndex(app.config.DefaultMethod())}
}

func methodIndex(name string) int {
	for i, m := range workflow.Methods {
		if string(m) == name {
			return i
		}
	}
	return 0
}

func (v *evaluateView) selectedMethod() workflow.Method {
	return workflow.Methods[v.method]
}

func (v *evaluateView) resize(width int) {
	if width > 12 {
		v.content.SetWidth(width - 12)
	}
}

// enter prepares the view for a draft. loadErr is a failed rubric fetch.
func (v *evaluateView) enter(draft workflow.Draft, rubrics []api.Rubric, loadErr error) {
	v.draft = draft
	v.rubrics = rubrics
	v.scores = make([]textinput.Model, len(rubrics))
	v.feedback = make([]textinput.Model, len(rubrics))
	for i, r := range rubrics {
		v.scores[i] = newInput(fmt.Sprintf("0-%g", r.MaxPoints), 6)
		v.feedback[i] = newInput("Feedback (optional)", 500)
	}
	v.content.Reset()
	v.message = ""
	if loadErr != nil {
		v.message = loadErr.Error()
	}
	v.setFocus(0)
}

func (v *evaluateView) fieldCount() int {
	if v.selectedMethod().Automated() {
		return 2
	}
	return 1 + 2*len(v.rubrics)
}

func (v *evaluateView) setFocus(i int) {
	v.focus = i
	for j := range v.scores {
		v.scores[j].Blur()
		v.feedback[j].Blur()
	}
	v.content.Blur()
	if i == 0 {
		return
	}
	if v.selectedMethod().Automated() {
		v.content.Focus()
		return
	}
	idx := (i - 1) / 2
	if (i-1)%2 == 0 {
		v.scores[idx].Focus()
	} else {
		v.feedback[idx].Focus()
	}
}

// submission collects the typed values keyed by rubric id.
func (v *evaluateView) submission() workflow.Submission {
	sub := workflow.Submission{Method: v.selectedMethod()}
	if sub.Method.Automated() {
		sub.Content = v.content.Value()
		return sub
	}
	sub.Scores = make(map[int]workflow.ScoreEntry, len(v.rubrics))
	for i, r := range v.rubrics {
		sub.Scores[r.ID] = workflow.ScoreEntry{Score: v.scores[i].Value(), Feedback: v.feedback[i].Value()}
	}
	return sub
}

func (v *evaluateView) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab":
			v.setFocus((v.focus + 1) % v.fieldCount())
			return nil
		case "shift+tab":
			v.setFocus((v.focus + v.fieldCount() - 1) % v.fieldCount())
			return nil
		case "ctrl+s":
			return v.submit()
		case "ctrl+r":
			return v.reloadRubrics()
		case "esc":
			return v.app.startNewEvaluation()
		}
		if v.focus == 0 {
			switch key.String() {
			case "left", "right":
				n := len(workflow.Methods)
				if key.String() == "right" {
					v.method = (v.method + 1) % n
				} else {
					v.method = (v.method + n - 1) % n
				}
				v.message = ""
			case "1", "2", "3":
				v.method = int(key.String()[0] - '1')
				v.message = ""
			case "enter", "down":
				v.setFocus(1 % v.fieldCount())
			}
			return nil
		}
	}
	if v.focus == 0 {
		return nil
	}
	var cmd tea.Cmd
	if v.selectedMethod().Automated() {
		v.content, cmd = v.content.Update(msg)
		return cmd
	}
	idx := (v.focus - 1) / 2
	if (v.focus-1)%2 == 0 {
		v.scores[idx], cmd = v.scores[idx].Update(msg)
	} else {
		v.feedback[idx], cmd = v.feedback[idx].Update(msg)
	}
	return cmd
}

func (v *evaluateView) submit() tea.Cmd {
	if v.app.busy {
		return nil
	}
	sub := v.submission()
	v.message = ""
	v.app.logInfo("Submit · %s", sub.Method.Label())
	return v.app.startRequest(func(ctx context.Context) tea.Msg {
		evaluation, err := v.app.workflow.Submit(ctx, sub)
		return submitResultMsg{evaluation: evaluation, err: err}
	})
}

func (v *evaluateView) reloadRubrics() tea.Cmd {
	if v.app.busy || v.app.workflow.RubricsLoaded() {
		return nil
	}
	v.message = "Loading rubrics..."
	return v.app.startRequest(func(ctx context.Context) tea.Msg {
		return resumeResultMsg{err: v.app.workflow.LoadRubrics(ctx)}
	})
}

func (v *evaluateView) View() string {
	lines := []string{
		titleStyle.Render(v.draft.Header()),
		"",
		"Method  " + v.renderMethods(),
		"",
	}
	if v.selectedMethod().Automated() {
		lines = append(lines, "Report content", v.content.View())
	} else {
		lines = append(lines, v.renderRubrics()...)
	}
	if v.message != "" {
		lines = append(lines, "", errorStyle.Render(v.message))
	}
	lines = append(lines, hintStyle.Render("←/→ or 1-3 → method    Tab → next field    Ctrl+S → submit    Ctrl+R → reload rubrics    Esc → new evaluation"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (v *evaluateView) renderMethods() string {
	parts := make([]string, 0, len(workflow.Methods))
	for i, m := range workflow.Methods {
		label := fmt.Sprintf("%d %s", i+1, m.Label())
		switch {
		case i == v.method && v.focus == 0:
			label = focusStyle.Render("[" + label + "]")
		case i == v.method:
			label = okStyle.Render("[" + label + "]")
		default:
			label = mutedStyle.Render(" " + label + " ")
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, "  ")
}

func (v *evaluateView) renderRubrics() []string {
	if len(v.rubrics) == 0 {
		return []string{mutedStyle.Render("No rubrics loaded.")}
	}
	lines := make([]string, 0, 2*len(v.rubrics))
	for i, r := range v.rubrics {
		name := fmt.Sprintf("%d. %s (max %g)", i+1, r.SectionName, r.MaxPoints)
		if v.focus == 1+2*i || v.focus == 2+2*i {
			name = focusStyle.Render(name)
		}
		lines = append(lines, name)
		if r.Description != "" {
			lines = append(lines, mutedStyle.Render("   "+r.Description))
		}
		score := workflow.ClampScore(workflow.ParseScore(v.scores[i].Value()), r.MaxPoints)
		lines = append(lines,
			fmt.Sprintf("   Score    %s %s", v.scores[i].View(), mutedStyle.Render(fmt.Sprintf("→ %.1f", score))),
			fmt.Sprintf("   Feedback %s", v.feedback[i].View()),
		)
	}
	return lines
}
