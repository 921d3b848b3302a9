package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/report-evaluator/internal/api"
	"github.com/kingrea/report-evaluator/internal/form"
	"github.com/kingrea/report-evaluator/internal/workflow"
)

// identityField indexes the step-one form fields in tab order.
type identityField int

const (
	fieldFirstName identityField = iota
	fieldLastName
	fieldMatriculation
	fieldCategory
	fieldReportType
	fieldTitle
	fieldDate
	fieldTime
	fieldCount
)

var identityLabels = [fieldCount]string{
	"First name",
	"Last name",
	"Matriculation number",
	"Report category",
	"Report type",
	"Report title",
	"Oberseminar date",
	"Oberseminar time",
}

func newInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Prompt = "› "
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Cursor.SetMode(cursor.CursorStatic)
	return ti
}

type identityView struct {
	app       *App
	inputs    [fieldCount]textinput.Model
	focus     identityField
	category  int
	types     []api.ReportType
	typeIndex int
	message   string
}

func newIdentityView(app *App) *identityView {
	v := &identityView{app: app, category: -1, typeIndex: -1}
	v.inputs[fieldFirstName] = newInput("Jane", 80)
	v.inputs[fieldLastName] = newInput("Doe", 80)
	v.inputs[fieldMatriculation] = newInput("7 digits", 0) // truncated by SanitizeMatriculation
	v.inputs[fieldCategory] = newInput("", 0)
	v.inputs[fieldReportType] = newInput("type to search", 80)
	v.inputs[fieldTitle] = newInput("Title of the report", 200)
	v.inputs[fieldDate] = newInput("YYYY-MM-DD (optional)", 10)
	v.inputs[fieldTime] = newInput("HH:MM (optional)", 5)
	v.setFocus(fieldFirstName)
	return v
}

func (v *identityView) clear() {
	for i := range v.inputs {
		v.inputs[i].SetValue("")
	}
	v.category = -1
	v.typeIndex = -1
	v.message = ""
}

func (v *identityView) focusFirst() tea.Cmd {
	v.setFocus(fieldFirstName)
	return nil
}

func (v *identityView) setError(message string) {
	v.message = message
}

func (v *identityView) setReportTypes(types []api.ReportType) {
	var selected int
	if v.typeIndex >= 0 && v.typeIndex < len(v.types) {
		selected = v.types[v.typeIndex].ID
	}
	v.types = types
	v.typeIndex = -1
	for i, rt := range types {
		if rt.ID == selected {
			v.typeIndex = i
		}
	}
	v.message = ""
}

func (v *identityView) setFocus(field identityField) {
	v.focus = field
	for i := range v.inputs {
		if identityField(i) == field {
			v.inputs[i].Focus()
		} else {
			v.inputs[i].Blur()
		}
	}
}

func (v *identityView) selectedType() (api.ReportType, bool) {
	if v.typeIndex < 0 || v.typeIndex >= len(v.types) {
		return api.ReportType{}, false
	}
	return v.types[v.typeIndex], true
}

func (v *identityView) categoryValue() string {
	if v.category < 0 || v.category >= len(workflow.Categories) {
		return ""
	}
	return workflow.Categories[v.category].Value
}

// identity collects the form into the value the workflow validates.
func (v *identityView) identity() form.Identity {
	id := form.Identity{
		FirstName:           v.inputs[fieldFirstName].Value(),
		LastName:            v.inputs[fieldLastName].Value(),
		MatriculationNumber: v.inputs[fieldMatriculation].Value(),
		ReportCategory:      v.categoryValue(),
		ReportTitle:         v.inputs[fieldTitle].Value(),
		OberseminarDate:     v.inputs[fieldDate].Value(),
		OberseminarTime:     v.inputs[fieldTime].Value(),
	}
	if rt, ok := v.selectedType(); ok {
		id.ReportTypeID = rt.ID
		id.ReportTypeName = rt.Name
	}
	return id
}

func (v *identityView) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			v.setFocus((v.focus + 1) % fieldCount)
			return nil
		case "shift+tab", "up":
			v.setFocus((v.focus + fieldCount - 1) % fieldCount)
			return nil
		case "left", "right":
			if v.focus == fieldCategory || v.focus == fieldReportType {
				v.cycle(v.focus, key.String() == "right")
				return nil
			}
		case "ctrl+s":
			return v.submit()
		case "enter":
			if v.focus == fieldCount-1 {
				return v.submit()
			}
			v.setFocus(v.focus + 1)
			return nil
		case "esc":
			return v.app.logout()
		}
	}
	if v.focus == fieldCategory {
		return nil
	}
	var cmd tea.Cmd
	v.inputs[v.focus], cmd = v.inputs[v.focus].Update(msg)
	switch v.focus {
	case fieldMatriculation:
		// typed and pasted input alike
		value := v.inputs[fieldMatriculation].Value()
		if clean := form.SanitizeMatriculation(value); clean != value {
			v.inputs[fieldMatriculation].SetValue(clean)
		}
	case fieldReportType:
		v.resolveReportType()
	}
	return cmd
}

func (v *identityView) cycle(field identityField, forward bool) {
	step := -1
	if forward {
		step = 1
	}
	switch field {
	case fieldCategory:
		n := len(workflow.Categories)
		if v.category < 0 {
			v.category = 0
			return
		}
		v.category = (v.category + step + n) % n
	case fieldReportType:
		n := len(v.types)
		if n == 0 {
			return
		}
		if v.typeIndex < 0 {
			v.typeIndex = 0
		} else {
			v.typeIndex = (v.typeIndex + step + n) % n
		}
		v.inputs[fieldReportType].SetValue(v.types[v.typeIndex].Name)
	}
}

func (v *identityView) resolveReportType() {
	rt, ok := workflow.FindReportType(v.types, v.inputs[fieldReportType].Value())
	if !ok {
		v.typeIndex = -1
		return
	}
	for i := range v.types {
		if v.types[i].ID == rt.ID {
			v.typeIndex = i
			return
		}
	}
}

func (v *identityView) submit() tea.Cmd {
	if v.app.busy {
		return nil
	}
	identity := v.identity()
	if result := form.Validate(identity); !result.Valid() {
		v.message = result.Summary()
		return nil
	}
	v.message = ""
	v.app.logInfo("Continue · %s %s (%s)", strings.TrimSpace(identity.FirstName), strings.TrimSpace(identity.LastName), identity.MatriculationNumber)
	return v.app.startRequest(func(ctx context.Context) tea.Msg {
		return continueResultMsg{err: v.app.workflow.Continue(ctx, identity)}
	})
}

func (v *identityView) View() string {
	lines := []string{titleStyle.Render("Student & Report")}
	for i := identityField(0); i < fieldCount; i++ {
		label := identityLabels[i]
		if i == v.focus {
			label = focusStyle.Render(label)
		}
		var value string
		switch i {
		case fieldCategory:
			value = v.renderCategory()
		case fieldReportType:
			value = v.renderReportType()
		default:
			value = v.inputs[i].View()
		}
		lines = append(lines, fmt.Sprintf("%-22s %s", label, value))
	}
	if v.focus == fieldReportType && len(v.types) > 0 {
		lines = append(lines, v.renderTypeList())
	}

	button := mutedStyle.Render("[ Continue ]")
	if form.CanContinue(v.identity()) {
		button = okStyle.Render("[ Continue ]")
	}
	lines = append(lines, "", button)
	if v.message != "" {
		lines = append(lines, errorStyle.Render(v.message))
	}
	lines = append(lines, hintStyle.Render("Tab/↑↓ → move    ←/→ → choose    Ctrl+S → continue    Esc → log out"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (v *identityView) renderCategory() string {
	if v.category < 0 {
		return mutedStyle.Render("◀ Select report category ▶")
	}
	return "◀ " + workflow.Categories[v.category].Label + " ▶"
}

func (v *identityView) renderReportType() string {
	view := v.inputs[fieldReportType].View()
	rt, ok := v.selectedType()
	if !ok {
		if len(v.types) == 0 {
			return view + mutedStyle.Render("  (no report types loaded)")
		}
		return view
	}
	note := "  → " + rt.Name
	if workflow.Suggested(v.categoryValue(), rt.Name) {
		note += " ★"
	}
	return view + okStyle.Render(note)
}

func (v *identityView) renderTypeList() string {
	category := v.categoryValue()
	rows := make([]string, 0, len(v.types))
	for i, rt := range v.types {
		marker := "  "
		if i == v.typeIndex {
			marker = "> "
		}
		line := marker + rt.Name
		if workflow.Suggested(category, rt.Name) {
			line += " ★"
		}
		if i == v.typeIndex {
			line = focusStyle.Render(line)
		} else {
			line = mutedStyle.Render(line)
		}
		rows = append(rows, line)
	}
	return lipgloss.NewStyle().MarginLeft(23).Render(strings.Join(rows, "\n"))
}
