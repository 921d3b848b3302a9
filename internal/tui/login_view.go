package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type loginView struct {
	app      *App
	username textinput.Model
	password textinput.Model
	focus    int
	message  string
}

func newLoginView(app *App) *loginView {
	username := newInput("", 120)
	username.Prompt = "Username or email: "
	password := newInput("", 120)
	password.Prompt = "Password: "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	return &loginView{app: app, username: username, password: password}
}

func (v *loginView) reset(message string) {
	v.password.SetValue("")
	v.message = message
	v.focus = 0
	v.password.Blur()
	v.username.Focus()
}

func (v *loginView) canSubmit() bool {
	return strings.TrimSpace(v.username.Value()) != "" && v.password.Value() != ""
}

func (v *loginView) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down", "shift+tab", "up":
			v.setFocus(1 - v.focus)
			return nil
		case "enter":
			if v.focus == 0 {
				v.setFocus(1)
				return nil
			}
			return v.submit()
		}
	}
	var cmd tea.Cmd
	if v.focus == 0 {
		v.username, cmd = v.username.Update(msg)
	} else {
		v.password, cmd = v.password.Update(msg)
	}
	return cmd
}

func (v *loginView) setFocus(i int) {
	v.focus = i
	if i == 0 {
		v.password.Blur()
		v.username.Focus()
		return
	}
	v.username.Blur()
	v.password.Focus()
}

func (v *loginView) submit() tea.Cmd {
	if v.app.busy {
		return nil
	}
	if !v.canSubmit() {
		v.message = "Please enter your username and password."
		return nil
	}
	username, password := strings.TrimSpace(v.username.Value()), v.password.Value()
	v.message = "Logging in..."
	return v.app.startRequest(func(ctx context.Context) tea.Msg {
		user, err := v.app.backend.Login(ctx, username, password)
		return loginResultMsg{user: user, err: err}
	})
}

func (v *loginView) View() string {
	lines := []string{
		titleStyle.Render("Login"),
		v.username.View(),
		v.password.View(),
	}
	if v.message != "" {
		lines = append(lines, "", errorStyle.Render(v.message))
	}
	lines = append(lines, hintStyle.Render("Tab → switch field    Enter → log in    Ctrl+C → quit"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
