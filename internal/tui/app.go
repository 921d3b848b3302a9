// internal/tui/app.go
//
// This is the main TUI (Terminal User Interface) for the report evaluator.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// Every network call runs inside a tea.Cmd and reports back as a message,
// so the model itself is only touched from the bubbletea goroutine.

package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/report-evaluator/internal/api"
	"github.com/kingrea/report-evaluator/internal/config"
	"github.com/kingrea/report-evaluator/internal/logbook"
	"github.com/kingrea/report-evaluator/internal/workflow"
)

// screen represents which view is active
type screen int

const (
	screenLoading  screen = iota // Verifying a stored token
	screenLogin                  // Username/password form
	screenIdentity               // Step 1: student and report metadata
	screenEvaluate               // Step 2: method selection and scoring
	screenResults                // Submitted evaluation
)

const logPanelLines = 6

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).MarginBottom(1)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).MarginTop(1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	focusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
)

// Backend is the API surface the TUI drives. *api.Client satisfies it.
type Backend interface {
	workflow.Gateway
	ReportTypes(ctx context.Context) ([]api.ReportType, error)
	Login(ctx context.Context, username, password string) (api.User, error)
	Me(ctx context.Context) (api.User, error)
	Logout() error
	DownloadReport(ctx context.Context, id int, format string) ([]byte, error)
	SetUnauthorizedHandler(fn func())
}

// Store holds the credentials and the step-one draft.
type Store interface {
	workflow.DraftStore
	Token() string
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithLogbook attaches the log file shown in the log panel.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = lb
	}
}

// WithWriteFile overrides how downloaded reports are saved.
func WithWriteFile(fn func(path string, data []byte) error) AppOption {
	return func(a *App) {
		if fn != nil {
			a.writeFile = fn
		}
	}
}

type sessionCheckedMsg struct {
	user api.User
	err  error
}

type loginResultMsg struct {
	user api.User
	err  error
}

type reportTypesMsg struct {
	types []api.ReportType
	err   error
}

type continueResultMsg struct {
	err error
}

type resumeResultMsg struct {
	err error
}

type submitResultMsg struct {
	evaluation api.Evaluation
	err        error
}

type downloadResultMsg struct {
	path string
	err  error
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	screen   screen
	config   *config.Config
	backend  Backend
	store    Store
	workflow *workflow.Workflow
	logbook  *logbook.Logbook

	login    *loginView
	identity *identityView
	evaluate *evaluateView
	results  *resultsView

	reportTypes []api.ReportType
	user        api.User
	busy        bool
	spinner     spinner.Model
	statusMsg   string
	expired     atomic.Bool
	writeFile   func(path string, data []byte) error

	// Window size (we get this from bubbletea)
	width  int
	height int
}

// NewApp wires the workflow to the backend and the store. The backend's 401
// hook is taken over so an expired session switches to the login screen.
func NewApp(cfg *config.Config, backend Backend, store Store, opts ...AppOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("tui: config is required")
	}
	if backend == nil || store == nil {
		return nil, fmt.Errorf("tui: backend and store are required")
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = titleStyle

	app := &App{
		screen:    screenLoading,
		config:    cfg,
		backend:   backend,
		store:     store,
		spinner:   sp,
		writeFile: writeReportFile,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	var wfOpts []workflow.Option
	if app.logbook != nil {
		wfOpts = append(wfOpts, workflow.WithLogger(app.logbook))
	}
	app.workflow = workflow.New(backend, store, wfOpts...)
	app.login = newLoginView(app)
	app.identity = newIdentityView(app)
	app.evaluate = newEvaluateView(app)
	app.results = newResultsView(app)
	backend.SetUnauthorizedHandler(func() {
		app.expired.Store(true)
	})
	return app, nil
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Error(format, args...)
}

// Init verifies a stored token, or opens the login screen when there is none.
func (a *App) Init() tea.Cmd {
	if strings.TrimSpace(a.store.Token()) == "" {
		a.showLogin("")
		return nil
	}
	a.logInfo("Session opened · verifying stored token")
	return a.startRequest(func(ctx context.Context) tea.Msg {
		user, err := a.backend.Me(ctx)
		return sessionCheckedMsg{user: user, err: err}
	})
}

// startRequest marks the app busy and runs fn in the background. Requests
// carry no deadline and are never cancelled.
func (a *App) startRequest(fn func(ctx context.Context) tea.Msg) tea.Cmd {
	a.busy = true
	request := func() tea.Msg {
		return fn(context.Background())
	}
	return tea.Batch(request, a.spinner.Tick)
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.expired.Swap(false) && a.screen != screenLogin {
		a.logWarn("Session expired · returning to login")
		a.showLogin("Your session has expired. Please log in again.")
	}

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.results.resize(msg.Width, msg.Height)
		a.evaluate.resize(msg.Width)
		return a, nil

	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case sessionCheckedMsg:
		a.busy = false
		if msg.err != nil {
			a.logWarn("Stored token rejected: %v", msg.err)
			if errors.Is(msg.err, api.ErrUnauthorized) {
				a.showLogin("Please log in.")
			} else {
				a.showLogin(msg.err.Error())
			}
			return a, nil
		}
		return a, a.signedIn(msg.user)

	case loginResultMsg:
		a.busy = false
		if msg.err != nil {
			a.logWarn("Login failed: %v", msg.err)
			a.login.message = msg.err.Error()
			return a, nil
		}
		a.logInfo("Logged in as %s", msg.user.Username)
		return a, a.signedIn(msg.user)

	case reportTypesMsg:
		a.busy = false
		if a.handleUnauthorized(msg.err) {
			return a, nil
		}
		if msg.err != nil {
			a.logError("Failed to load report types: %v", msg.err)
			a.identity.setError(fmt.Sprintf("Failed to load report types: %v", msg.err))
			a.screen = screenIdentity
			return a, nil
		}
		a.reportTypes = workflow.OrderReportTypes(msg.types)
		a.identity.setReportTypes(a.reportTypes)
		return a, a.resume()

	case continueResultMsg:
		a.busy = false
		if a.handleUnauthorized(msg.err) {
			return a, nil
		}
		if msg.err != nil {
			a.identity.setError(msg.err.Error())
			return a, nil
		}
		return a, a.resume()

	case resumeResultMsg:
		a.busy = false
		if a.handleUnauthorized(msg.err) {
			return a, nil
		}
		if errors.Is(msg.err, workflow.ErrNoDraft) {
			a.screen = screenIdentity
			return a, a.identity.focusFirst()
		}
		draft, _ := a.workflow.Draft()
		a.evaluate.enter(draft, a.workflow.Rubrics(), msg.err)
		a.screen = screenEvaluate
		return a, nil

	case submitResultMsg:
		a.busy = false
		if a.handleUnauthorized(msg.err) {
			return a, nil
		}
		if msg.err != nil {
			a.evaluate.message = msg.err.Error()
			return a, nil
		}
		a.results.enter(msg.evaluation, a.workflow.Rubrics())
		a.screen = screenResults
		a.statusMsg = fmt.Sprintf("Evaluation %d saved", msg.evaluation.ID)
		return a, nil

	case downloadResultMsg:
		a.busy = false
		if a.handleUnauthorized(msg.err) {
			return a, nil
		}
		if msg.err != nil {
			a.logError("Report download failed: %v", msg.err)
			a.results.message = msg.err.Error()
			return a, nil
		}
		a.logInfo("Report saved to %s", msg.path)
		a.results.message = "Saved " + msg.path
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
	}

	switch a.screen {
	case screenLogin:
		return a, a.login.Update(msg)
	case screenIdentity:
		return a, a.identity.Update(msg)
	case screenEvaluate:
		return a, a.evaluate.Update(msg)
	case screenResults:
		return a, a.results.Update(msg)
	}
	return a, nil
}

// handleUnauthorized switches to the login screen when err is a 401.
func (a *App) handleUnauthorized(err error) bool {
	if !errors.Is(err, api.ErrUnauthorized) {
		return false
	}
	a.expired.Store(false)
	if a.screen != screenLogin {
		a.logWarn("Session expired · returning to login")
		a.showLogin("Your session has expired. Please log in again.")
	}
	return true
}

func (a *App) showLogin(message string) {
	a.screen = screenLogin
	a.busy = false
	a.user = api.User{}
	a.login.reset(message)
}

// signedIn records the user and loads the report-type catalog.
func (a *App) signedIn(user api.User) tea.Cmd {
	a.user = user
	a.screen = screenIdentity
	a.statusMsg = "Signed in as " + user.Username
	return a.startRequest(func(ctx context.Context) tea.Msg {
		types, err := a.backend.ReportTypes(ctx)
		return reportTypesMsg{types: types, err: err}
	})
}

// resume enters step 2 when a draft is stored; otherwise step 1 stays.
func (a *App) resume() tea.Cmd {
	return a.startRequest(func(ctx context.Context) tea.Msg {
		return resumeResultMsg{err: a.workflow.Resume(ctx)}
	})
}

// startNewEvaluation drops the draft and returns to an empty step 1.
func (a *App) startNewEvaluation() tea.Cmd {
	if err := a.workflow.NewEvaluation(); err != nil {
		a.logError("Clear draft: %v", err)
	}
	a.logInfo("New evaluation started")
	a.identity.clear()
	a.screen = screenIdentity
	a.statusMsg = ""
	return a.identity.focusFirst()
}

func (a *App) logout() tea.Cmd {
	if err := a.backend.Logout(); err != nil {
		a.logError("Logout: %v", err)
	}
	if err := a.workflow.NewEvaluation(); err != nil {
		a.logError("Clear draft: %v", err)
	}
	a.logInfo("Logged out")
	a.identity.clear()
	a.showLogin("Logged out.")
	return nil
}

// View renders the current screen to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	var content string
	switch a.screen {
	case screenLoading:
		content = a.spinner.View() + " Checking session..."
	case screenLogin:
		content = a.login.View()
	case screenIdentity:
		content = a.identity.View()
	case screenEvaluate:
		content = a.evaluate.View()
	case screenResults:
		content = a.results.View()
	}
	return a.renderFrame(content, width)
}

func (a *App) renderFrame(content string, width int) string {
	header := headerStyle.Render("⬡ REPORT EVALUATOR")
	progress := a.workflow.State().FriendlyName()
	if a.screen == screenLogin || a.screen == screenLoading {
		progress = "Login"
	}
	if a.user.Username != "" {
		progress += " · " + a.user.Username
	}
	if a.busy {
		progress += " " + a.spinner.View()
	}
	body := boxStyle.Width(max(20, width-4)).Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(progress), "", content))
	sections := []string{header, body}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	sections = append(sections, mutedStyle.MarginTop(1).Render(a.statusMsg))
	return strings.Join(sections, "\n")
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(logPanelLines)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := titleStyle.Render(fmt.Sprintf("LOG · %s (%d)", fileName, total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return boxStyle.Render(fmt.Sprintf("%s\n%s", head, body))
}

// reportPath is where a downloaded report for evaluation id is saved.
func (a *App) reportPath(id int, format string) string {
	return filepath.Join(a.config.ReportsDir(), fmt.Sprintf("evaluation-%d.%s", id, format))
}

func (a *App) download(format string) tea.Cmd {
	evaluation, ok := a.workflow.Evaluation()
	if !ok {
		return nil
	}
	path := a.reportPath(evaluation.ID, format)
	a.results.message = "Downloading " + strings.ToUpper(format) + " report..."
	return a.startRequest(func(ctx context.Context) tea.Msg {
		data, err := a.backend.DownloadReport(ctx, evaluation.ID, format)
		if err != nil {
			return downloadResultMsg{err: fmt.Errorf("Failed to download report: %w", err)}
		}
		if err := a.writeFile(path, data); err != nil {
			return downloadResultMsg{err: fmt.Errorf("save report: %w", err)}
		}
		return downloadResultMsg{path: path}
	})
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
