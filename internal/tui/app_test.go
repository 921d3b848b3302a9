package tui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kingrea/report-evaluator/internal/api"
	"github.com/kingrea/report-evaluator/internal/config"
	"github.com/kingrea/report-evaluator/internal/fakeapi"
	"github.com/kingrea/report-evaluator/internal/form"
	"github.com/kingrea/report-evaluator/internal/logbook"
	"github.com/kingrea/report-evaluator/internal/session"
	"github.com/kingrea/report-evaluator/internal/workflow"
)

type harness struct {
	cfg     *config.Config
	client  *api.Client
	backend Backend
	store   *session.Store
	logbook *logbook.Logbook
	written map[string][]byte
}

// harnessOption wraps the fake backend's HTTP handler.
type harnessOption func(http.Handler) http.Handler

func newHarness(t *testing.T, loggedIn bool, wrap ...harnessOption) *harness {
	t.Helper()
	projectDir := t.TempDir()
	if err := config.InitClientDir(projectDir); err != nil {
		t.Fatalf("init client dir: %v", err)
	}
	cfg, err := config.NewConfig(projectDir)
	require.NoError(t, err)

	srv, err := fakeapi.NewServer(fakeapi.Settings{Username: "admin", Password: "admin123"}, fakeapi.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	var handler http.Handler = srv.Handler()
	for _, w := range wrap {
		handler = w(handler)
	}
	hs := httptest.NewServer(handler)
	t.Cleanup(hs.Close)

	store, err := session.Open(cfg.StatePath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	lb, err := logbook.New(cfg.LogFile())
	require.NoError(t, err)
	t.Cleanup(func() { _ = lb.Close() })

	client := api.New(hs.URL+"/api", store)
	h := &harness{
		cfg:     cfg,
		client:  client,
		backend: client,
		store:   store,
		logbook: lb,
		written: map[string][]byte{},
	}
	if loggedIn {
		_, err := h.client.Login(context.Background(), "admin", "admin123")
		require.NoError(t, err)
	}
	return h
}

func (h *harness) newApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(h.cfg, h.backend, h.store,
		WithLogbook(h.logbook),
		WithWriteFile(func(path string, data []byte) error {
			h.written[path] = data
			return nil
		}))
	require.NoError(t, err)
	return app
}

// start runs Init and every command it triggers.
func (h *harness) start(t *testing.T) *App {
	t.Helper()
	app := h.newApp(t)
	return runCommands(t, app, app.Init())
}

// runCommands executes cmd and feeds the resulting messages back into the
// app until no work is left. Spinner ticks are dropped.
func runCommands(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 200 {
			t.Fatalf("commands did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case nil, spinner.TickMsg, tea.QuitMsg:
			continue
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			nextModel, nextCmd := app.Update(msg)
			app, ok = nextModel.(*App)
			if !ok {
				t.Fatalf("unexpected model type: %T", nextModel)
			}
			queue = append(queue, nextCmd)
		}
	}
	return app
}

func send(t *testing.T, app *App, msg tea.Msg) *App {
	t.Helper()
	model, cmd := app.Update(msg)
	return runCommands(t, model, cmd)
}

func key(t *testing.T, app *App, kt tea.KeyType) *App {
	t.Helper()
	return send(t, app, tea.KeyMsg{Type: kt})
}

func typeText(t *testing.T, app *App, text string) *App {
	t.Helper()
	return send(t, app, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func fillJaneDoe(t *testing.T, app *App) *App {
	t.Helper()
	app.identity.setFocus(fieldFirstName)
	app = typeText(t, app, "Jane")
	app = key(t, app, tea.KeyTab)
	app = typeText(t, app, "Doe")
	app = key(t, app, tea.KeyTab)
	app = typeText(t, app, "1234567")
	app = key(t, app, tea.KeyTab)
	app = key(t, app, tea.KeyRight) // Bachelor Thesis
	app = key(t, app, tea.KeyRight) // Master Thesis
	app = key(t, app, tea.KeyTab)
	app = typeText(t, app, "Design-Driven Thesis")
	app = key(t, app, tea.KeyTab)
	return typeText(t, app, "Adaptive Caching")
}

func TestStartWithoutTokenShowsLogin(t *testing.T) {
	h := newHarness(t, false)
	app := h.start(t)
	assert.Equal(t, screenLogin, app.screen)

	app = typeText(t, app, "admin")
	app = key(t, app, tea.KeyEnter)
	app = typeText(t, app, "wrong")
	app = key(t, app, tea.KeyEnter)
	assert.Equal(t, screenLogin, app.screen)
	assert.Equal(t, "Incorrect password. Please check your password.", app.login.message)

	app.login.password.SetValue("admin123")
	app = key(t, app, tea.KeyEnter)
	assert.Equal(t, screenIdentity, app.screen)
	assert.Equal(t, "admin", app.user.Username)
	require.Len(t, app.reportTypes, 5)
	assert.Equal(t, "Machine Learning or NLP-Based Theses", app.reportTypes[0].Name)
	assert.NotEmpty(t, h.store.Token())
}

func TestStoredTokenSkipsLogin(t *testing.T) {
	h := newHarness(t, true)
	app := h.start(t)
	assert.Equal(t, screenIdentity, app.screen)
	assert.Equal(t, "admin", app.user.Username)
	assert.Contains(t, app.View(), "LOG · evaluator.log")
}

func TestRejectedStoredTokenShowsLogin(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.store.SaveToken("not-a-token"))
	app := h.start(t)
	assert.Equal(t, screenLogin, app.screen)
	assert.Empty(t, h.store.Token())
}

func TestMatriculationInputIsSanitized(t *testing.T) {
	h := newHarness(t, true)
	app := h.start(t)
	app.identity.setFocus(fieldMatriculation)

	app = typeText(t, app, "12a3-4")
	assert.Equal(t, "1234", app.identity.inputs[fieldMatriculation].Value())

	// pasted text arrives as one rune batch
	app = typeText(t, app, "5 6 7 8 9")
	assert.Equal(t, "1234567", app.identity.inputs[fieldMatriculation].Value())
}

func TestContinueRequiresEveryField(t *testing.T) {
	h := newHarness(t, true)
	app := h.start(t)

	app = key(t, app, tea.KeyCtrlS)
	assert.Equal(t, screenIdentity, app.screen)
	assert.Equal(t, "Please fill in all required fields", app.identity.message)

	app = fillJaneDoe(t, app)
	assert.True(t, canContinue(app))
	app.identity.inputs[fieldTitle].SetValue("   ")
	assert.False(t, canContinue(app))
	app.identity.inputs[fieldTitle].SetValue("Adaptive Caching")

	app.identity.setFocus(fieldCategory)
	app.identity.category = -1
	assert.False(t, canContinue(app))
}

func canContinue(app *App) bool {
	return form.CanContinue(app.identity.identity())
}

func TestJaneDoeManualEvaluation(t *testing.T) {
	h := newHarness(t, true)
	app := h.start(t)
	app = fillJaneDoe(t, app)

	app = key(t, app, tea.KeyCtrlS)
	require.Equal(t, screenEvaluate, app.screen, app.identity.message)
	assert.Equal(t, workflow.StateAwaitingMethodSelection, app.workflow.State())
	assert.Equal(t, "Jane Doe – Design-Driven Thesis: Adaptive Caching", app.evaluate.draft.Header())
	require.Len(t, app.evaluate.rubrics, 5)
	assert.Contains(t, app.View(), "Adaptive Caching")

	app = key(t, app, tea.KeyTab) // first score
	app = typeText(t, app, "8")
	app = key(t, app, tea.KeyTab) // first feedback
	app = typeText(t, app, "Clear motivation")
	app = key(t, app, tea.KeyTab) // second score
	app = typeText(t, app, "99")

	app = key(t, app, tea.KeyCtrlS)
	require.Equal(t, screenResults, app.screen, app.evaluate.message)
	assert.Equal(t, workflow.StateSubmitted, app.workflow.State())
	require.Len(t, app.results.rows, 5)
	assert.InDelta(t, 8, app.results.rows[0].Score, 1e-9)
	assert.InDelta(t, 20, app.results.rows[1].Score, 1e-9)
	assert.Contains(t, app.View(), "28.00%")

	app = typeText(t, app, "h")
	path := filepath.Join(h.cfg.ReportsDir(), "evaluation-1.html")
	require.Contains(t, h.written, path)
	assert.Contains(t, string(h.written[path]), "Adaptive Caching")
	assert.Equal(t, "Saved "+path, app.results.message)

	_, err := h.store.LoadDraft()
	assert.ErrorIs(t, err, workflow.ErrDraftNotFound)

	app = typeText(t, app, "n")
	assert.Equal(t, screenIdentity, app.screen)
	assert.Equal(t, workflow.StateCollectingIdentity, app.workflow.State())
	assert.Empty(t, app.identity.inputs[fieldFirstName].Value())
}

func TestAutomatedEvaluationNeedsContent(t *testing.T) {
	h := newHarness(t, true)
	app := h.start(t)
	app = fillJaneDoe(t, app)
	app = key(t, app, tea.KeyCtrlS)
	require.Equal(t, screenEvaluate, app.screen)

	app = typeText(t, app, "2")
	assert.Equal(t, workflow.MethodLLM, app.evaluate.selectedMethod())
	app = key(t, app, tea.KeyCtrlS)
	assert.Equal(t, screenEvaluate, app.screen)
	assert.Equal(t, "Please provide report content for language model evaluation", app.evaluate.message)

	mine, err := h.client.MyEvaluations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, mine)

	app = typeText(t, app, "3")
	app = key(t, app, tea.KeyTab)
	app = typeText(t, app, "Introduction and requirements of the architecture.")
	app = key(t, app, tea.KeyCtrlS)
	require.Equal(t, screenResults, app.screen, app.evaluate.message)
	assert.Equal(t, api.MethodRuleBased, app.results.evaluation.EvaluationMethod)
}

func TestExpiredSessionReturnsToLogin(t *testing.T) {
	h := newHarness(t, true)
	app := h.start(t)
	app = fillJaneDoe(t, app)

	require.NoError(t, h.store.SaveToken("expired"))
	app = key(t, app, tea.KeyCtrlS)
	assert.Equal(t, screenLogin, app.screen)
	assert.Equal(t, "Your session has expired. Please log in again.", app.login.message)
	assert.Empty(t, h.store.Token())
	assert.Equal(t, workflow.StateCollectingIdentity, app.workflow.State())
}

func TestRestartResumesDraftOnlyWithinSession(t *testing.T) {
	h := newHarness(t, true)
	app := h.start(t)
	app = fillJaneDoe(t, app)
	app = key(t, app, tea.KeyCtrlS)
	require.Equal(t, screenEvaluate, app.screen)

	resumed := h.start(t)
	assert.Equal(t, screenEvaluate, resumed.screen)
	assert.Len(t, resumed.evaluate.rubrics, 5)

	require.NoError(t, h.store.BeginSession())
	fresh := h.start(t)
	assert.Equal(t, screenIdentity, fresh.screen)
	assert.Equal(t, workflow.StateCollectingIdentity, fresh.workflow.State())
}

func TestLogoutClearsCredentials(t *testing.T) {
	h := newHarness(t, true)
	app := h.start(t)
	app = key(t, app, tea.KeyEsc)
	assert.Equal(t, screenLogin, app.screen)
	assert.Empty(t, h.store.Token())
	assert.Contains(t, app.View(), "Logged out.")
}

// deadlineRecorder notes whether automated submissions carried a deadline.
type deadlineRecorder struct {
	*api.Client
	calls       int
	hadDeadline bool
}

func (d *deadlineRecorder) CreateAutomatedEvaluation(ctx context.Context, method string, in api.NewAutomatedEvaluation) (api.Evaluation, error) {
	d.calls++
	if _, ok := ctx.Deadline(); ok {
		d.hadDeadline = true
	}
	return d.Client.CreateAutomatedEvaluation(ctx, method, in)
}

func slowEvaluations(delay time.Duration) harnessOption {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/evaluations") {
				time.Sleep(delay)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func TestSlowSubmitIsNeverCutShort(t *testing.T) {
	h := newHarness(t, true, slowEvaluations(300*time.Millisecond))
	recorder := &deadlineRecorder{Client: h.client}
	h.backend = recorder

	app := h.start(t)
	app = fillJaneDoe(t, app)
	app = key(t, app, tea.KeyCtrlS)
	require.Equal(t, screenEvaluate, app.screen, app.identity.message)

	app = typeText(t, app, "2")
	app = key(t, app, tea.KeyTab)
	app = typeText(t, app, "Introduction, method and evaluation of the caching layer.")
	app = key(t, app, tea.KeyCtrlS)

	require.Equal(t, screenResults, app.screen, app.evaluate.message)
	assert.Equal(t, api.MethodLLM, app.results.evaluation.EvaluationMethod)
	assert.Equal(t, 1, recorder.calls)
	assert.False(t, recorder.hadDeadline)

	mine, err := h.client.MyEvaluations(context.Background())
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
