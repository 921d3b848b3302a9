package fakeapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kingrea/report-evaluator/internal/api"
	"github.com/kingrea/report-evaluator/internal/form"
	"github.com/kingrea/report-evaluator/internal/workflow"
)

type memoryCreds struct {
	mu      sync.Mutex
	token   string
	user    any
	cleared int
}

func (m *memoryCreds) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *memoryCreds) SaveToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *memoryCreds) SaveUser(user any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = user
	return nil
}

func (m *memoryCreds) ClearCredentials() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.user = nil
	m.cleared++
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testSettings() Settings {
	return Settings{
		Host:     "127.0.0.1",
		Port:     0,
		Secret:   "test-secret",
		Username: "admin",
		Email:    "admin@example.com",
		Password: "admin123",
	}
}

func newTestBackend(t *testing.T, opts ...Option) (*Server, string) {
	t.Helper()
	opts = append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)
	srv, err := NewServer(testSettings(), opts...)
	require.NoError(t, err)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return srv, hs.URL + "/api"
}

func loggedInClient(t *testing.T, baseURL string, opts ...api.Option) (*api.Client, *memoryCreds) {
	t.Helper()
	creds := &memoryCreds{}
	client := api.New(baseURL, creds, opts...)
	_, err := client.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	return client, creds
}

func TestLoginIssuesTokenAndReturnsUser(t *testing.T) {
	_, baseURL := newTestBackend(t)
	creds := &memoryCreds{}
	client := api.New(baseURL, creds)

	user, err := client.Login(context.Background(), "admin@example.com", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
	assert.True(t, user.IsAdmin)
	assert.NotEmpty(t, creds.Token())
	assert.Equal(t, user, creds.user)

	claims, err := api.InspectToken(creds.Token())
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
}

func TestLoginFailuresUseBackendMessages(t *testing.T) {
	_, baseURL := newTestBackend(t)
	hookCalls := 0
	client := api.New(baseURL, &memoryCreds{}, api.WithUnauthorizedHandler(func() { hookCalls++ }))

	_, err := client.Login(context.Background(), "nobody", "x")
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "User not found. Please check your email/username.", apiErr.Message)

	_, err = client.Login(context.Background(), "admin", "wrong")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Incorrect password. Please check your password.", apiErr.Message)
	assert.Zero(t, hookCalls)
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	_, baseURL := newTestBackend(t)
	hookCalls := 0
	creds := &memoryCreds{}
	client := api.New(baseURL, creds, api.WithUnauthorizedHandler(func() { hookCalls++ }))

	_, err := client.ReportTypes(context.Background())
	assert.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Equal(t, 1, hookCalls)
	assert.Equal(t, 1, creds.cleared)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	_, baseURL := newTestBackend(t, WithClock(clock.Now))
	client, creds := loggedInClient(t, baseURL)

	_, err := client.Me(context.Background())
	require.NoError(t, err)

	clock.Advance(DefaultTokenTTL + time.Minute)
	_, err = client.Me(context.Background())
	assert.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Empty(t, creds.Token())
}

func TestReportTypesComeInServerOrder(t *testing.T) {
	_, baseURL := newTestBackend(t)
	client, _ := loggedInClient(t, baseURL)

	types, err := client.ReportTypes(context.Background())
	require.NoError(t, err)
	require.Len(t, types, 5)
	assert.Equal(t, "Seminar Report", types[0].Name)
	assert.Equal(t, "Design-Driven Thesis", types[2].Name)

	rubrics, err := client.Rubrics(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, rubrics, 5)
	for i, r := range rubrics {
		assert.Equal(t, i+1, r.Order)
		assert.Equal(t, 3, r.ReportTypeID)
	}

	_, err = client.Rubrics(context.Background(), 99)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Report type not found", apiErr.Message)
}

func TestCreateStudentIsIdempotentAndValidated(t *testing.T) {
	_, baseURL := newTestBackend(t)
	client, _ := loggedInClient(t, baseURL)
	ctx := context.Background()

	first, err := client.CreateStudent(ctx, api.NewStudent{FirstName: "Jane", LastName: "Doe", MatriculationNumber: "1234567"})
	require.NoError(t, err)
	again, err := client.CreateStudent(ctx, api.NewStudent{FirstName: "Jane", LastName: "Doe", MatriculationNumber: "1234567"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	found, err := client.FindStudentByMatriculation(ctx, "1234567")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = client.CreateStudent(ctx, api.NewStudent{FirstName: "Jane", LastName: "Doe", MatriculationNumber: "12ab"})
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Contains(t, apiErr.Message, "Matriculation number")
}

func janeDoe() form.Identity {
	return form.Identity{
		FirstName:           "Jane",
		LastName:            "Doe",
		MatriculationNumber: "1234567",
		ReportCategory:      "master",
		ReportTypeID:        3,
		ReportTypeName:      "Design-Driven Thesis",
		ReportTitle:         "Adaptive Caching",
	}
}

func TestManualEvaluationEndToEnd(t *testing.T) {
	_, baseURL := newTestBackend(t)
	client, _ := loggedInClient(t, baseURL)
	ctx := context.Background()

	wf := workflow.New(client, nil)
	require.NoError(t, wf.Continue(ctx, janeDoe()))
	require.NoError(t, wf.Resume(ctx))
	require.Len(t, wf.Rubrics(), 5)
	rubrics := wf.Rubrics()

	eval, err := wf.Submit(ctx, workflow.Submission{
		Method: workflow.MethodManual,
		Scores: map[int]workflow.ScoreEntry{
			rubrics[0].ID: {Score: "8", Feedback: "Clear motivation"},
			rubrics[1].ID: {Score: "25"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateSubmitted, wf.State())
	assert.Equal(t, api.MethodManual, eval.EvaluationMethod)
	assert.InDelta(t, 28, eval.TotalScore, 1e-9)
	assert.InDelta(t, 100, eval.MaxPossibleScore, 1e-9)
	assert.Equal(t, "28.00", workflow.FormatPercentage(eval.TotalScore, eval.MaxPossibleScore))
	require.Len(t, eval.Rubrics, 5)
	assert.Equal(t, "Clear motivation", eval.Rubrics[0].FeedbackText())

	fetched, err := client.Evaluation(ctx, eval.ID)
	require.NoError(t, err)
	assert.Equal(t, "Adaptive Caching", fetched.ReportTitle)
	assert.Equal(t, "Jane", fetched.Student.FirstName)

	history, err := client.StudentEvaluations(ctx, eval.Student.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)

	mine, err := client.MyEvaluations(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	stats, err := client.Statistics(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 5)
	assert.Equal(t, 1, stats[2].TotalEvaluations)
	assert.InDelta(t, 28, stats[2].AverageScore, 1e-9)
	assert.InDelta(t, 28, stats[2].AveragePercentage, 1e-9)
	assert.Zero(t, stats[0].TotalEvaluations)
}

func TestRuleBasedEvaluationScoresByKeyword(t *testing.T) {
	_, baseURL := newTestBackend(t)
	client, _ := loggedInClient(t, baseURL)
	ctx := context.Background()

	wf := workflow.New(client, nil)
	require.NoError(t, wf.Continue(ctx, janeDoe()))
	require.NoError(t, wf.Resume(ctx))

	eval, err := wf.Submit(ctx, workflow.Submission{
		Method:  workflow.MethodRuleBased,
		Content: "Introduction: we list each requirement and describe the architecture.",
	})
	require.NoError(t, err)
	assert.Equal(t, api.MethodRuleBased, eval.EvaluationMethod)
	require.Len(t, eval.Rubrics, 5)
	assert.InDelta(t, 7, eval.Rubrics[0].ScoreValue(), 1e-9)
	assert.InDelta(t, 14, eval.Rubrics[1].ScoreValue(), 1e-9)
	assert.InDelta(t, 24.5, eval.Rubrics[2].ScoreValue(), 1e-9)
	assert.Zero(t, eval.Rubrics[3].ScoreValue())
	assert.Equal(t, "Rule-based evaluation for Implementation", eval.Rubrics[3].FeedbackText())
	assert.InDelta(t, 45.5, eval.TotalScore, 1e-9)
}

func TestLanguageModelEvaluationStaysWithinMax(t *testing.T) {
	_, baseURL := newTestBackend(t)
	client, _ := loggedInClient(t, baseURL)
	ctx := context.Background()

	student, err := client.CreateStudent(ctx, api.NewStudent{FirstName: "Max", LastName: "Muster", MatriculationNumber: "7654321"})
	require.NoError(t, err)
	content := strings.Repeat("introduction requirements design architecture implementation conclusion ", 80)
	eval, err := client.CreateAutomatedEvaluation(ctx, api.MethodLLM, api.NewAutomatedEvaluation{
		StudentID:     student.ID,
		ReportTypeID:  3,
		ReportTitle:   "Thesis",
		ReportContent: content,
	})
	require.NoError(t, err)
	assert.Equal(t, api.MethodLLM, eval.EvaluationMethod)
	for _, r := range eval.Rubrics {
		assert.LessOrEqual(t, r.ScoreValue(), r.MaxPoints)
		assert.Greater(t, r.ScoreValue(), 0.0)
	}
	assert.InDelta(t, 90, eval.TotalScore, 1e-6)
}

func TestAutomatedEvaluationRequiresContent(t *testing.T) {
	_, baseURL := newTestBackend(t)
	client, _ := loggedInClient(t, baseURL)
	ctx := context.Background()

	student, err := client.CreateStudent(ctx, api.NewStudent{FirstName: "Max", LastName: "Muster", MatriculationNumber: "7654321"})
	require.NoError(t, err)
	_, err = client.CreateAutomatedEvaluation(ctx, api.MethodRuleBased, api.NewAutomatedEvaluation{
		StudentID:    student.ID,
		ReportTypeID: 3,
		ReportTitle:  "Thesis",
	})
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
}

func TestEvaluationRejectsForeignRubric(t *testing.T) {
	_, baseURL := newTestBackend(t)
	client, _ := loggedInClient(t, baseURL)
	ctx := context.Background()

	student, err := client.CreateStudent(ctx, api.NewStudent{FirstName: "Jane", LastName: "Doe", MatriculationNumber: "1234567"})
	require.NoError(t, err)
	_, err = client.CreateEvaluation(ctx, api.NewEvaluation{
		StudentID:    student.ID,
		ReportTypeID: 3,
		ReportTitle:  "Thesis",
		Scores:       []api.ScoreInput{{RubricID: 1, Score: 5}},
	})
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	_, err = client.Evaluation(ctx, 999)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Evaluation not found", apiErr.Message)
}

func TestDownloadReports(t *testing.T) {
	_, baseURL := newTestBackend(t)
	client, _ := loggedInClient(t, baseURL)
	ctx := context.Background()

	student, err := client.CreateStudent(ctx, api.NewStudent{FirstName: "Jane", LastName: "Doe", MatriculationNumber: "1234567"})
	require.NoError(t, err)
	eval, err := client.CreateEvaluation(ctx, api.NewEvaluation{
		StudentID:    student.ID,
		ReportTypeID: 1,
		ReportTitle:  "Caching (revisited)",
		Scores:       []api.ScoreInput{{RubricID: 1, Score: 15}},
	})
	require.NoError(t, err)

	html, err := client.DownloadReport(ctx, eval.ID, api.FormatHTML)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Caching (revisited)")
	assert.Contains(t, string(html), "75.00%")

	pdf, err := client.DownloadReport(ctx, eval.ID, api.FormatPDF)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF-1.4"))
	assert.Contains(t, string(pdf), `Caching \(revisited\)`)
	assert.True(t, strings.HasSuffix(string(pdf), "%%EOF\n"))
}

func TestServerStartAndShutdown(t *testing.T) {
	srv, err := NewServer(testSettings(), WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	assert.Equal(t, StatusStarting, srv.Status())
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	require.NoError(t, srv.Start(context.Background()))
	assert.Equal(t, StatusReady, srv.Status())
	assert.Error(t, srv.Start(context.Background()))

	resp, err := http.Get(srv.BaseURL() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	client := api.New(srv.APIURL(), &memoryCreds{})
	_, err = client.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.Equal(t, StatusDraining, srv.Status())
	_, err = client.Me(context.Background())
	var transportErr *api.TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestSettingsEnvOverrides(t *testing.T) {
	env := map[string]string{
		"FAKEAPI_PORT":      "9100",
		"FAKEAPI_TOKEN_TTL": "5m",
		"FAKEAPI_USERNAME":  "grader",
	}
	settings := Settings{Port: DefaultPort}
	settings.applyEnvOverrides(func(k string) string { return env[k] })
	settings.normalize()
	assert.Equal(t, 9100, settings.Port)
	assert.Equal(t, 5*time.Minute, settings.TokenTTL)
	assert.Equal(t, "grader", settings.Username)
	assert.Equal(t, DefaultPassword, settings.Password)
	assert.Equal(t, "http://127.0.0.1:9100", settings.URL())
}
