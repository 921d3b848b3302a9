package fakeapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/kingrea/report-evaluator/internal/api"
	"github.com/kingrea/report-evaluator/internal/form"
)

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

// Logger is the subset of a logger the server writes to.
type Logger interface {
	Printf(format string, args ...any)
}

// Server is an in-memory stand-in for the evaluation backend. It serves the
// same routes under /api with the same JSON shapes and error envelope.
type Server struct {
	settings   Settings
	data       *Data
	logger     Logger
	clock      func() time.Time
	bcryptCost int
	echo       *echo.Echo

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control timestamps and token expiry.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithBcryptCost lowers the hashing cost, mostly for tests.
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// WithData replaces the seeded store.
func WithData(d *Data) Option {
	return func(s *Server) {
		if d != nil {
			s.data = d
		}
	}
}

// NewServer builds the router and seeds the account named in settings.
func NewServer(settings Settings, opts ...Option) (*Server, error) {
	settings.normalize()
	s := &Server{
		settings:   settings,
		logger:     nopLogger{},
		clock:      func() time.Time { return time.Now().UTC() },
		bcryptCost: bcrypt.DefaultCost,
		status:     StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.data == nil {
		s.data = NewData(s.now)
	}
	if err := s.AddUser(settings.Username, settings.Email, settings.Password, true); err != nil {
		return nil, fmt.Errorf("fakeapi: seed user: %w", err)
	}
	s.echo = s.newRouter()
	return s, nil
}

type echoValidator struct {
	validator *form.Validator
}

func (v echoValidator) Validate(i any) error {
	return v.validator.Struct(i).Err()
}

func (s *Server) newRouter() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Printf("fakeapi: %s %s %d %s id=%s", v.Method, v.URI, v.Status, v.Latency.Round(time.Microsecond), v.RequestID)
			return nil
		},
	}))
	e.Validator = echoValidator{validator: form.NewValidator()}
	e.HTTPErrorHandler = s.handleError

	e.GET("/health", s.handleHealth)

	public := e.Group("/api")
	public.POST("/auth/login", s.handleLogin)

	authed := public.Group("", s.requireUser)
	authed.GET("/auth/me", s.handleMe)

	authed.GET("/report-types", s.handleReportTypes)
	authed.GET("/report-types/statistics/all", s.handleStatistics)
	authed.GET("/report-types/:id", s.handleReportType)
	authed.GET("/report-types/:id/rubrics", s.handleRubrics)
	authed.GET("/report-types/:id/statistics", s.handleReportTypeStatistics)

	authed.POST("/students", s.handleCreateStudent)
	authed.GET("/students", s.handleStudents)
	authed.GET("/students/:id", s.handleStudent)
	authed.GET("/students/:id/evaluations", s.handleStudentEvaluations)

	authed.POST("/evaluations", s.handleCreateEvaluation)
	authed.POST("/evaluations/llm", s.automatedHandler(api.MethodLLM))
	authed.POST("/evaluations/rule-based", s.automatedHandler(api.MethodRuleBased))
	authed.GET("/evaluations/my", s.handleMyEvaluations)
	authed.GET("/evaluations/:id", s.handleEvaluation)
	authed.GET("/evaluations/:id/report/:format", s.handleReport)
	return e
}

// validationDetail is one entry of a 422 detail list.
type validationDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// handleError writes every failure as {"detail": ...}.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	var detail any = http.StatusText(http.StatusInternalServerError)

	var httpErr *echo.HTTPError
	var validationErr *form.ValidationError
	switch {
	case errors.As(err, &validationErr):
		code = http.StatusUnprocessableEntity
		details := make([]validationDetail, 0, len(validationErr.Fields))
		for _, fe := range validationErr.Fields {
			details = append(details, validationDetail{Loc: []string{"body", fe.Field}, Msg: fe.Message, Type: "value_error"})
		}
		detail = details
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if code == http.StatusBadRequest && httpErr.Internal != nil {
			// malformed request bodies
			code = http.StatusUnprocessableEntity
		}
		detail = fmt.Sprint(httpErr.Message)
	default:
		s.logger.Printf("fakeapi: %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, echo.Map{"detail": detail})
}

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: string(s.Status()), UptimeSeconds: s.uptimeSeconds()})
}

// Handler exposes the router, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Data returns the backing store.
func (s *Server) Data() *Data {
	return s.data
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("fakeapi: server is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("fakeapi: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("fakeapi: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.startTime = s.now()
	server := &http.Server{
		Handler:      s.echo,
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("fakeapi: serve error: %v", err)
		}
	}()
	s.logger.Printf("fakeapi: listening on %s", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns scheme + host:port for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return s.settings.URL()
	}
	return "http://" + addr
}

// APIURL is the base URL clients should be configured with.
func (s *Server) APIURL() string {
	return s.BaseURL() + "/api"
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(s.now().Sub(s.startTime).Seconds())
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
