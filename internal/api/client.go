// Package api is the single gateway to the evaluation backend. Every call
// carries the bearer token from the credential store, a 401 clears that store
// and hands control back to the login entry point, and every success body is
// decoded into an explicit result type.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Header names set on every request.
const (
	HeaderRequestID = "X-Request-ID"
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// Credentials is the persisted client state the gateway reads and clears.
type Credentials interface {
	Token() string
	SaveToken(token string) error
	SaveUser(user any) error
	ClearCredentials() error
}

// Logger receives one line per request.
type Logger interface {
	Printf(format string, args ...any)
}

// Client wraps the HTTP transport for the backend REST API.
type Client struct {
	baseURL        string
	http           *http.Client
	creds          Credentials
	logger         Logger
	userAgent      string
	onUnauthorized func()
	newRequestID   func() string
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = strings.TrimSpace(ua)
	}
}

// WithUnauthorizedHandler registers the hook run after a 401 has cleared
// the credentials. The hook decides whether a switch to login is needed.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// WithRequestIDs lets tests control the X-Request-ID value.
func WithRequestIDs(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newRequestID = fn
		}
	}
}

// New creates a client rooted at baseURL (for example http://host:8000/api).
func New(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:         &http.Client{},
		creds:        creds,
		logger:       nopLogger{},
		newRequestID: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// BaseURL returns the API root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetUnauthorizedHandler replaces the 401 hook after construction.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.onUnauthorized = fn
}

// Request configures a single call. The zero value is a GET.
type Request struct {
	Method  string
	Body    any
	Form    url.Values
	Headers map[string]string

	// SkipAuth sends no bearer token and reports a 401 as a plain *Error
	// instead of logging the user out (used by login itself).
	SkipAuth bool
}

// Do performs a call against endpoint (relative to the base URL) and decodes
// a successful JSON body into out. A nil out discards the body.
func (c *Client) Do(ctx context.Context, endpoint string, req *Request, out any) error {
	body, _, err := c.send(ctx, endpoint, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(ErrUnexpectedResponse, "%s: %v", endpoint, err)
	}
	return nil
}

// Raw performs a call and returns the undecoded body plus its content type.
func (c *Client) Raw(ctx context.Context, endpoint string, req *Request) ([]byte, string, error) {
	return c.send(ctx, endpoint, req)
}

func (c *Client) send(ctx context.Context, endpoint string, req *Request) ([]byte, string, error) {
	if req == nil {
		req = &Request{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var payload io.Reader
	contentType := contentTypeJSON
	switch {
	case req.Form != nil:
		payload = strings.NewReader(req.Form.Encode())
		contentType = contentTypeForm
	case req.Body != nil:
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", errors.Wrapf(err, "encode %s body", endpoint)
		}
		payload = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, payload)
	if err != nil {
		return nil, "", errors.Wrapf(err, "build %s %s", method, endpoint)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", contentTypeJSON)
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	requestID := c.newRequestID()
	httpReq.Header.Set(HeaderRequestID, requestID)
	if !req.SkipAuth && c.creds != nil {
		if token := c.creds.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Printf("api: %s %s [%s] transport error: %v", method, endpoint, requestID, err)
		return nil, "", &TransportError{Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Printf("api: %s %s [%s] read error: %v", method, endpoint, requestID, err)
		return nil, "", &TransportError{Err: err}
	}
	c.logger.Printf("api: %s %s [%s] -> %d", method, endpoint, requestID, resp.StatusCode)

	if resp.StatusCode == http.StatusUnauthorized && !req.SkipAuth {
		c.handleUnauthorized()
		return nil, "", ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &Error{Status: resp.StatusCode, Message: parseErrorBody(resp.StatusCode, body)}
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) handleUnauthorized() {
	if c.creds != nil {
		if err := c.creds.ClearCredentials(); err != nil {
			c.logger.Printf("api: clear credentials after 401: %v", err)
		}
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
