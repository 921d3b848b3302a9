package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrUnauthorized is returned after a 401: credentials are already
	// cleared and the unauthorized handler has run.
	ErrUnauthorized = errors.New("Unauthorized")

	// ErrUnexpectedResponse marks a success body whose shape does not match
	// the endpoint's result type.
	ErrUnexpectedResponse = errors.New("unexpected response from server")

	// ErrUnsupportedFormat is returned for report formats other than html/pdf.
	ErrUnsupportedFormat = errors.New("unsupported report format")

	// ErrUnknownMethod is returned for evaluation methods the backend does
	// not expose.
	ErrUnknownMethod = errors.New("Unknown evaluation method")

	// ErrStudentNotFound is returned by matriculation lookups with no match.
	ErrStudentNotFound = errors.New("Student not found")
)

// Error is a backend-reported failure (non-2xx other than 401).
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// TransportError wraps failures that never produced an HTTP response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "Network error: unable to reach the evaluation service"
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusCode extracts the HTTP status from err, or 0 when it carries none.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	if errors.Is(err, ErrUnauthorized) {
		return 401
	}
	return 0
}

// errorPayload is the FastAPI error envelope. detail is either a string or a
// list of validation entries carrying msg.
type errorPayload struct {
	Detail json.RawMessage `json:"detail"`
}

type detailEntry struct {
	Msg string `json:"msg"`
}

// parseErrorBody turns an error response body into a message, falling back
// to a generic status message.
func parseErrorBody(status int, body []byte) string {
	fallback := fmt.Sprintf("HTTP error! status: %d", status)
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return fallback
	}
	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return fallback
		}
		return text
	}
	var entries []detailEntry
	if err := json.Unmarshal(payload.Detail, &entries); err == nil {
		msgs := make([]string, 0, len(entries))
		for _, entry := range entries {
			if msg := strings.TrimSpace(entry.Msg); msg != "" {
				msgs = append(msgs, msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, ", ")
		}
	}
	return fallback
}
