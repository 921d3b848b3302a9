package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

type validatable interface {
	Validate() error
}

func validateOne[T validatable](endpoint string, item T) error {
	if err := item.Validate(); err != nil {
		return errors.Wrapf(ErrUnexpectedResponse, "%s: %v", endpoint, err)
	}
	return nil
}

func validateAll[T validatable](endpoint string, items []T) error {
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return errors.Wrapf(ErrUnexpectedResponse, "%s[%d]: %v", endpoint, i, err)
		}
	}
	return nil
}

func getList[T validatable](ctx context.Context, c *Client, endpoint string) ([]T, error) {
	var out []T
	if err := c.Do(ctx, endpoint, nil, &out); err != nil {
		return nil, err
	}
	if err := validateAll(endpoint, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReportTypes lists every report type.
func (c *Client) ReportTypes(ctx context.Context) ([]ReportType, error) {
	return getList[ReportType](ctx, c, "/report-types")
}

// Rubrics lists the rubric sections of a report type.
func (c *Client) Rubrics(ctx context.Context, reportTypeID int) ([]Rubric, error) {
	return getList[Rubric](ctx, c, fmt.Sprintf("/report-types/%d/rubrics", reportTypeID))
}

// Statistics returns aggregates for every report type.
func (c *Client) Statistics(ctx context.Context) ([]ReportTypeStatistics, error) {
	return getList[ReportTypeStatistics](ctx, c, "/report-types/statistics/all")
}

// CreateStudent creates a student, or returns the existing one with the same
// matriculation number.
func (c *Client) CreateStudent(ctx context.Context, in NewStudent) (Student, error) {
	const endpoint = "/students/"
	var out Student
	if err := c.Do(ctx, endpoint, &Request{Method: http.MethodPost, Body: in}, &out); err != nil {
		return Student{}, err
	}
	return out, validateOne(endpoint, out)
}

// Students lists students.
func (c *Client) Students(ctx context.Context) ([]Student, error) {
	return getList[Student](ctx, c, "/students/")
}

// FindStudentByMatriculation scans the student list for an exact match.
func (c *Client) FindStudentByMatriculation(ctx context.Context, matriculation string) (Student, error) {
	students, err := c.Students(ctx)
	if err != nil {
		return Student{}, err
	}
	matriculation = strings.TrimSpace(matriculation)
	for _, s := range students {
		if s.MatriculationNumber == matriculation {
			return s, nil
		}
	}
	return Student{}, ErrStudentNotFound
}

// StudentEvaluations lists evaluations for one student, newest first.
func (c *Client) StudentEvaluations(ctx context.Context, studentID int) ([]Evaluation, error) {
	return getList[Evaluation](ctx, c, fmt.Sprintf("/students/%d/evaluations", studentID))
}

// CreateEvaluation submits a manual evaluation.
func (c *Client) CreateEvaluation(ctx context.Context, in NewEvaluation) (Evaluation, error) {
	const endpoint = "/evaluations/"
	if in.EvaluationMethod == "" {
		in.EvaluationMethod = MethodManual
	}
	if in.Scores == nil {
		in.Scores = []ScoreInput{}
	}
	var out Evaluation
	if err := c.Do(ctx, endpoint, &Request{Method: http.MethodPost, Body: in}, &out); err != nil {
		return Evaluation{}, err
	}
	return out, validateOne(endpoint, out)
}

// AutomatedEndpoint maps an automated method to its endpoint.
func AutomatedEndpoint(method string) (string, error) {
	switch method {
	case MethodLLM:
		return "/evaluations/llm", nil
	case MethodRuleBased:
		return "/evaluations/rule-based", nil
	default:
		return "", ErrUnknownMethod
	}
}

// CreateAutomatedEvaluation submits report content for llm or rule-based
// scoring; the backend scores every rubric itself.
func (c *Client) CreateAutomatedEvaluation(ctx context.Context, method string, in NewAutomatedEvaluation) (Evaluation, error) {
	endpoint, err := AutomatedEndpoint(method)
	if err != nil {
		return Evaluation{}, err
	}
	var out Evaluation
	if err := c.Do(ctx, endpoint, &Request{Method: http.MethodPost, Body: in}, &out); err != nil {
		return Evaluation{}, err
	}
	return out, validateOne(endpoint, out)
}

// Evaluation fetches one evaluation by id.
func (c *Client) Evaluation(ctx context.Context, id int) (Evaluation, error) {
	endpoint := fmt.Sprintf("/evaluations/%d", id)
	var out Evaluation
	if err := c.Do(ctx, endpoint, nil, &out); err != nil {
		return Evaluation{}, err
	}
	return out, validateOne(endpoint, out)
}

// MyEvaluations lists evaluations created by the current user.
func (c *Client) MyEvaluations(ctx context.Context) ([]Evaluation, error) {
	return getList[Evaluation](ctx, c, "/evaluations/my")
}

// ReportURL returns the absolute download URL for a generated report.
func (c *Client) ReportURL(id int, format string) (string, error) {
	if format != FormatHTML && format != FormatPDF {
		return "", errors.Wrap(ErrUnsupportedFormat, format)
	}
	return fmt.Sprintf("%s/evaluations/%d/report/%s", c.baseURL, id, format), nil
}

// DownloadReport fetches a generated html or pdf report.
func (c *Client) DownloadReport(ctx context.Context, id int, format string) ([]byte, error) {
	if format != FormatHTML && format != FormatPDF {
		return nil, errors.Wrap(ErrUnsupportedFormat, format)
	}
	body, _, err := c.Raw(ctx, fmt.Sprintf("/evaluations/%d/report/%s", id, format), nil)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Login exchanges a username (or email) and password for a token, stores
// it, then caches the user info.
func (c *Client) Login(ctx context.Context, username, password string) (User, error) {
	const endpoint = "/auth/login"
	form := url.Values{}
	form.Set("username", strings.TrimSpace(username))
	form.Set("password", password)
	var token Token
	if err := c.Do(ctx, endpoint, &Request{Method: http.MethodPost, Form: form, SkipAuth: true}, &token); err != nil {
		return User{}, err
	}
	if err := validateOne(endpoint, token); err != nil {
		return User{}, err
	}
	if c.creds == nil {
		return User{}, errors.New("no credential store configured")
	}
	if err := c.creds.SaveToken(token.AccessToken); err != nil {
		return User{}, errors.Wrap(err, "store token")
	}
	return c.Me(ctx)
}

// Me fetches the current user and refreshes the cached copy.
func (c *Client) Me(ctx context.Context) (User, error) {
	const endpoint = "/auth/me"
	var user User
	if err := c.Do(ctx, endpoint, nil, &user); err != nil {
		return User{}, err
	}
	if err := validateOne(endpoint, user); err != nil {
		return User{}, err
	}
	if c.creds != nil {
		if err := c.creds.SaveUser(user); err != nil {
			c.logger.Printf("api: cache user info: %v", err)
		}
	}
	return user, nil
}

// Logout drops stored credentials. The backend keeps no session to end.
func (c *Client) Logout() error {
	if c.creds == nil {
		return nil
	}
	return c.creds.ClearCredentials()
}
