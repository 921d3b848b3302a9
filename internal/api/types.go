package api

import (
	"fmt"
	"strings"
)

// Evaluation methods accepted by the backend.
const (
	MethodManual    = "manual"
	MethodLLM       = "llm"
	MethodRuleBased = "rule-based"
)

// Report download formats.
const (
	FormatHTML = "html"
	FormatPDF  = "pdf"
)

// Student mirrors the backend's student record.
type Student struct {
	ID                  int       `json:"id"`
	FirstName           string    `json:"first_name"`
	LastName            string    `json:"last_name"`
	MatriculationNumber string    `json:"matriculation_number"`
	CreatedAt           Timestamp `json:"created_at"`
}

// FullName joins first and last name for display.
func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Validate rejects records missing the fields the client depends on.
func (s Student) Validate() error {
	if s.ID <= 0 {
		return fmt.Errorf("student id missing")
	}
	if strings.TrimSpace(s.MatriculationNumber) == "" {
		return fmt.Errorf("student %d has no matriculation number", s.ID)
	}
	return nil
}

// NewStudent is the body of POST /students/.
type NewStudent struct {
	FirstName           string `json:"first_name"`
	LastName            string `json:"last_name"`
	MatriculationNumber string `json:"matriculation_number"`
}

// ReportType is a named report category with its own rubric set.
type ReportType struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   Timestamp `json:"created_at"`
}

// Validate rejects records missing the fields the client depends on.
func (rt ReportType) Validate() error {
	if rt.ID <= 0 {
		return fmt.Errorf("report type id missing")
	}
	if strings.TrimSpace(rt.Name) == "" {
		return fmt.Errorf("report type %d has no name", rt.ID)
	}
	return nil
}

// Rubric is one scored section of a report type.
type Rubric struct {
	ID           int     `json:"id"`
	ReportTypeID int     `json:"report_type_id"`
	SectionName  string  `json:"section_name"`
	MaxPoints    float64 `json:"max_points"`
	Description  string  `json:"description,omitempty"`
	Order        int     `json:"order"`
}

// Validate rejects records missing the fields the client depends on.
func (r Rubric) Validate() error {
	if r.ID <= 0 {
		return fmt.Errorf("rubric id missing")
	}
	if strings.TrimSpace(r.SectionName) == "" {
		return fmt.Errorf("rubric %d has no section name", r.ID)
	}
	if r.MaxPoints < 0 {
		return fmt.Errorf("rubric %d has negative max points", r.ID)
	}
	return nil
}

// ScoredRubric is a rubric as returned inside an evaluation.
type ScoredRubric struct {
	Rubric
	Score    *float64 `json:"score"`
	Feedback *string  `json:"feedback"`
}

// ScoreValue returns the score or 0 when the backend sent none.
func (r ScoredRubric) ScoreValue() float64 {
	if r.Score == nil {
		return 0
	}
	return *r.Score
}

// FeedbackText returns the feedback or "" when absent.
func (r ScoredRubric) FeedbackText() string {
	if r.Feedback == nil {
		return ""
	}
	return *r.Feedback
}

// Evaluation is the finalized, server-computed result.
type Evaluation struct {
	ID               int            `json:"id"`
	Student          Student        `json:"student"`
	ReportType       ReportType     `json:"report_type"`
	ReportTitle      string         `json:"report_title"`
	OberseminarDate  *string        `json:"oberseminar_date"`
	OberseminarTime  *string        `json:"oberseminar_time"`
	TotalScore       float64        `json:"total_score"`
	MaxPossibleScore float64        `json:"max_possible_score"`
	EvaluationMethod string         `json:"evaluation_method"`
	CreatedAt        Timestamp      `json:"created_at"`
	Rubrics          []ScoredRubric `json:"rubrics"`
}

// Validate rejects records missing the fields the client depends on.
func (e Evaluation) Validate() error {
	if e.ID <= 0 {
		return fmt.Errorf("evaluation id missing")
	}
	if err := e.Student.Validate(); err != nil {
		return fmt.Errorf("evaluation %d: %w", e.ID, err)
	}
	if e.MaxPossibleScore < 0 {
		return fmt.Errorf("evaluation %d has negative max score", e.ID)
	}
	if strings.TrimSpace(e.EvaluationMethod) == "" {
		return fmt.Errorf("evaluation %d has no method", e.ID)
	}
	return nil
}

// ScoreInput is one entry of a manual evaluation.
type ScoreInput struct {
	RubricID int     `json:"rubric_id"`
	Score    float64 `json:"score"`
	Feedback *string `json:"feedback"`
}

// NewEvaluation is the body of POST /evaluations/.
type NewEvaluation struct {
	StudentID        int          `json:"student_id"`
	ReportTypeID     int          `json:"report_type_id"`
	ReportTitle      string       `json:"report_title"`
	OberseminarDate  *string      `json:"oberseminar_date"`
	OberseminarTime  *string      `json:"oberseminar_time"`
	EvaluationMethod string       `json:"evaluation_method"`
	Scores           []ScoreInput `json:"scores"`
}

// NewAutomatedEvaluation is the body of POST /evaluations/llm and
// POST /evaluations/rule-based.
type NewAutomatedEvaluation struct {
	StudentID     int    `json:"student_id"`
	ReportTypeID  int    `json:"report_type_id"`
	ReportTitle   string `json:"report_title"`
	ReportContent string `json:"report_content"`
}

// ReportTypeStatistics aggregates evaluations of one report type.
type ReportTypeStatistics struct {
	ReportTypeID      int     `json:"report_type_id"`
	ReportTypeName    string  `json:"report_type_name"`
	TotalEvaluations  int     `json:"total_evaluations"`
	AverageScore      float64 `json:"average_score"`
	AveragePercentage float64 `json:"average_percentage"`
	MaxPossibleScore  float64 `json:"max_possible_score"`
	MinScore          float64 `json:"min_score"`
	MaxScore          float64 `json:"max_score"`
}

// Validate rejects records missing the fields the client depends on.
func (s ReportTypeStatistics) Validate() error {
	if s.ReportTypeID <= 0 {
		return fmt.Errorf("statistics entry without report type id")
	}
	return nil
}

// User is the logged-in account.
type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt Timestamp `json:"created_at"`
}

// Validate rejects records missing the fields the client depends on.
func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("user has no username")
	}
	return nil
}

// Token is the login response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Validate rejects records missing the fields the client depends on.
func (t Token) Validate() error {
	if strings.TrimSpace(t.AccessToken) == "" {
		return fmt.Errorf("login response has no access token")
	}
	return nil
}
