// Package form holds the field-level rules for the evaluation identity form.
// Validation is pure: callers decide what to do with the result (enable the
// continue action, show the first message).
package form

import (
	"strings"
)

// MatriculationLength is the exact number of digits in a matriculation number.
const MatriculationLength = 7

// MissingFieldsMessage is shown when any required field is empty.
const MissingFieldsMessage = "Please fill in all required fields"

// Identity is the step-one form: student identity plus report metadata.
type Identity struct {
	FirstName           string `json:"first_name" label:"First name" validate:"required"`
	LastName            string `json:"last_name" label:"Last name" validate:"required"`
	MatriculationNumber string `json:"matriculation_number" label:"Matriculation number" validate:"required,len=7,digits"`
	ReportCategory      string `json:"report_category" label:"Report category" validate:"required"`
	ReportTypeID        int    `json:"report_type_id" label:"Report type" validate:"required"`
	ReportTitle         string `json:"report_title" label:"Report title" validate:"required"`

	// Optional oberseminar slot, passed through untouched.
	OberseminarDate string `json:"oberseminar_date,omitempty"`
	OberseminarTime string `json:"oberseminar_time,omitempty"`

	// Display-only name of the selected report type.
	ReportTypeName string `json:"-"`
}

// Normalized returns a copy with surrounding whitespace removed from every
// text field.
func (id Identity) Normalized() Identity {
	id.FirstName = strings.TrimSpace(id.FirstName)
	id.LastName = strings.TrimSpace(id.LastName)
	id.MatriculationNumber = strings.TrimSpace(id.MatriculationNumber)
	id.ReportCategory = strings.TrimSpace(id.ReportCategory)
	id.ReportTitle = strings.TrimSpace(id.ReportTitle)
	id.OberseminarDate = strings.TrimSpace(id.OberseminarDate)
	id.OberseminarTime = strings.TrimSpace(id.OberseminarTime)
	id.ReportTypeName = strings.TrimSpace(id.ReportTypeName)
	if id.ReportTypeID < 0 {
		id.ReportTypeID = 0
	}
	return id
}

// FieldError names one failing field, the rule it broke and its
// user-facing message.
type FieldError struct {
	Field   string
	Tag     string
	Message string
}

// Result collects every failing rule, in form order.
type Result struct {
	Errors []FieldError
}

// Valid reports whether every rule passed.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// First returns the first failing message, or "" when valid.
func (r Result) First() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// Summary is the single message for the form: MissingFieldsMessage when a
// required field is empty, otherwise the first failing message.
func (r Result) Summary() string {
	return summarize(r.Errors)
}

func summarize(errs []FieldError) string {
	for _, fe := range errs {
		if fe.Tag == requiredTag {
			return MissingFieldsMessage
		}
	}
	if len(errs) == 0 {
		return ""
	}
	return errs[0].Message
}

// Field returns the message for a given field, if it failed.
func (r Result) Field(name string) (string, bool) {
	for _, fe := range r.Errors {
		if fe.Field == name {
			return fe.Message, true
		}
	}
	return "", false
}

// Err converts a failing result into a *ValidationError.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &ValidationError{Fields: r.Errors}
}

// ValidationError is returned when a form is submitted with failing fields.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	return summarize(e.Fields)
}

// Validate checks every required rule independently.
func Validate(id Identity) Result {
	return sharedValidator().Struct(id.Normalized())
}

// CanContinue reports whether the continue action should be enabled.
func CanContinue(id Identity) bool {
	return Validate(id).Valid()
}

// SanitizeMatriculation keeps ASCII digits only and truncates to
// MatriculationLength. Typed and pasted input both go through it.
func SanitizeMatriculation(raw string) string {
	var b strings.Builder
	for i := 0; i < len(raw) && b.Len() < MatriculationLength; i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ValidMatriculation reports whether value is exactly seven ASCII digits.
func ValidMatriculation(value string) bool {
	return len(value) == MatriculationLength && SanitizeMatriculation(value) == value
}
