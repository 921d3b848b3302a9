// internal/workflow/draft.go
//
// The draft handed from step 1 to step 2. It carries everything step 2
// needs to submit and to render its header without refetching.

package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDraftNotFound is returned by a DraftStore holding no draft.
var ErrDraftNotFound = errors.New("workflow: no evaluation draft stored")

// DraftStore persists the draft between workflow steps.
type DraftStore interface {
	LoadDraft() (Draft, error)
	SaveDraft(Draft) error
	ClearDraft() error
}

// Draft is the step-one outcome. JSON keys match the payload stored by the
// web client so both can read the same session data.
type Draft struct {
	StudentID        int    `json:"studentId"`
	ReportTypeID     int    `json:"reportTypeId"`
	ReportTitle      string `json:"reportTitle"`
	OberseminarDate  string `json:"oberseminarDate,omitempty"`
	OberseminarTime  string `json:"oberseminarTime,omitempty"`
	StudentFirstName string `json:"studentFirstName"`
	StudentLastName  string `json:"studentLastName"`
	ReportTypeName   string `json:"reportTypeName"`
}

// Validate enforces the submit precondition: both ids must be set.
func (d Draft) Validate() error {
	if d.StudentID <= 0 {
		return fmt.Errorf("draft has no student id")
	}
	if d.ReportTypeID <= 0 {
		return fmt.Errorf("draft has no report type id")
	}
	return nil
}

// Header is the step-two summary line.
func (d Draft) Header() string {
	name := strings.TrimSpace(d.StudentFirstName + " " + d.StudentLastName)
	reportType := d.ReportTypeName
	if reportType == "" {
		reportType = "Report"
	}
	title := d.ReportTitle
	if title == "" {
		title = "(no title)"
	}
	return fmt.Sprintf("%s – %s: %s", name, reportType, title)
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// MemoryDrafts is a DraftStore kept in process memory.
type MemoryDrafts struct {
	draft *Draft
}

// LoadDraft implements DraftStore.
func (m *MemoryDrafts) LoadDraft() (Draft, error) {
	if m.draft == nil {
		return Draft{}, ErrDraftNotFound
	}
	return *m.draft, nil
}

// SaveDraft implements DraftStore.
func (m *MemoryDrafts) SaveDraft(d Draft) error {
	m.draft = &d
	return nil
}

// ClearDraft implements DraftStore.
func (m *MemoryDrafts) ClearDraft() error {
	m.draft = nil
	return nil
}
