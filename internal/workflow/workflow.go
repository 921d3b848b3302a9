// internal/workflow/workflow.go
//
// The evaluation workflow: identity collection, method selection and the
// submitted result. Each operation either advances the state or leaves it
// untouched and records the failure for Err.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kingrea/report-evaluator/internal/api"
	"github.com/kingrea/report-evaluator/internal/form"
)

var (
	// ErrNoDraft is returned when step 2 is entered without a usable draft.
	ErrNoDraft = errors.New("workflow: no evaluation in progress")
	// ErrRubricsNotLoaded is returned when submitting before the rubric
	// list for the draft's report type has arrived.
	ErrRubricsNotLoaded = errors.New("workflow: rubrics not loaded")
	// ErrInvalidTransition is returned for an operation the current state
	// does not allow.
	ErrInvalidTransition = errors.New("workflow: invalid transition")
)

// Gateway is the subset of the API client the workflow drives.
type Gateway interface {
	CreateStudent(ctx context.Context, in api.NewStudent) (api.Student, error)
	Rubrics(ctx context.Context, reportTypeID int) ([]api.Rubric, error)
	CreateEvaluation(ctx context.Context, in api.NewEvaluation) (api.Evaluation, error)
	CreateAutomatedEvaluation(ctx context.Context, method string, in api.NewAutomatedEvaluation) (api.Evaluation, error)
}

// Logger receives workflow transitions and failures.
type Logger interface {
	Printf(format string, args ...any)
}

// Workflow drives one evaluation at a time. Fields are guarded by mu so
// views may read while an operation waits on the network.
type Workflow struct {
	gateway Gateway
	drafts  DraftStore
	logger  Logger

	mu            sync.Mutex
	state         State
	draft         Draft
	hasDraft      bool
	rubrics       []api.Rubric
	rubricsLoaded bool
	evaluation    api.Evaluation
	err           error
}

// Option customizes a Workflow.
type Option func(*Workflow)

// WithLogger sets the transition logger.
func WithLogger(l Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a workflow in StateCollectingIdentity.
func New(gateway Gateway, drafts DraftStore, opts ...Option) *Workflow {
	if drafts == nil {
		drafts = &MemoryDrafts{}
	}
	w := &Workflow{
		gateway: gateway,
		drafts:  drafts,
		logger:  nopLogger{},
		state:   StateCollectingIdentity,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Err returns the last failure, cleared by the next successful operation.
func (w *Workflow) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Draft returns the active draft, if any.
func (w *Workflow) Draft() (Draft, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft, w.hasDraft
}

// Rubrics returns a copy of the rubric list loaded for the step.
func (w *Workflow) Rubrics() []api.Rubric {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]api.Rubric(nil), w.rubrics...)
}

// RubricsLoaded reports whether the rubric list has arrived.
func (w *Workflow) RubricsLoaded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rubricsLoaded
}

// Evaluation returns the submitted evaluation once in StateSubmitted.
func (w *Workflow) Evaluation() (api.Evaluation, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.evaluation, w.state == StateSubmitted
}

// EvaluationID returns the id of the submitted evaluation, or 0.
func (w *Workflow) EvaluationID() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateSubmitted {
		return 0
	}
	return w.evaluation.ID
}

// Continue validates step 1, creates (or looks up) the student and stores
// the draft. Validation failures never reach the network.
func (w *Workflow) Continue(ctx context.Context, identity form.Identity) error {
	if state := w.State(); state != StateCollectingIdentity {
		return w.fail(fmt.Errorf("%w: continue from %s", ErrInvalidTransition, state))
	}
	identity = identity.Normalized()
	if err := form.Validate(identity).Err(); err != nil {
		return w.fail(err)
	}

	student, err := w.gateway.CreateStudent(ctx, api.NewStudent{
		FirstName:           identity.FirstName,
		LastName:            identity.LastName,
		MatriculationNumber: identity.MatriculationNumber,
	})
	if err != nil {
		return w.fail(fmt.Errorf("Failed to create student: %w", err))
	}

	draft := Draft{
		StudentID:        student.ID,
		ReportTypeID:     identity.ReportTypeID,
		ReportTitle:      identity.ReportTitle,
		OberseminarDate:  identity.OberseminarDate,
		OberseminarTime:  identity.OberseminarTime,
		StudentFirstName: identity.FirstName,
		StudentLastName:  identity.LastName,
		ReportTypeName:   identity.ReportTypeName,
	}
	if err := w.drafts.SaveDraft(draft); err != nil {
		return w.fail(fmt.Errorf("save draft: %w", err))
	}

	w.mu.Lock()
	w.draft = draft
	w.hasDraft = true
	w.rubrics = nil
	w.rubricsLoaded = false
	w.state = StateAwaitingMethodSelection
	w.err = nil
	w.mu.Unlock()
	w.logger.Printf("workflow: student %d (%s) ready for evaluation", student.ID, student.MatriculationNumber)
	return nil
}

// Resume enters step 2 from the stored draft and loads its rubrics. A
// missing or unusable draft sends the workflow back to step 1.
func (w *Workflow) Resume(ctx context.Context) error {
	draft, err := w.drafts.LoadDraft()
	if err == nil {
		err = draft.Validate()
	}
	if err != nil {
		if !errors.Is(err, ErrDraftNotFound) {
			w.logger.Printf("workflow: discarding unusable draft: %v", err)
			if clearErr := w.drafts.ClearDraft(); clearErr != nil {
				w.logger.Printf("workflow: clear draft: %v", clearErr)
			}
		}
		w.reset()
		return w.fail(ErrNoDraft)
	}

	w.mu.Lock()
	w.draft = draft
	w.hasDraft = true
	w.rubrics = nil
	w.rubricsLoaded = false
	w.state = StateAwaitingMethodSelection
	w.err = nil
	w.mu.Unlock()
	return w.LoadRubrics(ctx)
}

// LoadRubrics fetches the rubric list for the draft's report type.
func (w *Workflow) LoadRubrics(ctx context.Context) error {
	w.mu.Lock()
	state, draft, ok := w.state, w.draft, w.hasDraft
	w.mu.Unlock()
	if state != StateAwaitingMethodSelection || !ok {
		return w.fail(ErrNoDraft)
	}

	rubrics, err := w.gateway.Rubrics(ctx, draft.ReportTypeID)
	if err != nil {
		return w.fail(fmt.Errorf("Failed to load rubrics: %w", err))
	}

	w.mu.Lock()
	w.rubrics = rubrics
	w.rubricsLoaded = true
	w.err = nil
	w.mu.Unlock()
	w.logger.Printf("workflow: loaded %d rubrics for report type %d", len(rubrics), draft.ReportTypeID)
	return nil
}

// Submit sends the evaluation. Manual submissions carry one score per
// loaded rubric; automated ones carry the report content instead.
func (w *Workflow) Submit(ctx context.Context, sub Submission) (api.Evaluation, error) {
	w.mu.Lock()
	state, draft, ok := w.state, w.draft, w.hasDraft
	rubrics, loaded := append([]api.Rubric(nil), w.rubrics...), w.rubricsLoaded
	w.mu.Unlock()

	if state != StateAwaitingMethodSelection {
		return api.Evaluation{}, w.fail(fmt.Errorf("%w: submit from %s", ErrInvalidTransition, state))
	}
	if !ok || draft.Validate() != nil {
		return api.Evaluation{}, w.fail(ErrNoDraft)
	}

	method, err := ParseMethod(string(sub.Method))
	if err != nil {
		return api.Evaluation{}, w.fail(err)
	}
	if method.Automated() && strings.TrimSpace(sub.Content) == "" {
		return api.Evaluation{}, w.fail(&ContentError{Method: method})
	}
	if !loaded {
		return api.Evaluation{}, w.fail(ErrRubricsNotLoaded)
	}

	var evaluation api.Evaluation
	if method == MethodManual {
		evaluation, err = w.gateway.CreateEvaluation(ctx, api.NewEvaluation{
			StudentID:        draft.StudentID,
			ReportTypeID:     draft.ReportTypeID,
			ReportTitle:      draft.ReportTitle,
			OberseminarDate:  optional(draft.OberseminarDate),
			OberseminarTime:  optional(draft.OberseminarTime),
			EvaluationMethod: string(MethodManual),
			Scores:           BuildScores(rubrics, sub.Scores),
		})
	} else {
		evaluation, err = w.gateway.CreateAutomatedEvaluation(ctx, string(method), api.NewAutomatedEvaluation{
			StudentID:     draft.StudentID,
			ReportTypeID:  draft.ReportTypeID,
			ReportTitle:   draft.ReportTitle,
			ReportContent: sub.Content,
		})
	}
	if err != nil {
		return api.Evaluation{}, w.fail(fmt.Errorf("Failed to submit evaluation: %w", err))
	}

	if err := w.drafts.ClearDraft(); err != nil {
		w.logger.Printf("workflow: clear draft after submit: %v", err)
	}
	w.mu.Lock()
	w.evaluation = evaluation
	w.hasDraft = false
	w.state = StateSubmitted
	w.err = nil
	w.mu.Unlock()
	w.logger.Printf("workflow: evaluation %d submitted (%s, %.1f/%.1f)", evaluation.ID, method, evaluation.TotalScore, evaluation.MaxPossibleScore)
	return evaluation, nil
}

// NewEvaluation clears the draft and returns to step 1 from any state.
func (w *Workflow) NewEvaluation() error {
	err := w.drafts.ClearDraft()
	w.reset()
	if err != nil {
		return w.fail(fmt.Errorf("clear draft: %w", err))
	}
	return nil
}

func (w *Workflow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateCollectingIdentity
	w.draft = Draft{}
	w.hasDraft = false
	w.rubrics = nil
	w.rubricsLoaded = false
	w.evaluation = api.Evaluation{}
	w.err = nil
}

func (w *Workflow) fail(err error) error {
	w.mu.Lock()
	w.err = err
	state := w.state
	w.mu.Unlock()
	w.logger.Printf("workflow: %s: %v", state, err)
	return err
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
