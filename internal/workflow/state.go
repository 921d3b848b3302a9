// internal/workflow/state.go
//
// States of the two-step evaluation workflow. A failure never changes the
// state; it is reported through Workflow.Err instead.

package workflow

// State is a stage of the evaluation workflow.
type State int

const (
	StateCollectingIdentity State = iota
	StateAwaitingMethodSelection
	StateSubmitted
)

// String returns a human-readable name for the state
func (s State) String() string {
	switch s {
	case StateCollectingIdentity:
		return "Collecting Identity"
	case StateAwaitingMethodSelection:
		return "Awaiting Method Selection"
	case StateSubmitted:
		return "Submitted"
	default:
		return "Unknown"
	}
}

// FriendlyName returns the short label shown in the status bar
func (s State) FriendlyName() string {
	switch s {
	case StateCollectingIdentity:
		return "Step 1 · Student & Report"
	case StateAwaitingMethodSelection:
		return "Step 2 · Evaluation"
	case StateSubmitted:
		return "Results"
	default:
		return s.String()
	}
}

// Step returns the 1-based step number, with results counted as step 3.
func (s State) Step() int {
	return int(s) + 1
}
