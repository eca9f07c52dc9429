package api

import "time"

// Status represents the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	// StatusJumped marks a flow run that ended on a jump instruction no
	// registry could resolve. Run.PendingJump holds the target.
	StatusJumped Status = "JUMPED"
)

// RunKind tells which engine produced a run.
type RunKind string

const (
	RunKindFlow    RunKind = "flow"
	RunKindSegment RunKind = "segment"
)

// StepRecord is one entry of a run's history.
type StepRecord struct {
	Index    int
	Node     string
	Outcome  string
	Jump     string
	Duration time.Duration
	Err      string
}

// Run is the record of one traversal of a flow or of the segment registry.
type Run struct {
	ID   string
	Name string
	Kind RunKind

	Status Status

	// Input is the State the run was started with.
	Input State

	// State is the accumulated State. On failure it holds the State as of
	// the last successful merge; merges are never rolled back.
	State State

	// Steps counts executed nodes or segments.
	Steps int

	// PendingJump is the unresolved target of a flow that ended on a jump.
	PendingJump string

	History []StepRecord

	Err error

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the wall time of a finished run.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunListOptions controls how runs are listed.
// Zero values mean "no filter" for that field.
type RunListOptions struct {
	Name   string
	Kind   RunKind
	Status Status
}
