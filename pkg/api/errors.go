package api

import (
	"errors"
	"fmt"
)

var (
	// ErrMaxInvocationsExceeded is returned by Task.Call when the task has
	// reached its invocation ceiling. The execution function is not run.
	ErrMaxInvocationsExceeded = errors.New("max invocations exceeded")

	// ErrStepBudgetExceeded is returned by the linear engine when a flow
	// would execute more steps than its budget allows.
	ErrStepBudgetExceeded = errors.New("step budget exceeded")

	// ErrSegmentNotFound is returned when a segment name has no binding in
	// the registry, either as the initial name or as a jump target.
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrValidationFailed is returned by a retry policy whose Validate hook
	// rejected the result of the final attempt.
	ErrValidationFailed = errors.New("validation failed")

	// ErrMissingParam is returned when a task declared with a parameter check
	// is called without one of its required parameters.
	ErrMissingParam = errors.New("missing required parameter")

	// ErrJumpInFanOut is returned when a fan-out sibling returns a jump.
	ErrJumpInFanOut = errors.New("jump instruction inside fan-out")

	// ErrFlowNotFound is returned by engines for unknown flow names.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrRunNotFound is returned by engines for unknown run IDs.
	ErrRunNotFound = errors.New("run not found")
)

// TaskExecutionError reports that a task failed while an engine was
// executing it. Err is the error returned by the task, unchanged.
type TaskExecutionError struct {
	// Task is the task (or segment) name.
	Task string
	// Step is the 1-based step number within the traversal.
	Step int
	Err  error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %q failed at step %d: %v", e.Task, e.Step, e.Err)
}

func (e *TaskExecutionError) Unwrap() error {
	return e.Err
}

// WrapTaskError wraps err in a TaskExecutionError unless it already is one,
// so nested engines do not stack wrappers.
func WrapTaskError(task string, step int, err error) error {
	if err == nil {
		return nil
	}
	var te *TaskExecutionError
	if errors.As(err, &te) {
		return err
	}
	return &TaskExecutionError{Task: task, Step: step, Err: err}
}
