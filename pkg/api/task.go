package api

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Task is the atomic composable unit of work.
//
// Every task kind (plain function wrappers, combinators, retrying and
// rate-limited wrappers, flows exposed as tasks) implements this interface,
// and combinators only ever talk to it.
type Task interface {
	// Meta returns the task's immutable metadata.
	Meta() Metadata

	// Call runs the task against state and returns its result. Call never
	// mutates state.
	Call(ctx context.Context, state State) (Result, error)

	// Stats returns a snapshot of the task's call statistics.
	Stats() Stats
}

// TaskFunc is the execution function behind a FuncTask.
type TaskFunc func(ctx context.Context, state State) (Result, error)

// DeltaFunc is a convenience execution function for tasks that never jump.
type DeltaFunc func(ctx context.Context, state State) (State, error)

// Param declares one named input a task reads from the State.
type Param struct {
	Name        string
	Type        string
	Description string
	Optional    bool
}

// Metadata describes a task.
type Metadata struct {
	Name        string
	Description string
	Params      []Param
	// Credentials lists the external credentials the task needs. The engine
	// does not resolve them; collaborators do.
	Credentials []string
}

// Validate checks that every non-optional parameter is present in state.
// It is a structural presence check only; values are not type-checked.
func (m Metadata) Validate(state State) error {
	for _, p := range m.Params {
		if p.Optional {
			continue
		}
		if _, ok := state[p.Name]; !ok {
			return fmt.Errorf("task %q: %w: %s", m.Name, ErrMissingParam, p.Name)
		}
	}
	return nil
}

// Stats is a snapshot of a task's call statistics.
type Stats struct {
	Calls     int64
	Errors    int64
	TotalTime time.Duration
}

// AvgTime returns the mean duration per call, or zero if the task was never
// called.
func (s Stats) AvgTime() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return time.Duration(int64(s.TotalTime) / s.Calls)
}

// TaskOption configures a FuncTask at construction time.
type TaskOption func(*FuncTask)

// WithMetadata replaces the task's metadata wholesale. Wrappers use it to
// present the wrapped task's identity.
func WithMetadata(m Metadata) TaskOption {
	return func(t *FuncTask) { t.meta = m }
}

// WithDescription sets the human description.
func WithDescription(desc string) TaskOption {
	return func(t *FuncTask) { t.meta.Description = desc }
}

// WithParam appends a parameter declaration.
func WithParam(p Param) TaskOption {
	return func(t *FuncTask) { t.meta.Params = append(t.meta.Params, p) }
}

// WithCredentials declares required external credentials.
func WithCredentials(names ...string) TaskOption {
	return func(t *FuncTask) { t.meta.Credentials = append(t.meta.Credentials, names...) }
}

// WithMaxInvocations caps the number of times the task may be called.
// n <= 0 means unlimited.
func WithMaxInvocations(n int64) TaskOption {
	return func(t *FuncTask) { t.maxCalls = n }
}

// WithParamCheck makes Call validate declared parameters against the input
// State before running. A failed check counts as a failed call.
func WithParamCheck() TaskOption {
	return func(t *FuncTask) { t.checkParams = true }
}

// FuncTask wraps a TaskFunc with metadata and statistics. It is safe for
// concurrent use; a single FuncTask may appear in several fan-out siblings.
type FuncTask struct {
	meta        Metadata
	fn          TaskFunc
	maxCalls    int64
	checkParams bool

	calls     atomic.Int64
	errors    atomic.Int64
	totalTime atomic.Int64 // nanoseconds
}

var _ Task = (*FuncTask)(nil)

// NewTask creates a task named name backed by fn. fn may be nil, in which
// case it must be supplied once with Handle before the task is called.
func NewTask(name string, fn TaskFunc, opts ...TaskOption) *FuncTask {
	t := &FuncTask{
		meta: Metadata{Name: name},
		fn:   fn,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewDeltaTask creates a task from a function that returns a delta.
func NewDeltaTask(name string, fn DeltaFunc, opts ...TaskOption) *FuncTask {
	return NewTask(name, func(ctx context.Context, state State) (Result, error) {
		delta, err := fn(ctx, state)
		if err != nil {
			return Result{}, err
		}
		return Continue(delta), nil
	}, opts...)
}

// Handle sets the execution function of a task created without one.
// It panics if the function is already set.
func (t *FuncTask) Handle(fn TaskFunc) *FuncTask {
	if t.fn != nil {
		panic(fmt.Sprintf("taskflow: task %q already has an execution function", t.meta.Name))
	}
	if fn == nil {
		panic(fmt.Sprintf("taskflow: task %q given nil execution function", t.meta.Name))
	}
	t.fn = fn
	return t
}

// Meta implements Task.
func (t *FuncTask) Meta() Metadata {
	return t.meta
}

// Name is shorthand for Meta().Name.
func (t *FuncTask) Name() string {
	return t.meta.Name
}

// Stats implements Task.
func (t *FuncTask) Stats() Stats {
	return Stats{
		Calls:     t.calls.Load(),
		Errors:    t.errors.Load(),
		TotalTime: time.Duration(t.totalTime.Load()),
	}
}

// Call implements Task.
func (t *FuncTask) Call(ctx context.Context, state State) (Result, error) {
	if t.fn == nil {
		return Result{}, fmt.Errorf("task %q has no execution function", t.meta.Name)
	}
	if err := t.reserve(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	res, err := t.run(ctx, state)
	t.totalTime.Add(int64(time.Since(start)))

	if err != nil {
		t.errors.Add(1)
		return Result{}, err
	}
	return res, nil
}

func (t *FuncTask) run(ctx context.Context, state State) (Result, error) {
	if t.checkParams {
		if err := t.meta.Validate(state); err != nil {
			return Result{}, err
		}
	}
	return t.fn(ctx, state)
}

// reserve counts the call, refusing it when the ceiling is reached.
func (t *FuncTask) reserve() error {
	for {
		n := t.calls.Load()
		if t.maxCalls > 0 && n >= t.maxCalls {
			return fmt.Errorf("task %q: %w (limit %d)", t.meta.Name, ErrMaxInvocationsExceeded, t.maxCalls)
		}
		if t.calls.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}
