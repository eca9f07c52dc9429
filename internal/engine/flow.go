package engine

import (
	"context"
	"fmt"

	"github.com/petrijr/taskflow/pkg/api"
)

// Flow is a validated flow definition ready to run. A Flow holds no
// per-run state and may run concurrently.
type Flow struct {
	def      api.FlowDefinition
	budget   int
	registry *Registry
	observer api.Observer
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithRegistry lets the flow resolve jump instructions: a jump hands the
// rest of the run over to the registry and ends the flow's own traversal.
func WithRegistry(r *Registry) FlowOption {
	return func(f *Flow) { f.registry = r }
}

// WithObserver sets the observer notified of run and step events.
func WithObserver(o api.Observer) FlowOption {
	return func(f *Flow) {
		if o != nil {
			f.observer = o
		}
	}
}

// WithDefaultStepBudget sets the budget used when the definition declares
// none.
func WithDefaultStepBudget(n int) FlowOption {
	return func(f *Flow) {
		if f.def.StepBudget <= 0 && n > 0 {
			f.budget = n
		}
	}
}

// NewFlow validates def and compiles it into a Flow.
func NewFlow(def api.FlowDefinition, opts ...FlowOption) (*Flow, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	f := &Flow{
		def:      def,
		budget:   def.Budget(),
		observer: api.NoopObserver{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Name returns the flow name.
func (f *Flow) Name() string {
	return f.def.Name
}

// Budget returns the effective step budget.
func (f *Flow) Budget() int {
	return f.budget
}

// Run executes the flow from its start node against state.
//
// Each step runs the current node's task with the accumulated State, merges
// its delta and follows the edge matching the result's outcome, else the
// default edge, else stops. A jump result is handed to the registry when
// the flow has one; otherwise the run ends with StatusJumped and the target
// in PendingJump. Running more steps than the budget fails the run with
// api.ErrStepBudgetExceeded.
//
// The returned Run is never nil. On failure it holds the State as of the
// last successful merge.
func (f *Flow) Run(ctx context.Context, state api.State) (*api.Run, error) {
	return f.run(ctx, state, f.observer)
}

func (f *Flow) run(ctx context.Context, state api.State, obs api.Observer) (*api.Run, error) {
	run := newRun(f.def.Name, api.RunKindFlow, state)
	obs.OnRunStart(ctx, run)
	err := f.traverse(ctx, run, obs)
	return finish(ctx, run, obs, err)
}

func (f *Flow) traverse(ctx context.Context, run *api.Run, obs api.Observer) error {
	current := f.def.Start
	for {
		if run.Steps >= f.budget {
			return fmt.Errorf("flow %q: %w (budget %d, next node %q)", f.def.Name, api.ErrStepBudgetExceeded, f.budget, current)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		node := f.def.Nodes[current]
		res, err := step(ctx, run, obs, current, node.Task)
		if err != nil {
			return err
		}

		if res.IsJump() {
			if f.registry != nil {
				return f.registry.traverse(ctx, res.Target, run, obs)
			}
			run.Status = api.StatusJumped
			run.PendingJump = res.Target
			return nil
		}

		next, ok := node.Next(res.Outcome)
		if !ok {
			return nil
		}
		current = next
	}
}

// AsTask exposes the flow as a task. Its delta is the flow's final State.
// A flow that ended on an unresolved jump returns that jump, carrying the
// final State, so a flow registered as a segment can navigate the registry.
func (f *Flow) AsTask() *api.FuncTask {
	return api.NewTask(f.def.Name, func(ctx context.Context, state api.State) (api.Result, error) {
		run, err := f.run(ctx, state, api.NoopObserver{})
		if err != nil {
			return api.Result{}, err
		}
		if run.Status == api.StatusJumped {
			return api.JumpWith(run.PendingJump, run.State), nil
		}
		return api.Continue(run.State), nil
	}, api.WithDescription(fmt.Sprintf("flow %q", f.def.Name)))
}
