package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/petrijr/taskflow/pkg/api"
)

// Registry maps segment names to tasks and navigates between them by jump
// instructions. Segment graphs may contain cycles; a traversal has no step
// budget, so cyclic graphs must carry their own termination condition in
// State. ctx is checked between hops.
//
// A Registry is safe for concurrent use. Registrations made during a
// traversal are visible to the hops that follow them.
type Registry struct {
	mu       sync.RWMutex
	segments map[string]api.Task
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		segments: make(map[string]api.Task),
	}
}

// Register binds name to task, replacing any previous binding.
func (r *Registry) Register(name string, task api.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.segments[name] = task
}

// Get returns the task bound to name.
func (r *Registry) Get(name string) (api.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.segments[name]
	return task, ok
}

// Names returns the registered segment names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.segments))
	for name := range r.segments {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Execute runs the segment name against state and keeps following jump
// instructions, merging each result into the carried State, until a segment
// returns a plain delta. It returns the final State; on failure the State as
// of the last successful merge is returned alongside the error.
func (r *Registry) Execute(ctx context.Context, name string, state api.State) (api.State, error) {
	run := newRun(name, api.RunKindSegment, state)
	err := r.traverse(ctx, name, run, api.NoopObserver{})
	return run.State, err
}

// Segment returns a task that runs a registry traversal starting at name.
// Its delta is the traversal's final State.
func (r *Registry) Segment(name string) *api.FuncTask {
	return api.NewTask("segment:"+name, func(ctx context.Context, state api.State) (api.Result, error) {
		final, err := r.Execute(ctx, name, state)
		if err != nil {
			return api.Result{}, err
		}
		return api.Continue(final), nil
	})
}

func (r *Registry) traverse(ctx context.Context, name string, run *api.Run, obs api.Observer) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		task, ok := r.Get(name)
		if !ok {
			return fmt.Errorf("%w: %q", api.ErrSegmentNotFound, name)
		}

		res, err := step(ctx, run, obs, name, task)
		if err != nil {
			return err
		}
		if !res.IsJump() {
			return nil
		}
		name = res.Target
	}
}
