package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/petrijr/taskflow/internal/persistence"
	"github.com/petrijr/taskflow/pkg/api"
)

// fakeObserver records all calls from the engine so we can assert on them.
type fakeObserver struct {
	mu sync.Mutex

	runStarts    []runEvent
	runCompletes []runEvent
	runFails     []runEvent

	stepStarts    []stepEvent
	stepCompletes []stepEvent
}

type runEvent struct {
	Name   string
	RunID  string
	Status api.Status
	Err    error
}

type stepEvent struct {
	Name     string
	RunID    string
	Node     string
	Step     int
	Err      error
	Duration time.Duration
}

func (o *fakeObserver) OnRunStart(ctx context.Context, run *api.Run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runStarts = append(o.runStarts, runEvent{
		Name:   run.Name,
		RunID:  run.ID,
		Status: run.Status,
	})
}

func (o *fakeObserver) OnRunCompleted(ctx context.Context, run *api.Run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runCompletes = append(o.runCompletes, runEvent{
		Name:   run.Name,
		RunID:  run.ID,
		Status: run.Status,
	})
}

func (o *fakeObserver) OnRunFailed(ctx context.Context, run *api.Run, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runFails = append(o.runFails, runEvent{
		Name:   run.Name,
		RunID:  run.ID,
		Status: run.Status,
		Err:    err,
	})
}

func (o *fakeObserver) OnStepStart(ctx context.Context, run *api.Run, node string, step int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stepStarts = append(o.stepStarts, stepEvent{
		Name:  run.Name,
		RunID: run.ID,
		Node:  node,
		Step:  step,
	})
}

func (o *fakeObserver) OnStepCompleted(ctx context.Context, run *api.Run, node string, step int, err error, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stepCompletes = append(o.stepCompletes, stepEvent{
		Name:     run.Name,
		RunID:    run.ID,
		Node:     node,
		Step:     step,
		Err:      err,
		Duration: d,
	})
}

// --- Tests ---

func newObservedEngine(obs api.Observer) api.Engine {
	return NewEngineWithConfig(Config{
		Store:    persistence.NewInMemoryStore(),
		Observer: obs,
	})
}

func TestObserverHooksOnSuccessfulFlow(t *testing.T) {
	obs := &fakeObserver{}
	eng := newObservedEngine(obs)

	def := linearDef("observer-success", []string{"step-1", "step-2"}, []api.Task{
		api.NewDeltaTask("step-1", func(ctx context.Context, s api.State) (api.State, error) {
			return api.State{"v": s.Int("v") + 1}, nil
		}),
		api.NewDeltaTask("step-2", func(ctx context.Context, s api.State) (api.State, error) {
			return api.State{"v": s.Int("v") * 2}, nil
		}),
	})

	if err := eng.RegisterFlow(def); err != nil {
		t.Fatalf("RegisterFlow: %v", err)
	}

	ctx := context.Background()
	run, err := eng.Run(ctx, def.Name, api.State{"v": 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if run.Status != api.StatusCompleted {
		t.Fatalf("expected StatusCompleted, got %v", run.Status)
	}
	if out := run.State.Int("v"); out != 4 {
		t.Fatalf("expected v=4, got %d", out)
	}

	// Assertions on observer calls.
	obs.mu.Lock()
	defer obs.mu.Unlock()

	if len(obs.runStarts) != 1 {
		t.Fatalf("expected 1 run start, got %d", len(obs.runStarts))
	}
	if len(obs.runCompletes) != 1 {
		t.Fatalf("expected 1 run complete, got %d", len(obs.runCompletes))
	}
	if len(obs.runFails) != 0 {
		t.Fatalf("expected 0 run fails, got %d", len(obs.runFails))
	}
	if obs.runStarts[0].Status != api.StatusRunning || obs.runCompletes[0].Status != api.StatusCompleted {
		t.Fatalf("unexpected statuses: start=%q complete=%q", obs.runStarts[0].Status, obs.runCompletes[0].Status)
	}

	if len(obs.stepStarts) != 2 {
		t.Fatalf("expected 2 step starts, got %d", len(obs.stepStarts))
	}
	if len(obs.stepCompletes) != 2 {
		t.Fatalf("expected 2 step completes, got %d", len(obs.stepCompletes))
	}

	// Check ordering and names.
	for i, want := range []string{"step-1", "step-2"} {
		if obs.stepStarts[i].Node != want || obs.stepStarts[i].Step != i+1 {
			t.Fatalf("stepStart[%d] = (%s,%d), want (%s,%d)",
				i, obs.stepStarts[i].Node, obs.stepStarts[i].Step, want, i+1)
		}
		if obs.stepCompletes[i].Node != want || obs.stepCompletes[i].Step != i+1 {
			t.Fatalf("stepCompleted[%d] = (%s,%d), want (%s,%d)",
				i, obs.stepCompletes[i].Node, obs.stepCompletes[i].Step, want, i+1)
		}
		if obs.stepCompletes[i].Err != nil {
			t.Fatalf("expected stepCompleted[%d] error nil, got %v", i, obs.stepCompletes[i].Err)
		}
		// Durations should be non-negative and typically > 0; we only check non-negative.
		if obs.stepCompletes[i].Duration < 0 {
			t.Fatalf("stepCompletes[%d].Duration is negative: %s", i, obs.stepCompletes[i].Duration)
		}
	}

	// Run IDs should match.
	start := obs.runStarts[0]
	complete := obs.runCompletes[0]
	if start.RunID != run.ID || complete.RunID != run.ID {
		t.Fatalf("observer run IDs mismatch: start=%s complete=%s run=%s",
			start.RunID, complete.RunID, run.ID)
	}
}

func TestObserverHooksOnFailedFlow(t *testing.T) {
	obs := &fakeObserver{}
	eng := newObservedEngine(obs)

	expectedErr := errors.New("boom")

	def := linearDef("observer-fail", []string{"ok-step", "failing-step"}, []api.Task{
		setTask("ok-step", nil),
		api.NewDeltaTask("failing-step", func(ctx context.Context, s api.State) (api.State, error) {
			return nil, expectedErr
		}),
	})

	if err := eng.RegisterFlow(def); err != nil {
		t.Fatalf("RegisterFlow: %v", err)
	}

	ctx := context.Background()
	run, err := eng.Run(ctx, def.Name, nil)
	if err == nil {
		t.Fatalf("expected Run to fail, got nil error")
	}
	if run.Status != api.StatusFailed {
		t.Fatalf("expected StatusFailed, got %v", run.Status)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()

	if len(obs.runStarts) != 1 {
		t.Fatalf("expected 1 run start, got %d", len(obs.runStarts))
	}
	if len(obs.runCompletes) != 0 {
		t.Fatalf("expected 0 run completes, got %d", len(obs.runCompletes))
	}
	if len(obs.runFails) != 1 {
		t.Fatalf("expected 1 run fail, got %d", len(obs.runFails))
	}

	failEv := obs.runFails[0]
	if failEv.RunID != run.ID {
		t.Fatalf("runFails run ID = %s, want %s", failEv.RunID, run.ID)
	}
	if !errors.Is(failEv.Err, expectedErr) {
		t.Fatalf("expected failure event to carry %v, got %v", expectedErr, failEv.Err)
	}

	// Both steps started and completed; the second with the raw task error.
	if len(obs.stepStarts) != 2 {
		t.Fatalf("expected 2 step starts, got %d", len(obs.stepStarts))
	}
	if len(obs.stepCompletes) != 2 {
		t.Fatalf("expected 2 step completes, got %d", len(obs.stepCompletes))
	}

	if obs.stepCompletes[1].Node != "failing-step" {
		t.Fatalf("second stepCompleted.Node = %s, want failing-step", obs.stepCompletes[1].Node)
	}
	if obs.stepCompletes[1].Err != expectedErr {
		t.Fatalf("expected raw error for failing-step completion, got %v", obs.stepCompletes[1].Err)
	}
}

func TestObserverSeesSegmentHops(t *testing.T) {
	obs := &fakeObserver{}
	eng := newObservedEngine(obs)

	eng.RegisterSegment("a", api.JumpTo("b"))
	eng.RegisterSegment("b", api.JumpTo("c"))
	eng.RegisterSegment("c", setTask("c", api.State{"done": true}))

	if _, err := eng.Execute(context.Background(), "a", nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()

	if len(obs.runStarts) != 1 || obs.runStarts[0].Name != "a" {
		t.Fatalf("expected one run start named a, got %+v", obs.runStarts)
	}
	var nodes []string
	for _, ev := range obs.stepCompletes {
		nodes = append(nodes, ev.Node)
	}
	if len(nodes) != 3 || nodes[0] != "a" || nodes[1] != "b" || nodes[2] != "c" {
		t.Fatalf("unexpected hop sequence: %v", nodes)
	}
}

func TestBasicMetricsThroughEngine(t *testing.T) {
	metrics := &api.BasicMetrics{}
	eng := newObservedEngine(api.NewCompositeObserver(metrics, &fakeObserver{}))

	if err := eng.RegisterFlow(onboardingFlow()); err != nil {
		t.Fatalf("RegisterFlow: %v", err)
	}

	ctx := context.Background()
	_, _ = eng.Run(ctx, "onboarding", api.State{"email": "a@example.com"})
	_, _ = eng.Run(ctx, "onboarding", api.State{})

	snap := metrics.Snapshot()
	if snap.RunsStarted != 2 || snap.RunsCompleted != 1 || snap.RunsFailed != 1 {
		t.Fatalf("unexpected run counters: %+v", snap)
	}
	if snap.StepsCompleted != 2 || snap.StepsFailed != 1 {
		t.Fatalf("unexpected step counters: %+v", snap)
	}
	if snap.InFlightRuns != 0 {
		t.Fatalf("expected no in-flight runs, got %d", snap.InFlightRuns)
	}
}
