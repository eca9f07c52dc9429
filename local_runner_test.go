package taskflow

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func incThenDouble() *FlowBuilder {
	return New("localrunner-sync-async").
		StepFunc("inc", func(ctx context.Context, s State) (State, error) {
			return State{"n": s.Int("n") + 1}, nil
		}).
		StepFunc("double", func(ctx context.Context, s State) (State, error) {
			return State{"n": s.Int("n") * 2}, nil
		})
}

// TestLocalRunner_SyncAndAsync verifies that LocalRunner can run flows
// both synchronously (direct RunFlow) and asynchronously via SubmitFlow
// + worker loop.
func TestLocalRunner_SyncAndAsync(t *testing.T) {
	runner := NewLocalRunner()

	flow := incThenDouble()
	flow.MustRegister(runner.Engine)

	ctx := context.Background()

	// --- Synchronous run ---

	syncRun, err := RunFlow(ctx, runner.Engine, flow.Name(), State{"n": 1})
	if err != nil {
		t.Fatalf("sync RunFlow failed: %v", err)
	}
	if syncRun.Status != StatusCompleted {
		t.Fatalf("expected sync run status %v, got %v", StatusCompleted, syncRun.Status)
	}
	// (1 + 1) * 2 = 4
	if got := syncRun.State.Int("n"); got != 4 {
		t.Fatalf("expected sync n=4, got %d", got)
	}

	// --- Asynchronous run via worker/queue ---

	if err := runner.StartWorkers(ctx, 2); err != nil {
		t.Fatalf("StartWorkers failed: %v", err)
	}
	defer runner.Stop()

	id, err := runner.SubmitFlow(ctx, flow.Name(), State{"n": 3})
	if err != nil {
		t.Fatalf("SubmitFlow failed: %v", err)
	}

	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	run, err := runner.Wait(wctx, id)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	// (3 + 1) * 2 = 8
	if run.Status != StatusCompleted || run.State.Int("n") != 8 {
		t.Fatalf("unexpected async run: status=%s state=%v", run.Status, run.State)
	}
}

// TestLocalRunner_StartWorkersTwice ensures that StartWorkers cannot be
// called twice without Stop in between.
func TestLocalRunner_StartWorkersTwice(t *testing.T) {
	runner := NewLocalRunner()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer runner.Stop()

	if err := runner.StartWorkers(ctx, 1); err != nil {
		t.Fatalf("first StartWorkers failed: %v", err)
	}

	if err := runner.StartWorkers(ctx, 1); err == nil {
		t.Fatalf("expected error from second StartWorkers call, got nil")
	}
}

// TestLocalRunner_StopWithoutStart ensures Stop is safe when workers were
// never started.
func TestLocalRunner_StopWithoutStart(t *testing.T) {
	runner := NewLocalRunner()
	// Should not panic or deadlock.
	runner.Stop()
}

// TestLocalRunner_SubmitSegment runs a segment cycle in the background and
// waits for its run.
func TestLocalRunner_SubmitSegment(t *testing.T) {
	runner := NewLocalRunner()
	ctx := context.Background()

	runner.Engine.RegisterSegment("count", NewTask("count", func(ctx context.Context, s State) (Result, error) {
		n := s.Int("n") + 1
		if n < 3 {
			return JumpWith("count", State{"n": n}), nil
		}
		return Continue(State{"n": n}), nil
	}))

	if err := runner.StartWorkers(ctx, 1); err != nil {
		t.Fatalf("StartWorkers failed: %v", err)
	}
	defer runner.Stop()

	id, err := runner.SubmitSegment(ctx, "count", nil)
	if err != nil {
		t.Fatalf("SubmitSegment failed: %v", err)
	}

	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	run, err := runner.Wait(wctx, id)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if run.Kind != RunKindSegment || run.Steps != 3 || run.State.Int("n") != 3 {
		t.Fatalf("unexpected segment run: kind=%s steps=%d state=%v", run.Kind, run.Steps, run.State)
	}
}

// TestLocalRunner_WaitReportsFailures covers both a failed run and a
// request the engine rejected outright.
func TestLocalRunner_WaitReportsFailures(t *testing.T) {
	runner := NewLocalRunner()
	ctx := context.Background()

	boom := errors.New("boom")
	runner.Engine.RegisterSegment("fail", NewDeltaTask("fail", func(ctx context.Context, s State) (State, error) {
		return State{"touched": true}, boom
	}))

	if err := runner.StartWorkers(ctx, 1); err != nil {
		t.Fatalf("StartWorkers failed: %v", err)
	}
	defer runner.Stop()

	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	id, _ := runner.SubmitSegment(ctx, "fail", nil)
	run, err := runner.Wait(wctx, id)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var te *TaskExecutionError
	if !errors.As(err, &te) || te.Step != 1 {
		t.Fatalf("expected TaskExecutionError at step 1, got %v", err)
	}
	if run == nil || run.Status != StatusFailed {
		t.Fatalf("expected a failed run, got %+v", run)
	}

	id, _ = runner.SubmitFlow(ctx, "no-such-flow", nil)
	run, err = runner.Wait(wctx, id)
	if !errors.Is(err, ErrFlowNotFound) || run != nil {
		t.Fatalf("expected ErrFlowNotFound and no run, got %v, %+v", err, run)
	}
}

// TestLocalRunner_WaitHonoursContext returns once ctx expires for a
// request nobody processes.
func TestLocalRunner_WaitHonoursContext(t *testing.T) {
	runner := NewLocalRunner()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := runner.Wait(ctx, "never-submitted"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

// TestLocalRunner_SQLiteBacked wires a SQLite engine and queue together.
func TestLocalRunner_SQLiteBacked(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	eng, err := NewSQLiteEngine(db)
	if err != nil {
		t.Fatalf("NewSQLiteEngine failed: %v", err)
	}
	q, err := NewSQLiteQueue(db)
	if err != nil {
		t.Fatalf("NewSQLiteQueue failed: %v", err)
	}

	runner := NewLocalRunnerWith(eng, q, nil)
	incThenDouble().MustRegister(runner.Engine)

	ctx := context.Background()
	if err := runner.StartWorkers(ctx, 1); err != nil {
		t.Fatalf("StartWorkers failed: %v", err)
	}
	defer runner.Stop()

	id, err := runner.SubmitFlowAt(ctx, "localrunner-sync-async", State{"n": 0}, time.Now().Add(20*time.Millisecond))
	if err != nil {
		t.Fatalf("SubmitFlowAt failed: %v", err)
	}

	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	run, err := runner.Wait(wctx, id)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if run.State.Int("n") != 2 {
		t.Fatalf("expected n=2, got %v", run.State)
	}
}
