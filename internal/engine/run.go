package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/petrijr/taskflow/pkg/api"
)

func newRun(name string, kind api.RunKind, input api.State) *api.Run {
	return &api.Run{
		ID:        uuid.NewString(),
		Name:      name,
		Kind:      kind,
		Status:    api.StatusRunning,
		Input:     input.Clone(),
		State:     input.Clone(),
		StartedAt: time.Now(),
	}
}

// step calls task against the run's accumulated State, merges the result
// and appends a history record. Failures come back wrapped in a
// TaskExecutionError carrying the 1-based step number.
func step(ctx context.Context, run *api.Run, obs api.Observer, name string, task api.Task) (api.Result, error) {
	n := run.Steps + 1
	obs.OnStepStart(ctx, run, name, n)

	start := time.Now()
	res, err := task.Call(ctx, run.State)
	d := time.Since(start)

	obs.OnStepCompleted(ctx, run, name, n, err, d)

	run.Steps = n
	rec := api.StepRecord{Index: n, Node: name, Duration: d}
	if err != nil {
		rec.Err = err.Error()
		run.History = append(run.History, rec)
		return api.Result{}, api.WrapTaskError(name, n, err)
	}

	run.State = res.Apply(run.State)
	rec.Outcome = res.Outcome
	if res.IsJump() {
		rec.Jump = res.Target
	}
	run.History = append(run.History, rec)
	return res, nil
}

// finish stamps the run with its terminal status and notifies obs.
func finish(ctx context.Context, run *api.Run, obs api.Observer, err error) (*api.Run, error) {
	run.FinishedAt = time.Now()
	if err != nil {
		run.Status = api.StatusFailed
		run.Err = err
		obs.OnRunFailed(ctx, run, err)
		return run, err
	}
	if run.Status == api.StatusRunning {
		run.Status = api.StatusCompleted
	}
	obs.OnRunCompleted(ctx, run)
	return run, nil
}
