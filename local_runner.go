package taskflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/petrijr/taskflow/internal/taskqueue"
	"github.com/petrijr/taskflow/pkg/worker"
)

// waitPollInterval is how often Wait checks for a finished request.
const waitPollInterval = 5 * time.Millisecond

// LocalRunner bundles an Engine, a request queue, and a Worker to provide a
// simple "local runner" for development and single-process deployments.
//
// Typical usage:
//
//	runner := taskflow.NewLocalRunner()
//	flow := taskflow.New("my-flow").Step(...)
//	flow.MustRegister(runner.Engine)
//
//	// Synchronous run (no queue/worker involved):
//	run, err := taskflow.RunFlow(ctx, runner.Engine, flow.Name(), state)
//
//	// Asynchronous run:
//	_ = runner.StartWorkers(ctx, 2)
//	id, _ := runner.SubmitFlow(ctx, flow.Name(), state)
//	run, err = runner.Wait(ctx, id)
//	...
//	runner.Stop()
type LocalRunner struct {
	// Engine runs the flows and segments.
	Engine Engine

	// Queue holds submitted requests until a worker picks them up.
	Queue Queue

	// Worker processes requests from Queue using Engine.
	Worker *worker.Worker

	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewLocalRunner constructs a LocalRunner backed by an in-memory engine and
// an in-memory queue.
func NewLocalRunner() *LocalRunner {
	return NewLocalRunnerWith(NewInMemoryEngine(), taskqueue.NewInMemoryQueue(1024), nil)
}

// NewLocalRunnerWith constructs a LocalRunner over the given engine and
// queue. A nil logger discards worker logs.
func NewLocalRunnerWith(eng Engine, q Queue, logger *slog.Logger) *LocalRunner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LocalRunner{
		Engine: eng,
		Queue:  q,
		Worker: worker.New(eng, q, worker.WithLogger(logger)),
		logger: logger,
	}
}

// StartWorkers starts 'concurrency' worker goroutines that continuously call
// Worker.ProcessOne(ctx) until the context is cancelled via Stop.
//
// If StartWorkers is called more than once without Stop, it returns an error.
func (r *LocalRunner) StartWorkers(ctx context.Context, concurrency int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("taskflow: LocalRunner already started")
	}

	if concurrency <= 0 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer r.wg.Done()

			for {
				_, err := r.Worker.ProcessOne(ctx)
				if ctx.Err() != nil {
					// Cancellation is the shutdown signal.
					return
				}
				if err != nil {
					// A failed run is recorded by the worker; keep going so a
					// single bad request doesn't kill the loop.
					r.logger.Debug("local runner: request error", slog.Int("worker", i), slog.Any("error", err))
				}
			}
		}()
	}

	return nil
}

// Stop cancels all worker goroutines started by StartWorkers and waits
// for them to exit.
func (r *LocalRunner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// SubmitFlow enqueues a run of the named flow and returns the request ID.
// The flow must already be registered on LocalRunner.Engine.
func (r *LocalRunner) SubmitFlow(ctx context.Context, name string, state State) (string, error) {
	return r.Worker.EnqueueFlow(ctx, name, state)
}

// SubmitFlowAt is SubmitFlow for a run that starts no earlier than at.
func (r *LocalRunner) SubmitFlowAt(ctx context.Context, name string, state State, at time.Time) (string, error) {
	return r.Worker.EnqueueFlowAt(ctx, name, state, at)
}

// SubmitSegment enqueues a registry traversal starting at segment and
// returns the request ID.
func (r *LocalRunner) SubmitSegment(ctx context.Context, segment string, state State) (string, error) {
	return r.Worker.EnqueueSegment(ctx, segment, state)
}

// Wait blocks until the request has been processed and returns its run and
// the run's error. The run is nil if the engine rejected the request before
// starting one.
func (r *LocalRunner) Wait(ctx context.Context, requestID string) (*Run, error) {
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()

	for {
		if out, ok := r.Worker.Outcome(requestID); ok {
			if out.RunID == "" {
				return nil, out.Err
			}
			run, err := r.Engine.GetRun(ctx, out.RunID)
			if err != nil {
				return nil, err
			}
			return run, out.Err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
