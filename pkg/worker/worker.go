package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/petrijr/taskflow/internal/taskqueue"
	"github.com/petrijr/taskflow/pkg/api"
)

// ErrUnknownRequest is returned by ProcessOne for a request of a kind the
// worker does not handle.
var ErrUnknownRequest = errors.New("unknown request kind")

// Outcome is what became of one processed request.
type Outcome struct {
	RequestID string
	// RunID is empty when the engine rejected the request before starting a
	// run, e.g. for an unknown flow name.
	RunID  string
	Status api.Status
	Err    error
}

// Worker pulls requests from a Queue and executes them using an Engine.
type Worker struct {
	engine api.Engine
	queue  taskqueue.Queue
	logger *slog.Logger

	mu       sync.RWMutex
	outcomes map[string]Outcome
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the logger used for request processing. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a new Worker.
func New(engine api.Engine, queue taskqueue.Queue, opts ...Option) *Worker {
	w := &Worker{
		engine:   engine,
		queue:    queue,
		logger:   slog.New(slog.DiscardHandler),
		outcomes: make(map[string]Outcome),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// EnqueueFlow enqueues a request to run the named flow asynchronously and
// returns the request ID. It does NOT run the flow itself; that is done by
// ProcessOne.
func (w *Worker) EnqueueFlow(ctx context.Context, name string, state api.State) (string, error) {
	return w.enqueue(ctx, taskqueue.RequestRunFlow, name, state, time.Time{})
}

// EnqueueFlowAt enqueues a flow run that starts no earlier than at.
func (w *Worker) EnqueueFlowAt(ctx context.Context, name string, state api.State, at time.Time) (string, error) {
	return w.enqueue(ctx, taskqueue.RequestRunFlow, name, state, at)
}

// EnqueueSegment enqueues a registry traversal starting at the named
// segment and returns the request ID.
func (w *Worker) EnqueueSegment(ctx context.Context, name string, state api.State) (string, error) {
	return w.enqueue(ctx, taskqueue.RequestExecuteSegment, name, state, time.Time{})
}

func (w *Worker) enqueue(ctx context.Context, kind taskqueue.RequestKind, target string, state api.State, at time.Time) (string, error) {
	r := taskqueue.Request{
		ID:         uuid.NewString(),
		Kind:       kind,
		Target:     target,
		State:      state.Clone(),
		EnqueuedAt: time.Now(),
		NotBefore:  at,
	}
	if err := w.queue.Enqueue(ctx, r); err != nil {
		return "", err
	}
	return r.ID, nil
}

// ProcessOne pulls a single request from the queue and processes it.
// Returns (processed, error):
//   - processed == false: nothing was processed; err is the dequeue error,
//     usually the context's.
//   - processed == true: a request was processed; err is the run's error.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	req, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if req == nil {
		return false, nil
	}

	if err := w.waitUntil(ctx, req.NotBefore); err != nil {
		// Give the request back so another worker can pick it up.
		if qerr := w.queue.Enqueue(context.WithoutCancel(ctx), *req); qerr != nil {
			w.logger.Error("requeue failed", slog.String("request_id", req.ID), slog.Any("error", qerr))
		}
		return false, err
	}

	var run *api.Run
	switch req.Kind {
	case taskqueue.RequestRunFlow:
		run, err = w.engine.Run(ctx, req.Target, req.State)
	case taskqueue.RequestExecuteSegment:
		run, err = w.engine.Execute(ctx, req.Target, req.State)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownRequest, req.Kind)
	}

	w.record(req, run, err)
	return true, err
}

func (w *Worker) waitUntil(ctx context.Context, at time.Time) error {
	d := time.Until(at)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) record(req *taskqueue.Request, run *api.Run, err error) {
	out := Outcome{RequestID: req.ID, Err: err, Status: api.StatusFailed}
	if run != nil {
		out.RunID = run.ID
		out.Status = run.Status
	}

	attrs := []any{
		slog.String("request_id", req.ID),
		slog.String("kind", string(req.Kind)),
		slog.String("target", req.Target),
		slog.String("run_id", out.RunID),
	}
	if err != nil {
		w.logger.Warn("request failed", append(attrs, slog.Any("error", err))...)
	} else {
		w.logger.Debug("request processed", append(attrs, slog.String("status", string(out.Status)))...)
	}

	w.mu.Lock()
	w.outcomes[req.ID] = out
	w.mu.Unlock()
}

// Outcome reports what became of a processed request. ok is false while the
// request is still queued or running, and for IDs this worker never saw.
func (w *Worker) Outcome(requestID string) (Outcome, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out, ok := w.outcomes[requestID]
	return out, ok
}
