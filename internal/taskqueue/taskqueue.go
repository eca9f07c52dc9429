package taskqueue

import (
	"context"
	"time"

	"github.com/petrijr/taskflow/pkg/api"
)

// RequestKind identifies what the worker should do.
type RequestKind string

const (
	// RequestRunFlow runs a registered flow.
	RequestRunFlow RequestKind = "run-flow"
	// RequestExecuteSegment starts a registry traversal at a segment.
	RequestExecuteSegment RequestKind = "execute-segment"
)

// Request is a unit of work for the worker: run one flow or one segment
// traversal against an input State.
type Request struct {
	ID   string
	Kind RequestKind

	// Target is the flow name or the starting segment name.
	Target string

	State api.State

	EnqueuedAt time.Time

	// NotBefore is the earliest time this request should be processed.
	// Zero value means "immediately".
	NotBefore time.Time
}

// Queue is a simple async request queue interface.
type Queue interface {
	// Enqueue adds a request to the queue. It should respect ctx for cancellation.
	Enqueue(ctx context.Context, r Request) error

	// Dequeue removes and returns the next request, blocking until one is
	// available or the context is cancelled.
	Dequeue(ctx context.Context) (*Request, error)

	// Len returns the approximate number of requests queued.
	Len() int
}
