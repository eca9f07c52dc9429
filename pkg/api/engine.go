package api

import "context"

// Engine bundles flows, a segment registry, observation and run records.
type Engine interface {
	// RegisterFlow registers a flow definition by name.
	RegisterFlow(def FlowDefinition) error

	// Run executes the named flow to completion, synchronously.
	Run(ctx context.Context, name string, state State) (*Run, error)

	// RegisterSegment binds name to task in the engine's registry.
	// Re-registering a name replaces the previous binding.
	RegisterSegment(name string, task Task)

	// Segment looks up a registered segment.
	Segment(name string) (Task, bool)

	// Execute runs a registry traversal starting at the named segment.
	Execute(ctx context.Context, segment string, state State) (*Run, error)

	// GetRun looks up a finished run by ID.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns finished runs matching opts.
	ListRuns(ctx context.Context, opts RunListOptions) ([]*Run, error)
}
