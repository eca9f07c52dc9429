// Package taskflow is an embeddable task-orchestration engine for Go.
//
// Work is expressed as tasks that read a shared key/value State and return
// either a delta to merge into it or a jump to a named segment. Tasks compose
// into larger tasks, run inside statically wired flows, or hop between
// segments of a registry. Runs are recorded in a pluggable store.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. Task and State
//  2. Combinators
//  3. FlowBuilder and Flow
//  4. Registry and segments
//  5. Engine
//  6. LocalRunner
//
// # Task and State
//
// A Task has metadata, a Call method and call statistics. Call receives the
// current State and never mutates it; it returns a Result. Merging a delta
// is shallow and last-write-wins:
//
//	greet := taskflow.NewDeltaTask("greet", func(ctx context.Context, s taskflow.State) (taskflow.State, error) {
//	    return taskflow.State{"greeting": "hello, " + s.String("name")}, nil
//	})
//
// Tasks can declare parameters (checked with WithParamCheck), required
// credentials and an invocation ceiling (WithMaxInvocations).
//
// # Combinators
//
// Sequence, Branch, Switch and Recover compose tasks into tasks. All and
// MapReduce fan out over goroutines and merge deltas in input order, so the
// result never depends on completion order. JumpTo and JumpIf produce jump
// instructions. WithRetry, WithTimeout and RateLimited wrap a task with
// resilience policies.
//
// # FlowBuilder and Flow
//
// A flow is a graph of nodes whose edges are keyed by outcome labels:
//
//	taskflow.New("Triage").
//	    Step("classify", classify).
//	    Step("answer", answer).
//	    Node("escalate", escalate).
//	    On("classify", "urgent", "escalate")
//
// Every run is bounded by a step budget. A jump returned inside a flow is
// handed to the engine's registry, or, for a standalone Flow without one,
// ends the run with status JUMPED.
//
// # Registry and segments
//
// A Registry maps names to tasks. Execute starts at a segment and follows
// jumps until a task returns a plain delta. Jumps may form cycles; the
// context bounds them.
//
// # Engine
//
// An Engine holds registered flows and segments and records every finished
// run. Run records live in memory, in SQLite or in Redis:
//
//   - NewInMemoryEngine
//   - NewSQLiteEngine
//   - NewRedisEngine
//   - NewEngineFromConfig, driven by a YAML file (see LoadConfig)
//
// Observers receive run and step events; LoggingObserver writes them through
// log/slog and BasicMetrics counts them.
//
// # LocalRunner
//
// LocalRunner bundles an engine, a request queue and a pool of workers so
// flows and segments can be submitted asynchronously and awaited:
//
//	runner := taskflow.NewLocalRunner()
//	_ = runner.StartWorkers(ctx, 2)
//	defer runner.Stop()
//
//	id, _ := runner.SubmitFlow(ctx, "Triage", taskflow.State{"text": msg})
//	run, err := runner.Wait(ctx, id)
//
// For examples, see the /examples directory.
package taskflow
