// Package api contains the core building blocks used by the taskflow
// orchestration engine: the State record, the Task contract and its
// Result type, chain combinators, fan-out, flow definitions and observers.
//
// Most users interact with the higher-level taskflow package, which
// re-exports selected types and helpers from this package. The api package
// is intended for advanced use cases, custom integrations, or contributors
// extending the engine itself.
//
// # State and Results
//
// A State is a plain map of string keys to arbitrary values. A Task never
// mutates the State it is handed; it returns a Result that is either a
// delta (a partial State) or a jump instruction naming a segment.
// Callers fold a delta into the accumulated State with a shallow,
// last-write-wins Merge.
//
// # Tasks
//
// Task is the single interface every unit of work implements. FuncTask is
// the plain function wrapper; it carries metadata (name, description,
// parameters, required credentials), call statistics and an optional
// invocation ceiling.
//
// # Combinators
//
// Sequence, Branch, Switch, Recover, JumpTo and JumpIf build new tasks from
// existing ones without modifying them. All and MapReduce run siblings
// concurrently and merge their deltas in input order.
//
// # Flows
//
// A FlowDefinition is a statically wired graph of nodes with edges keyed by
// outcome. The engine package executes flows; see the taskflow package for
// the fluent FlowBuilder.
//
// # Observability
//
// The Observer interface is used by engines to report run and step
// lifecycle events. LoggingObserver writes them through log/slog and
// BasicMetrics keeps simple counters.
package api
