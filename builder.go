package taskflow

import (
	"fmt"

	"github.com/petrijr/taskflow/pkg/api"
	"github.com/petrijr/taskflow/pkg/resilience"
)

// FlowBuilder provides a fluent API for defining flows:
//
//	flow := taskflow.New("Triage").
//	    Step("classify", classify).
//	    Step("answer", answer).
//	    Node("escalate", escalate).
//	    On("classify", "urgent", "escalate")
//
//	if err := flow.Register(engine); err != nil {
//	    log.Fatal(err)
//	}
//
//	run, err := taskflow.RunFlow(ctx, engine, flow.Name(), state)
//
// Step chains a node after the previously added node through the default
// edge; Node adds one without an incoming edge. The first node added is the
// start node unless Start says otherwise.
type FlowBuilder struct {
	def  api.FlowDefinition
	last string
}

// New creates a new flow builder with the given name.
func New(name string) *FlowBuilder {
	return &FlowBuilder{
		def: api.FlowDefinition{
			Name:  name,
			Nodes: make(map[string]api.Node),
		},
	}
}

// Name returns the flow name.
func (b *FlowBuilder) Name() string {
	return b.def.Name
}

// Definition returns the underlying FlowDefinition.
// Typically used when interacting with lower-level APIs.
func (b *FlowBuilder) Definition() FlowDefinition {
	return b.def
}

func (b *FlowBuilder) add(id string, task Task) {
	if id == "" {
		panic("taskflow: node id must not be empty")
	}
	if task == nil {
		panic(fmt.Sprintf("taskflow: node %q has nil task", id))
	}
	if _, exists := b.def.Nodes[id]; exists {
		panic(fmt.Sprintf("taskflow: duplicate node %q", id))
	}
	if b.def.Start == "" {
		b.def.Start = id
	}
	b.def.Nodes[id] = api.Node{ID: id, Task: task}
	b.last = id
}

// Node adds a node with no incoming edge.
func (b *FlowBuilder) Node(id string, task Task) *FlowBuilder {
	b.add(id, task)
	return b
}

// Step adds a node reached from the previously added node's default edge.
func (b *FlowBuilder) Step(id string, task Task) *FlowBuilder {
	prev := b.last
	b.add(id, task)
	if prev != "" {
		b.Link(prev, id)
	}
	return b
}

// StepFunc adds a Step whose task is fn wrapped in a delta task named id.
func (b *FlowBuilder) StepFunc(id string, fn DeltaFunc) *FlowBuilder {
	return b.Step(id, api.NewDeltaTask(id, fn))
}

// StepWithRetry adds a Step whose task is retried per policy.
func (b *FlowBuilder) StepWithRetry(id string, task Task, policy resilience.RetryPolicy) *FlowBuilder {
	return b.Step(id, resilience.Retry(task, policy))
}

// StepWithRetryBuilder is StepWithRetry taking a RetryBuilder.
func (b *FlowBuilder) StepWithRetryBuilder(id string, task Task, rb RetryBuilder) *FlowBuilder {
	return b.StepWithRetry(id, task, rb.Policy())
}

// Parallel adds a Step running tasks concurrently and merging their deltas
// in order.
func (b *FlowBuilder) Parallel(id string, tasks ...Task) *FlowBuilder {
	return b.Step(id, api.All(tasks, api.WithFanOutName(id)))
}

// On routes outcome of node from to node to.
func (b *FlowBuilder) On(from, outcome, to string) *FlowBuilder {
	n, ok := b.def.Nodes[from]
	if !ok {
		panic(fmt.Sprintf("taskflow: edge from unknown node %q", from))
	}
	if n.Edges == nil {
		n.Edges = make(map[string]string)
	}
	n.Edges[outcome] = to
	b.def.Nodes[from] = n
	return b
}

// Link sets the default edge of from.
func (b *FlowBuilder) Link(from, to string) *FlowBuilder {
	return b.On(from, api.DefaultEdge, to)
}

// Start overrides the start node.
func (b *FlowBuilder) Start(id string) *FlowBuilder {
	b.def.Start = id
	return b
}

// StepBudget caps node executions per run.
func (b *FlowBuilder) StepBudget(n int) *FlowBuilder {
	b.def.StepBudget = n
	return b
}

// Build validates and returns the definition.
func (b *FlowBuilder) Build() (FlowDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return FlowDefinition{}, err
	}
	return b.def, nil
}

// Register registers the built flow with the given engine.
func (b *FlowBuilder) Register(eng Engine) error {
	return eng.RegisterFlow(b.def)
}

// MustRegister is like Register but panics on error.
// Useful for initialization in main().
func (b *FlowBuilder) MustRegister(eng Engine) {
	if err := b.Register(eng); err != nil {
		panic(err)
	}
}

// Flow builds a standalone Flow, for running outside an engine or for use
// as a task via Flow.AsTask.
func (b *FlowBuilder) Flow(opts ...FlowOption) (*Flow, error) {
	return NewFlow(b.def, opts...)
}
