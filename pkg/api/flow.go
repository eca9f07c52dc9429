package api

import (
	"errors"
	"fmt"
)

// DefaultEdge is the edge key followed when a node's outcome has no edge of
// its own. A node without a default edge ends the flow.
const DefaultEdge = "default"

// DefaultStepBudget bounds flows that do not declare their own budget.
const DefaultStepBudget = 1000

// Node is one vertex of a flow: a task plus its outgoing edges keyed by
// outcome.
type Node struct {
	ID    string
	Task  Task
	Edges map[string]string
}

// Next returns the successor for outcome: the outcome edge if one exists,
// else the default edge.
func (n Node) Next(outcome string) (string, bool) {
	if outcome != "" {
		if id, ok := n.Edges[outcome]; ok {
			return id, true
		}
	}
	id, ok := n.Edges[DefaultEdge]
	return id, ok
}

// FlowDefinition describes a statically wired graph of tasks.
type FlowDefinition struct {
	Name  string
	Start string
	Nodes map[string]Node

	// StepBudget caps the number of node executions per run. Zero means
	// DefaultStepBudget.
	StepBudget int
}

// Budget returns the effective step budget.
func (d FlowDefinition) Budget() int {
	if d.StepBudget > 0 {
		return d.StepBudget
	}
	return DefaultStepBudget
}

// Validate checks that the definition is runnable: it has a name, a known
// start node, tasks on every node and no dangling edges.
func (d FlowDefinition) Validate() error {
	if d.Name == "" {
		return errors.New("flow name is required")
	}
	if len(d.Nodes) == 0 {
		return fmt.Errorf("flow %q has no nodes", d.Name)
	}
	if _, ok := d.Nodes[d.Start]; !ok {
		return fmt.Errorf("flow %q: start node %q not found", d.Name, d.Start)
	}
	for id, n := range d.Nodes {
		if n.Task == nil {
			return fmt.Errorf("flow %q: node %q has no task", d.Name, id)
		}
		for outcome, to := range n.Edges {
			if _, ok := d.Nodes[to]; !ok {
				return fmt.Errorf("flow %q: edge %s -[%s]-> %s points to unknown node", d.Name, id, outcome, to)
			}
		}
	}
	return nil
}
