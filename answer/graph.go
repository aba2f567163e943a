package answer

import (
	"fmt"

	"github.com/zeinalasali/buildquery/core"
)

// NodeKind identifies what a plan node does when executed.
type NodeKind int

const (
	// NodeRetrieve runs a retrieval and assembles its candidates into a bundle.
	NodeRetrieve NodeKind = iota + 1
	// NodeAggregate computes a numeric aggregate over its dependencies' entries.
	NodeAggregate
	// NodeConclude sends its dependencies' context to the completer.
	NodeConclude
	// NodeMerge unions the outputs of its dependencies.
	NodeMerge
)

// AggregateOp selects the computation of a NodeAggregate node.
type AggregateOp int

const (
	// AggSum totals the Amount field across entries.
	AggSum AggregateOp = iota + 1
	// AggCount counts entries.
	AggCount
	// AggAvg averages the Amount field across entries.
	AggAvg
)

// Node is one step in a multi-step answer plan.
// Which fields matter depends on Kind: retrieve nodes use Query, TypeFilter
// and K; aggregate nodes use Agg; conclude nodes use Query.
type Node struct {
	ID         string
	Kind       NodeKind
	Query      string
	TypeFilter core.EntityType
	K          int
	Agg        AggregateOp
	Deps       []string
}

// Graph is a directed acyclic plan of nodes. Nodes execute in dependency
// order; a failed node poisons its dependents but leaves independent branches
// untouched.
type Graph struct {
	nodes map[string]*Node
	order []string // insertion order, keeps execution deterministic
}

// NewGraph creates an empty plan graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// Add inserts a node into the plan.
// Returns ErrDuplicateNode if the id is already taken.
func (g *Graph) Add(n *Node) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("plan node requires an id")
	}
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	return nil
}

// Len returns the number of nodes in the plan.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// topoSort returns the nodes in an execution order where every node follows
// all of its dependencies (Kahn's algorithm, seeded in insertion order so the
// result is stable). Returns ErrUnknownDependency for a dangling dep and
// ErrGraphCycle when no valid order exists.
func (g *Graph) topoSort() ([]*Node, error) {
	indegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))

	for _, id := range g.order {
		node := g.nodes[id]
		for _, dep := range node.Deps {
			if _, ok := g.nodes[dep]; !ok {
				return nil, fmt.Errorf("%w: node %s depends on %s", ErrUnknownDependency, id, dep)
			}
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []string
	for _, id := range g.order {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	sorted := make([]*Node, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		sorted = append(sorted, g.nodes[id])

		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(sorted) != len(g.nodes) {
		return nil, ErrGraphCycle
	}
	return sorted, nil
}

// terminals returns the ids of nodes that nothing depends on, in insertion
// order. Their outputs form the plan's result.
func (g *Graph) terminals() []string {
	depended := make(map[string]bool)
	for _, node := range g.nodes {
		for _, dep := range node.Deps {
			depended[dep] = true
		}
	}

	var terminals []string
	for _, id := range g.order {
		if !depended[id] {
			terminals = append(terminals, id)
		}
	}
	return terminals
}
