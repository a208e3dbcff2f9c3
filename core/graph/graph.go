// Package graph provides the validated execution topology for analysis
// pipelines: a set of typed nodes with declared field ownership, directed
// dependency edges, and a level-parallel executor that merges each node's
// partial update into the shared aggregate under a single serialization
// boundary.
package graph

import (
	"context"

	"github.com/fintel-ai/fintel/core/state"
	"github.com/fintel-ai/fintel/providers/observability"
)

// Node is the uniform contract every analysis task implements.
//
// Implementations must contain their own failures: a failed collaborator
// call (generation, retrieval, data fetch) is converted into a degraded
// update, never into a returned error. A non-nil error from Run is treated
// as a defect and fails the whole request.
type Node interface {
	// ID is the unique name of the node within a topology.
	ID() string

	// Reads declares the aggregate fields this node depends on. Ticker and
	// query are always available and need not be declared.
	Reads() []state.Field

	// Owns declares the exclusive fields this node writes. Ownership is
	// validated at topology construction: two nodes owning the same
	// exclusive field fail Build with a ConfigurationError.
	Owns() []state.Field

	// Run executes the node against a read-only snapshot of its declared
	// dependencies and returns the partial update containing only owned
	// fields (plus any accumulated messages).
	Run(ctx context.Context, snapshot state.Snapshot) (state.Update, error)
}

// node pairs a Node with its resolved dependencies.
type node struct {
	impl         Node
	dependencies []string
}

// edge is a directed dependency between two nodes.
type edge struct {
	from string
	to   string
}

// config holds graph-level settings populated by Options.
type config struct {
	// maxConcurrency bounds nodes running in parallel within one level.
	// Zero means unlimited.
	maxConcurrency int

	// maxIterations bounds the total number of node executions per request.
	// Exceeding it is a fatal IterationLimitError.
	maxIterations int

	logger observability.Logger
}

// Graph is a validated, executable topology. Build a Graph via Builder; a
// zero Graph is not usable.
//
// A Graph itself is immutable after Build and safe to share; each Execute
// call works on its own Aggregate, so one Graph can serve concurrent
// requests.
type Graph struct {
	nodes map[string]*node
	edges []*edge

	// levels groups node IDs by topological level: level 0 has no
	// dependencies, level N depends only on earlier levels.
	levels [][]string

	topologicalOrder []string

	config *config
}

// Order returns the resolved topological order of node IDs.
func (g *Graph) Order() []string {
	return append([]string(nil), g.topologicalOrder...)
}
