package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fintel-ai/fintel/core/state"
	"github.com/fintel-ai/fintel/providers/observability"
)

// Builder constructs a validated Graph using a fluent API. Nodes and edges
// are added incrementally; Build performs structural validation including
// exclusive-ownership checks and cycle detection via Kahn's algorithm.
//
// Example:
//
//	investment, err := graph.NewBuilder().
//	    AddNode(financial).
//	    AddNode(market).
//	    AddNode(supervisor).
//	    AddEdge("financial", "supervisor").
//	    AddEdge("market", "supervisor").
//	    Build()
type Builder struct {
	config *config
	nodes  map[string]*node
	edges  []*edge

	// nodeOrder preserves insertion order for deterministic level ordering.
	nodeOrder []string

	buildErrors []string
}

// NewBuilder creates a Builder with the given graph-level options.
func NewBuilder(opts ...Option) *Builder {
	cfg := &config{
		maxIterations: DefaultMaxIterations,
		logger:        observability.NoopLogger{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Builder{
		config: cfg,
		nodes:  make(map[string]*node),
	}
}

// AddNode registers a node. Errors (empty ID, duplicate ID, unknown or
// non-exclusive owned field) are accumulated and reported by Build.
func (b *Builder) AddNode(n Node) *Builder {
	if n == nil {
		b.buildErrors = append(b.buildErrors, "nil node")
		return b
	}

	nodeID := n.ID()
	if nodeID == "" {
		b.buildErrors = append(b.buildErrors, "node ID must not be empty")
		return b
	}
	if _, exists := b.nodes[nodeID]; exists {
		b.buildErrors = append(b.buildErrors, fmt.Sprintf("duplicate node ID %q", nodeID))
		return b
	}

	for _, field := range n.Owns() {
		policy, known := state.PolicyOf(field)
		if !known {
			b.buildErrors = append(b.buildErrors, fmt.Sprintf("node %q owns unknown field %q", nodeID, field))
			continue
		}
		if policy != state.PolicyExclusive {
			b.buildErrors = append(b.buildErrors, fmt.Sprintf("node %q declares ownership of non-exclusive field %q", nodeID, field))
		}
	}

	b.nodes[nodeID] = &node{impl: n}
	b.nodeOrder = append(b.nodeOrder, nodeID)

	return b
}

// AddEdge declares that from must complete (and merge) before to may run.
func (b *Builder) AddEdge(from, to string) *Builder {
	if from == "" || to == "" {
		b.buildErrors = append(b.buildErrors, "edge endpoints must not be empty")
		return b
	}
	if from == to {
		b.buildErrors = append(b.buildErrors, fmt.Sprintf("self-loop on node %q", from))
		return b
	}

	b.edges = append(b.edges, &edge{from: from, to: to})
	return b
}

// Build validates the topology and produces an executable Graph. All
// structural problems are reported as a single ConfigurationError; nothing
// executes before validation passes.
func (b *Builder) Build() (*Graph, error) {
	if len(b.buildErrors) > 0 {
		return nil, configErrorf("%s", strings.Join(b.buildErrors, "; "))
	}

	if len(b.nodes) == 0 {
		return nil, configErrorf("topology must contain at least one node")
	}

	if err := b.validateEdges(); err != nil {
		return nil, err
	}

	if err := b.validateOwnership(); err != nil {
		return nil, err
	}

	inDegree, adjacency := b.buildAdjacency()
	topologicalOrder, levels, err := kahnTopologicalSort(inDegree, adjacency, b.nodeOrder)
	if err != nil {
		return nil, err
	}

	b.populateDependencies()

	return &Graph{
		nodes:            b.nodes,
		edges:            b.edges,
		levels:           levels,
		topologicalOrder: topologicalOrder,
		config:           b.config,
	}, nil
}

// validateEdges checks that edge endpoints reference existing nodes and that
// no edge is declared twice.
func (b *Builder) validateEdges() error {
	seen := make(map[string]bool)

	for _, e := range b.edges {
		if _, exists := b.nodes[e.from]; !exists {
			return configErrorf("edge references non-existent source node %q", e.from)
		}
		if _, exists := b.nodes[e.to]; !exists {
			return configErrorf("edge references non-existent target node %q", e.to)
		}

		key := e.from + "->" + e.to
		if seen[key] {
			return configErrorf("duplicate edge from %q to %q", e.from, e.to)
		}
		seen[key] = true
	}

	return nil
}

// validateOwnership enforces the single-writer invariant: each exclusive
// field may be owned by at most one node in the topology.
func (b *Builder) validateOwnership() error {
	owners := make(map[state.Field]string)

	for _, nodeID := range b.nodeOrder {
		for _, field := range b.nodes[nodeID].impl.Owns() {
			if existing, claimed := owners[field]; claimed {
				return configErrorf("exclusive field %q owned by both %q and %q", field, existing, nodeID)
			}
			owners[field] = nodeID
		}
	}

	return nil
}

func (b *Builder) buildAdjacency() (map[string]int, map[string][]string) {
	inDegree := make(map[string]int, len(b.nodes))
	adjacency := make(map[string][]string, len(b.nodes))

	for nodeID := range b.nodes {
		inDegree[nodeID] = 0
		adjacency[nodeID] = make([]string, 0)
	}

	for _, e := range b.edges {
		adjacency[e.from] = append(adjacency[e.from], e.to)
		inDegree[e.to]++
	}

	return inDegree, adjacency
}

// populateDependencies fills each node's dependency list from the edges.
func (b *Builder) populateDependencies() {
	for _, e := range b.edges {
		target := b.nodes[e.to]
		target.dependencies = append(target.dependencies, e.from)
	}
}

// kahnTopologicalSort performs Kahn's algorithm, simultaneously detecting
// cycles and computing topological levels. Within each level, nodes are
// sorted by insertion order so the resolved order is deterministic.
func kahnTopologicalSort(inDegree map[string]int, adjacency map[string][]string, nodeOrder []string) ([]string, [][]string, error) {
	nodePosition := make(map[string]int, len(nodeOrder))
	for index, nodeID := range nodeOrder {
		nodePosition[nodeID] = index
	}

	currentLevel := make([]string, 0)
	for nodeID, degree := range inDegree {
		if degree == 0 {
			currentLevel = append(currentLevel, nodeID)
		}
	}
	sortByPosition(currentLevel, nodePosition)

	topologicalOrder := make([]string, 0, len(inDegree))
	levels := make([][]string, 0)
	processed := 0

	for len(currentLevel) > 0 {
		levels = append(levels, currentLevel)
		topologicalOrder = append(topologicalOrder, currentLevel...)
		processed += len(currentLevel)

		nextLevel := make([]string, 0)
		for _, nodeID := range currentLevel {
			for _, neighbor := range adjacency[nodeID] {
				inDegree[neighbor]--
				if inDegree[neighbor] == 0 {
					nextLevel = append(nextLevel, neighbor)
				}
			}
		}
		sortByPosition(nextLevel, nodePosition)

		currentLevel = nextLevel
	}

	if processed != len(inDegree) {
		cycleNodes := make([]string, 0)
		for nodeID, degree := range inDegree {
			if degree > 0 {
				cycleNodes = append(cycleNodes, nodeID)
			}
		}
		sort.Strings(cycleNodes)
		return nil, nil, configErrorf("dependency cycle involving nodes %v", cycleNodes)
	}

	return topologicalOrder, levels, nil
}

func sortByPosition(nodeIDs []string, position map[string]int) {
	sort.Slice(nodeIDs, func(i, j int) bool {
		return position[nodeIDs[i]] < position[nodeIDs[j]]
	})
}
