package stategraph

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is a mutable builder for creating execution graphs.
// Use New to create a graph around a state schema, then chain AddNode,
// AddEdge, AddConditionalEdge, and SetEntry calls to define the workflow.
//
// Graph is NOT thread-safe during building. Use a single goroutine to
// construct the graph, then call Compile() to create an immutable
// CompiledGraph that can be safely shared.
//
// Example:
//
//	graph := stategraph.New(schema).
//	    AddNode("extract", extractNode).
//	    AddNode("transform", transformNode).
//	    AddEdge("extract", "transform").
//	    AddEdge("transform", stategraph.END).
//	    SetEntry("extract")
//
//	compiled, err := graph.Compile()
type Graph struct {
	mu         sync.RWMutex
	schema     *Schema
	nodes      map[string]NodeFunc
	edges      map[string][]string
	routers    map[string]*conditionalEdge
	entryPoint string
	buildErrs  []error
}

// conditionalEdge pairs a router with its label map.
// A nil label map means the router's return value is itself the target.
type conditionalEdge struct {
	router RouterFunc
	labels map[string]string
}

// New creates a graph builder around a state schema.
// The schema declares every key the graph's state may contain and how
// partial updates merge (see Schema).
//
// Panics if schema is nil.
func New(schema *Schema) *Graph {
	if schema == nil {
		panic("stategraph: schema cannot be nil")
	}
	return &Graph{
		schema:  schema,
		nodes:   make(map[string]NodeFunc),
		edges:   make(map[string][]string),
		routers: make(map[string]*conditionalEdge),
	}
}

// AddNode adds a named node to the graph.
// Returns the graph for method chaining.
//
// Panics if:
//   - id is empty
//   - id is the reserved word "END" or "__end__" (case-insensitive)
//   - id contains whitespace (space, tab, newline)
//   - fn is nil
//
// A duplicate id is recorded and surfaces from Compile() as
// ErrDuplicateNode, so a misbuilt graph can never execute.
func (g *Graph) AddNode(id string, fn NodeFunc) *Graph {
	if id == "" {
		panic("stategraph: node ID cannot be empty")
	}

	// Check reserved words (case-insensitive)
	idLower := strings.ToLower(id)
	if idLower == "end" || idLower == "__end__" {
		panic("stategraph: node ID cannot be reserved word 'END'")
	}

	if strings.ContainsAny(id, " \t\n\r") {
		panic("stategraph: node ID cannot contain whitespace")
	}

	if fn == nil {
		panic("stategraph: node function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		g.buildErrs = append(g.buildErrs, fmt.Errorf("node %q: %w", id, ErrDuplicateNode))
		return g
	}

	g.nodes[id] = fn
	return g
}

// AddEdge adds a static edge from one node to another.
// The target can be a node ID or stategraph.END.
// Returns the graph for method chaining.
//
// Multiple static edges out of one node declare a fan-out: each target
// starts a concurrent branch, and the declaration order here fixes the
// order branch results merge at the join node.
//
// Edge validation happens at Compile() time, not here.
// This allows edges to be added in any order.
func (g *Graph) AddEdge(from, to string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdge adds a conditional edge where a RouterFunc picks the
// transition at runtime based on the post-merge state.
// Returns the graph for method chaining.
//
// labels maps router return values to target node IDs (or stategraph.END).
// At runtime a label absent from the map fails the run with RoutingError.
// A nil label map means the router returns target node IDs directly.
//
// Panics if router is nil. A second conditional edge on the same source
// node is recorded and surfaces from Compile() as ErrDuplicateRouter.
func (g *Graph) AddConditionalEdge(from string, router RouterFunc, labels map[string]string) *Graph {
	if router == nil {
		panic("stategraph: router function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.routers[from]; exists {
		g.buildErrs = append(g.buildErrs, fmt.Errorf("node %q: %w", from, ErrDuplicateRouter))
		return g
	}

	var labelCopy map[string]string
	if labels != nil {
		labelCopy = make(map[string]string, len(labels))
		for k, v := range labels {
			labelCopy[k] = v
		}
	}

	g.routers[from] = &conditionalEdge{router: router, labels: labelCopy}
	return g
}

// SetEntry designates the entry point node.
// This must be called before Compile().
// Returns the graph for method chaining.
//
// Entry point validation happens at Compile() time.
func (g *Graph) SetEntry(id string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}
