package stategraph

import "sort"

// CompiledGraph is an immutable, executable graph.
// It is created by calling Compile() on a Graph builder.
//
// CompiledGraph is thread-safe and can be used concurrently for multiple
// Run() calls. The graph structure cannot be modified after compilation,
// and every run owns its state independently.
//
// Use the introspection methods (NodeIDs, Successors, etc.) to examine
// the graph structure for debugging or visualization.
type CompiledGraph struct {
	schema     *Schema
	nodes      map[string]NodeFunc
	edges      map[string][]string
	routers    map[string]*conditionalEdge
	entryPoint string

	// Pre-computed for efficient lookup
	successors   map[string][]string
	predecessors map[string][]string
	fanOuts      map[string]*FanOut // nodeID -> fan-out info (nodes with multiple outgoing edges)
}

// FanOut describes a node with multiple static outgoing edges. Its branches
// execute concurrently and their state updates merge at the join node in
// declared edge order.
type FanOut struct {
	// NodeID is the fan-out node itself.
	NodeID string

	// Branches holds the first node of each branch, in declared edge order.
	// Merge order at the join follows this slice.
	Branches []string

	// JoinNodeID is the node where the branches reconverge, or END when
	// they never do.
	JoinNodeID string
}

// EntryPoint returns the entry node ID.
func (cg *CompiledGraph) EntryPoint() string {
	return cg.entryPoint
}

// NodeIDs returns all node identifiers in the graph, sorted.
func (cg *CompiledGraph) NodeIDs() []string {
	ids := make([]string, 0, len(cg.nodes))
	for id := range cg.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasNode checks if a node exists in the graph.
func (cg *CompiledGraph) HasNode(id string) bool {
	_, exists := cg.nodes[id]
	return exists
}

// Successors returns the node IDs that can be reached from the given node:
// static edge targets in declared order, or the label-map targets (sorted,
// deduplicated) of a conditional node. END is not included.
// Returns nil for END or unknown nodes.
func (cg *CompiledGraph) Successors(id string) []string {
	targets := cg.successors[id]
	if targets == nil {
		return nil
	}
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if t != END {
			out = append(out, t)
		}
	}
	return out
}

// Predecessors returns the node IDs that have edges into the given node.
// Returns nil for the entry node or unknown nodes.
func (cg *CompiledGraph) Predecessors(id string) []string {
	preds := cg.predecessors[id]
	if preds == nil {
		return nil
	}
	out := make([]string, len(preds))
	copy(out, preds)
	return out
}

// IsConditional returns true if the node routes through a router function.
func (cg *CompiledGraph) IsConditional(id string) bool {
	_, exists := cg.routers[id]
	return exists
}

// IsFanOut returns true if the node is a detected fan-out point
// (multiple static outgoing edges that execute as parallel branches).
func (cg *CompiledGraph) IsFanOut(id string) bool {
	_, exists := cg.fanOuts[id]
	return exists
}

// JoinOf returns the join node of a fan-out, or "" when the node is not a
// fan-out. The join is END when the branches never reconverge.
func (cg *CompiledGraph) JoinOf(id string) string {
	fo, exists := cg.fanOuts[id]
	if !exists {
		return ""
	}
	return fo.JoinNodeID
}

// FanOuts returns all fan-out descriptors in the graph, sorted by node ID.
// Returns an empty slice if the graph has no fan-outs.
func (cg *CompiledGraph) FanOuts() []*FanOut {
	result := make([]*FanOut, 0, len(cg.fanOuts))
	for _, id := range sortedKeys(cg.fanOuts) {
		result = append(result, cg.fanOuts[id])
	}
	return result
}

// Schema returns a copy of the state schema the graph was built with.
func (cg *CompiledGraph) Schema() *Schema {
	return cg.schema.clone()
}

// getNode returns the node function for the given ID.
// Used internally by the executor.
func (cg *CompiledGraph) getNode(id string) (NodeFunc, bool) {
	fn, exists := cg.nodes[id]
	return fn, exists
}

// getRouter returns the conditional edge for the given node.
// Used internally by the executor.
func (cg *CompiledGraph) getRouter(id string) (*conditionalEdge, bool) {
	ce, exists := cg.routers[id]
	return ce, exists
}

// getEdges returns the static edge targets for the given node.
// Used internally by the executor.
func (cg *CompiledGraph) getEdges(id string) []string {
	return cg.edges[id]
}

// getFanOut returns the fan-out descriptor for the given node.
// Used internally by the executor.
func (cg *CompiledGraph) getFanOut(id string) (*FanOut, bool) {
	fo, exists := cg.fanOuts[id]
	return fo, exists
}
