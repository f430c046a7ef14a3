package stategraph

import (
	"fmt"
	"sort"
)

// Compile validates the graph and creates an executable CompiledGraph.
// Compile is pure: it never mutates the builder and can be called again
// after fixing a broken definition.
//
// Validation checks (in order):
//  1. Deferred builder violations (duplicate nodes, duplicate routers)
//  2. Entry point must be set and reference an existing node
//  3. All edge sources and targets must reference existing nodes (or END)
//  4. Conditional label maps must target existing nodes (or END)
//  5. No node may mix static and conditional edges
//  6. Every node must be reachable from the entry point
//
// All violations are collected and returned together inside a
// *DefinitionError. A graph that compiles cleanly can still fail at
// runtime by never reaching END; that case is caught by the iteration
// limit, not by Compile.
func (g *Graph) Compile() (*CompiledGraph, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	errs := make([]error, 0, len(g.buildErrs))
	errs = append(errs, g.buildErrs...)

	// Entry point set and resolvable.
	entryOK := false
	if g.entryPoint == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if _, exists := g.nodes[g.entryPoint]; !exists {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
	} else {
		entryOK = true
	}

	// Static edge endpoints.
	for _, from := range sortedKeys(g.edges) {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: edge source %q does not exist", ErrNodeNotFound, from))
		}
		for _, to := range g.edges[from] {
			if to != END {
				if _, exists := g.nodes[to]; !exists {
					errs = append(errs, fmt.Errorf("%w: edge target %q does not exist", ErrNodeNotFound, to))
				}
			}
		}
	}

	// Conditional edge sources and label targets.
	for _, from := range sortedKeys(g.routers) {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: conditional edge source %q does not exist", ErrNodeNotFound, from))
		}
		ce := g.routers[from]
		for _, label := range sortedKeys(ce.labels) {
			target := ce.labels[label]
			if target == END {
				continue
			}
			if _, exists := g.nodes[target]; !exists {
				errs = append(errs, fmt.Errorf("%w: label %q on node %q targets %q", ErrLabelTargetNotFound, label, from, target))
			}
		}
	}

	// A node routes either statically or through a router, never both:
	// fan-out order and router dispatch would otherwise be ambiguous.
	for _, from := range sortedKeys(g.routers) {
		if len(g.edges[from]) > 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMixedEdges, from))
		}
	}

	// Every declared node must be reachable from the entry point.
	if entryOK {
		reachable := g.findReachableNodes()
		for _, nodeID := range sortedKeys(g.nodes) {
			if !reachable[nodeID] {
				errs = append(errs, fmt.Errorf("%w: %s", ErrUnreachableNode, nodeID))
			}
		}
	}

	if len(errs) > 0 {
		return nil, &DefinitionError{Errs: errs}
	}

	return g.buildCompiledGraph(), nil
}

// findReachableNodes returns the set of nodes reachable from the entry point.
// Static edges and label-map targets are followed precisely. A router
// without a label map can return any node ID, so all nodes are treated as
// reachable from it.
func (g *Graph) findReachableNodes() map[string]bool {
	reachable := make(map[string]bool)

	if g.entryPoint == "" {
		return reachable
	}

	queue := []string{g.entryPoint}
	reachable[g.entryPoint] = true

	visit := func(target string) {
		if target != END && !reachable[target] {
			reachable[target] = true
			queue = append(queue, target)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, target := range g.edges[current] {
			visit(target)
		}

		if ce, hasRouter := g.routers[current]; hasRouter {
			if ce.labels == nil {
				// Unconstrained router: any node is a potential target.
				for nodeID := range g.nodes {
					visit(nodeID)
				}
				continue
			}
			for _, target := range ce.labels {
				visit(target)
			}
		}
	}

	return reachable
}

// buildCompiledGraph creates the immutable CompiledGraph from the builder state.
func (g *Graph) buildCompiledGraph() *CompiledGraph {
	nodes := make(map[string]NodeFunc, len(g.nodes))
	for id, fn := range g.nodes {
		nodes[id] = fn
	}

	edges := make(map[string][]string, len(g.edges))
	for from, targets := range g.edges {
		edges[from] = make([]string, len(targets))
		copy(edges[from], targets)
	}

	routers := make(map[string]*conditionalEdge, len(g.routers))
	for from, ce := range g.routers {
		labelCopy := ce.labels
		if labelCopy != nil {
			labelCopy = make(map[string]string, len(ce.labels))
			for k, v := range ce.labels {
				labelCopy[k] = v
			}
		}
		routers[from] = &conditionalEdge{router: ce.router, labels: labelCopy}
	}

	// Pre-compute successors: static targets in declared order, or sorted
	// label targets for conditional nodes.
	successors := make(map[string][]string)
	for from, targets := range edges {
		successors[from] = targets
	}
	for from, ce := range routers {
		targets := make(map[string]bool)
		for _, to := range ce.labels {
			if to != END {
				targets[to] = true
			}
		}
		successors[from] = sortedKeys(targets)
	}

	// Pre-compute predecessors from the successor sets.
	predecessors := make(map[string][]string)
	for _, from := range sortedKeys(successors) {
		for _, to := range successors[from] {
			if to != END {
				predecessors[to] = append(predecessors[to], from)
			}
		}
	}

	// Detect fan-out nodes and their join points.
	fanOuts := detectFanOuts(edges)

	return &CompiledGraph{
		schema:       g.schema.clone(),
		nodes:        nodes,
		edges:        edges,
		routers:      routers,
		entryPoint:   g.entryPoint,
		successors:   successors,
		predecessors: predecessors,
		fanOuts:      fanOuts,
	}
}

// detectFanOuts identifies fan-out nodes and computes each one's join node.
// A fan-out node has multiple static outgoing edges. Its join is the
// closest node every branch reaches (a simplified post-dominator); END when
// the branches never reconverge.
func detectFanOuts(edges map[string][]string) map[string]*FanOut {
	fanOuts := make(map[string]*FanOut)

	for from, targets := range edges {
		if len(targets) < 2 {
			continue
		}
		fo := &FanOut{
			NodeID:   from,
			Branches: make([]string, len(targets)),
		}
		copy(fo.Branches, targets)
		fo.JoinNodeID = findJoinNode(fo.Branches, edges)
		fanOuts[from] = fo
	}

	return fanOuts
}

// findJoinNode finds the join point for a fan-out: the node closest to the
// branch heads that every branch can reach. Returns END when branches never
// reconverge.
func findJoinNode(branches []string, edges map[string][]string) string {
	if len(branches) == 0 {
		return END
	}

	// Reachable set per branch, branch head included: a branch that starts
	// at the join contributes no work of its own.
	branchReachable := make([]map[string]bool, len(branches))
	for i, branch := range branches {
		branchReachable[i] = computeReachable(branch, edges)
	}

	common := make(map[string]bool)
	for node := range branchReachable[0] {
		common[node] = true
	}
	for i := 1; i < len(branches); i++ {
		for node := range common {
			if !branchReachable[i][node] {
				delete(common, node)
			}
		}
	}

	if len(common) == 0 {
		return END
	}

	if join := findClosestNode(branches[0], common, edges); join != "" {
		return join
	}
	return END
}

// computeReachable returns all nodes reachable from the given start node,
// start included.
func computeReachable(start string, edges map[string][]string) map[string]bool {
	reachable := make(map[string]bool)
	if start == END {
		return reachable
	}
	queue := []string{start}
	reachable[start] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range edges[current] {
			if next != END && !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}

	return reachable
}

// findClosestNode finds the closest node in targets reachable from start
// using BFS. Start itself counts.
func findClosestNode(start string, targets map[string]bool, edges map[string][]string) string {
	if targets[start] {
		return start
	}

	visited := map[string]bool{start: true}
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range edges[current] {
			if next == END {
				continue
			}
			if targets[next] {
				return next
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	return ""
}

// sortedKeys returns the keys of a map in sorted order, for deterministic
// validation output.
func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
