package stategraph

// END is the terminal node identifier.
// Use this as an edge target or router label target to indicate the graph
// should terminate.
const END = "__end__"

// NodeFunc is the signature for all node functions.
// Nodes receive the execution context and an immutable snapshot of the
// current state, and return a partial update containing only the keys
// they chose to set (or nil for no update) and any error.
//
// The engine owns all merging: mutating the snapshot has no effect on the
// run. Every key in the returned update must be declared in the graph's
// schema.
//
// Example:
//
//	func extract(ctx stategraph.Context, s stategraph.State) (stategraph.PartialState, error) {
//	    return stategraph.PartialState{"status": "extracted"}, nil
//	}
type NodeFunc func(ctx Context, state State) (PartialState, error)

// RouterFunc determines the label for a conditional edge based on state.
// The router is invoked with the post-merge state of the node it hangs off.
//
// Routers must be pure functions of their input: no side effects, no
// dependence on anything but the state. The engine relies on this to
// re-resolve successors when resuming from a checkpoint.
//
// With a label map, the returned label is looked up in the map; a label
// absent from the map fails the run with a RoutingError. Without a label
// map, the returned string is itself the next node ID (or stategraph.END).
//
// Example:
//
//	func route(ctx stategraph.Context, s stategraph.State) string {
//	    if input, _ := s["input"].(string); len(input) > 10 {
//	        return "path_a"
//	    }
//	    return "path_b"
//	}
type RouterFunc func(ctx Context, state State) string
