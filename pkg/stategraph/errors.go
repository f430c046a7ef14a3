package stategraph

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for graph building and compilation.
var (
	// ErrNoEntryPoint indicates SetEntry() was not called before Compile().
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrEntryNotFound indicates the entry point references a non-existent node.
	ErrEntryNotFound = errors.New("entry point node not found")

	// ErrNodeNotFound indicates an edge references a non-existent node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode indicates AddNode() was called twice with the same ID.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrDuplicateRouter indicates AddConditionalEdge() was called twice for
	// the same source node.
	ErrDuplicateRouter = errors.New("duplicate conditional edge")

	// ErrMixedEdges indicates a node has both static and conditional edges.
	ErrMixedEdges = errors.New("node has both static and conditional edges")

	// ErrUnreachableNode indicates a node cannot be reached from the entry point.
	ErrUnreachableNode = errors.New("node unreachable from entry point")

	// ErrLabelTargetNotFound indicates a conditional edge's label map
	// references a non-existent node.
	ErrLabelTargetNotFound = errors.New("label target node not found")
)

// Sentinel errors for execution.
var (
	// ErrIterationLimit indicates the execution loop exceeded the configured limit.
	ErrIterationLimit = errors.New("exceeded iteration limit")

	// ErrNilContext indicates Run() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrInvalidRouterResult indicates a router function returned an empty string.
	ErrInvalidRouterResult = errors.New("router returned empty string")

	// ErrUnknownRouteLabel indicates a router returned a label with no entry
	// in its label map (or, without a label map, an unknown node ID).
	ErrUnknownRouteLabel = errors.New("router returned unknown label")

	// ErrUnknownStateKey indicates a state update touched a key that is not
	// declared in the graph's schema.
	ErrUnknownStateKey = errors.New("state key not declared in schema")

	// ErrNodeTimeout indicates a node exceeded its execution budget.
	ErrNodeTimeout = errors.New("node execution timed out")
)

// Sentinel errors for checkpointing and resume.
var (
	// ErrThreadIDRequired indicates checkpointing or resume was requested
	// without a thread ID.
	ErrThreadIDRequired = errors.New("thread ID required")

	// ErrCheckpointsRequired indicates Resume() was called without a
	// checkpoint manager.
	ErrCheckpointsRequired = errors.New("checkpoint manager required")

	// ErrNoCheckpoints indicates no checkpoints exist for the thread.
	ErrNoCheckpoints = errors.New("no checkpoints found for thread")

	// ErrInvalidResumeNode indicates a checkpoint references a node that
	// doesn't exist in the graph.
	ErrInvalidResumeNode = errors.New("invalid resume node")
)

// DefinitionError aggregates every violation Compile() found in a graph
// definition. Individual violations remain reachable through errors.Is:
//
//	_, err := graph.Compile()
//	if errors.Is(err, stategraph.ErrUnreachableNode) { ... }
type DefinitionError struct {
	// Errs are the individual violations, in detection order.
	Errs []error
}

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid graph definition: %s", strings.Join(msgs, "; "))
}

// Unwrap returns the individual violations for errors.Is/As support.
func (e *DefinitionError) Unwrap() []error {
	return e.Errs
}

// StateError wraps a state merge or validation failure with the offending key.
type StateError struct {
	// Key is the state key that failed.
	Key string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("state key %q: %v", e.Key, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StateError) Unwrap() error {
	return e.Err
}

// NodeError wraps an error with node context.
// It provides information about which node failed and what operation was attempted.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed ("execute", "merge", "snapshot", "routing").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from node execution.
// It includes the stack trace for debugging.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CancellationError captures where execution was cancelled.
// It preserves the state at the point of cancellation for recovery.
type CancellationError struct {
	// NodeID is the node that was about to execute or was executing.
	NodeID string
	// State is the state at cancellation.
	State State
	// Cause is the underlying cancellation cause (context.Canceled or
	// context.DeadlineExceeded).
	Cause error
	// WasExecuting is true if cancellation occurred during node execution.
	WasExecuting bool
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	if e.WasExecuting {
		return fmt.Sprintf("cancelled during node %s: %v", e.NodeID, e.Cause)
	}
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// RoutingError wraps a conditional edge failure.
// It provides context about which router failed and what it returned.
type RoutingError struct {
	// FromNode is the node with the conditional edge.
	FromNode string
	// Returned is the label the router returned.
	Returned string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RoutingError) Error() string {
	return fmt.Sprintf("router from %s returned %q: %v", e.FromNode, e.Returned, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RoutingError) Unwrap() error {
	return e.Err
}

// IterationLimitError provides context when the step cap is exceeded.
// It includes the state at termination for inspection.
type IterationLimitError struct {
	// Max is the configured iteration limit.
	Max int
	// LastNodeID is the node that would have executed next.
	LastNodeID string
	// State is the state at termination.
	State State
}

// Error implements the error interface.
func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("exceeded iteration limit (%d) at node %s", e.Max, e.LastNodeID)
}

// Unwrap returns ErrIterationLimit for errors.Is support.
func (e *IterationLimitError) Unwrap() error {
	return ErrIterationLimit
}

// BranchError wraps a failure inside one branch of a fan-out.
// The run fails with the first branch error; sibling work is discarded.
type BranchError struct {
	// FanOutNode is the node whose outgoing edges forked the branches.
	FanOutNode string
	// Branch is the entry node of the failed branch.
	Branch string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *BranchError) Error() string {
	return fmt.Sprintf("branch %s of fan-out %s: %v", e.Branch, e.FanOutNode, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *BranchError) Unwrap() error {
	return e.Err
}
