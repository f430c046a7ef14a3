package stategraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Context provides execution context to nodes and routers.
// It extends context.Context with engine metadata and a structured logger.
//
// Context is immutable after creation. The executor creates derived
// contexts for each node with updated NodeID/Step and an enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with thread, run, and
	// node context. Never returns nil - defaults to slog.Default() if not
	// configured.
	Logger() *slog.Logger

	// ThreadID returns the execution lineage this run belongs to.
	// Threads own their checkpoint chains; runs on the same thread resume
	// each other.
	ThreadID() string

	// RunID returns the unique identifier for this invocation.
	// Auto-generated if not configured; a resumed run gets a fresh RunID
	// while keeping its ThreadID.
	RunID() string

	// NodeID returns the node currently executing.
	// Empty string before execution starts.
	NodeID() string

	// Step returns the number of node executions merged so far in this
	// thread's history, counting any checkpointed progress it resumed from.
	Step() int
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger   *slog.Logger
	threadID string
	runID    string
	nodeID   string
	step     int
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// ThreadID returns the thread identifier.
func (c *executionContext) ThreadID() string {
	return c.threadID
}

// RunID returns the run identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// NodeID returns the current node identifier.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// Step returns the current step index.
func (c *executionContext) Step() int {
	return c.step
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger is enriched with thread_id, run_id, node_id, and step during
// execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		c.logger = logger
	}
}

// WithContextThreadID sets the thread identifier for the context.
// The WithThreadID RunOption takes precedence when both are given.
func WithContextThreadID(id string) ContextOption {
	return func(c *executionContext) {
		c.threadID = id
	}
}

// NewContext creates an execution context from a standard context.
// The returned Context wraps the provided context.Context and adds
// engine metadata.
//
// Example:
//
//	ctx := stategraph.NewContext(context.Background(),
//	    stategraph.WithLogger(myLogger),
//	    stategraph.WithContextThreadID("thread-42"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// withRun returns a new context bound to a thread and run.
// Used once per Run/Resume invocation.
func (c *executionContext) withRun(threadID, runID string) *executionContext {
	out := *c
	out.threadID = threadID
	out.runID = runID
	return &out
}

// withNode returns a new context with the node ID and step set.
// Used internally by the executor to enrich the context per-node.
func (c *executionContext) withNode(nodeID string, step int) *executionContext {
	return &executionContext{
		Context:  c.Context,
		logger:   c.logger.With("thread_id", c.threadID, "run_id", c.runID, "node_id", nodeID, "step", step),
		threadID: c.threadID,
		runID:    c.runID,
		nodeID:   nodeID,
		step:     step,
	}
}

// withStdContext swaps the embedded context.Context, preserving metadata.
// Used for branch cancellation during fan-out.
func (c *executionContext) withStdContext(std context.Context) *executionContext {
	out := *c
	out.Context = std
	return &out
}
