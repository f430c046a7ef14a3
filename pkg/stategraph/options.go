package stategraph

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/event"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
)

// DefaultMaxIterations bounds a run when WithMaxIterations isn't given.
// Cycles are legal graph shapes, so the limit is the only protection
// against a run that never routes to END.
const DefaultMaxIterations = 1000

// runConfig holds configuration for graph execution.
type runConfig struct {
	threadID string
	runID    string
	logger   *slog.Logger

	store           checkpoint.Store
	interruptBefore map[string]bool
	interruptAfter  map[string]bool
	controller      *InterruptController

	maxIterations  int
	nodeTimeout    time.Duration
	maxConcurrency int

	bus     event.Bus
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	resumeUpdate PartialState
}

// defaultRunConfig returns the default execution configuration.
// The logger is left nil here; Run resolves it against the caller's
// Context so a logger configured via NewContext is honored.
func defaultRunConfig() *runConfig {
	return &runConfig{
		interruptBefore: make(map[string]bool),
		interruptAfter:  make(map[string]bool),
		maxIterations:   DefaultMaxIterations,
		metrics:         observability.NoopMetrics{},
	}
}

// validate checks option consistency before any node runs.
func (c *runConfig) validate() error {
	if c.maxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", c.maxIterations)
	}
	if c.maxConcurrency < 0 {
		return fmt.Errorf("max concurrency must be non-negative, got %d", c.maxConcurrency)
	}
	if c.store == nil && (len(c.interruptBefore) > 0 || len(c.interruptAfter) > 0) {
		return fmt.Errorf("%w: interrupts pause by writing a checkpoint", ErrCheckpointsRequired)
	}
	return nil
}

// interruptsEnabled reports whether any interrupt point is configured.
func (c *runConfig) interruptsEnabled() bool {
	return len(c.interruptBefore) > 0 || len(c.interruptAfter) > 0
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithThreadID pins the run to a durable thread. All checkpoints the run
// writes chain onto that thread's history, and Resume continues it.
// When omitted, Run generates a fresh thread ID (returned in RunResult).
func WithThreadID(threadID string) RunOption {
	return func(c *runConfig) {
		c.threadID = threadID
	}
}

// WithRunID overrides the generated run ID. Mostly useful in tests and
// when correlating with an external system.
func WithRunID(runID string) RunOption {
	return func(c *runConfig) {
		c.runID = runID
	}
}

// WithRunLogger sets the logger for the run. Default: the logger of the
// Context passed to Run, falling back to slog.Default().
func WithRunLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCheckpoints enables checkpointing against the given store. A
// checkpoint is written after every committed step, so the thread can be
// resumed, inspected, and rolled back. Store failures abort the run with
// a *checkpoint.PersistenceError.
func WithCheckpoints(store checkpoint.Store) RunOption {
	return func(c *runConfig) {
		c.store = store
	}
}

// WithInterruptBefore pauses the run immediately before any of the given
// nodes executes. Requires WithCheckpoints: the pause is durable.
func WithInterruptBefore(nodes ...string) RunOption {
	return func(c *runConfig) {
		for _, n := range nodes {
			c.interruptBefore[n] = true
		}
	}
}

// WithInterruptAfter pauses the run immediately after any of the given
// nodes executes and its update is merged. Requires WithCheckpoints.
func WithInterruptAfter(nodes ...string) RunOption {
	return func(c *runConfig) {
		for _, n := range nodes {
			c.interruptAfter[n] = true
		}
	}
}

// WithInterrupts attaches an InterruptController. Its configured points
// add to any WithInterruptBefore/WithInterruptAfter sets, and every pause
// the run takes is recorded on the controller.
func WithInterrupts(controller *InterruptController) RunOption {
	return func(c *runConfig) {
		c.controller = controller
	}
}

// WithMaxIterations sets the maximum number of node executions.
// Default: DefaultMaxIterations.
//
// This prevents non-terminating graphs from hanging forever. If a run
// exceeds the limit it fails with an *IterationLimitError.
//
// Example:
//
//	result, err := compiled.Run(ctx, state, stategraph.WithMaxIterations(100))
func WithMaxIterations(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithNodeTimeout bounds each node execution. A node that runs past the
// timeout fails the run with a *NodeError wrapping ErrNodeTimeout.
// Zero (the default) disables the bound.
func WithNodeTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		c.nodeTimeout = d
	}
}

// WithMaxConcurrency caps how many fan-out branches execute at once.
// Zero (the default) runs all branches concurrently.
func WithMaxConcurrency(n int) RunOption {
	return func(c *runConfig) {
		c.maxConcurrency = n
	}
}

// WithEventBus publishes run lifecycle events to the given bus.
func WithEventBus(bus event.Bus) RunOption {
	return func(c *runConfig) {
		c.bus = bus
	}
}

// WithMetrics records run, node, and checkpoint metrics.
// Default: observability.NoopMetrics.
func WithMetrics(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing emits a span per run and per node execution.
func WithTracing(spans observability.SpanManager) RunOption {
	return func(c *runConfig) {
		c.spans = spans
	}
}

// WithResumeUpdate merges a partial update into the restored state before
// a resumed run continues. Typical for interrupt flows: a human approves
// and injects their decision. Only Resume applies it; Run ignores it.
func WithResumeUpdate(update PartialState) RunOption {
	return func(c *runConfig) {
		c.resumeUpdate = update
	}
}
