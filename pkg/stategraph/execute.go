package stategraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/event"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
)

// RunStatus reports how a run ended.
type RunStatus string

const (
	// StatusCompleted means the run routed to END.
	StatusCompleted RunStatus = "completed"

	// StatusPaused means the run suspended at an interrupt point. The
	// pause checkpoint is durable by the time the caller sees this
	// status; continue with Resume.
	StatusPaused RunStatus = "paused"

	// StatusFailed means a node, router, or the engine itself errored.
	StatusFailed RunStatus = "failed"
)

// RunResult is the outcome of one Run or Resume invocation.
type RunResult struct {
	// Status is completed, paused, or failed.
	Status RunStatus

	// State is the final state for a completed run, the state visible at
	// the pause point for a paused run, or the last fully merged state
	// for a failed run.
	State State

	// ThreadID is the checkpoint lineage this run wrote to. Generated
	// when the caller didn't pin one with WithThreadID.
	ThreadID string

	// RunID identifies this invocation.
	RunID string

	// Steps is the number of node executions merged into the thread so
	// far, including progress from earlier runs this one resumed.
	Steps int

	// ResumeToken is the ID of the checkpoint written at the pause
	// point. Empty unless Status is StatusPaused.
	ResumeToken string

	// NextNode is the node that executes when the run resumes. Set for
	// before-node pauses; empty for after-node pauses, where the
	// successor is routed against the state at resume time.
	NextNode string

	// Interrupt describes the pause. Nil unless Status is StatusPaused.
	Interrupt *Interrupt
}

// cursor is the executor's position in the graph when a run (re)enters
// the step loop.
type cursor struct {
	node string

	// resolved means node already executed and merged; the loop routes
	// to its successor instead of running it again.
	resolved bool

	// skipBefore suppresses node's before-interrupt once. Set when
	// resuming from a before-phase pause so the same interrupt doesn't
	// fire a second time.
	skipBefore bool
}

// runner carries the mutable state of one Run or Resume invocation.
// A runner is driven by a single goroutine; fan-out branches work on
// their own state copies and report back through channels.
type runner struct {
	cg  *CompiledGraph
	cfg *runConfig

	mgr              *checkpoint.Manager
	threadID         string
	runID            string
	lastCheckpointID string

	// resumedFrom is the checkpoint this invocation restored, empty for
	// fresh runs.
	resumedFrom string

	steps      int
	iterations int
	state      State
}

// Run executes the graph to END, to the first configured interrupt
// point, or to the first error.
//
// The initial state may only contain keys declared in the graph's
// schema. It is deep-copied before use; the caller's map is never
// mutated. Nodes likewise receive immutable snapshots and communicate
// only through the partial updates they return.
//
// The returned error is nil for completed and paused runs. When it is
// non-nil, the RunResult still carries the last fully merged state and
// Status is StatusFailed.
//
// ctx may be a plain context.Context or a Context from NewContext; run
// metadata is layered on top either way.
//
// Example:
//
//	res, err := compiled.Run(ctx, stategraph.State{"input": "hello"},
//	    stategraph.WithThreadID("thread-42"),
//	    stategraph.WithCheckpoints(store))
//	if err != nil {
//	    // res.State holds the state at the point of failure
//	}
func (cg *CompiledGraph) Run(ctx context.Context, initial State, opts ...RunOption) (*RunResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.controller != nil {
		for id := range cfg.controller.beforeNodes() {
			cfg.interruptBefore[id] = true
		}
		for id := range cfg.controller.afterNodes() {
			cfg.interruptAfter[id] = true
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	state, err := initial.Clone()
	if err != nil {
		return nil, err
	}
	if err := cg.schema.Validate(state); err != nil {
		return nil, err
	}

	ec, r := cg.newRunner(ctx, cfg, state)

	if r.mgr != nil {
		// A fresh run on a thread with history chains onto it.
		cp, err := r.mgr.GetLatest(ec, r.threadID)
		switch {
		case err == nil:
			r.lastCheckpointID = cp.ID
		case errors.Is(err, checkpoint.ErrNotFound):
		default:
			return nil, err
		}
	}

	return r.execute(ec, cursor{node: cg.entryPoint})
}

// newRunner resolves identity and logging against the caller's context.
func (cg *CompiledGraph) newRunner(ctx context.Context, cfg *runConfig, state State) (*executionContext, *runner) {
	ec, ok := ctx.(*executionContext)
	if !ok {
		ec = &executionContext{Context: ctx}
	}

	if cfg.logger == nil {
		cfg.logger = ec.logger
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	threadID := cfg.threadID
	if threadID == "" {
		threadID = ec.threadID
	}
	if threadID == "" {
		threadID = "thread-" + uuid.NewString()
	}
	runID := cfg.runID
	if runID == "" {
		runID = ec.runID
	}
	if runID == "" {
		runID = "run-" + uuid.NewString()
	}

	ec = ec.withRun(threadID, runID)
	ec.logger = cfg.logger

	r := &runner{
		cg:       cg,
		cfg:      cfg,
		threadID: threadID,
		runID:    runID,
		state:    state,
	}
	if cfg.store != nil {
		r.mgr = checkpoint.NewManager(cfg.store)
	}

	return ec, r
}

// execute wraps the step loop with run-level logging, metrics, tracing,
// and lifecycle events, and normalizes the three outcomes.
func (r *runner) execute(ec *executionContext, start cursor) (*RunResult, error) {
	startTime := time.Now()
	if r.resumedFrom != "" {
		observability.LogResume(r.cfg.logger, r.runID, r.threadID, r.resumedFrom)
		r.publish(ec, event.Event{Type: event.TypeRunResumed, NodeID: start.node, Step: r.steps, CheckpointID: r.resumedFrom})
	} else {
		observability.LogRunStart(r.cfg.logger, r.runID, r.threadID)
		r.publish(ec, event.Event{Type: event.TypeRunStarted, NodeID: start.node})
	}

	runCtx := ec
	var runSpan trace.Span
	if r.cfg.spans != nil {
		spanCtx, span := r.cfg.spans.StartRunSpan(ec, r.threadID, r.runID)
		runSpan = span
		runCtx = ec.withStdContext(spanCtx)
	}

	res, err := r.loop(runCtx, start)

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())
	if r.cfg.spans != nil {
		r.cfg.spans.EndSpanWithError(runSpan, err)
	}

	switch {
	case err != nil:
		r.cfg.metrics.RecordRun(ec, string(StatusFailed), duration)
		observability.LogRunError(r.cfg.logger, r.runID, err, durationMs, lastNodeOf(err))
		r.publish(ec, event.Event{Type: event.TypeRunFailed, NodeID: lastNodeOf(err), Error: err.Error()})
		return r.result(StatusFailed), err

	case res.Status == StatusPaused:
		r.cfg.metrics.RecordRun(ec, string(StatusPaused), duration)
		observability.LogRunPaused(r.cfg.logger, r.runID, res.Interrupt.NodeID, res.ResumeToken)
		r.publish(ec, event.Event{
			Type:         event.TypeRunPaused,
			NodeID:       res.Interrupt.NodeID,
			Step:         res.Steps,
			CheckpointID: res.ResumeToken,
			Phase:        string(res.Interrupt.Phase),
		})
		return res, nil

	default:
		r.cfg.metrics.RecordRun(ec, string(StatusCompleted), duration)
		observability.LogRunComplete(r.cfg.logger, r.runID, durationMs, r.steps)
		r.publish(ec, event.Event{Type: event.TypeRunCompleted, Step: r.steps})
		return res, nil
	}
}

// loop is the step loop. One pass per node visit:
//
//  1. enforce the iteration limit and check for cancellation
//  2. pause at a before-interrupt, unless resuming past one
//  3. run the node on a snapshot and merge its update
//  4. pause at an after-interrupt
//  5. route: fan-out, router, or static edge
//  6. commit a step checkpoint when a store is configured
//
// Revisiting a node is legal; cycles end through routing or the
// iteration limit.
func (r *runner) loop(ec *executionContext, cur cursor) (*RunResult, error) {
	current := cur.node
	resolved := cur.resolved
	skipBefore := cur.skipBefore

	for current != END {
		r.iterations++
		if r.iterations > r.cfg.maxIterations {
			return nil, &IterationLimitError{
				Max:        r.cfg.maxIterations,
				LastNodeID: current,
				State:      r.state,
			}
		}

		select {
		case <-ec.Done():
			return nil, &CancellationError{
				NodeID:       current,
				State:        r.state,
				Cause:        context.Cause(ec),
				WasExecuting: false,
			}
		default:
		}

		if !resolved {
			if r.cfg.interruptBefore[current] && !skipBefore {
				return r.pause(ec, current, InterruptBefore)
			}
			skipBefore = false

			update, err := r.executeNode(ec, current, r.state, r.steps+1)
			if err != nil {
				return nil, err
			}

			merged, err := r.cg.schema.Merge(r.state, update)
			if err != nil {
				return nil, err
			}
			r.state = merged
			r.steps++

			if r.cfg.interruptAfter[current] {
				return r.pause(ec, current, InterruptAfter)
			}
		}
		resolved = false

		if fo, ok := r.cg.getFanOut(current); ok {
			if err := r.runFanOut(ec, fo); err != nil {
				return nil, err
			}
			if r.mgr != nil {
				// The merge commit points at the join so a resumed run
				// skips straight there instead of re-dispatching the
				// branches.
				if _, err := r.saveCheckpoint(ec, current, fo.JoinNodeID, ""); err != nil {
					return nil, err
				}
			}
			current = fo.JoinNodeID
			continue
		}

		next, err := r.advance(ec, current, r.state)
		if err != nil {
			return nil, err
		}
		if r.mgr != nil {
			if _, err := r.saveCheckpoint(ec, current, "", ""); err != nil {
				return nil, err
			}
		}
		current = next
	}

	return r.result(StatusCompleted), nil
}

// pause persists the interrupt checkpoint and returns the paused result.
// The save is synchronous: by the time the caller observes StatusPaused
// the pause is durable.
func (r *runner) pause(ec *executionContext, nodeID string, phase InterruptPhase) (*RunResult, error) {
	nextNode := ""
	if phase == InterruptBefore {
		nextNode = nodeID
	}

	cp, err := r.saveCheckpoint(ec, nodeID, nextNode, string(phase))
	if err != nil {
		return nil, err
	}

	intr := newInterrupt(r.threadID, nodeID, phase, r.steps, cp.ID)
	if r.cfg.controller != nil {
		r.cfg.controller.record(intr)
	}
	r.cfg.metrics.RecordInterrupt(ec, nodeID, string(phase))
	r.publish(ec, event.Event{
		Type:         event.TypeInterruptRaised,
		NodeID:       nodeID,
		Step:         r.steps,
		CheckpointID: cp.ID,
		Phase:        string(phase),
	})

	res := r.result(StatusPaused)
	res.ResumeToken = cp.ID
	res.NextNode = nextNode
	res.Interrupt = intr.Clone()
	return res, nil
}

// saveCheckpoint serializes the current state and appends a checkpoint
// to the thread's chain. Store failures are fatal to the run.
func (r *runner) saveCheckpoint(ec *executionContext, nodeID, nextNode, phase string) (*checkpoint.Checkpoint, error) {
	data, err := json.Marshal(r.state)
	if err != nil {
		return nil, &checkpoint.PersistenceError{
			Op:       "serialize",
			ThreadID: r.threadID,
			Err:      err,
		}
	}

	cp := checkpoint.New(r.threadID, nodeID, r.steps, data)
	if r.lastCheckpointID != "" {
		cp = cp.WithParent(r.lastCheckpointID)
	}
	if nextNode != "" {
		cp = cp.WithNextNode(nextNode)
	}
	if phase != "" {
		cp = cp.WithPhase(phase)
	}

	if err := r.mgr.Save(ec, cp); err != nil {
		observability.LogCheckpointError(r.cfg.logger, nodeID, "save", err)
		return nil, err
	}
	r.lastCheckpointID = cp.ID

	observability.LogCheckpoint(r.cfg.logger, cp.ID, nodeID, len(data))
	r.cfg.metrics.RecordCheckpoint(ec, nodeID, int64(len(data)))
	r.publish(ec, event.Event{
		Type:         event.TypeCheckpointSaved,
		NodeID:       nodeID,
		Step:         r.steps,
		CheckpointID: cp.ID,
	})
	return cp, nil
}

// executeNode runs one node on a snapshot of the given state with
// per-node logging, metrics, and tracing. Fan-out branches call it with
// their own state copies and branch-local step numbers, so it must not
// touch r.state or r.steps.
func (r *runner) executeNode(ec *executionContext, nodeID string, state State, step int) (PartialState, error) {
	fn, ok := r.cg.getNode(nodeID)
	if !ok {
		// Unreachable after a successful Compile.
		return nil, &NodeError{NodeID: nodeID, Op: "lookup", Err: fmt.Errorf("node not found: %s", nodeID)}
	}

	snap, err := state.Clone()
	if err != nil {
		return nil, &NodeError{NodeID: nodeID, Op: "snapshot", Err: err}
	}

	nodeCtx := ec.withNode(nodeID, step)
	observability.LogNodeStart(r.cfg.logger, nodeID, step)
	r.publish(ec, event.Event{Type: event.TypeNodeStarted, NodeID: nodeID, Step: step})

	var nodeSpan trace.Span
	if r.cfg.spans != nil {
		spanCtx, span := r.cfg.spans.StartNodeSpan(nodeCtx, nodeID, step)
		nodeSpan = span
		nodeCtx = nodeCtx.withStdContext(spanCtx)
	}

	start := time.Now()
	update, err := r.invoke(nodeCtx, nodeID, fn, snap)
	duration := time.Since(start)

	r.cfg.metrics.RecordNodeExecution(ec, nodeID, duration, err)
	if r.cfg.spans != nil {
		r.cfg.spans.EndSpanWithError(nodeSpan, err)
	}

	if err != nil {
		observability.LogNodeError(r.cfg.logger, nodeID, err)
		r.publish(ec, event.Event{Type: event.TypeNodeFailed, NodeID: nodeID, Step: step, Error: err.Error()})
		return nil, err
	}
	observability.LogNodeComplete(r.cfg.logger, nodeID, step, float64(duration.Milliseconds()))
	r.publish(ec, event.Event{Type: event.TypeNodeCompleted, NodeID: nodeID, Step: step})
	return update, nil
}

// invoke applies the configured per-node timeout around the call. With
// no timeout the node runs inline on the executor goroutine.
func (r *runner) invoke(ec *executionContext, nodeID string, fn NodeFunc, snap State) (PartialState, error) {
	if r.cfg.nodeTimeout <= 0 {
		return call(ec, nodeID, fn, snap)
	}

	std, cancel := context.WithTimeout(ec.Context, r.cfg.nodeTimeout)
	defer cancel()
	tctx := ec.withStdContext(std)

	type outcome struct {
		update PartialState
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		update, err := call(tctx, nodeID, fn, snap)
		done <- outcome{update, err}
	}()

	select {
	case out := <-done:
		return out.update, out.err
	case <-std.Done():
		if errors.Is(std.Err(), context.DeadlineExceeded) {
			// Fatal to the run. A node that wants timeouts to be
			// routable should honor its context deadline and return a
			// status field instead.
			return nil, &NodeError{
				NodeID: nodeID,
				Op:     "timeout",
				Err:    fmt.Errorf("%w after %s", ErrNodeTimeout, r.cfg.nodeTimeout),
			}
		}
		return nil, &CancellationError{
			NodeID:       nodeID,
			State:        snap,
			Cause:        context.Cause(std),
			WasExecuting: true,
		}
	}
}

// call invokes the node function, converting panics and application
// errors into engine error types.
func call(ctx Context, nodeID string, fn NodeFunc, snap State) (update PartialState, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			update = nil
			err = &PanicError{
				NodeID: nodeID,
				Value:  rec,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	update, err = fn(ctx, snap)
	if err != nil {
		return nil, &NodeError{NodeID: nodeID, Op: "execute", Err: err}
	}
	return update, nil
}

// advance resolves the node after current: through its router when one
// is registered, otherwise along its single static edge. Routers see the
// given post-merge state. Fan-outs are dispatched by the loop before
// advance is consulted.
func (r *runner) advance(ec *executionContext, current string, state State) (string, error) {
	if ce, ok := r.cg.getRouter(current); ok {
		routerCtx := ec.withNode(current, r.steps)
		label := ce.router(routerCtx, state)
		if label == "" {
			return "", &RoutingError{FromNode: current, Returned: label, Err: ErrInvalidRouterResult}
		}

		next := label
		if ce.labels != nil {
			target, ok := ce.labels[label]
			if !ok {
				return "", &RoutingError{FromNode: current, Returned: label, Err: ErrUnknownRouteLabel}
			}
			next = target
		}
		if next != END && !r.cg.HasNode(next) {
			return "", &RoutingError{FromNode: current, Returned: label, Err: ErrUnknownRouteLabel}
		}
		return next, nil
	}

	edges := r.cg.getEdges(current)
	if len(edges) == 0 {
		// Unreachable after a successful Compile: every node routes
		// somewhere.
		return "", &NodeError{NodeID: current, Op: "routing", Err: fmt.Errorf("no outgoing edge from node %s", current)}
	}
	return edges[0], nil
}

// publish sends a lifecycle event, silently skipping when no bus is
// configured. Publish failures never fail the run.
func (r *runner) publish(ec *executionContext, evt event.Event) {
	if r.cfg.bus == nil {
		return
	}
	evt.ThreadID = r.threadID
	evt.RunID = r.runID
	if err := r.cfg.bus.Publish(ec, evt); err != nil {
		r.cfg.logger.Debug("event publish failed", "type", evt.Type, "error", err)
	}
}

// result snapshots the runner into a RunResult.
func (r *runner) result(status RunStatus) *RunResult {
	return &RunResult{
		Status:   status,
		State:    r.state,
		ThreadID: r.threadID,
		RunID:    r.runID,
		Steps:    r.steps,
	}
}

// lastNodeOf extracts the node a run error points at, for logs.
func lastNodeOf(err error) string {
	var nodeErr *NodeError
	if errors.As(err, &nodeErr) {
		return nodeErr.NodeID
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return panicErr.NodeID
	}
	var limitErr *IterationLimitError
	if errors.As(err, &limitErr) {
		return limitErr.LastNodeID
	}
	var cancelErr *CancellationError
	if errors.As(err, &cancelErr) {
		return cancelErr.NodeID
	}
	var routeErr *RoutingError
	if errors.As(err, &routeErr) {
		return routeErr.FromNode
	}
	var branchErr *BranchError
	if errors.As(err, &branchErr) {
		return branchErr.FanOutNode
	}
	return ""
}
