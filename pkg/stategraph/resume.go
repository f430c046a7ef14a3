package stategraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
)

// Resume continues a paused thread from its latest checkpoint.
//
// WithThreadID and WithCheckpoints are required: they name the thread
// and the store holding its chain. The restored state is exactly the
// paused snapshot; WithResumeUpdate merges a caller-supplied partial
// update into it before any node runs, which is how a human decision
// reaches an interrupted graph.
//
// The run re-enters the step loop at the node following the pause.
// After a before-node pause that is the interrupted node itself, and
// its before-interrupt does not fire a second time. After an after-node
// pause the successor is routed against the restored (and possibly
// updated) state.
//
// With deterministic nodes and an unmodified state, a resumed run
// produces the same execution an uninterrupted run would have from that
// point.
//
// Example:
//
//	res, err := compiled.Resume(ctx,
//	    stategraph.WithThreadID("thread-42"),
//	    stategraph.WithCheckpoints(store),
//	    stategraph.WithResumeUpdate(stategraph.PartialState{"approved": true}))
func (cg *CompiledGraph) Resume(ctx context.Context, opts ...RunOption) (*RunResult, error) {
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
	if cfg.threadID == "" {
		return nil, ErrThreadIDRequired
	}
	if cfg.store == nil {
		return nil, ErrCheckpointsRequired
	}

	mgr := checkpoint.NewManager(cfg.store)
	cp, err := mgr.GetLatest(ctx, cfg.threadID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return nil, fmt.Errorf("%w: thread %s", ErrNoCheckpoints, cfg.threadID)
		}
		return nil, err
	}
	if cp.Version != checkpoint.Version {
		return nil, fmt.Errorf("%w: got %d, want %d",
			checkpoint.ErrVersionMismatch, cp.Version, checkpoint.Version)
	}

	raw, err := cp.StateMap()
	if err != nil {
		return nil, &checkpoint.PersistenceError{
			Op:           "decode",
			ThreadID:     cfg.threadID,
			CheckpointID: cp.ID,
			Err:          err,
		}
	}
	state := State(raw)
	if err := cg.schema.Validate(state); err != nil {
		return nil, err
	}
	if len(cfg.resumeUpdate) > 0 {
		state, err = cg.schema.Merge(state, cfg.resumeUpdate)
		if err != nil {
			return nil, err
		}
	}

	cur, err := cg.resumeCursor(cp)
	if err != nil {
		return nil, err
	}

	ec, r := cg.newRunner(ctx, cfg, state)
	r.lastCheckpointID = cp.ID
	r.resumedFrom = cp.ID
	r.steps = cp.Step

	if cfg.controller != nil {
		cfg.controller.markResumed(cp.ID)
	}

	return r.execute(ec, cur)
}

// resumeCursor maps a checkpoint back to a loop position.
//
// A checkpoint carrying NextNode re-enters there directly; a
// before-phase pause additionally suppresses that node's
// before-interrupt so the resumed run makes progress instead of pausing
// again. Any other checkpoint re-enters at its own node in the resolved
// position, so routing runs again against the restored state.
func (cg *CompiledGraph) resumeCursor(cp *checkpoint.Checkpoint) (cursor, error) {
	if cp.NextNode != "" {
		if cp.NextNode != END && !cg.HasNode(cp.NextNode) {
			return cursor{}, fmt.Errorf("%w: %s", ErrInvalidResumeNode, cp.NextNode)
		}
		return cursor{
			node:       cp.NextNode,
			skipBefore: cp.Phase == checkpoint.PhaseBefore,
		}, nil
	}

	if cp.NodeID != END && !cg.HasNode(cp.NodeID) {
		return cursor{}, fmt.Errorf("%w: %s", ErrInvalidResumeNode, cp.NodeID)
	}
	return cursor{node: cp.NodeID, resolved: true}, nil
}
