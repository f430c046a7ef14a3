package checkpoint

import (
	"context"
	"fmt"
)

// Manager wraps a Store with the thread-history operations runs are built
// on: saving step snapshots, inspecting a thread's chain, and branching it
// through rollback. Store failures surface as *PersistenceError so callers
// can distinguish infrastructure faults from graph-logic failures.
type Manager struct {
	store Store
}

// NewManager creates a Manager on top of a store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Save persists a checkpoint, assigning its thread sequence number.
func (m *Manager) Save(ctx context.Context, cp *Checkpoint) error {
	if err := m.store.Put(ctx, cp); err != nil {
		return &PersistenceError{Op: "save", ThreadID: cp.ThreadID, CheckpointID: cp.ID, Err: err}
	}
	return nil
}

// Get retrieves a checkpoint by ID.
func (m *Manager) Get(ctx context.Context, threadID, id string) (*Checkpoint, error) {
	cp, err := m.store.Get(ctx, threadID, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get", ThreadID: threadID, CheckpointID: id, Err: err}
	}
	return cp, nil
}

// GetLatest retrieves the most recent checkpoint of a thread: the resume
// position. Returns a *PersistenceError wrapping ErrNotFound when the
// thread has no checkpoints.
func (m *Manager) GetLatest(ctx context.Context, threadID string) (*Checkpoint, error) {
	cp, err := m.store.Latest(ctx, threadID)
	if err != nil {
		return nil, &PersistenceError{Op: "latest", ThreadID: threadID, Err: err}
	}
	return cp, nil
}

// GetStep retrieves the most recent checkpoint recording the given step.
// Rollback branches can reuse step numbers, so the newest match wins.
func (m *Manager) GetStep(ctx context.Context, threadID string, step int) (*Checkpoint, error) {
	cps, err := m.store.List(ctx, threadID)
	if err != nil {
		return nil, &PersistenceError{Op: "list", ThreadID: threadID, Err: err}
	}
	for i := len(cps) - 1; i >= 0; i-- {
		if cps[i].Step == step {
			return cps[i], nil
		}
	}
	return nil, &PersistenceError{Op: "get-step", ThreadID: threadID, Err: ErrNotFound}
}

// List returns metadata for every checkpoint of a thread, oldest first.
func (m *Manager) List(ctx context.Context, threadID string) ([]Info, error) {
	cps, err := m.store.List(ctx, threadID)
	if err != nil {
		return nil, &PersistenceError{Op: "list", ThreadID: threadID, Err: err}
	}
	infos := make([]Info, len(cps))
	for i, cp := range cps {
		infos[i] = cp.Info()
	}
	return infos, nil
}

// Checkpoints returns every checkpoint of a thread with full state,
// oldest first.
func (m *Manager) Checkpoints(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	cps, err := m.store.List(ctx, threadID)
	if err != nil {
		return nil, &PersistenceError{Op: "list", ThreadID: threadID, Err: err}
	}
	return cps, nil
}

// Rollback rewinds a thread to an earlier checkpoint by starting a new
// branch: it writes a fresh checkpoint carrying the target's state and
// position, with the target as parent. The next resume picks the branch
// root up as the thread's latest checkpoint. Nothing is deleted; the
// abandoned branch stays readable.
//
// Returns a *RollbackError wrapping ErrNotFound when the target checkpoint
// doesn't exist.
func (m *Manager) Rollback(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error) {
	target, err := m.store.Get(ctx, threadID, checkpointID)
	if err != nil {
		return nil, &RollbackError{ThreadID: threadID, CheckpointID: checkpointID, Err: err}
	}

	root := New(threadID, target.NodeID, target.Step, target.State).
		WithParent(target.ID).
		WithNextNode(target.NextNode).
		WithPhase(target.Phase)

	if err := m.store.Put(ctx, root); err != nil {
		return nil, &RollbackError{ThreadID: threadID, CheckpointID: checkpointID, Err: err}
	}
	return root, nil
}

// DeleteThread removes a thread's entire checkpoint history.
func (m *Manager) DeleteThread(ctx context.Context, threadID string) error {
	if err := m.store.DeleteThread(ctx, threadID); err != nil {
		return &PersistenceError{Op: "delete-thread", ThreadID: threadID, Err: err}
	}
	return nil
}

// PersistenceError reports a checkpoint store failure during a run or a
// history operation.
type PersistenceError struct {
	Op           string
	ThreadID     string
	CheckpointID string
	Err          error
}

func (e *PersistenceError) Error() string {
	if e.CheckpointID != "" {
		return fmt.Sprintf("checkpoint %s failed for thread %q (checkpoint %s): %v", e.Op, e.ThreadID, e.CheckpointID, e.Err)
	}
	return fmt.Sprintf("checkpoint %s failed for thread %q: %v", e.Op, e.ThreadID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// RollbackError reports a failed rollback, usually because the target
// checkpoint doesn't exist.
type RollbackError struct {
	ThreadID     string
	CheckpointID string
	Err          error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback of thread %q to checkpoint %s failed: %v", e.ThreadID, e.CheckpointID, e.Err)
}

func (e *RollbackError) Unwrap() error {
	return e.Err
}
