// Package checkpoint provides persistent checkpoint storage for pause,
// resume, and rollback of graph runs.
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// Store persists checkpoints. Checkpoints are append-only: a store never
// rewrites or deletes individual entries, it only grows thread chains.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put stores a checkpoint, assigning it the next sequence number in
	// its thread. The checkpoint's Seq field is set on success.
	Put(ctx context.Context, cp *Checkpoint) error

	// Get retrieves a checkpoint by ID within a thread.
	// Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, threadID, id string) (*Checkpoint, error)

	// List returns all checkpoints for a thread ordered oldest-first by
	// sequence. Returns an empty slice (not an error) for an unknown
	// thread.
	List(ctx context.Context, threadID string) ([]*Checkpoint, error)

	// Latest returns the most recently stored checkpoint for a thread.
	// Returns ErrNotFound if the thread has no checkpoints.
	Latest(ctx context.Context, threadID string) (*Checkpoint, error)

	// DeleteThread removes all checkpoints for a thread.
	// Returns nil if the thread has no checkpoints.
	DeleteThread(ctx context.Context, threadID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides checkpoint metadata without the state payload.
type Info struct {
	ID        string
	ThreadID  string
	Seq       int64
	Step      int
	ParentID  string
	NodeID    string
	Phase     string
	CreatedAt time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")

	// ErrVersionMismatch indicates a checkpoint written by an
	// incompatible format version.
	ErrVersionMismatch = errors.New("checkpoint version mismatch")
)
