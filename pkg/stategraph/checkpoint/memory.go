package checkpoint

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory checkpoint store for testing and
// single-process use. Data is lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]*Checkpoint // threadID -> checkpoints in seq order
	closed  bool
}

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads: make(map[string][]*Checkpoint),
	}
}

// Put implements Store.
func (m *MemoryStore) Put(ctx context.Context, cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	chain := m.threads[cp.ThreadID]
	cp.Seq = int64(len(chain)) + 1

	// Store a copy so later caller mutations don't leak in.
	m.threads[cp.ThreadID] = append(chain, cp.Clone())
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, threadID, id string) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, cp := range m.threads[threadID] {
		if cp.ID == id {
			return cp.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chain := m.threads[threadID]
	out := make([]*Checkpoint, len(chain))
	for i, cp := range chain {
		out[i] = cp.Clone()
	}
	return out, nil
}

// Latest implements Store.
func (m *MemoryStore) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chain := m.threads[threadID]
	if len(chain) == 0 {
		return nil, ErrNotFound
	}
	return chain[len(chain)-1].Clone(), nil
}

// DeleteThread implements Store.
func (m *MemoryStore) DeleteThread(ctx context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	delete(m.threads, threadID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.threads = nil
	return nil
}

// Len returns the total number of checkpoints across all threads.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, chain := range m.threads {
		count += len(chain)
	}
	return count
}
