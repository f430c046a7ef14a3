package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists checkpoints to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite checkpoint store.
// The path should be a file path (e.g., "./checkpoints.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (thread_id, id)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_checkpoints_thread_seq
		ON checkpoints(thread_id, seq)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Put implements Store. The sequence number is assigned inside a
// transaction so concurrent writers on the same thread never collide.
func (s *SQLiteStore) Put(ctx context.Context, cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM checkpoints WHERE thread_id = ?
	`, cp.ThreadID).Scan(&seq)
	if err != nil {
		return fmt.Errorf("assign sequence: %w", err)
	}
	cp.Seq = seq

	data, err := cp.Marshal()
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO checkpoints (id, thread_id, seq, data)
		VALUES (?, ?, ?, ?)
	`, cp.ID, cp.ThreadID, cp.Seq, data); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, threadID, id string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM checkpoints
		WHERE thread_id = ? AND id = ?
	`, threadID, id).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return Unmarshal(data)
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM checkpoints
		WHERE thread_id = ?
		ORDER BY seq
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	cps := []*Checkpoint{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cp, err := Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("parse checkpoint: %w", err)
		}
		cps = append(cps, cp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return cps, nil
}

// Latest implements Store.
func (s *SQLiteStore) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM checkpoints
		WHERE thread_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, threadID).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest checkpoint: %w", err)
	}
	return Unmarshal(data)
}

// DeleteThread implements Store.
func (s *SQLiteStore) DeleteThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM checkpoints WHERE thread_id = ?
	`, threadID); err != nil {
		return fmt.Errorf("delete thread checkpoints: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
