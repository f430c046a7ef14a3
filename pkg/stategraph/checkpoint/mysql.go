package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// MySQLStore persists checkpoints to MySQL/MariaDB. Designed for
// deployments where threads must survive process restarts and be resumable
// from multiple workers.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore creates a MySQL-backed checkpoint store.
//
// The DSN format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...]
//
// Example:
//
//	user:password@tcp(localhost:3306)/workflows?parseTime=true
//
// Credentials belong in the environment, not in source:
//
//	store, err := checkpoint.NewMySQLStore(os.Getenv("MYSQL_DSN"))
//
// The store creates its table if missing and configures connection pooling.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}

	// Connection pool tuning
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	store := &MySQLStore{db: db}
	if err := store.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}
	return store, nil
}

func (m *MySQLStore) createTable(ctx context.Context) error {
	table := `
		CREATE TABLE IF NOT EXISTS graph_checkpoints (
			id VARCHAR(64) NOT NULL,
			thread_id VARCHAR(255) NOT NULL,
			seq BIGINT NOT NULL,
			data JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (thread_id, id),
			UNIQUE KEY unique_thread_seq (thread_id, seq)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, table); err != nil {
		return err
	}
	return nil
}

// Put implements Store. The sequence number is assigned under a row lock
// so concurrent writers on the same thread never collide.
func (m *MySQLStore) Put(ctx context.Context, cp *Checkpoint) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrStoreClosed
	}
	m.mu.RUnlock()

	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM graph_checkpoints
		WHERE thread_id = ? FOR UPDATE
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
		INSERT INTO graph_checkpoints (id, thread_id, seq, data)
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
func (m *MySQLStore) Get(ctx context.Context, threadID, id string) (*Checkpoint, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	m.mu.RUnlock()

	var data []byte
	err := m.db.QueryRowContext(ctx, `
		SELECT data FROM graph_checkpoints
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
func (m *MySQLStore) List(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	m.mu.RUnlock()

	rows, err := m.db.QueryContext(ctx, `
		SELECT data FROM graph_checkpoints
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
func (m *MySQLStore) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	m.mu.RUnlock()

	var data []byte
	err := m.db.QueryRowContext(ctx, `
		SELECT data FROM graph_checkpoints
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
func (m *MySQLStore) DeleteThread(ctx context.Context, threadID string) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrStoreClosed
	}
	m.mu.RUnlock()

	if _, err := m.db.ExecContext(ctx, `
		DELETE FROM graph_checkpoints WHERE thread_id = ?
	`, threadID); err != nil {
		return fmt.Errorf("delete thread checkpoints: %w", err)
	}
	return nil
}

// Close closes the connection pool. Double-close is a no-op.
func (m *MySQLStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

// Ping verifies the database connection is alive. Useful for health checks.
func (m *MySQLStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrStoreClosed
	}
	m.mu.RUnlock()

	return m.db.PingContext(ctx)
}

// Stats returns connection pool statistics for monitoring.
func (m *MySQLStore) Stats() sql.DBStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.db.Stats()
}
