package checkpoint_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		cfg  config.Checkpoint
	}{
		{"memory", config.Checkpoint{Backend: config.BackendMemory}},
		{"file", config.Checkpoint{Backend: config.BackendFile, Path: filepath.Join(tmpDir, "files")}},
		{"sqlite", config.Checkpoint{Backend: config.BackendSQLite, Path: filepath.Join(tmpDir, "cp.db")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := checkpoint.Open(tt.cfg)
			require.NoError(t, err)
			defer store.Close()

			// The store is usable end to end.
			cp := checkpoint.New("thread-1", "work", 1, []byte(`{}`))
			require.NoError(t, store.Put(ctx, cp))

			got, err := store.Get(ctx, "thread-1", cp.ID)
			require.NoError(t, err)
			assert.Equal(t, cp.ID, got.ID)
		})
	}
}

// TestOpen_Redis only constructs the store: the go-redis client
// connects lazily, so no server is needed.
func TestOpen_Redis(t *testing.T) {
	store, err := checkpoint.Open(config.Checkpoint{
		Backend: config.BackendRedis,
		Addr:    "localhost:6379",
		Prefix:  "test:",
	})
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestBackends_ListsBuiltins(t *testing.T) {
	names := checkpoint.Backends()

	for _, want := range []string{
		config.BackendMemory,
		config.BackendFile,
		config.BackendSQLite,
		config.BackendMySQL,
		config.BackendRedis,
	} {
		assert.Contains(t, names, want)
	}
	assert.IsNonDecreasing(t, names)
}

func TestRegisterBackend_Custom(t *testing.T) {
	opened := 0
	checkpoint.RegisterBackend("custom-test", func(cfg config.Checkpoint) (checkpoint.Store, error) {
		opened++
		return checkpoint.NewMemoryStore(), nil
	})

	store, err := checkpoint.Open(config.Checkpoint{Backend: "custom-test"})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, 1, opened)
	assert.Contains(t, checkpoint.Backends(), "custom-test")
}

func TestRegisterBackend_Panics(t *testing.T) {
	assert.Panics(t, func() {
		checkpoint.RegisterBackend("", func(config.Checkpoint) (checkpoint.Store, error) {
			return nil, nil
		})
	})
	assert.Panics(t, func() {
		checkpoint.RegisterBackend("no-opener", nil)
	})
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.Checkpoint
		errMsg string
	}{
		{"empty backend", config.Checkpoint{}, "no checkpoint backend configured"},
		{"unknown backend", config.Checkpoint{Backend: "etcd"}, `unknown checkpoint backend "etcd"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := checkpoint.Open(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
