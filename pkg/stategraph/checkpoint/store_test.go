package checkpoint_test

import (
	"context"
	"testing"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactory creates a store instance for testing.
type storeFactory func(t *testing.T) checkpoint.Store

// storeContractTest runs contract tests against any Store implementation.
func storeContractTest(t *testing.T, name string, factory storeFactory) {
	ctx := context.Background()

	t.Run(name+"/Put_AssignsSequence", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		first := checkpoint.New("thread-1", "extract", 1, []byte(`{"n":1}`))
		second := checkpoint.New("thread-1", "transform", 2, []byte(`{"n":2}`))
		third := checkpoint.New("thread-1", "load", 3, []byte(`{"n":3}`))

		require.NoError(t, store.Put(ctx, first))
		require.NoError(t, store.Put(ctx, second))
		require.NoError(t, store.Put(ctx, third))

		assert.Equal(t, int64(1), first.Seq)
		assert.Equal(t, int64(2), second.Seq)
		assert.Equal(t, int64(3), third.Seq)
	})

	t.Run(name+"/Put_IndependentThreads", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		a := checkpoint.New("thread-a", "start", 1, []byte(`{}`))
		b := checkpoint.New("thread-b", "start", 1, []byte(`{}`))
		require.NoError(t, store.Put(ctx, a))
		require.NoError(t, store.Put(ctx, b))

		// Each thread has its own sequence counter.
		assert.Equal(t, int64(1), a.Seq)
		assert.Equal(t, int64(1), b.Seq)
	})

	t.Run(name+"/Get_RoundTrip", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		cp := checkpoint.New("thread-1", "review", 4, []byte(`{"status":"pending"}`)).
			WithParent("ckpt-parent").
			WithNextNode("apply").
			WithPhase(checkpoint.PhaseBefore)
		require.NoError(t, store.Put(ctx, cp))

		got, err := store.Get(ctx, "thread-1", cp.ID)
		require.NoError(t, err)

		assert.Equal(t, cp.ID, got.ID)
		assert.Equal(t, "thread-1", got.ThreadID)
		assert.Equal(t, cp.Seq, got.Seq)
		assert.Equal(t, 4, got.Step)
		assert.Equal(t, "ckpt-parent", got.ParentID)
		assert.Equal(t, "review", got.NodeID)
		assert.Equal(t, "apply", got.NextNode)
		assert.Equal(t, checkpoint.PhaseBefore, got.Phase)
		assert.Equal(t, checkpoint.Version, got.Version)
		assert.JSONEq(t, `{"status":"pending"}`, string(got.State))
		assert.WithinDuration(t, cp.CreatedAt, got.CreatedAt, time.Second)
	})

	t.Run(name+"/Get_NotFound", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Get(ctx, "thread-missing", "ckpt-missing")
		assert.ErrorIs(t, err, checkpoint.ErrNotFound)
	})

	t.Run(name+"/Get_WrongThread", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		cp := checkpoint.New("thread-1", "start", 1, []byte(`{}`))
		require.NoError(t, store.Put(ctx, cp))

		_, err := store.Get(ctx, "thread-2", cp.ID)
		assert.ErrorIs(t, err, checkpoint.ErrNotFound)
	})

	t.Run(name+"/List_OldestFirst", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		for step := 1; step <= 3; step++ {
			cp := checkpoint.New("thread-1", "work", step, []byte(`{}`))
			require.NoError(t, store.Put(ctx, cp))
		}

		cps, err := store.List(ctx, "thread-1")
		require.NoError(t, err)
		require.Len(t, cps, 3)

		for i, cp := range cps {
			assert.Equal(t, int64(i+1), cp.Seq)
			assert.Equal(t, i+1, cp.Step)
		}
	})

	t.Run(name+"/List_Empty", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		cps, err := store.List(ctx, "thread-missing")
		require.NoError(t, err)
		assert.Empty(t, cps)
	})

	t.Run(name+"/Latest", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		first := checkpoint.New("thread-1", "start", 1, []byte(`{}`))
		second := checkpoint.New("thread-1", "finish", 2, []byte(`{}`))
		require.NoError(t, store.Put(ctx, first))
		require.NoError(t, store.Put(ctx, second))

		latest, err := store.Latest(ctx, "thread-1")
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)
		assert.Equal(t, int64(2), latest.Seq)
	})

	t.Run(name+"/Latest_Empty", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Latest(ctx, "thread-missing")
		assert.ErrorIs(t, err, checkpoint.ErrNotFound)
	})

	t.Run(name+"/DeleteThread", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Put(ctx, checkpoint.New("thread-1", "a", 1, []byte(`{}`))))
		require.NoError(t, store.Put(ctx, checkpoint.New("thread-1", "b", 2, []byte(`{}`))))
		require.NoError(t, store.Put(ctx, checkpoint.New("thread-2", "a", 1, []byte(`{}`))))

		require.NoError(t, store.DeleteThread(ctx, "thread-1"))

		cps, err := store.List(ctx, "thread-1")
		require.NoError(t, err)
		assert.Empty(t, cps)

		// Other threads are untouched.
		cps, err = store.List(ctx, "thread-2")
		require.NoError(t, err)
		assert.Len(t, cps, 1)
	})

	t.Run(name+"/DeleteThread_Nonexistent", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		assert.NoError(t, store.DeleteThread(ctx, "thread-missing"))
	})

	t.Run(name+"/StateIsolation", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		cp := checkpoint.New("thread-1", "start", 1, []byte(`{"k":"original"}`))
		require.NoError(t, store.Put(ctx, cp))

		// Mutating the caller's copy after Put must not affect the store.
		cp.State[6] = 'X'

		got, err := store.Get(ctx, "thread-1", cp.ID)
		require.NoError(t, err)
		assert.JSONEq(t, `{"k":"original"}`, string(got.State))
	})

	t.Run(name+"/Close_ThenError", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())

		err := store.Put(ctx, checkpoint.New("thread-1", "a", 1, []byte(`{}`)))
		assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)

		_, err = store.Get(ctx, "thread-1", "ckpt-x")
		assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)

		_, err = store.List(ctx, "thread-1")
		assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)

		_, err = store.Latest(ctx, "thread-1")
		assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)

		err = store.DeleteThread(ctx, "thread-1")
		assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
	})
}

// TestMemoryStore runs contract tests against MemoryStore.
func TestMemoryStore(t *testing.T) {
	storeContractTest(t, "MemoryStore", func(t *testing.T) checkpoint.Store {
		return checkpoint.NewMemoryStore()
	})
}

// TestFileStore runs contract tests against FileStore.
func TestFileStore(t *testing.T) {
	storeContractTest(t, "FileStore", func(t *testing.T) checkpoint.Store {
		store, err := checkpoint.NewFileStore(t.TempDir())
		require.NoError(t, err)
		return store
	})
}

// TestSQLiteStore runs contract tests against SQLiteStore.
func TestSQLiteStore(t *testing.T) {
	storeContractTest(t, "SQLiteStore", func(t *testing.T) checkpoint.Store {
		store, err := checkpoint.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	})
}
