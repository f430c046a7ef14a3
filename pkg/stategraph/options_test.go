package stategraph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
)

func TestRunConfig_Defaults(t *testing.T) {
	cfg := defaultRunConfig()

	assert.Equal(t, DefaultMaxIterations, cfg.maxIterations)
	assert.Zero(t, cfg.nodeTimeout)
	assert.Zero(t, cfg.maxConcurrency)
	assert.Nil(t, cfg.store)
	assert.False(t, cfg.interruptsEnabled())
	assert.NoError(t, cfg.validate())
}

func TestWithMaxIterations_IgnoresNonPositive(t *testing.T) {
	cfg := defaultRunConfig()

	WithMaxIterations(0)(cfg)
	assert.Equal(t, DefaultMaxIterations, cfg.maxIterations)

	WithMaxIterations(-5)(cfg)
	assert.Equal(t, DefaultMaxIterations, cfg.maxIterations)

	WithMaxIterations(7)(cfg)
	assert.Equal(t, 7, cfg.maxIterations)
}

func TestRunConfig_Validate(t *testing.T) {
	t.Run("interrupts require a store", func(t *testing.T) {
		cfg := defaultRunConfig()
		WithInterruptBefore("node")(cfg)

		err := cfg.validate()

		assert.ErrorIs(t, err, ErrCheckpointsRequired)
	})

	t.Run("negative concurrency rejected", func(t *testing.T) {
		cfg := defaultRunConfig()
		cfg.maxConcurrency = -1

		assert.Error(t, cfg.validate())
	})
}

func TestWithInterrupts_MergesControllerPoints(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	controller := NewInterruptController().BeforeNode("b")

	// The controller's points behave exactly like WithInterruptBefore.
	res, err := mustCompile(t, linearGraph("a", "b")).Run(context.Background(), State{},
		WithThreadID("thread-opts"),
		WithCheckpoints(store),
		WithInterrupts(controller))

	require.NoError(t, err)
	assert.Equal(t, StatusPaused, res.Status)
	assert.Equal(t, "b", res.NextNode)
}

func TestWithNodeTimeout_ZeroDisables(t *testing.T) {
	g := New(testSchema()).
		AddNode("briefly-slow", func(Context, State) (PartialState, error) {
			time.Sleep(20 * time.Millisecond)
			return nil, nil
		}).
		AddEdge("briefly-slow", END).
		SetEntry("briefly-slow")

	_, err := mustCompile(t, g).Run(context.Background(), State{},
		WithNodeTimeout(0))

	assert.NoError(t, err)
}

func TestOptions_Accumulate(t *testing.T) {
	cfg := defaultRunConfig()

	WithInterruptBefore("a", "b")(cfg)
	WithInterruptBefore("c")(cfg)
	WithInterruptAfter("d")(cfg)

	assert.True(t, cfg.interruptBefore["a"])
	assert.True(t, cfg.interruptBefore["b"])
	assert.True(t, cfg.interruptBefore["c"])
	assert.True(t, cfg.interruptAfter["d"])
	assert.True(t, cfg.interruptsEnabled())
}
