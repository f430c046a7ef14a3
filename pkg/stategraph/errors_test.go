package stategraph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionError(t *testing.T) {
	err := &DefinitionError{Errs: []error{
		ErrNoEntryPoint,
		fmt.Errorf("node %q: %w", "work", ErrDuplicateNode),
	}}

	assert.Contains(t, err.Error(), "invalid graph definition")
	assert.Contains(t, err.Error(), "entry point not set")

	// Multi-unwrap makes every violation matchable.
	assert.ErrorIs(t, err, ErrNoEntryPoint)
	assert.ErrorIs(t, err, ErrDuplicateNode)
	assert.NotErrorIs(t, err, ErrUnreachableNode)
}

func TestNodeError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &NodeError{NodeID: "fetch", Op: "execute", Err: cause}

	assert.Equal(t, "node fetch: execute: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	var nodeErr *NodeError
	require.ErrorAs(t, error(err), &nodeErr)
	assert.Equal(t, "fetch", nodeErr.NodeID)
}

func TestStateError(t *testing.T) {
	err := &StateError{Key: "log", Err: ErrUnknownStateKey}

	assert.Contains(t, err.Error(), `"log"`)
	assert.ErrorIs(t, err, ErrUnknownStateKey)
}

func TestRoutingError(t *testing.T) {
	err := &RoutingError{FromNode: "check", Returned: "bogus", Err: ErrUnknownRouteLabel}

	assert.Contains(t, err.Error(), "check")
	assert.Contains(t, err.Error(), `"bogus"`)
	assert.ErrorIs(t, err, ErrUnknownRouteLabel)
}

func TestIterationLimitError(t *testing.T) {
	err := &IterationLimitError{Max: 100, LastNodeID: "spin", State: State{"n": 1}}

	assert.Contains(t, err.Error(), "100")
	assert.Contains(t, err.Error(), "spin")
	assert.ErrorIs(t, err, ErrIterationLimit)
}

func TestPanicError(t *testing.T) {
	err := &PanicError{NodeID: "boom", Value: "kaput", Stack: "stack trace here"}

	assert.Equal(t, "node boom panicked: kaput", err.Error())
}

func TestCancellationError(t *testing.T) {
	t.Run("before execution", func(t *testing.T) {
		err := &CancellationError{NodeID: "next", Cause: errors.New("deadline"), WasExecuting: false}
		assert.Contains(t, err.Error(), "cancelled before node next")
	})

	t.Run("during execution", func(t *testing.T) {
		cause := errors.New("deadline")
		err := &CancellationError{NodeID: "busy", Cause: cause, WasExecuting: true}
		assert.Contains(t, err.Error(), "cancelled during node busy")
		assert.ErrorIs(t, err, cause)
	})
}

func TestBranchError(t *testing.T) {
	cause := &NodeError{NodeID: "worker", Op: "execute", Err: errors.New("boom")}
	err := &BranchError{FanOutNode: "fork", Branch: "worker", Err: cause}

	assert.Contains(t, err.Error(), "fork")
	assert.Contains(t, err.Error(), "worker")

	// The node failure stays reachable through the branch wrapper.
	var nodeErr *NodeError
	assert.ErrorAs(t, error(err), &nodeErr)
}
