package stategraph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// testSchema declares the keys most engine tests work with: an
// overwrite status, an append log, and an accumulating step counter.
func testSchema() *Schema {
	return NewSchema().
		Key("status", "input", "result").
		Append("log").
		Accumulate("step_count")
}

// setNode returns a node that writes fixed keys into the state.
func setNode(update PartialState) NodeFunc {
	return func(Context, State) (PartialState, error) {
		return update, nil
	}
}

// logNode returns a node that appends its own id to the "log" key and
// bumps "step_count".
func logNode(id string) NodeFunc {
	return func(Context, State) (PartialState, error) {
		return PartialState{"log": []any{id}, "step_count": 1}, nil
	}
}

// failNode returns a node that always fails with the given error.
func failNode(err error) NodeFunc {
	return func(Context, State) (PartialState, error) {
		return nil, err
	}
}

// mustCompile compiles the graph or fails the test.
func mustCompile(t *testing.T, g *Graph) *CompiledGraph {
	t.Helper()
	compiled, err := g.Compile()
	require.NoError(t, err)
	return compiled
}

// linearGraph builds entry -> ... -> END over the given node ids, each
// node logging its visit.
func linearGraph(ids ...string) *Graph {
	g := New(testSchema())
	for _, id := range ids {
		g.AddNode(id, logNode(id))
	}
	for i := 0; i < len(ids)-1; i++ {
		g.AddEdge(ids[i], ids[i+1])
	}
	g.AddEdge(ids[len(ids)-1], END)
	g.SetEntry(ids[0])
	return g
}

// logOf extracts the "log" key as a string slice for assertions.
func logOf(t *testing.T, s State) []string {
	t.Helper()
	raw, ok := s["log"].([]any)
	require.True(t, ok, "log key missing or not a sequence: %#v", s["log"])
	out := make([]string, len(raw))
	for i, v := range raw {
		str, ok := v.(string)
		require.True(t, ok, "log entry %d is %T, want string", i, v)
		out[i] = str
	}
	return out
}

// stepCountOf extracts the accumulated "step_count" as an int64.
func stepCountOf(t *testing.T, s State) int64 {
	t.Helper()
	switch n := s["step_count"].(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		t.Fatalf("step_count is %T, want numeric", s["step_count"])
		return 0
	}
}
