package stategraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Valid(t *testing.T) {
	compiled := mustCompile(t, linearGraph("extract", "transform", "load"))

	assert.Equal(t, "extract", compiled.EntryPoint())
	assert.Equal(t, []string{"extract", "load", "transform"}, compiled.NodeIDs())
}

func TestCompile_NoEntryPoint(t *testing.T) {
	g := New(testSchema()).
		AddNode("a", logNode("a")).
		AddEdge("a", END)

	_, err := g.Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoEntryPoint)
}

func TestCompile_EntryNotFound(t *testing.T) {
	g := New(testSchema()).
		AddNode("a", logNode("a")).
		AddEdge("a", END).
		SetEntry("missing")

	_, err := g.Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestCompile_EdgeSourceMissing(t *testing.T) {
	g := New(testSchema()).
		AddNode("a", logNode("a")).
		AddEdge("a", END).
		AddEdge("ghost", "a").
		SetEntry("a")

	_, err := g.Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestCompile_EdgeTargetMissing(t *testing.T) {
	g := New(testSchema()).
		AddNode("a", logNode("a")).
		AddEdge("a", "ghost").
		SetEntry("a")

	_, err := g.Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestCompile_LabelTargetMissing(t *testing.T) {
	g := New(testSchema()).
		AddNode("a", logNode("a")).
		AddConditionalEdge("a", func(Context, State) string { return "x" },
			map[string]string{"x": "ghost"}).
		SetEntry("a")

	_, err := g.Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLabelTargetNotFound)
}

func TestCompile_LabelTargetEndIsValid(t *testing.T) {
	g := New(testSchema()).
		AddNode("a", logNode("a")).
		AddConditionalEdge("a", func(Context, State) string { return "stop" },
			map[string]string{"stop": END}).
		SetEntry("a")

	_, err := g.Compile()

	assert.NoError(t, err)
}

func TestCompile_MixedEdges(t *testing.T) {
	g := New(testSchema()).
		AddNode("a", logNode("a")).
		AddNode("b", logNode("b")).
		AddEdge("a", "b").
		AddEdge("b", END).
		AddConditionalEdge("a", func(Context, State) string { return "b" }, nil).
		SetEntry("a")

	_, err := g.Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMixedEdges)
}

func TestCompile_UnreachableNode(t *testing.T) {
	g := New(testSchema()).
		AddNode("a", logNode("a")).
		AddNode("island", logNode("island")).
		AddEdge("a", END).
		AddEdge("island", END).
		SetEntry("a")

	_, err := g.Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachableNode)
}

// TestCompile_ReachableThroughLabels tests that label-map targets count
// for reachability.
func TestCompile_ReachableThroughLabels(t *testing.T) {
	g := New(testSchema()).
		AddNode("route", logNode("route")).
		AddNode("a", logNode("a")).
		AddNode("b", logNode("b")).
		AddConditionalEdge("route", func(Context, State) string { return "left" },
			map[string]string{"left": "a", "right": "b"}).
		AddEdge("a", END).
		AddEdge("b", END).
		SetEntry("route")

	_, err := g.Compile()

	assert.NoError(t, err)
}

// TestCompile_UnconstrainedRouterReachesAll tests that a router without a
// label map can target any node, so none count as unreachable.
func TestCompile_UnconstrainedRouterReachesAll(t *testing.T) {
	g := New(testSchema()).
		AddNode("route", logNode("route")).
		AddNode("anywhere", logNode("anywhere")).
		AddConditionalEdge("route", func(Context, State) string { return "anywhere" }, nil).
		AddEdge("anywhere", END).
		SetEntry("route")

	_, err := g.Compile()

	assert.NoError(t, err)
}

// TestCompile_CollectsAllViolations tests that every violation is
// reported in one DefinitionError instead of failing on the first.
func TestCompile_CollectsAllViolations(t *testing.T) {
	g := New(testSchema()).
		AddNode("a", logNode("a")).
		AddNode("a", logNode("dup")).
		AddNode("island", logNode("island")).
		AddEdge("a", "ghost").
		AddEdge("island", END).
		SetEntry("a")

	_, err := g.Compile()

	require.Error(t, err)
	var defErr *DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.ErrorIs(t, err, ErrDuplicateNode)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.ErrorIs(t, err, ErrUnreachableNode)
	assert.GreaterOrEqual(t, len(defErr.Errs), 3)
}

// TestCompile_CycleIsValid tests that cyclic graphs compile: termination
// is a runtime concern handled by the iteration limit.
func TestCompile_CycleIsValid(t *testing.T) {
	g := New(testSchema()).
		AddNode("try", logNode("try")).
		AddNode("check", logNode("check")).
		AddEdge("try", "check").
		AddConditionalEdge("check", func(Context, State) string { return "again" },
			map[string]string{"again": "try", "done": END}).
		SetEntry("try")

	_, err := g.Compile()

	assert.NoError(t, err)
}

func TestCompiledGraph_Introspection(t *testing.T) {
	g := New(testSchema()).
		AddNode("a", logNode("a")).
		AddNode("b", logNode("b")).
		AddNode("c", logNode("c")).
		AddNode("d", logNode("d")).
		AddEdge("a", "b").
		AddEdge("a", "c").
		AddEdge("b", "d").
		AddEdge("c", "d").
		AddEdge("d", END).
		SetEntry("a")

	compiled := mustCompile(t, g)

	assert.True(t, compiled.HasNode("a"))
	assert.False(t, compiled.HasNode("ghost"))

	// Fan-out branches keep declaration order.
	assert.Equal(t, []string{"b", "c"}, compiled.Successors("a"))
	assert.ElementsMatch(t, []string{"b", "c"}, compiled.Predecessors("d"))

	assert.True(t, compiled.IsFanOut("a"))
	assert.False(t, compiled.IsFanOut("b"))
	assert.Equal(t, "d", compiled.JoinOf("a"))
	assert.Equal(t, "", compiled.JoinOf("b"))

	fanOuts := compiled.FanOuts()
	require.Len(t, fanOuts, 1)
	assert.Equal(t, "a", fanOuts[0].NodeID)
	assert.Equal(t, []string{"b", "c"}, fanOuts[0].Branches)
}

func TestCompiledGraph_ConditionalIntrospection(t *testing.T) {
	g := New(testSchema()).
		AddNode("route", logNode("route")).
		AddNode("a", logNode("a")).
		AddNode("b", logNode("b")).
		AddConditionalEdge("route", func(Context, State) string { return "x" },
			map[string]string{"x": "a", "y": "b", "stop": END}).
		AddEdge("a", END).
		AddEdge("b", END).
		SetEntry("route")

	compiled := mustCompile(t, g)

	assert.True(t, compiled.IsConditional("route"))
	assert.False(t, compiled.IsConditional("a"))
	// Conditional successors are the label targets, sorted, END excluded.
	assert.Equal(t, []string{"a", "b"}, compiled.Successors("route"))
}

// TestCompile_JoinDetection covers join placement for asymmetric branch
// lengths and branches that never reconverge.
func TestCompile_JoinDetection(t *testing.T) {
	t.Run("asymmetric branches", func(t *testing.T) {
		g := New(testSchema()).
			AddNode("fork", logNode("fork")).
			AddNode("short", logNode("short")).
			AddNode("long1", logNode("long1")).
			AddNode("long2", logNode("long2")).
			AddNode("join", logNode("join")).
			AddEdge("fork", "short").
			AddEdge("fork", "long1").
			AddEdge("long1", "long2").
			AddEdge("short", "join").
			AddEdge("long2", "join").
			AddEdge("join", END).
			SetEntry("fork")

		compiled := mustCompile(t, g)
		assert.Equal(t, "join", compiled.JoinOf("fork"))
	})

	t.Run("branches never reconverge", func(t *testing.T) {
		g := New(testSchema()).
			AddNode("fork", logNode("fork")).
			AddNode("left", logNode("left")).
			AddNode("right", logNode("right")).
			AddEdge("fork", "left").
			AddEdge("fork", "right").
			AddEdge("left", END).
			AddEdge("right", END).
			SetEntry("fork")

		compiled := mustCompile(t, g)
		assert.Equal(t, END, compiled.JoinOf("fork"))
	})
}

// TestCompiledGraph_SchemaIsCopy tests that mutating the schema returned
// by Schema() cannot corrupt the compiled graph.
func TestCompiledGraph_SchemaIsCopy(t *testing.T) {
	compiled := mustCompile(t, linearGraph("a"))

	schemaCopy := compiled.Schema()
	schemaCopy.Key("injected")

	assert.False(t, compiled.Schema().Has("injected"))
}
