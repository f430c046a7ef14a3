package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

// BenchmarkRun_Linear_5 runs a 5-node linear graph.
func BenchmarkRun_Linear_5(b *testing.B) {
	compiled := mustCompile(buildLinearGraph(5))
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, stategraph.State{})
	}
}

// BenchmarkRun_Linear_10 runs a 10-node linear graph.
func BenchmarkRun_Linear_10(b *testing.B) {
	compiled := mustCompile(buildLinearGraph(10))
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, stategraph.State{})
	}
}

// BenchmarkRun_Linear_50 runs a 50-node linear graph.
func BenchmarkRun_Linear_50(b *testing.B) {
	compiled := mustCompile(buildLinearGraph(50))
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, stategraph.State{})
	}
}

// BenchmarkRun_Linear_100 runs a 100-node linear graph.
func BenchmarkRun_Linear_100(b *testing.B) {
	compiled := mustCompile(buildLinearGraph(100))
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, stategraph.State{})
	}
}

// BenchmarkRun_Branching runs a graph with conditional edges.
func BenchmarkRun_Branching(b *testing.B) {
	compiled := mustCompile(buildBranchingGraph())
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, stategraph.State{"value": i})
	}
}

// BenchmarkRun_Loop runs a looping graph (3 iterations).
func BenchmarkRun_Loop(b *testing.B) {
	compiled := mustCompile(buildLoopGraph(3))
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, stategraph.State{})
	}
}

// BenchmarkRun_Loop_10 runs a looping graph (10 iterations).
func BenchmarkRun_Loop_10(b *testing.B) {
	compiled := mustCompile(buildLoopGraph(10))
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, stategraph.State{})
	}
}

// BenchmarkRun_FanOut_4 runs a 4-branch parallel section, measuring the
// dispatch, clone, and ordered-merge cost.
func BenchmarkRun_FanOut_4(b *testing.B) {
	compiled := mustCompile(buildFanOutGraph(4))
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, stategraph.State{})
	}
}

// BenchmarkRun_FanOut_16 runs a 16-branch parallel section.
func BenchmarkRun_FanOut_16(b *testing.B) {
	compiled := mustCompile(buildFanOutGraph(16))
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, stategraph.State{})
	}
}

// BenchmarkMerge_Append measures the reducer merge path with an
// appending node, the hot path of every step.
func BenchmarkMerge_Append(b *testing.B) {
	appender := func(ctx stategraph.Context, s stategraph.State) (stategraph.PartialState, error) {
		return stategraph.PartialState{"trace": []any{"visited"}}, nil
	}
	graph := stategraph.New(benchSchema()).
		AddNode("append", appender).
		AddEdge("append", stategraph.END).
		SetEntry("append")
	compiled := mustCompile(graph)
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, stategraph.State{})
	}
}

// BenchmarkContextCreation measures context creation overhead.
func BenchmarkContextCreation(b *testing.B) {
	bg := context.Background()
	for i := 0; i < b.N; i++ {
		stategraph.NewContext(bg)
	}
}

// Helper functions

func mustCompile(g *stategraph.Graph) *stategraph.CompiledGraph {
	compiled, err := g.Compile()
	if err != nil {
		panic(err)
	}
	return compiled
}

func buildLoopGraph(iterations int) *stategraph.Graph {
	loopNode := func(ctx stategraph.Context, s stategraph.State) (stategraph.PartialState, error) {
		v, _ := s["value"].(int)
		return stategraph.PartialState{"value": v + 1}, nil
	}

	router := func(ctx stategraph.Context, s stategraph.State) string {
		if v, _ := s["value"].(int); v >= iterations {
			return "done"
		}
		return "loop"
	}

	return stategraph.New(benchSchema()).
		AddNode("loop", loopNode).
		AddNode("done", noopNode).
		AddConditionalEdge("loop", router, map[string]string{
			"loop": "loop",
			"done": "done",
		}).
		AddEdge("done", stategraph.END).
		SetEntry("loop")
}
