/*
Package stategraph provides checkpointed graph execution for stateful workflows.

# Overview

stategraph is a Go library for building and executing directed graphs
where nodes transform shared state and edges define flow. It's designed
for orchestrating long-running workflows with features like durable
checkpointing, conditional branching, deterministic parallel fan-out,
human-in-the-loop interrupts, and non-destructive rollback.

The library is inspired by LangGraph but built for Go with:
  - A declared state schema with per-key merge reducers
  - Compile-time validation of graph structure
  - Durable pause/resume and crash recovery via checkpointing
  - OpenTelemetry integration for observability

# Basic Usage

Declare a schema, build a graph, then compile and run:

	schema := stategraph.NewSchema().
	    Key("input", "output")

	process := func(ctx stategraph.Context, s stategraph.State) (stategraph.PartialState, error) {
	    return stategraph.PartialState{"output": "Processed: " + s["input"].(string)}, nil
	}

	func main() {
	    graph := stategraph.New(schema).
	        AddNode("process", process).
	        AddEdge("process", stategraph.END).
	        SetEntry("process")

	    compiled, err := graph.Compile()
	    if err != nil {
	        log.Fatal(err)
	    }

	    result, err := compiled.Run(context.Background(), stategraph.State{"input": "hello"})
	    if err != nil {
	        log.Fatal(err)
	    }
	    fmt.Println(result.State["output"]) // "Processed: hello"
	}

# State and Reducers

Nodes never mutate state directly. Each node receives an immutable
snapshot and returns a PartialState holding only the keys it wants to
update. The schema decides how each update merges:

	schema := stategraph.NewSchema().
	    Key("status").          // overwrite on update
	    Append("log").          // concatenate sequences
	    Accumulate("attempts"). // add numbers
	    Reduce("seen", dedupe)  // custom reducer

Updates are atomic: an undeclared key or a failing reducer rejects the
whole update and fails the run.

# Conditional Branching

Use conditional edges for decision points. The router sees the merged
state after the source node ran, returns a label, and the label map
picks the target:

	graph.AddConditionalEdge("classify", func(ctx stategraph.Context, s stategraph.State) string {
	    if len(s["input"].(string)) > 10 {
	        return "long"
	    }
	    return "short"
	}, map[string]string{
	    "long":  "path_a",
	    "short": "path_b",
	})

A label missing from the map fails the run with RoutingError. Pass a
nil map to let the router return target node IDs directly.

# Loops

Conditional edges may return to earlier nodes:

	graph := stategraph.New(schema).
	    AddNode("attempt", tryOperation).
	    AddNode("cleanup", cleanupOnSuccess).
	    AddConditionalEdge("attempt", func(ctx stategraph.Context, s stategraph.State) string {
	        if s["success"] == true || toInt(s["attempts"]) >= 5 {
	            return "done"
	        }
	        return "retry"
	    }, map[string]string{"done": "cleanup", "retry": "attempt"}).
	    AddEdge("cleanup", stategraph.END).
	    SetEntry("attempt")

Loops are bounded by a max iteration count (default 1000) so a bad
router cannot spin forever. Configure with WithMaxIterations.

# Parallel Fan-Out

Multiple static edges out of one node declare a fan-out. Each target
starts a concurrent branch, all branches run to the common join node,
and their updates merge in the order the edges were declared, never in
completion order:

	graph.AddEdge("a", "b") // branch 1
	graph.AddEdge("a", "c") // branch 2
	graph.AddEdge("b", "d") // d is the join
	graph.AddEdge("c", "d")

With Append("log") in the schema, b's contributions always land before
c's no matter which branch finishes first. Use WithMaxConcurrency to
cap how many branches run simultaneously.

# Checkpointing and Threads

Enable durable execution by attaching a checkpoint store and a thread
ID. A thread is a durable conversation: every run on the same thread
chains its checkpoints onto the thread's history.

	store, err := checkpoint.NewSQLiteStore("./checkpoints.db")
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	result, err := compiled.Run(ctx, initial,
	    stategraph.WithCheckpoints(store),
	    stategraph.WithThreadID("order-1042"))

A checkpoint is written after every committed step, so a crashed run
resumes from the last completed node:

	result, err = compiled.Resume(ctx,
	    stategraph.WithCheckpoints(store),
	    stategraph.WithThreadID("order-1042"))

Stores: memory (tests), file, SQLite, Redis, and MySQL. All are safe
for concurrent use across threads; concurrent runs on the same thread
are not coordinated.

# Interrupts

Interrupts pause a run at declared nodes so a human or an external
system can inspect and steer it. A before-interrupt pauses with the
node not yet run; an after-interrupt pauses with its effects merged:

	result, err := compiled.Run(ctx, initial,
	    stategraph.WithCheckpoints(store),
	    stategraph.WithThreadID("review-7"),
	    stategraph.WithInterruptBefore("apply_changes"))

	if result.Status == stategraph.StatusPaused {
	    // Inspect result.State, gather a decision, then continue:
	    result, err = compiled.Resume(ctx,
	        stategraph.WithCheckpoints(store),
	        stategraph.WithThreadID("review-7"),
	        stategraph.WithResumeUpdate(stategraph.PartialState{"approved": true}))
	}

The pause is durable: the process can exit after Run returns and a new
process can Resume the thread later. Resuming an already-resumed
checkpoint re-enters at the same point rather than re-running history.

# Rollback

Rollback forks a thread from an earlier checkpoint without destroying
anything. The new branch points at the rollback target as its parent;
the checkpoints that came after it remain retrievable by ID:

	mgr := checkpoint.NewManager(store)
	cps, err := mgr.List(ctx, "order-1042") // oldest first
	branch, err := mgr.Rollback(ctx, "order-1042", cps[1].ID)

	result, err := compiled.Resume(ctx,
	    stategraph.WithCheckpoints(store),
	    stategraph.WithThreadID("order-1042"))

# Observability

Enable logging, metrics, and tracing:

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	result, err := compiled.Run(ctx, initial,
	    stategraph.WithRunLogger(logger),
	    stategraph.WithMetrics(observability.NewMetricsRecorder()),
	    stategraph.WithTracing(observability.NewSpanManager()),
	    stategraph.WithEventBus(bus))

Logs include structured fields: thread_id, run_id, node_id, step,
duration_ms. OpenTelemetry metrics: stategraph.node.executions,
stategraph.run.total, etc. Tracing emits stategraph.run spans with one
stategraph.node.{id} child per node execution. The event bus publishes
run.started, node.completed, checkpoint.saved, interrupt.raised, and
the other lifecycle events to subscribers.

# Error Handling

Errors carry the node they came from and unwrap to sentinel values:

	result, err := compiled.Run(ctx, initial)
	var nodeErr *stategraph.NodeError
	if errors.As(err, &nodeErr) {
	    log.Printf("node %s failed: %v", nodeErr.NodeID, nodeErr.Err)
	}

	var panicErr *stategraph.PanicError
	if errors.As(err, &panicErr) {
	    log.Printf("node %s panicked: %v\n%s", panicErr.NodeID, panicErr.Value, panicErr.Stack)
	}

Panics in nodes are recovered and converted to PanicError with a stack
trace. Engine errors (RoutingError, IterationLimitError, timeouts) are
never routable inside the graph; nodes that want retryable failures
record them in state and route on them.

# Thread Safety

  - Graph and Schema are NOT safe for concurrent use during construction
  - CompiledGraph IS safe for concurrent use (immutable)
  - Context IS safe for concurrent use
  - checkpoint.Store implementations are safe for concurrent use

# Subpackages

  - checkpoint: checkpoint stores (memory, file, SQLite, Redis, MySQL)
  - event: lifecycle event bus
  - observability: logging, metrics, and tracing helpers
  - retry: retry helpers for writing resilient nodes
  - config: YAML run configuration
  - expr: expression language for declarative routing
*/
package stategraph
