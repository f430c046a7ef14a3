// Package event provides the run lifecycle event stream for stategraph.
//
// # Overview
//
// A graph execution with an attached bus publishes one event per
// lifecycle transition: run started/completed/paused/resumed/failed,
// node started/completed/failed, checkpoint saved, and interrupt
// raised. The bus fans those events out to any number of subscribers
// without coupling the engine to what observers do with them.
//
// # Bus
//
// LocalBus is the in-memory implementation. Each subscription owns a
// buffered channel drained by its own goroutine, so a slow observer
// delays only its own queue:
//
//	bus := event.NewBus(event.BusConfig{BufferSize: 256})
//	defer bus.Close()
//
//	sub := bus.Subscribe([]string{event.TypeNodeCompleted}, func(ctx context.Context, evt event.Event) error {
//	    fmt.Printf("step %d: %s\n", evt.Step, evt.NodeID)
//	    return nil
//	})
//	defer sub.Unsubscribe()
//
//	compiled.Run(ctx, state, stategraph.WithEventBus(bus))
//
// SubscribeAll receives every type; an audit log is the typical use.
//
// # Delivery semantics
//
// Delivery is per-subscription FIFO and at-most-once: in non-blocking
// mode a full buffer drops the event (reported through OnDrop), and
// Close discards anything still queued. Handler errors are reported
// through OnError and never retried. The engine treats publishing as
// best-effort; a bus failure never fails the run.
package event
