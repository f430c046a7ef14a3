package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types published by graph executions, one constant per lifecycle
// transition. Run-level types fire once per invocation; node-level types
// fire once per node execution, including executions inside fan-out
// branches.
const (
	TypeRunStarted   = "run.started"
	TypeRunCompleted = "run.completed"
	TypeRunPaused    = "run.paused"
	TypeRunResumed   = "run.resumed"
	TypeRunFailed    = "run.failed"

	TypeNodeStarted   = "node.started"
	TypeNodeCompleted = "node.completed"
	TypeNodeFailed    = "node.failed"

	TypeCheckpointSaved = "checkpoint.saved"
	TypeInterruptRaised = "interrupt.raised"
)

// Event is one occurrence in a run's lifecycle. Fields beyond ID, Type,
// and Timestamp are filled per type: node events carry NodeID and Step,
// checkpoint and interrupt events additionally carry CheckpointID, and
// failure events carry Error.
//
// Events are delivered by value; handlers may keep them without copying.
type Event struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	ThreadID     string    `json:"thread_id,omitempty"`
	RunID        string    `json:"run_id,omitempty"`
	NodeID       string    `json:"node_id,omitempty"`
	Step         int       `json:"step,omitempty"`
	CheckpointID string    `json:"checkpoint_id,omitempty"`
	Phase        string    `json:"phase,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// New creates an event of the given type with identity and timestamp
// assigned. Publishers that build Event values directly may leave both
// empty; LocalBus fills them on publish.
func New(eventType string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// Handler processes one delivered event. Handlers run on the
// subscription's own goroutine, so a slow handler delays only its own
// subscription's queue, never the publishing run. A returned error is
// reported through BusConfig.OnError; delivery is not retried.
type Handler func(ctx context.Context, evt Event) error
