package event_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph/event"
)

func TestNew(t *testing.T) {
	evt := event.New(event.TypeRunStarted)

	if evt.ID == "" {
		t.Error("expected ID to be set")
	}
	if evt.Type != event.TypeRunStarted {
		t.Errorf("expected type %q, got %q", event.TypeRunStarted, evt.Type)
	}
	if evt.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}

	other := event.New(event.TypeRunStarted)
	if evt.ID == other.ID {
		t.Error("expected each event to get its own ID")
	}
}

func TestEventJSON(t *testing.T) {
	evt := event.New(event.TypeCheckpointSaved)
	evt.ThreadID = "thread-1"
	evt.NodeID = "extract"
	evt.Step = 2
	evt.CheckpointID = "ckpt-abc"

	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if raw["type"] != event.TypeCheckpointSaved {
		t.Errorf("expected type %q, got %v", event.TypeCheckpointSaved, raw["type"])
	}
	if raw["checkpoint_id"] != "ckpt-abc" {
		t.Errorf("expected checkpoint_id, got %v", raw["checkpoint_id"])
	}

	// Unset optional fields stay off the wire.
	for _, key := range []string{"run_id", "phase", "error"} {
		if _, ok := raw[key]; ok {
			t.Errorf("expected %q to be omitted", key)
		}
	}
}

func TestEventError(t *testing.T) {
	evt := event.New("test")
	err := &event.EventError{Event: evt, Message: "delivery failed"}

	if !strings.Contains(err.Error(), evt.ID) {
		t.Errorf("expected message to name the event ID, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "delivery failed") {
		t.Errorf("expected message text, got %q", err.Error())
	}
}

func TestEventError_NoID(t *testing.T) {
	err := &event.EventError{
		Event:   event.Event{Type: "run.started"},
		Message: "bus is closed",
	}

	// Without an ID the type stands in.
	if !strings.Contains(err.Error(), "run.started") {
		t.Errorf("expected message to name the event type, got %q", err.Error())
	}
}

func TestEventError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &event.EventError{
		Event:   event.New("test"),
		Message: "publish failed",
		Err:     cause,
	}

	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
}
