package event

import (
	"fmt"
)

// EventError represents an error during event publication or delivery.
type EventError struct {
	Event   Event  // The event that failed
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements error interface.
func (e *EventError) Error() string {
	id := e.Event.ID
	if id == "" {
		id = e.Event.Type
	}
	if e.Err != nil {
		return fmt.Sprintf("event %s: %s: %v", id, e.Message, e.Err)
	}
	return fmt.Sprintf("event %s: %s", id, e.Message)
}

// Unwrap returns the underlying error.
func (e *EventError) Unwrap() error {
	return e.Err
}
