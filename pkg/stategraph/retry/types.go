package retry

import "fmt"

// HTTPError represents an HTTP error with status code. Node functions
// calling HTTP services can return it so Categorize maps rate limits and
// server errors to CategoryTransient.
type HTTPError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("HTTP %d at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// HumanInputError indicates a node cannot proceed without a person.
// Categorize maps it to CategoryHumanRequired. The usual response is to
// re-run the thread with an interrupt before the node and let an
// operator patch state through WithResumeUpdate.
type HumanInputError struct {
	Question string
	Options  []string
	Original error
}

// Error implements the error interface.
func (e *HumanInputError) Error() string {
	return fmt.Sprintf("human input required: %s", e.Question)
}

// Unwrap returns the original error.
func (e *HumanInputError) Unwrap() error {
	return e.Original
}
