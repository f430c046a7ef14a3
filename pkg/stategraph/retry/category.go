// Package retry provides error categorization and retry with exponential
// backoff for node functions.
//
// The engine never retries on its own: a node error fails the run. Retry
// policy belongs to the nodes, either by wrapping a NodeFunc with Node or
// by calling Do/DoContext around the flaky operation inside one.
// Categorize classifies engine and node errors so retry loops know when
// another attempt can help and when it cannot.
package retry

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: node timeouts, checkpoint store blips, rate limits.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: routing failures, graph definition errors, bad input.
	CategoryPermanent

	// CategoryHumanRequired indicates human intervention is needed.
	// Pair with a before-node interrupt so an operator can patch state
	// and resume.
	CategoryHumanRequired
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryHumanRequired:
		return "human_required"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Retries is the number of attempts that have been made.
	Retries int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Transient creates a transient error.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Permanent creates a permanent error.
func Permanent(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, context)
}

// HumanRequired creates a human-required error.
func HumanRequired(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryHumanRequired, context)
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	// Check for already-categorized errors
	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	// Check for human input errors
	var humanErr *HumanInputError
	if errors.As(err, &humanErr) {
		return CategoryHumanRequired
	}

	// Engine errors another attempt can plausibly outrun
	if errors.Is(err, stategraph.ErrNodeTimeout) {
		return CategoryTransient
	}
	var persistErr *checkpoint.PersistenceError
	if errors.As(err, &persistErr) {
		return CategoryTransient
	}

	// Engine errors another attempt cannot fix
	var defErr *stategraph.DefinitionError
	if errors.As(err, &defErr) {
		return CategoryPermanent
	}
	var routeErr *stategraph.RoutingError
	if errors.As(err, &routeErr) {
		return CategoryPermanent
	}
	var stateErr *stategraph.StateError
	if errors.As(err, &stateErr) {
		return CategoryPermanent
	}
	var panicErr *stategraph.PanicError
	if errors.As(err, &panicErr) {
		return CategoryPermanent
	}

	// Check for HTTP errors from node work
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case 429, 503, 504:
			return CategoryTransient
		case 401, 403:
			return CategoryPermanent
		default:
			if httpErr.StatusCode >= 500 {
				return CategoryTransient // server errors are often transient
			}
			return CategoryPermanent
		}
	}

	// Context errors: a deadline can be outrun with a fresh attempt,
	// a cancellation cannot
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}
	if errors.Is(err, context.Canceled) {
		return CategoryPermanent
	}

	// Unknown errors are permanent (fail safe)
	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}

// NeedsHuman reports whether human intervention is required.
func NeedsHuman(err error) bool {
	return Categorize(err) == CategoryHumanRequired
}
