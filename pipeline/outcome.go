/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package pipeline

import "time"

// OutcomeKind is a class of a pipeline run result.
type OutcomeKind int

// Pipeline outcome kinds. These are the only terminal states of a pipeline run.
const (
	// OutcomeSuccess means the work was admitted and completed within its budget.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeTimedOut means the work was admitted but did not finish within its budget.
	// The gate slot is reclaimed anyway.
	OutcomeTimedOut

	// OutcomeRejected means the admission gate was saturated and the work was never started.
	// The caller should retry after the hint carried by the outcome.
	OutcomeRejected

	// OutcomeHandlerError means the work completed within its budget but returned an error.
	// The error is passed through unchanged, not interpreted.
	OutcomeHandlerError
)

// String returns a human-readable name of the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeRejected:
		return "rejected"
	case OutcomeHandlerError:
		return "handler_error"
	}
	return "unknown"
}

// Outcome is a tagged result of a pipeline run.
// Value is set only for OutcomeSuccess, Err only for OutcomeHandlerError,
// RetryAfter only for OutcomeRejected.
type Outcome[T any] struct {
	Kind       OutcomeKind
	Value      T
	Err        error
	RetryAfter time.Duration
}
