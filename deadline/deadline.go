/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package deadline runs a unit of work under a hard time budget.
// The budget is fixed when the work starts, cannot be extended, and on expiry
// the work receives a cancellation signal through its context.
package deadline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidBudget is returned when a non-positive budget is supplied.
// A zero budget is a caller error, not a "no timeout" request.
var ErrInvalidBudget = errors.New("budget should be positive")

// ErrBudgetExceeded is returned when the work does not finish within its budget.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Work is a unit of work that respects cancellation via the passed context.
// A work func that ignores the context can run past its nominal deadline
// and pin resources; it should check ctx at a bounded interval.
type Work[T any] func(ctx context.Context) (T, error)

// Run executes work with the given budget and races it against a timer.
//
// If the work completes first, its result (or error) is returned as is.
// If the timer fires first, Run returns ErrBudgetExceeded immediately and
// cancels the work's context; it does not wait for the work to observe the
// cancellation. The work goroutine writes its result into a buffered channel
// and exits, so an abandoned work func does not leak.
//
// A panic inside work is re-raised in the caller's goroutine when the caller
// is still waiting for the result.
func Run[T any](ctx context.Context, budget time.Duration, work Work[T]) (T, error) {
	var zero T

	if budget <= 0 {
		return zero, fmt.Errorf("%w, got %s", ErrInvalidBudget, budget)
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	workCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type workResult struct {
		value T
		err   error
	}
	resultCh := make(chan workResult, 1)
	panicCh := make(chan interface{}, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				panicCh <- p
			}
		}()
		value, err := work(workCtx)
		resultCh <- workResult{value, err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			// A cooperative work func observes the expired deadline through ctx.Err()
			// before Done() is closed, so its result can arrive together with (or even
			// before) the timer case. Classify such a result as a budget expiry, not a
			// work error, no matter which ready select case won.
			if errors.Is(res.err, context.DeadlineExceeded) && workCtx.Err() == context.DeadlineExceeded {
				return zero, ErrBudgetExceeded
			}
			return zero, res.err
		}
		return res.value, nil
	case p := <-panicCh:
		panic(p)
	case <-workCtx.Done():
		if errors.Is(workCtx.Err(), context.DeadlineExceeded) {
			return zero, ErrBudgetExceeded
		}
		return zero, workCtx.Err()
	}
}
