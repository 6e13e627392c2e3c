/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/acronis/go-shedkit/deadline"
	"github.com/acronis/go-shedkit/pipeline"
)

// SubmitWithRetry runs work through the admission pipeline and resubmits it while the
// outcome is a rejection. The wait before each resubmission is the rejection's retry
// hint or the policy's next backoff delay, whichever is larger, so a well-behaved
// caller never comes back earlier than the pipeline asked it to.
//
// Successful, timed out and handler-error outcomes are returned as is: only
// saturation is transient by definition, a timed out work is not retried here
// because its budget is already spent.
func SubmitWithRetry[T any](
	ctx context.Context, p Policy, pl *pipeline.Pipeline, work deadline.Work[T],
) (pipeline.Outcome[T], error) {
	bf := p.NewBackOff()
	for {
		outcome, err := pipeline.HandleWithBudget(ctx, pl, pl.DefaultBudget(), work)
		if err != nil {
			return outcome, err
		}
		if outcome.Kind != pipeline.OutcomeRejected {
			return outcome, nil
		}

		waitTime := bf.NextBackOff()
		if waitTime == backoff.Stop {
			return outcome, nil
		}
		if outcome.RetryAfter > waitTime {
			waitTime = outcome.RetryAfter
		}

		select {
		case <-ctx.Done():
			return outcome, ctx.Err()
		case <-time.After(waitTime):
		}
	}
}
