/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package retry provides backoff policies and helpers for retrying work,
// including resubmitting work that was rejected by the admission pipeline.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy produces a fresh backoff sequence for one retry session.
// NewBackOff must be called once per session: backoff.BackOff values are
// stateful and must not be shared between concurrent retry loops.
type Policy interface {
	NewBackOff() backoff.BackOff
}

// The PolicyFunc type is an adapter to allow the use of ordinary functions as retry.Policy.
type PolicyFunc func() backoff.BackOff

// NewBackOff implements retry.Policy.
func (f PolicyFunc) NewBackOff() backoff.BackOff {
	return f()
}

// ExponentialBackoffPolicy grows the delay exponentially (1.5 multiplier),
// optionally stopping after a maximum number of attempts.
type ExponentialBackoffPolicy struct {
	initialInterval time.Duration
	maxAttempts     int
}

// NewExponentialBackoffPolicy returns an exponential backoff policy with given initial interval and max retry attempt count.
func NewExponentialBackoffPolicy(initialInterval time.Duration, maxRetryAttempts int) ExponentialBackoffPolicy {
	return ExponentialBackoffPolicy{initialInterval, maxRetryAttempts}
}

// NewBackOff implements retry.Policy.
func (p ExponentialBackoffPolicy) NewBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.initialInterval
	var bf backoff.BackOff = eb
	if p.maxAttempts > 0 {
		bf = backoff.WithMaxRetries(eb, uint64(p.maxAttempts))
	}
	bf.Reset()
	return bf
}

// ConstantBackoffPolicy waits the same interval between attempts,
// optionally stopping after a maximum number of attempts.
type ConstantBackoffPolicy struct {
	interval    time.Duration
	maxAttempts int
}

// NewConstantBackoffPolicy returns a constant backoff policy with given interval and max retry attempt count.
func NewConstantBackoffPolicy(interval time.Duration, maxRetryAttempts int) ConstantBackoffPolicy {
	return ConstantBackoffPolicy{interval, maxRetryAttempts}
}

// NewBackOff implements retry.Policy.
func (p ConstantBackoffPolicy) NewBackOff() backoff.BackOff {
	var bf backoff.BackOff = backoff.NewConstantBackOff(p.interval)
	if p.maxAttempts > 0 {
		bf = backoff.WithMaxRetries(bf, uint64(p.maxAttempts))
	}
	bf.Reset()
	return bf
}

// IsRetryable reports whether an error is transient and worth another attempt.
// A nil IsRetryable treats every error as transient.
type IsRetryable func(error) bool

// RetryableFunc is the unit of work DoWithRetry repeats until it succeeds,
// is classified persistent, or the policy gives up.
type RetryableFunc func(ctx context.Context) error

// DoWithRetry runs fn, repeating it on transient failures with the delays the
// policy dictates, until fn succeeds, ctx is done, the policy stops, or
// isRetryable classifies the error as persistent. notify, when non-nil, is
// invoked before each wait with the error and the upcoming delay.
func DoWithRetry(ctx context.Context, p Policy, isRetryable IsRetryable, notify backoff.Notify, fn RetryableFunc) error {
	bctx := backoff.WithContext(p.NewBackOff(), ctx)
	op := func() error {
		err := fn(bctx.Context())
		if err != nil && isRetryable != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(op, bctx, notify)
}
