/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package pipeline composes the admission gate and the deadline scope around a
// caller-supplied unit of work. Every run terminates in exactly one of four
// outcomes: success, timeout, rejection with a retry hint, or handler error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acronis/go-shedkit/deadline"
	"github.com/acronis/go-shedkit/gate"
	"github.com/acronis/go-shedkit/log"
)

// Opts represents an options for Pipeline.
type Opts struct {
	// Logger is used for logging pipeline events (rejections, timeouts). May be nil.
	Logger log.FieldLogger

	// LoggerProvider allows to get a logger from the request context.
	// Has priority over Logger. May be nil.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// MetricsCollector collects pipeline metrics. May be nil.
	MetricsCollector *MetricsCollector
}

// Pipeline bounds the concurrency and the latency of request handling.
// It is created once at service startup and shared by all request-handling paths.
type Pipeline struct {
	gate           *gate.Gate
	defaultBudget  time.Duration
	retryAfterHint time.Duration

	logger         log.FieldLogger
	loggerProvider func(ctx context.Context) log.FieldLogger
	metrics        *MetricsCollector
}

// New creates a new Pipeline with the given configuration.
func New(cfg *Config) (*Pipeline, error) {
	return NewWithOpts(cfg, Opts{})
}

// NewWithOpts is a more configurable version of New.
func NewWithOpts(cfg *Config, opts Opts) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	g, err := gate.New(cfg.Capacity)
	if err != nil {
		return nil, fmt.Errorf("create gate: %w", err)
	}
	return &Pipeline{
		gate:           g,
		defaultBudget:  time.Duration(cfg.DefaultBudget),
		retryAfterHint: time.Duration(cfg.RetryAfterHint),
		logger:         opts.Logger,
		loggerProvider: opts.LoggerProvider,
		metrics:        opts.MetricsCollector,
	}, nil
}

// MustNew is a version of New that panics on error.
func MustNew(cfg *Config) *Pipeline {
	p, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

// MustNewWithOpts is a version of NewWithOpts that panics on error.
func MustNewWithOpts(cfg *Config, opts Opts) *Pipeline {
	p, err := NewWithOpts(cfg, opts)
	if err != nil {
		panic(err)
	}
	return p
}

// Gate returns the underlying admission gate.
func (p *Pipeline) Gate() *gate.Gate {
	return p.gate
}

// DefaultBudget returns the budget used by Handle.
func (p *Pipeline) DefaultBudget() time.Duration {
	return p.defaultBudget
}

// RetryAfterHint returns the fixed hint carried by rejected outcomes.
func (p *Pipeline) RetryAfterHint() time.Duration {
	return p.retryAfterHint
}

func (p *Pipeline) loggerForCtx(ctx context.Context) log.FieldLogger {
	if p.loggerProvider != nil {
		if logger := p.loggerProvider(ctx); logger != nil {
			return logger
		}
	}
	return p.logger
}

// Handle runs work through the pipeline with the default budget.
func Handle[T any](ctx context.Context, p *Pipeline, work deadline.Work[T]) Outcome[T] {
	// The default budget is validated at construction, so the error is impossible here.
	outcome, _ := HandleWithBudget(ctx, p, p.defaultBudget, work)
	return outcome
}

// HandleWithBudget runs work through the pipeline with the given budget.
//
// The work is started only if a gate slot is acquired; on saturation a rejected
// outcome with the retry hint is returned immediately and the work is never
// invoked. An admitted work runs under the budget, and the slot is returned to
// the gate on every exit path (success, handler error, timeout, panic) before
// HandleWithBudget returns, so the slot is available to the very next caller.
//
// A non-positive budget is a caller error and is reported as such before any
// slot is acquired or any work starts.
func HandleWithBudget[T any](ctx context.Context, p *Pipeline, budget time.Duration, work deadline.Work[T]) (Outcome[T], error) {
	if budget <= 0 {
		return Outcome[T]{}, fmt.Errorf("%w, got %s", deadline.ErrInvalidBudget, budget)
	}

	ticket, ok := p.gate.TryAcquire()
	if !ok {
		p.metrics.observeOutcome(OutcomeRejected)
		if logger := p.loggerForCtx(ctx); logger != nil {
			logger.Warn("request rejected, admission gate is saturated",
				log.Int("in_flight", p.gate.InFlight()),
				log.Int("capacity", p.gate.Capacity()),
				log.Duration("retry_after", p.retryAfterHint),
			)
		}
		return Outcome[T]{Kind: OutcomeRejected, RetryAfter: p.retryAfterHint}, nil
	}
	defer ticket.Release()

	p.metrics.incInFlight()
	defer p.metrics.decInFlight()

	value, err := deadline.Run(ctx, budget, work)

	var outcome Outcome[T]
	switch {
	case err == nil:
		outcome = Outcome[T]{Kind: OutcomeSuccess, Value: value}
	case errors.Is(err, deadline.ErrBudgetExceeded):
		if logger := p.loggerForCtx(ctx); logger != nil {
			logger.Warn("request timed out",
				log.Duration("budget", budget),
				log.String("ticket_id", ticket.ID()),
			)
		}
		outcome = Outcome[T]{Kind: OutcomeTimedOut}
	default:
		outcome = Outcome[T]{Kind: OutcomeHandlerError, Err: err}
	}
	p.metrics.observeOutcome(outcome.Kind)
	return outcome, nil
}
