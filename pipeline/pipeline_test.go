/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-shedkit/config"
	"github.com/acronis/go-shedkit/deadline"
)

func newTestConfig(capacity int, budget, retryAfter time.Duration) *Config {
	return &Config{
		Capacity:       capacity,
		DefaultBudget:  config.TimeDuration(budget),
		RetryAfterHint: config.TimeDuration(retryAfter),
	}
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{"zero capacity", newTestConfig(0, time.Second, time.Second), "capacity should be positive"},
		{"zero budget", newTestConfig(1, 0, time.Second), "default budget should be positive"},
		{"negative budget", newTestConfig(1, -time.Second, time.Second), "default budget should be positive"},
		{"zero retry-after hint", newTestConfig(1, time.Second, 0), "retry-after hint should be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}

	p, err := New(newTestConfig(1, time.Second, time.Second))
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestHandleSuccess(t *testing.T) {
	p := MustNew(newTestConfig(2, time.Second, time.Second))

	outcome := Handle(context.Background(), p, func(ctx context.Context) (string, error) {
		return "payload", nil
	})
	require.Equal(t, OutcomeSuccess, outcome.Kind)
	require.Equal(t, "payload", outcome.Value)
	require.NoError(t, outcome.Err)
	require.Equal(t, 0, p.Gate().InFlight())
}

func TestHandleHandlerError(t *testing.T) {
	p := MustNew(newTestConfig(2, time.Second, time.Second))

	wantErr := errors.New("domain error")
	outcome := Handle(context.Background(), p, func(ctx context.Context) (string, error) {
		return "", wantErr
	})
	require.Equal(t, OutcomeHandlerError, outcome.Kind)
	require.ErrorIs(t, outcome.Err, wantErr)
	require.Equal(t, 0, p.Gate().InFlight(), "slot should be released on handler error")
}

func TestHandleTimedOutReleasesSlot(t *testing.T) {
	// Scenario: one request, work takes much longer than the budget.
	const budget = time.Millisecond * 40

	p := MustNew(newTestConfig(5, time.Second, time.Second))

	outcome, err := HandleWithBudget(context.Background(), p, budget, func(ctx context.Context) (string, error) {
		select {
		case <-time.After(time.Millisecond * 100):
			return "late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeTimedOut, outcome.Kind)
	require.Equal(t, 0, p.Gate().InFlight(), "slot should be released on timeout")

	// The gate is usable right away.
	outcome = Handle(context.Background(), p, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.Equal(t, OutcomeSuccess, outcome.Kind)
}

func TestHandleRejectedWhenSaturated(t *testing.T) {
	// Scenario: capacity=2, three concurrent requests; the third is rejected immediately.
	const capacity = 2
	const retryAfterHint = time.Second * 3

	p := MustNew(newTestConfig(capacity, time.Second*5, retryAfterHint))

	admitted := make(chan struct{}, capacity)
	release := make(chan struct{})
	outcomes := make(chan Outcome[string], capacity)
	for i := 0; i < capacity; i++ {
		go func() {
			outcomes <- Handle(context.Background(), p, func(ctx context.Context) (string, error) {
				admitted <- struct{}{}
				<-release
				return "slow", nil
			})
		}()
	}
	for i := 0; i < capacity; i++ {
		<-admitted // wait until both requests hold their slots
	}

	rejectStart := time.Now()
	outcome := Handle(context.Background(), p, func(ctx context.Context) (string, error) {
		t.Error("rejected work should never be invoked")
		return "", nil
	})
	rejectElapsed := time.Since(rejectStart)
	require.Equal(t, OutcomeRejected, outcome.Kind)
	require.Equal(t, retryAfterHint, outcome.RetryAfter)
	require.Less(t, rejectElapsed, time.Millisecond*50, "rejection should be immediate")

	close(release)
	for i := 0; i < capacity; i++ {
		out := <-outcomes
		require.Equal(t, OutcomeSuccess, out.Kind)
	}
	require.Equal(t, 0, p.Gate().InFlight())

	// A new request after the slots are freed is admitted again.
	outcome = Handle(context.Background(), p, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.Equal(t, OutcomeSuccess, outcome.Kind)
}

func TestHandleWithBudgetInvalidBudget(t *testing.T) {
	p := MustNew(newTestConfig(1, time.Second, time.Second))

	workStarted := false
	_, err := HandleWithBudget(context.Background(), p, 0, func(ctx context.Context) (string, error) {
		workStarted = true
		return "", nil
	})
	require.ErrorIs(t, err, deadline.ErrInvalidBudget)
	require.False(t, workStarted, "work should not start with invalid budget")
	require.Equal(t, 0, p.Gate().InFlight(), "no slot should be consumed by invalid budget")
}

func TestHandleReleasesSlotOnPanic(t *testing.T) {
	p := MustNew(newTestConfig(1, time.Second, time.Second))

	require.PanicsWithValue(t, "boom", func() {
		Handle(context.Background(), p, func(ctx context.Context) (string, error) {
			panic("boom")
		})
	})
	require.Equal(t, 0, p.Gate().InFlight(), "slot should be released on panic")

	outcome := Handle(context.Background(), p, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.Equal(t, OutcomeSuccess, outcome.Kind)
}

func TestHandleSlotReuseAfterHold(t *testing.T) {
	// Scenario: capacity=1; request A holds the slot, B is rejected while A runs,
	// C is admitted after A completes.
	p := MustNew(newTestConfig(1, time.Second*5, time.Second))

	aAdmitted := make(chan struct{})
	aRelease := make(chan struct{})
	aDone := make(chan Outcome[string])
	go func() {
		aDone <- Handle(context.Background(), p, func(ctx context.Context) (string, error) {
			close(aAdmitted)
			<-aRelease
			return "a", nil
		})
	}()
	<-aAdmitted

	outcomeB := Handle(context.Background(), p, func(ctx context.Context) (string, error) {
		return "b", nil
	})
	require.Equal(t, OutcomeRejected, outcomeB.Kind)

	close(aRelease)
	require.Equal(t, OutcomeSuccess, (<-aDone).Kind)

	outcomeC := Handle(context.Background(), p, func(ctx context.Context) (string, error) {
		return "c", nil
	})
	require.Equal(t, OutcomeSuccess, outcomeC.Kind)
	require.Equal(t, "c", outcomeC.Value)
}

func TestHandleConcurrentAdmissionIsExact(t *testing.T) {
	const capacity = 10
	const requests = 100

	p := MustNew(newTestConfig(capacity, time.Second*5, time.Second))

	var successCount, rejectedCount atomic.Int64
	release := make(chan struct{})
	admitted := make(chan struct{}, requests)

	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome := Handle(context.Background(), p, func(ctx context.Context) (string, error) {
				admitted <- struct{}{}
				<-release
				return "", nil
			})
			switch outcome.Kind {
			case OutcomeSuccess:
				successCount.Inc()
			case OutcomeRejected:
				rejectedCount.Inc()
			}
		}()
	}

	// Wait until the gate fills up, then let everything finish.
	for i := 0; i < capacity; i++ {
		<-admitted
	}
	close(release)
	wg.Wait()

	require.Equal(t, int64(requests), successCount.Load()+rejectedCount.Load())
	require.GreaterOrEqual(t, successCount.Load(), int64(capacity))
	require.Equal(t, 0, p.Gate().InFlight())
}
