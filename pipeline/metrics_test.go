/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-shedkit/testutil"
)

func TestPipelineMetrics(t *testing.T) {
	mc := NewMetricsCollector("shedkit_test")
	p := MustNewWithOpts(newTestConfig(1, time.Second*5, time.Second), Opts{MetricsCollector: mc})

	// Success.
	outcome := Handle(context.Background(), p, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.Equal(t, OutcomeSuccess, outcome.Kind)
	testutil.RequireSamplesCountInCounter(t, mc.Outcomes.WithLabelValues("success"), 1)

	// Handler error.
	outcome = Handle(context.Background(), p, func(ctx context.Context) (string, error) {
		return "", errors.New("downstream failed")
	})
	require.Equal(t, OutcomeHandlerError, outcome.Kind)
	testutil.RequireSamplesCountInCounter(t, mc.Outcomes.WithLabelValues("handler_error"), 1)

	// Timed out.
	outcome, err := HandleWithBudget(context.Background(), p, time.Millisecond*40, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeTimedOut, outcome.Kind)
	testutil.RequireSamplesCountInCounter(t, mc.Outcomes.WithLabelValues("timed_out"), 1)

	// In-flight gauge while the only slot is held, and a rejection observed meanwhile.
	admitted := make(chan struct{})
	release := make(chan struct{})
	errCh := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, handleErr := HandleWithBudget(context.Background(), p, time.Second*5, func(ctx context.Context) (string, error) {
			close(admitted)
			<-release
			return "held", nil
		})
		if handleErr != nil {
			errCh <- handleErr
		}
	}()
	<-admitted
	testutil.RequireValueInGauge(t, mc.InFlight, 1)

	outcome = Handle(context.Background(), p, func(ctx context.Context) (string, error) {
		t.Error("rejected work should never be invoked")
		return "", nil
	})
	require.Equal(t, OutcomeRejected, outcome.Kind)
	testutil.RequireSamplesCountInCounter(t, mc.Outcomes.WithLabelValues("rejected"), 1)

	close(release)
	<-done
	testutil.RequireNoErrorInChannel(t, errCh)
	testutil.RequireValueInGauge(t, mc.InFlight, 0)
	testutil.RequireSamplesCountInCounter(t, mc.Outcomes.WithLabelValues("success"), 2)
}
