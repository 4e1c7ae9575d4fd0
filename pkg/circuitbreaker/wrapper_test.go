package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topicmon/pkg/metrics"
)

func TestWrapper_TripsAfterConsecutiveFailures(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-trip"))
	boom := errors.New("boom")
	calls := 0
	fail := func(context.Context) error {
		calls++
		return boom
	}

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, w.Execute(context.Background(), fail), boom)
	}
	assert.True(t, w.IsOpen())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("test-trip")))

	err := w.Execute(context.Background(), fail)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, calls)
}

func TestWrapper_IsSuccessfulExcludesErrors(t *testing.T) {
	ignored := errors.New("not the broker's fault")
	cfg := DefaultConfig("test-ignored")
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ignored)
	}
	w := NewWrapper(cfg)

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, w.Execute(context.Background(), func(context.Context) error { return ignored }), ignored)
	}
	assert.Equal(t, gobreaker.StateClosed, w.State())
}

func TestWrapper_HalfOpenRecovery(t *testing.T) {
	cfg := DefaultConfig("test-recover")
	cfg.Timeout = 10 * time.Millisecond
	var transitions []gobreaker.State
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}
	w := NewWrapper(cfg)

	for i := 0; i < 3; i++ {
		_ = w.Execute(context.Background(), func(context.Context) error { return errors.New("x") })
	}
	require.True(t, w.IsOpen())

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, w.Execute(context.Background(), func(context.Context) error { return nil }))

	assert.Equal(t, gobreaker.StateClosed, w.State())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen, gobreaker.StateHalfOpen, gobreaker.StateClosed}, transitions)
}

func TestWrapper_CancelledContext(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-cancel"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := w.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, "test-cancel", w.Name())
}
