package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "topicmon/pkg/errors"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var notified []int

	err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("broker unavailable")
		}
		return nil
	}, func(attempt int, err error, next time.Duration) {
		notified = append(notified, attempt)
		assert.Positive(t, next)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, notified)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")

	err := Do(context.Background(), fastPolicy(3), func(context.Context) error {
		calls++
		return boom
	}, nil)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorsStopImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"fatal marker", NewFatalError(errors.New("bad pattern"))},
		{"app error marked fatal", apperrors.ErrSubscribeFailed.AsFatal()},
		{"non retryable app error", apperrors.ErrConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
				calls++
				return tt.err
			}, nil)

			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestDo_RetryableAppErrorIsRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(2), func(context.Context) error {
		calls++
		return apperrors.ErrSubscribeFailed
	}, nil)

	assert.True(t, apperrors.IsSubscribeFailed(err))
	assert.Equal(t, 2, calls)
}

func TestDo_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Do(ctx, Policy{MaxAttempts: 10, InitialInterval: time.Hour, MaxInterval: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	}, nil)

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(0), func() error {
		calls++
		return NewRetryableError(errors.New("again"))
	})
	assert.Error(t, err)
	assert.Equal(t, DefaultPolicy().MaxAttempts, calls)
}

func TestIsPermanent(t *testing.T) {
	assert.False(t, IsPermanent(errors.New("plain")))
	assert.False(t, IsPermanent(NewRetryableError(errors.New("x"))))
	assert.True(t, IsPermanent(NewFatalError(errors.New("x"))))
	assert.Nil(t, NewFatalError(nil))
	assert.Nil(t, NewRetryableError(nil))
}
