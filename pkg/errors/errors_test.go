package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := ErrSubscribeFailed.WithCause(fmt.Errorf("connection refused"))
	assert.Equal(t, "SUBSCRIBE_FAILED: cannot subscribe to topics pattern (caused by: connection refused)", err.Error())

	detailed := ErrConfigInvalid.WithDetail("message", "monitor.client_name is required")
	assert.Equal(t, "CONFIG_INVALID: monitor.client_name is required", detailed.Error())
	assert.Empty(t, ErrConfigInvalid.Details, "sentinel must not be mutated")
}

func TestErrorIsAndAs(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := fmt.Errorf("start: %w", Wrap(cause, ErrSubscribeFailed))

	assert.True(t, stderrors.Is(err, ErrSubscribeFailed))
	assert.True(t, stderrors.Is(err, cause))
	assert.False(t, stderrors.Is(err, ErrConfigInvalid))
	assert.True(t, IsSubscribeFailed(err))
	assert.False(t, IsConfigInvalid(err))
	assert.Nil(t, Wrap(nil, ErrInternal))
}

func TestRetryable(t *testing.T) {
	assert.True(t, ErrSubscribeFailed.IsRetryable())
	assert.False(t, ErrConfigInvalid.IsRetryable())
	assert.True(t, ErrConfigInvalid.IsFatal())
	assert.False(t, ErrSubscribeFailed.AsFatal().IsRetryable())
	assert.True(t, ErrInternal.AsRetryable().IsRetryable())

	nested := ErrInternal.WithCause(ErrSubscribeFailed.AsFatal())
	assert.False(t, nested.IsRetryable())
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	err := RecoverPanic("kaboom")
	require.Error(t, err)

	var appErr *Error
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, true, appErr.Details["panic"])
	assert.NotEmpty(t, appErr.Details["stack_trace"])
	assert.True(t, appErr.IsFatal())
	assert.Contains(t, err.Error(), "panic: kaboom")
}
