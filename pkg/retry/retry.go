package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

type markedError struct {
	err       error
	retryable bool
}

func (e *markedError) Error() string     { return e.err.Error() }
func (e *markedError) Unwrap() error     { return e.err }
func (e *markedError) IsRetryable() bool { return e.retryable }
func (e *markedError) IsFatal() bool     { return !e.retryable }

func NewRetryableError(err error) error {
	if err == nil {
		return nil
	}
	return &markedError{err: err, retryable: true}
}

func NewFatalError(err error) error {
	if err == nil {
		return nil
	}
	return &markedError{err: err, retryable: false}
}

// IsPermanent reports whether err asks not to be retried. Errors that carry
// no marking are retried.
func IsPermanent(err error) bool {
	var fatal FatalError
	if errors.As(err, &fatal) && fatal.IsFatal() {
		return true
	}
	var retryable RetryableError
	if errors.As(err, &retryable) && !retryable.IsRetryable() {
		return true
	}
	return false
}

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
	}
}

// Notify is called before each retry with the attempt that just failed
// (starting at 1) and the delay until the next one.
type Notify func(attempt int, err error, nextDelay time.Duration)

// Do runs fn until it succeeds, returns a permanent error, the attempts are
// exhausted or ctx is done. The last error from fn is returned.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error, onRetry Notify) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy().MaxAttempts
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(newBackOff(policy), uint64(policy.MaxAttempts-1)),
		ctx,
	)

	attempt := 0
	operation := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		if onRetry != nil {
			onRetry(attempt, err, next)
		}
	}

	return backoff.RetryNotify(operation, b, notify)
}

func Retry(ctx context.Context, policy Policy, fn func() error) error {
	return Do(ctx, policy, func(context.Context) error { return fn() }, nil)
}
