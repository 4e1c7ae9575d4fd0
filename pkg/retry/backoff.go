package retry

import (
	"github.com/cenkalti/backoff/v4"
)

func newBackOff(policy Policy) backoff.BackOff {
	defaults := DefaultPolicy()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = defaults.InitialInterval
	if policy.InitialInterval > 0 {
		exp.InitialInterval = policy.InitialInterval
	}
	exp.MaxInterval = defaults.MaxInterval
	if policy.MaxInterval > 0 {
		exp.MaxInterval = policy.MaxInterval
	}
	exp.Multiplier = defaults.Multiplier
	if policy.Multiplier > 0 {
		exp.Multiplier = policy.Multiplier
	}
	// zero disables the elapsed-time cutoff
	exp.MaxElapsedTime = policy.MaxElapsedTime
	exp.Reset()
	return exp
}
