// Package emitter turns classification results into Prometheus counter
// increments. Every label value is non-empty: absent values are reported as
// "unknown" so each family keeps a fixed label set.
package emitter

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"topicmon/internal/classifier"
	"topicmon/internal/constants"
	"topicmon/internal/logger"
)

type Policy string

const (
	PolicyCombined Policy = constants.TaggingPolicyCombined
	PolicySeparate Policy = constants.TaggingPolicySeparate
)

type Emitter interface {
	Emit(ctx context.Context, result classifier.Result)
}

// New registers the policy's counter families on reg; a nil reg means the
// default Prometheus registerer.
func New(policy Policy, reg prometheus.Registerer, log logger.Logger) (Emitter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if log == nil {
		log = logger.NopLogger()
	}

	errs, err := registerCounter(reg, newEmitErrors())
	if err != nil {
		return nil, err
	}
	base := emitterBase{logger: log, errors: errs}

	switch policy {
	case PolicyCombined, "":
		e, err := newCombined(base, reg)
		if err != nil {
			return nil, err
		}
		return e, nil
	case PolicySeparate:
		e, err := newSeparate(base, reg)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown tagging policy: %s", policy)
	}
}

func newEmitErrors() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "monitor",
			Name:      "emit_errors_total",
			Help:      "Total number of counter increments rejected by the metrics registry (count)",
		},
		[]string{"metric"},
	)
}

// registerCounter returns the collector that ends up registered: vec itself,
// or the identical family an earlier emitter already registered on reg.
func registerCounter(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to register collector: %w", err)
	}
	return vec, nil
}

type emitterBase struct {
	logger logger.Logger
	errors *prometheus.CounterVec
}

func (b emitterBase) inc(ctx context.Context, name string, vec *prometheus.CounterVec, labels ...string) {
	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		b.errors.WithLabelValues(name).Inc()
		b.logger.ErrorwCtx(ctx, "Cannot increment counter",
			"metric", name,
			"labels", labels,
			"error", err,
		)
		return
	}
	counter.Inc()
}

func orUnknown(value string, present bool) string {
	if !present || value == "" {
		return constants.UnknownTagValue
	}
	return value
}
