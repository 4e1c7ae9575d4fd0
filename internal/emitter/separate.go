package emitter

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"topicmon/internal/classifier"
)

const (
	jsonValidMetric                 = "json_valid_total"
	jsonUnrecognizedMetric          = "json_unrecognized_total"
	schemaValidMetric               = "schema_valid_total"
	schemaUnrecognizedMetric        = "schema_unrecognized_total"
	userBreakdownValidMetric        = "user_breakdown_valid_total"
	userBreakdownUnrecognizedMetric = "user_breakdown_unrecognized_total"
)

var separateLabelNames = []string{"topic", "schema", "user_breakdown"}

// SeparateLabels derives the label values shared by every separate-policy
// counter, in the order of separateLabelNames.
func SeparateLabels(r classifier.Result) []string {
	schemaName, hasSchema := r.SchemaName()
	return []string{
		orUnknown(r.Topic, true),
		orUnknown(schemaName, hasSchema),
		orUnknown(r.Breakdown, r.HasBreakdown),
	}
}

type separate struct {
	emitterBase
	jsonValid                 *prometheus.CounterVec
	jsonUnrecognized          *prometheus.CounterVec
	schemaValid               *prometheus.CounterVec
	schemaUnrecognized        *prometheus.CounterVec
	userBreakdownValid        *prometheus.CounterVec
	userBreakdownUnrecognized *prometheus.CounterVec
}

func newSeparate(base emitterBase, reg prometheus.Registerer) (*separate, error) {
	e := &separate{emitterBase: base}

	families := []struct {
		target **prometheus.CounterVec
		name   string
		help   string
	}{
		{&e.jsonValid, jsonValidMetric, "Consumed messages that are valid JSON (count)"},
		{&e.jsonUnrecognized, jsonUnrecognizedMetric, "Consumed messages that are not valid JSON (count)"},
		{&e.schemaValid, schemaValidMetric, "Consumed messages matching a known JSON schema (count)"},
		{&e.schemaUnrecognized, schemaUnrecognizedMetric, "Consumed messages matching no known JSON schema (count)"},
		{&e.userBreakdownValid, userBreakdownValidMetric, "Consumed messages with a user breakdown value (count)"},
		{&e.userBreakdownUnrecognized, userBreakdownUnrecognizedMetric, "Consumed messages without a user breakdown value (count)"},
	}

	for _, f := range families {
		vec, err := registerCounter(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: f.name, Help: f.help},
			separateLabelNames,
		))
		if err != nil {
			return nil, err
		}
		*f.target = vec
	}
	return e, nil
}

func (e *separate) Emit(ctx context.Context, r classifier.Result) {
	labels := SeparateLabels(r)
	e.logger.DebugwCtx(ctx, "Emitting message counters",
		"labels", labels,
	)

	if r.Parsed {
		e.inc(ctx, jsonValidMetric, e.jsonValid, labels...)
	} else {
		e.inc(ctx, jsonUnrecognizedMetric, e.jsonUnrecognized, labels...)
	}

	if r.Schema != nil {
		e.inc(ctx, schemaValidMetric, e.schemaValid, labels...)
	} else {
		e.inc(ctx, schemaUnrecognizedMetric, e.schemaUnrecognized, labels...)
	}

	if !r.BreakdownConfigured {
		return
	}
	if r.HasBreakdown {
		e.inc(ctx, userBreakdownValidMetric, e.userBreakdownValid, labels...)
	} else {
		e.inc(ctx, userBreakdownUnrecognizedMetric, e.userBreakdownUnrecognized, labels...)
	}
}
