package emitter

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"topicmon/internal/classifier"
	"topicmon/internal/constants"
)

const combinedMetric = "pulsar_message_total"

var combinedLabelNames = []string{"topic", "content_type", "json_schema", "json_path_breakdown"}

// CombinedLabels derives the label values of the single per-message counter,
// in the order of combinedLabelNames.
func CombinedLabels(r classifier.Result) []string {
	contentType := constants.ContentTypeUnknown
	if r.Parsed {
		contentType = constants.ContentTypeJSON
	}
	schemaName, hasSchema := r.SchemaName()
	return []string{
		orUnknown(r.Topic, true),
		contentType,
		orUnknown(schemaName, hasSchema),
		orUnknown(r.Breakdown, r.HasBreakdown),
	}
}

type combined struct {
	emitterBase
	messages *prometheus.CounterVec
}

func newCombined(base emitterBase, reg prometheus.Registerer) (*combined, error) {
	messages, err := registerCounter(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: combinedMetric,
			Help: "Consumed messages by topic, content type, matched JSON schema and user breakdown (count)",
		},
		combinedLabelNames,
	))
	if err != nil {
		return nil, err
	}
	return &combined{emitterBase: base, messages: messages}, nil
}

func (e *combined) Emit(ctx context.Context, r classifier.Result) {
	labels := CombinedLabels(r)
	e.logger.DebugwCtx(ctx, "Emitting message counter",
		"metric", combinedMetric,
		"labels", labels,
	)
	e.inc(ctx, combinedMetric, e.messages, labels...)
}
