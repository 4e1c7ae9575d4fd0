package tracing

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// ExtractTraceContext returns ctx carrying the remote span found in kafka
// record headers, if any.
func ExtractTraceContext(ctx context.Context, headers []kafka.Header) context.Context {
	return ExtractFromMap(ctx, HeadersToMap(headers))
}

// ExtractFromMap extracts trace context from string properties, as carried by
// pulsar messages or converted kafka headers.
func ExtractFromMap(ctx context.Context, properties map[string]string) context.Context {
	propagator := otel.GetTextMapPropagator()
	if propagator == nil || len(properties) == 0 {
		return ctx
	}
	return propagator.Extract(ctx, propagation.MapCarrier(properties))
}

// InjectIntoMap writes the span context of ctx into properties.
func InjectIntoMap(ctx context.Context, properties map[string]string) {
	propagator := otel.GetTextMapPropagator()
	if propagator == nil {
		return
	}
	propagator.Inject(ctx, propagation.MapCarrier(properties))
}

// HeadersToMap flattens kafka headers; the last value wins for repeated keys.
func HeadersToMap(headers []kafka.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
}
