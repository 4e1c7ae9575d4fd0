// Package tracing wires OpenTelemetry into the monitor: one process-wide
// provider, trace context carried in message headers, and a consumer span per
// delivered message.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"topicmon/internal/config"
	"topicmon/internal/constants"
)

const (
	exporterTimeout = 5 * time.Second
	instrumentation = "topicmon"
)

// Identity describes this monitor process on every exported span.
type Identity struct {
	ServiceName string
	InstanceID  string
	BrokerType  string
}

type Provider struct {
	tp       *sdktrace.TracerProvider
	identity Identity
	exported bool
}

func (p *Provider) Tracer() trace.Tracer {
	return p.tp.Tracer(instrumentation)
}

// Exported reports whether spans leave the process.
func (p *Provider) Exported() bool {
	return p.exported
}

func (p *Provider) Identity() Identity {
	return p.identity
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Init installs the W3C propagator in every case, so trace context found in
// message headers still parents the monitor's spans. The provider is only
// made global when export is enabled.
func Init(cfg config.TracingConfig, id Identity) (*Provider, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if id.ServiceName == "" {
		id.ServiceName = cfg.ServiceName
	}
	if id.ServiceName == "" {
		id.ServiceName = constants.ServiceName
	}

	if !cfg.Enabled {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))
		return &Provider{tp: tp, identity: id}, nil
	}

	sampler, err := newSampler(cfg.Sampler)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(identityAttributes(id)...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), exporterTimeout)
	defer cancel()

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTLP.Endpoint),
	}
	if cfg.OTLP.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp, identity: id, exported: true}, nil
}

func identityAttributes(id Identity) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(id.ServiceName)}
	if id.InstanceID != "" {
		attrs = append(attrs, semconv.ServiceInstanceIDKey.String(id.InstanceID))
	}
	if id.BrokerType != "" {
		attrs = append(attrs, semconv.MessagingSystemKey.String(id.BrokerType))
	}
	return attrs
}

func newSampler(cfg config.SamplerConfig) (sdktrace.Sampler, error) {
	switch cfg.Type {
	case "", "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample()), nil
	case "always_on":
		return sdktrace.AlwaysSample(), nil
	case "always_off":
		return sdktrace.NeverSample(), nil
	case "traceidratio", "parentbased_traceidratio":
		if cfg.Param < 0 || cfg.Param > 1 {
			return nil, fmt.Errorf("sampler param must be within [0, 1], got %v", cfg.Param)
		}
		if cfg.Type == "traceidratio" {
			return sdktrace.TraceIDRatioBased(cfg.Param), nil
		}
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Param)), nil
	default:
		return nil, fmt.Errorf("unknown trace sampler: %s", cfg.Type)
	}
}

// Tracer returns the monitor's tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentation)
}

// StartConsume opens the consumer span of one delivered message.
func StartConsume(ctx context.Context, topic string, size int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "monitor.classify",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingDestinationNameKey.String(topic),
			semconv.MessagingMessageBodySizeKey.Int(size),
			semconv.MessagingOperationTypeKey.String("process"),
		),
	)
}
