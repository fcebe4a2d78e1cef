// Package telemetry configures OpenTelemetry tracing for the bridge.
//
// Custom span attributes use the `bridge.` prefix. The invoker adds a child
// span per call under the request spans started here.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName  = "github.com/morezero/json-bridge"
	serviceName = "json-bridge"
)

// Tracer returns the package-level tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTraceProvider installs an OTLP gRPC trace provider. An empty endpoint disables
// tracing. The returned function flushes and stops the provider.
func InitTraceProvider(ctx context.Context, endpoint string, version string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// --- Span helpers ---

// StartRequestSpan creates the parent span for one inbound request.
func StartRequestSpan(ctx context.Context, transport, service, operation string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "bridge.request",
		trace.WithAttributes(
			attribute.String("bridge.transport", transport),
			attribute.String("bridge.service", service),
			attribute.String("bridge.operation", operation),
		),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// EndRequestSpan records the request outcome and ends the span. Any outcome other
// than "OK" marks the span as failed.
func EndRequestSpan(span trace.Span, outcome string, status int) {
	span.SetAttributes(attribute.String("bridge.outcome", outcome))
	if status > 0 {
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
	if outcome != "OK" {
		span.SetStatus(codes.Error, outcome)
	}
	span.End()
}

// StartPublishSpan creates a child span for event delivery.
func StartPublishSpan(ctx context.Context, sink, service string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "bridge.publish",
		trace.WithAttributes(
			attribute.String("bridge.sink", sink),
			attribute.String("bridge.service", service),
		),
		trace.WithSpanKind(trace.SpanKindProducer),
	)
}
