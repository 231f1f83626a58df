// Package observability wires the broker's tracing, metrics and health
// endpoints: a stdout-exported OTel tracer for Router.Select and
// Pipeline.Execute spans, Prometheus counters/histograms for request and
// cache behaviour, and the health/liveness/readiness HTTP surface
// cmd/aibroker serve exposes.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const DefaultServiceName = "aibroker"

var tracer trace.Tracer

// InitTracing sets up a stdout-exported tracer. The broker has no OTLP
// collector endpoint of its own, so unlike the agent runtime this skips
// otlptrace entirely; serviceName empty means DefaultServiceName.
func InitTracing(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("observability: build stdout exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(serviceName)

	return tp.Shutdown, nil
}

// StartSpan starts a span under the broker tracer, falling back to the
// global no-op provider when InitTracing was never called (unit tests
// never pay the exporter cost).
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	tr := tracer
	if tr == nil {
		tr = otel.GetTracerProvider().Tracer(DefaultServiceName)
	}
	spanCtx, span := tr.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return spanCtx, Span{span: span}
}

// Span is a thin wrapper so callers outside this package never import
// the otel trace package directly.
type Span struct {
	span trace.Span
}

func (s Span) End() {
	if s.span != nil {
		s.span.End()
	}
}

func (s Span) SetAttribute(key string, value string) {
	if s.span != nil {
		s.span.SetAttributes(attribute.String(key, value))
	}
}

func (s Span) SetError(err error) {
	if s.span != nil && err != nil {
		s.span.RecordError(err)
	}
}
