// Package telemetry wraps OpenTelemetry tracing around sitewatch's
// pipeline stages, adapter calls, and agent loop, grounded on ariadne's
// OpenTelemetryTracer (engine/monitoring/monitoring.go) collapsed to the
// operations sitewatch actually traces.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Tracer starts and annotates spans around sitewatch operations. No
// external exporter is configured; spans are available to anything that
// registers itself as the global TracerProvider (a collector sidecar in
// production), matching the teacher's no-exporter-by-default posture.
type Tracer struct {
	tracer oteltrace.Tracer
}

// New builds a Tracer for the given service/environment pair and installs
// it as the global OpenTelemetry TracerProvider.
func New(serviceName, environment string) *Tracer {
	tp := trace.NewTracerProvider(
		trace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.DeploymentEnvironmentKey.String(environment),
		)),
	)
	otel.SetTracerProvider(tp)
	return &Tracer{tracer: otel.Tracer(serviceName)}
}

// StartStage opens a span for one scan/weekly pipeline stage.
func (t *Tracer) StartStage(ctx context.Context, stage string) (context.Context, oteltrace.Span) {
	return t.tracer.Start(ctx, "stage."+stage, oteltrace.WithAttributes(
		attribute.String("sitewatch.stage", stage),
	))
}

// StartAdapterCall opens a span for one external data source call.
func (t *Tracer) StartAdapterCall(ctx context.Context, source string) (context.Context, oteltrace.Span) {
	return t.tracer.Start(ctx, "adapter."+source, oteltrace.WithAttributes(
		attribute.String("sitewatch.source", source),
	))
}

// StartAgentTurn opens a span for one tool-calling turn of the investigation loop.
func (t *Tracer) StartAgentTurn(ctx context.Context, pageURL string, turn int) (context.Context, oteltrace.Span) {
	return t.tracer.Start(ctx, "agent.turn", oteltrace.WithAttributes(
		attribute.String("sitewatch.page_url", pageURL),
		attribute.Int("sitewatch.turn", turn),
	))
}

// RecordToolCall annotates the active span with a completed tool call.
func RecordToolCall(span oteltrace.Span, tool string, latency time.Duration, success bool) {
	if !span.IsRecording() {
		return
	}
	span.AddEvent("tool_call", oteltrace.WithAttributes(
		attribute.String("tool", tool),
		attribute.Int64("latency_ms", latency.Milliseconds()),
		attribute.Bool("success", success),
	))
}

// Finish closes a span, recording an error on it when err is non-nil.
func Finish(span oteltrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AttrString is a convenience wrapper matching the teacher's
// map[string]interface{}-to-attribute.String flattening, used when callers
// hold a bag of loosely typed fields instead of native otel attributes.
func AttrString(key string, value interface{}) attribute.KeyValue {
	return attribute.String(key, fmt.Sprintf("%v", value))
}
