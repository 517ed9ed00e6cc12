package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig configures the optional entry tracer (§C.3 of the
// expanded spec: off unless a service name is set).
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// Tracer wraps an OpenTelemetry tracer provider and emits one span per
// guarded entry, grounded on the teacher's internal/tracing.TracerProvider
// but scoped to resource/block attributes instead of auth span names.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer builds a Tracer exporting spans via stdout (development/
// testing exporter, matching the teacher's own stdouttrace choice; swap
// in an OTLP exporter at the call site for production export).
func NewTracer(cfg TracingConfig) (*Tracer, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating trace exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: building trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)

	return &Tracer{provider: provider, tracer: provider.Tracer(cfg.ServiceName)}, nil
}

// Attribute keys attached to every entry span.
const (
	AttributeResource  = attribute.Key("flowguard.resource")
	AttributeBlockType = attribute.Key("flowguard.block_type")
	AttributeRuleID    = attribute.Key("flowguard.rule_id")
)

// StartEntry opens a span named "flowguard.entry" for one guarded entry,
// carrying resource as its flowguard.resource attribute.
func (t *Tracer) StartEntry(ctx context.Context, resource string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "flowguard.entry",
		trace.WithAttributes(AttributeResource.String(resource)),
		trace.WithTimestamp(time.Now()),
	)
}

// EndBlocked annotates span with the rule that blocked the entry and
// ends it.
func EndBlocked(span trace.Span, blockType, ruleID string) {
	span.SetAttributes(AttributeBlockType.String(blockType), AttributeRuleID.String(ruleID))
	span.End(trace.WithTimestamp(time.Now()))
}

// EndPassed ends a span for an entry that was admitted and completed.
func EndPassed(span trace.Span) {
	span.End(trace.WithTimestamp(time.Now()))
}

// Shutdown flushes and stops the tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
