package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig contains tracing configuration.
type TracingConfig struct {
	Enabled       bool
	ServiceName   string
	Environment   string
	SamplingRatio float64 // 0.0 to 1.0
}

// Tracer wraps OpenTelemetry tracing for the orchestrator's phases and the
// CLI process runtime.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	config   TracingConfig
}

// SpanKind represents the type of span.
type SpanKind string

const (
	SpanKindOrchestrator SpanKind = "orchestrator"
	SpanKindScheduler    SpanKind = "scheduler"
	SpanKindPool         SpanKind = "pool"
	SpanKindLifecycle    SpanKind = "lifecycle"
	SpanKindProcess      SpanKind = "process"
)

// Common attribute keys.
const (
	AttrCommanderID  = "swarmctl.commander.id"
	AttrSubtaskIndex = "swarmctl.subtask.index"
	AttrSubtaskTitle = "swarmctl.subtask.title"
	AttrAgentID      = "swarmctl.agent.id"
	AttrAgentRole    = "swarmctl.agent.role"
	AttrModel        = "swarmctl.model"
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// NewTracer creates a new Tracer. A disabled config produces a no-op tracer
// backed by otel's global no-op provider rather than spinning up an exporter.
func NewTracer(config TracingConfig) (*Tracer, error) {
	if !config.Enabled {
		return &Tracer{tracer: otel.Tracer("swarmctl-noop"), config: config}, nil
	}

	exporter, err := newStdoutExporter()
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String("1.0.0"),
			attribute.String("environment", config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace resource: %w", err)
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SamplingRatio))

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(provider)
	tracer := provider.Tracer("swarmctl-orchestrator")

	return &Tracer{tracer: tracer, provider: provider, config: config}, nil
}

// Close shuts down the tracer provider.
func (t *Tracer) Close(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}

// StartSpan starts a new span of the given kind.
func (t *Tracer) StartSpan(ctx context.Context, name string, kind SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("span.kind", string(kind)))
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartPhaseSpan starts a span around one of the orchestrator's three pipeline phases.
func (t *Tracer) StartPhaseSpan(ctx context.Context, commanderID, phase string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, fmt.Sprintf("orchestrator.%s", phase), SpanKindOrchestrator,
		attribute.String(AttrCommanderID, commanderID),
		attribute.String("phase", phase),
	)
}

// StartSubtaskSpan starts a span around one sub-task's run through the CLI process runtime.
func (t *Tracer) StartSubtaskSpan(ctx context.Context, commanderID string, index int, title, agentID, model string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "subtask.execute", SpanKindProcess,
		attribute.String(AttrCommanderID, commanderID),
		attribute.Int(AttrSubtaskIndex, index),
		attribute.String(AttrSubtaskTitle, title),
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrModel, model),
	)
}

// StartPoolSpan starts a span around an acquire/release on the sub-agent pool.
func (t *Tracer) StartPoolSpan(ctx context.Context, operation, role string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, fmt.Sprintf("pool.%s", operation), SpanKindPool,
		attribute.String(AttrAgentRole, role),
	)
}

// RecordError records an error on a span.
func (t *Tracer) RecordError(span trace.Span, err error, errorType string) {
	if err == nil {
		return
	}
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
	span.SetAttributes(
		attribute.String(AttrErrorType, errorType),
		attribute.String(AttrErrorMessage, err.Error()),
	)
}

// EndSpan ends a span, recording err (if non-nil) as the span's terminal status.
func (t *Tracer) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddEvent adds a point-in-time event to a span (e.g. a lifecycle transition).
func (t *Tracer) AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID extracts the trace ID from context, if any span is active.
func (t *Tracer) GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// stdoutExporter is a minimal no-network span exporter: it satisfies
// sdktrace.SpanExporter without requiring a Jaeger or OTLP collector to be
// reachable. Despite its name it writes nothing: exported spans are
// discarded.
type stdoutExporter struct{}

func (e *stdoutExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	return nil
}

func (e *stdoutExporter) Shutdown(ctx context.Context) error {
	return nil
}

func newStdoutExporter() (sdktrace.SpanExporter, error) {
	return &stdoutExporter{}, nil
}
