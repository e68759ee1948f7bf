package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name of the tracer for grantqa operations.
	TracerName = "grantqa"
)

// Span attribute keys
const (
	AttrOperation = "db.operation"
	AttrEntity    = "entity"
	AttrRows      = "rows"
	AttrScope     = "search.scope"
	AttrRoute     = "http.route"
	AttrErrorKind = "error_kind"
)

// Tracer provides distributed tracing for store and HTTP operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer backed by the global provider. Without a
// configured provider spans are no-ops.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(TracerName),
	}
}

// StartQuerySpan starts a span for one store query.
func (t *Tracer) StartQuerySpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "store."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrOperation, operation),
		),
	)
}

// StartRequestSpan starts a server span for an HTTP route.
func (t *Tracer) StartRequestSpan(ctx context.Context, method, route string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(AttrRoute, route),
		),
	)
}

// SpanHelper provides convenient methods for working with the current span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetRows records the number of rows a query returned.
func (h *SpanHelper) SetRows(n int) {
	h.span.SetAttributes(attribute.Int(AttrRows, n))
}

// SetError records an error and its kind on the span.
func (h *SpanHelper) SetError(err error, kind string) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(attribute.String(AttrErrorKind, kind))
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
