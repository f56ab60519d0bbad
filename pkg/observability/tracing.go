package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name of the tracer for qidlink operations.
	TracerName = "qidlink"
)

// Span attribute keys
const (
	AttrRunID      = "run_id"
	AttrRow        = "row"
	AttrCategory   = "category"
	AttrQuery      = "query"
	AttrMode       = "mode"
	AttrCapability = "capability"
	AttrCacheHit   = "cache_hit"
	AttrResults    = "results"
	AttrIdentifier = "identifier"
	AttrScore      = "score"
	AttrTier       = "tier"
	AttrErrorType  = "error_type"
	AttrRetryable  = "retryable"
)

// Span names
const (
	SpanRun     = "qidlink.run"
	SpanResolve = "qidlink.resolve"
	SpanSearch  = "qidlink.search"
	SpanRequest = "qidlink.request"
	SpanExtract = "qidlink.extract"
)

// Tracer provides tracing for qidlink operations. Without a configured
// provider the global no-op tracer is used.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(TracerName),
	}
}

// StartRunSpan starts the root span for a batch run.
func (t *Tracer) StartRunSpan(ctx context.Context, runID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanRun,
		trace.WithAttributes(attribute.String(AttrRunID, runID)),
	)
}

// StartResolveSpan starts a span for resolving one record.
func (t *Tracer) StartResolveSpan(ctx context.Context, row int, category string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanResolve,
		trace.WithAttributes(
			attribute.Int(AttrRow, row),
			attribute.String(AttrCategory, category),
		),
	)
}

// StartSearchSpan starts a span for one cached search.
func (t *Tracer) StartSearchSpan(ctx context.Context, query, mode string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanSearch,
		trace.WithAttributes(
			attribute.String(AttrQuery, query),
			attribute.String(AttrMode, mode),
		),
	)
}

// StartRequestSpan starts a span for one HTTP request to a capability.
func (t *Tracer) StartRequestSpan(ctx context.Context, capability string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanRequest,
		trace.WithAttributes(attribute.String(AttrCapability, capability)),
	)
}

// StartExtractSpan starts a span for a triple extraction run.
func (t *Tracer) StartExtractSpan(ctx context.Context, format string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanExtract,
		trace.WithAttributes(attribute.String(AttrMode, format)),
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

// SetSearchResult records the outcome of a search.
func (h *SpanHelper) SetSearchResult(cacheHit bool, results int) {
	h.span.SetAttributes(
		attribute.Bool(AttrCacheHit, cacheHit),
		attribute.Int(AttrResults, results),
	)
}

// SetResolution records the accepted match of a record.
func (h *SpanHelper) SetResolution(identifier, tier string, score float64) {
	h.span.SetAttributes(
		attribute.String(AttrIdentifier, identifier),
		attribute.String(AttrTier, tier),
		attribute.Float64(AttrScore, score),
	)
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, errorType string, retryable bool) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(
		attribute.String(AttrErrorType, errorType),
		attribute.Bool(AttrRetryable, retryable),
	)
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
