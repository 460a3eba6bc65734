package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for application spans
const TracerName = "souq-backend"

// SpanOption configures a span started with StartSpan
type SpanOption func(*spanConfig)

type spanConfig struct {
	kind  trace.SpanKind
	attrs []attribute.KeyValue
}

// WithAttribute sets a start attribute; value is converted with toAttribute
func WithAttribute(key string, value any) SpanOption {
	return func(c *spanConfig) { c.attrs = append(c.attrs, toAttribute(key, value)) }
}

// WithSpanKind overrides the default internal span kind
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(c *spanConfig) { c.kind = kind }
}

// StartSpan starts a span on the global tracer. The caller ends it.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, trace.Span) {
	cfg := spanConfig{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(&cfg)
	}
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(cfg.kind),
		trace.WithAttributes(cfg.attrs...),
	)
}

// StartServiceSpan starts a span named "<service>.<operation>", e.g. "sync.run"
// or "webhook.ingest".
func StartServiceSpan(ctx context.Context, service, operation string, opts ...SpanOption) (context.Context, trace.Span) {
	return StartSpan(ctx, service+"."+operation, opts...)
}

// SetAttributes sets key, value pairs on span; pairs with a non-string key are dropped
func SetAttributes(span trace.Span, kv ...any) {
	if span != nil {
		span.SetAttributes(pairs(kv)...)
	}
}

// AddEvent adds a named event with key, value pairs
func AddEvent(span trace.Span, name string, kv ...any) {
	if span != nil {
		span.AddEvent(name, trace.WithAttributes(pairs(kv)...))
	}
}

// RecordError records err and sets the span status to Error
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func pairs(kv []any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			out = append(out, toAttribute(key, kv[i+1]))
		}
	}
	return out
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	}
	return attribute.String(key, fmt.Sprint(value))
}
