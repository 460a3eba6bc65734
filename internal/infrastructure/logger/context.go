package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

// Context keys for the request-scoped logger and its correlation fields
const (
	LoggerKey     contextKey = "logger"
	RequestIDKey  contextKey = "request_id"
	MerchantIDKey contextKey = "merchant_id"
	PlatformKey   contextKey = "platform"
)

// WithContext attaches logger to ctx
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext returns the attached logger, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// withField stores value under key and attaches a logger carrying it
func withField(ctx context.Context, logger *zap.Logger, key contextKey, value string) (context.Context, *zap.Logger) {
	enriched := logger.With(zap.String(string(key), value))
	ctx = context.WithValue(ctx, key, value)
	return WithContext(ctx, enriched), enriched
}

// WithRequestID records the request id on ctx and its logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return withField(ctx, logger, RequestIDKey, requestID)
}

// WithMerchantID records the authenticated merchant on ctx and its logger
func WithMerchantID(ctx context.Context, logger *zap.Logger, merchantID string) (context.Context, *zap.Logger) {
	return withField(ctx, logger, MerchantIDKey, merchantID)
}

// WithPlatform records the platform code on ctx and its logger
func WithPlatform(ctx context.Context, logger *zap.Logger, platform string) (context.Context, *zap.Logger) {
	return withField(ctx, logger, PlatformKey, platform)
}

func stringValue(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// GetRequestID returns the request id stored on ctx
func GetRequestID(ctx context.Context) string { return stringValue(ctx, RequestIDKey) }

// GetMerchantID returns the merchant id stored on ctx
func GetMerchantID(ctx context.Context) string { return stringValue(ctx, MerchantIDKey) }

// GetPlatform returns the platform code stored on ctx
func GetPlatform(ctx context.Context) string { return stringValue(ctx, PlatformKey) }

// GetTraceID returns the active trace id, or "" without a valid span
func GetTraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// GetSpanID returns the active span id, or "" without a valid span
func GetSpanID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.SpanID().String()
	}
	return ""
}

// WithTraceContext adds trace_id and span_id when ctx carries a valid span
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// L returns the request logger from ctx with trace ids added.
//
//	logger.L(ctx).Warn("Webhook handler failed", zap.Error(err))
//
// Request, merchant and platform fields are already on the logger when the
// gin and JWT middleware attached it.
func L(ctx context.Context) *zap.Logger {
	return WithTraceContext(ctx, FromContext(ctx))
}
