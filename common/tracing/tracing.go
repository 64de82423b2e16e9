// Package tracing derives stable per-request identifiers from gin-middlewares'
// trace ID and, when available, the active OpenTelemetry span context, for
// use in structured log fields and provider-facing completion IDs.
package tracing

import (
	"context"

	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/Laisky/llm-gateway/common/logger"
)

// otelTraceIDFromContext extracts the OpenTelemetry trace ID from a context when available.
func otelTraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	spanCtx := oteltrace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}

	return ""
}

// GetTraceID extracts the per-request TraceID from gin context using gin-middlewares.
//
// This TraceID is intended to be unique per incoming HTTP request. It may be derived
// from the OpenTelemetry span context, but it includes span-level information (e.g.
// span id) so it remains unique even when multiple requests share the same distributed
// OpenTelemetry trace id.
func GetTraceID(c *gin.Context) string {
	traceID, err := gmw.TraceID(c)
	if err != nil {
		gmw.GetLogger(c).Warn("failed to get trace ID from gin-middlewares", zap.Error(err))
		// Fallback to empty string - this should not happen in normal operation
		return ""
	}
	return traceID.String()
}

// GetTraceIDFromContext extracts the per-request TraceID from a standard context.
//
// When the context contains an embedded gin.Context (gmw.BackgroundCtx pattern), the
// gin-middlewares TraceID is returned.
//
// When no gin.Context is available, it falls back to the OpenTelemetry trace id.
func GetTraceIDFromContext(ctx context.Context) string {
	if ginCtx, ok := gmw.GetGinCtxFromStdCtx(ctx); ok {
		return GetTraceID(ginCtx)
	}
	if traceID := otelTraceIDFromContext(ctx); traceID != "" {
		return traceID
	}
	logger.FromContext(ctx).Warn("failed to get gin context from standard context for trace ID extraction")
	return ""
}

// GetOpenTelemetryTraceID extracts the OpenTelemetry trace id from gin context when available.
//
// This is used when callers need a stable distributed trace id (not span-scoped), e.g.
// generating chat-completion response IDs.
func GetOpenTelemetryTraceID(c *gin.Context) string {
	return otelTraceIDFromContext(gmw.Ctx(c))
}

// GetOpenTelemetryTraceIDFromContext extracts the OpenTelemetry trace id from a standard context.
//
// Returns empty string when no OpenTelemetry span context is available.
func GetOpenTelemetryTraceIDFromContext(ctx context.Context) string {
	return otelTraceIDFromContext(ctx)
}

// WithTraceID adds trace ID to structured logging fields
func WithTraceID(c *gin.Context, fields ...zap.Field) []zap.Field {
	traceID := GetTraceID(c)
	if traceID == "" {
		return fields
	}

	traceField := zap.String("trace_id", traceID)
	return append([]zap.Field{traceField}, fields...)
}

// WithTraceIDFromContext adds trace ID to structured logging fields from context
func WithTraceIDFromContext(ctx context.Context, fields ...zap.Field) []zap.Field {
	traceID := GetTraceIDFromContext(ctx)
	if traceID == "" {
		return fields
	}

	traceField := zap.String("trace_id", traceID)
	return append([]zap.Field{traceField}, fields...)
}

// GenerateChatCompletionID derives an OpenAI-shaped chat completion id from
// the request's trace id, preferring the distributed OpenTelemetry trace id
// when one is available so the same id can be cross-referenced in traces,
// logs, and the response body.
//
// Format: chatcmpl-llmgw-{trace-id}
func GenerateChatCompletionID(c *gin.Context) string {
	traceID := GetOpenTelemetryTraceID(c)
	if traceID == "" {
		traceID = GetTraceID(c)
	}
	return "chatcmpl-llmgw-" + traceID
}

// GenerateChatCompletionIDFromContext generates a chat completion ID from standard context.
// This is useful when only context.Context is available (not gin.Context).
//
// Format: chatcmpl-llmgw-{trace-id}
func GenerateChatCompletionIDFromContext(ctx context.Context) string {
	traceID := GetOpenTelemetryTraceIDFromContext(ctx)
	if traceID == "" {
		traceID = GetTraceIDFromContext(ctx)
	}
	return "chatcmpl-llmgw-" + traceID
}
