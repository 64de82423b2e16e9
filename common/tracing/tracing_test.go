package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestGetTraceIDFromContext(t *testing.T) {
	t.Parallel()

	// Without a gin context or span there is nothing to extract.
	assert.Empty(t, GetTraceIDFromContext(context.Background()))

	// With an active OpenTelemetry span, its trace id wins.
	tracer := sdktrace.NewTracerProvider().Tracer("gateway-test")
	ctx, span := tracer.Start(context.Background(), "completion")
	want := span.SpanContext().TraceID().String()
	span.End()

	require.NotEmpty(t, want)
	assert.Equal(t, want, GetTraceIDFromContext(ctx))
}

func TestGenerateChatCompletionIDFromContextIsStablePerTrace(t *testing.T) {
	t.Parallel()

	tracer := sdktrace.NewTracerProvider().Tracer("gateway-test")
	ctx, span := tracer.Start(context.Background(), "completion")
	defer span.End()

	first := GenerateChatCompletionIDFromContext(ctx)
	second := GenerateChatCompletionIDFromContext(ctx)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
}
