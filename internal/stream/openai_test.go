package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/schema"
)

func TestMapFinishReason(t *testing.T) {
	cases := []struct {
		in   schema.StopReason
		want string
	}{
		{schema.StopEndTurn, "stop"},
		{schema.StopMaxTokens, "length"},
		{schema.StopSequenceStop, "stop"},
		{schema.StopToolUse, "tool_calls"},
		{schema.StopRefusal, "content_filter"},
		{schema.StopNone, "stop"},
	}
	for _, c := range cases {
		got := MapFinishReason(&c.in)
		require.NotNil(t, got)
		assert.Equal(t, c.want, *got)
	}
	assert.Nil(t, MapFinishReason(nil))
}

func TestRewriteDeltaToOpenAI(t *testing.T) {
	d, ok := RewriteDeltaToOpenAI(schema.ContentBlockDelta{DeltaType: "text_delta", Text: "hi"})
	assert.True(t, ok)
	assert.Equal(t, "hi", d.Content)

	d, ok = RewriteDeltaToOpenAI(schema.ContentBlockDelta{DeltaType: "thinking_delta", Thinking: "reasoning"})
	assert.True(t, ok)
	assert.Equal(t, "reasoning", d.ReasoningContent)

	_, ok = RewriteDeltaToOpenAI(schema.ContentBlockDelta{DeltaType: "signature_delta"})
	assert.False(t, ok)
}

func TestAggregateNonStream(t *testing.T) {
	blocks := []schema.ContentBlock{
		{Type: "text", Text: "Hello "},
		{Type: "tool_use", Name: "x"},
		{Type: "text", Text: "world"},
	}
	assert.Equal(t, "Hello world", AggregateNonStream(blocks))
}

func TestBuildOpenAICompletion(t *testing.T) {
	stop := schema.StopMaxTokens
	resp := BuildOpenAICompletion("cmpl-1", "claude-x", 1000, "hi", &stop, 3, 2)
	assert.Equal(t, "chat.completion", resp.Object)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "length", resp.Choices[0].FinishReason)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}
