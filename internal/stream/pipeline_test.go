package stream

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/schema"
)

func TestRunPipelineClaudePassthrough(t *testing.T) {
	body := strings.Join([]string{
		`event: message_start` + "\n" + `data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-x","usage":{"input_tokens":0,"output_tokens":0}}}`,
		`event: content_block_delta` + "\n" + `data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hi there"}}`,
		`event: message_stop` + "\n" + `data: {"type":"message_stop"}`,
	}, "\n\n") + "\n\n"

	var out bytes.Buffer
	res, err := RunPipeline(context.Background(), strings.NewReader(body), &out, PipelineOptions{
		APIFormat:   schema.APIFormatClaude,
		InputTokens: 7,
		Model:       "claude-x",
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", res.AggregatedText)
	assert.Contains(t, out.String(), `"input_tokens":7`)
	assert.Contains(t, out.String(), "message_stop")
}

func TestRunPipelineOpenAIRewrite(t *testing.T) {
	body := strings.Join([]string{
		`event: message_start` + "\n" + `data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-x","usage":{"input_tokens":0,"output_tokens":0}}}`,
		`event: content_block_delta` + "\n" + `data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hello"}}`,
		`event: message_delta` + "\n" + `data: {"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null}}`,
		`event: message_stop` + "\n" + `data: {"type":"message_stop"}`,
	}, "\n\n") + "\n\n"

	var out bytes.Buffer
	res, err := RunPipeline(context.Background(), strings.NewReader(body), &out, PipelineOptions{
		APIFormat:    schema.APIFormatOpenAI,
		InputTokens:  4,
		Model:        "claude-x",
		CompletionID: "cmpl-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", res.AggregatedText)
	assert.Contains(t, out.String(), `"object":"chat.completion.chunk"`)
	assert.Contains(t, out.String(), `"finish_reason":"stop"`)
	assert.Contains(t, out.String(), OpenAIDoneFrame)
}

func TestRunPipelineStopSequenceTruncation(t *testing.T) {
	body := strings.Join([]string{
		`event: message_start` + "\n" + `data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-x","usage":{"input_tokens":0,"output_tokens":0}}}`,
		`event: content_block_delta` + "\n" + `data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello "}}`,
		`event: content_block_delta` + "\n" + `data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"world!"}}`,
		`event: content_block_delta` + "\n" + `data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" trailing"}}`,
		`event: message_stop` + "\n" + `data: {"type":"message_stop"}`,
	}, "\n\n") + "\n\n"

	var out bytes.Buffer
	res, err := RunPipeline(context.Background(), strings.NewReader(body), &out, PipelineOptions{
		APIFormat:     schema.APIFormatClaude,
		StopSequences: []string{"world"},
		Model:         "claude-x",
	})
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	require.NotNil(t, res.StopReason)
	assert.Equal(t, schema.StopSequenceStop, *res.StopReason)
	require.NotNil(t, res.StopSequence)
	assert.Equal(t, "world", *res.StopSequence)
	assert.Equal(t, "Hello world", res.AggregatedText)
	assert.Contains(t, out.String(), `"stop_sequence":"world"`)
	assert.NotContains(t, out.String(), "trailing")
}
