package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/schema"
)

func TestSSEDecoderRoundTrip(t *testing.T) {
	idx := 0
	ev := schema.StreamEvent{Type: schema.EventContentBlockDelta, Index: &idx}
	frame, err := EncodeSSE(ev)
	require.NoError(t, err)

	dec := NewSSEDecoder(strings.NewReader(string(frame)))
	got, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, schema.EventContentBlockDelta, got.Type)
	require.NotNil(t, got.Index)
	assert.Equal(t, 0, *got.Index)
}

func TestSSEDecoderMultipleFrames(t *testing.T) {
	body := "event: ping\ndata: {}\n\nevent: message_stop\ndata: {}\n\n"
	dec := NewSSEDecoder(strings.NewReader(body))

	first, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, schema.EventPing, first.Type)

	second, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, schema.EventMessageStop, second.Type)
}

func TestSSEDecoderEOF(t *testing.T) {
	dec := NewSSEDecoder(strings.NewReader(""))
	_, err := dec.Next()
	assert.Error(t, err)
}
