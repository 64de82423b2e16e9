package retry

import (
	"encoding/json"

	"github.com/Laisky/llm-gateway/internal/schema"
	"github.com/Laisky/llm-gateway/internal/stream"
)

// ErrorStreamFrames synthesizes a complete Claude SSE event sequence
// carrying msg as a single text delta, for streaming clients that hit a
// fatal retry-exhausted error after already committing to a streaming
// response, so their stream parser still completes cleanly.
func ErrorStreamFrames(msg string) ([]byte, error) {
	var out []byte

	messageStart := schema.StreamEvent{
		Type:    schema.EventMessageStart,
		Message: &schema.MessageStart{Type: "message", Role: schema.RoleAssistant},
	}
	frame, err := stream.EncodeSSE(messageStart)
	if err != nil {
		return nil, err
	}
	out = append(out, frame...)

	idx := 0
	startBlock := schema.ContentBlock{Type: "text", Text: ""}
	contentStart := schema.StreamEvent{Type: schema.EventContentBlockStart, Index: &idx, ContentBlock: &startBlock}
	frame, err = stream.EncodeSSE(contentStart)
	if err != nil {
		return nil, err
	}
	out = append(out, frame...)

	delta := schema.ContentBlockDelta{DeltaType: "text_delta", Text: "Gateway Error: " + msg}
	deltaJSON, err := json.Marshal(delta)
	if err != nil {
		return nil, err
	}
	contentDelta := schema.StreamEvent{Type: schema.EventContentBlockDelta, Index: &idx, Delta: deltaJSON}
	frame, err = stream.EncodeSSE(contentDelta)
	if err != nil {
		return nil, err
	}
	out = append(out, frame...)

	contentStop := schema.StreamEvent{Type: schema.EventContentBlockStop, Index: &idx}
	frame, err = stream.EncodeSSE(contentStop)
	if err != nil {
		return nil, err
	}
	out = append(out, frame...)

	mdJSON, err := json.Marshal(schema.MessageDelta{})
	if err != nil {
		return nil, err
	}
	messageDelta := schema.StreamEvent{Type: schema.EventMessageDelta, Delta: mdJSON}
	frame, err = stream.EncodeSSE(messageDelta)
	if err != nil {
		return nil, err
	}
	out = append(out, frame...)

	frame, err = stream.EncodeSSE(schema.StreamEvent{Type: schema.EventMessageStop})
	if err != nil {
		return nil, err
	}
	out = append(out, frame...)

	return out, nil
}
