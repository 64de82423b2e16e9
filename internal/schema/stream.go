package schema

import "encoding/json"

// StreamEventType is the Claude SSE "event:" line value.
type StreamEventType string

const (
	EventMessageStart      StreamEventType = "message_start"
	EventContentBlockStart StreamEventType = "content_block_start"
	EventContentBlockDelta StreamEventType = "content_block_delta"
	EventContentBlockStop  StreamEventType = "content_block_stop"
	EventMessageDelta      StreamEventType = "message_delta"
	EventMessageStop       StreamEventType = "message_stop"
	EventPing              StreamEventType = "ping"
	EventError             StreamEventType = "error"
)

// StreamEvent is one decoded Claude SSE event, parsed from the JSON "data:"
// payload with Type set from the matching "event:" line.
type StreamEvent struct {
	Type         StreamEventType `json:"type"`
	Message      *MessageStart   `json:"message,omitempty"`
	Index        *int            `json:"index,omitempty"`
	ContentBlock *ContentBlock   `json:"content_block,omitempty"`
	Delta        json.RawMessage `json:"delta,omitempty"`
	Usage        *StreamUsage    `json:"usage,omitempty"`
	Error        *StreamError    `json:"error,omitempty"`
}

// MessageStart is the payload of a message_start event.
type MessageStart struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         Role           `json:"role"`
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model"`
	StopReason   *StopReason    `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        Usage          `json:"usage"`
}

// StreamUsage is the usage payload attached to message_start/message_delta;
// input_tokens is frequently absent on message_delta events.
type StreamUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StreamError is the payload of an error event.
type StreamError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ContentBlockDelta is the decoded "delta" payload of a
// content_block_delta event; exactly one field is populated depending on
// DeltaType.
type ContentBlockDelta struct {
	DeltaType   string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	Signature   string `json:"signature,omitempty"`
}

// MessageDelta is the decoded "delta" payload of a message_delta event.
type MessageDelta struct {
	StopReason   *StopReason `json:"stop_reason"`
	StopSequence *string     `json:"stop_sequence"`
}
