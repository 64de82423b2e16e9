package stream

import (
	"encoding/json"

	"github.com/Laisky/llm-gateway/internal/schema"
)

// OpenAIDelta is the "delta" payload of one OpenAI chat-completions chunk
// choice; exactly one of Content/ReasoningContent is populated per chunk,
// for chat-completions clients.
type OpenAIDelta struct {
	Role             string `json:"role,omitempty"`
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// OpenAIChunkChoice is one choice of a streaming chat-completions chunk.
type OpenAIChunkChoice struct {
	Index        int         `json:"index"`
	Delta        OpenAIDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

// OpenAIUsage mirrors OpenAI's usage accounting shape.
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAIChunk is one "chat.completion.chunk" SSE data payload.
type OpenAIChunk struct {
	ID      string              `json:"id"`
	Object  string              `json:"object"`
	Created int64               `json:"created"`
	Model   string              `json:"model"`
	Choices []OpenAIChunkChoice `json:"choices"`
	Usage   *OpenAIUsage        `json:"usage,omitempty"`
}

// OpenAICompletionMessage is the aggregated message of a non-streaming
// chat.completion response.
type OpenAICompletionMessage struct {
	Role             string `json:"role"`
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// OpenAICompletionChoice is the single choice of a non-streaming
// chat.completion response (this gateway never requests n>1 upstream).
type OpenAICompletionChoice struct {
	Index        int                     `json:"index"`
	Message      OpenAICompletionMessage `json:"message"`
	FinishReason string                  `json:"finish_reason"`
}

// OpenAICompletionResponse is a complete non-streaming "chat.completion".
type OpenAICompletionResponse struct {
	ID      string                   `json:"id"`
	Object  string                   `json:"object"`
	Created int64                    `json:"created"`
	Model   string                   `json:"model"`
	Choices []OpenAICompletionChoice `json:"choices"`
	Usage   OpenAIUsage              `json:"usage"`
}

// MapFinishReason maps a Claude StopReason onto an OpenAI finish_reason
// string. A nil reason (generation still in
// progress) yields nil.
func MapFinishReason(r *schema.StopReason) *string {
	if r == nil {
		return nil
	}
	var out string
	switch *r {
	case schema.StopEndTurn:
		out = "stop"
	case schema.StopMaxTokens:
		out = "length"
	case schema.StopSequenceStop:
		out = "stop"
	case schema.StopToolUse:
		out = "tool_calls"
	case schema.StopRefusal:
		out = "content_filter"
	case schema.StopNone:
		out = "stop"
	default:
		out = "stop"
	}
	return &out
}

// RewriteDeltaToOpenAI converts one Claude content_block_delta payload into
// the OpenAI chunk delta it corresponds to: TextDelta becomes
// delta.content, ThinkingDelta becomes delta.reasoning_content, every other
// delta type (partial_json, signature) is dropped (ok=false).
func RewriteDeltaToOpenAI(delta schema.ContentBlockDelta) (OpenAIDelta, bool) {
	switch delta.DeltaType {
	case "text_delta":
		return OpenAIDelta{Content: delta.Text}, true
	case "thinking_delta":
		return OpenAIDelta{ReasoningContent: delta.Thinking}, true
	default:
		return OpenAIDelta{}, false
	}
}

// AggregateNonStream folds a fully-drained Claude completion (the content
// blocks of a final CreateMessageResponse) into one joined-text string,
// suitable for both a non-streaming Claude response body and the message
// content of an OpenAI "chat.completion" object.
func AggregateNonStream(blocks []schema.ContentBlock) string {
	var text string
	for _, b := range blocks {
		if b.Type == "text" {
			text += b.Text
		}
	}
	return text
}

// BuildOpenAICompletion assembles a non-streaming chat.completion response
// from an aggregated Claude response, mapping stop reason and injecting
// locally-computed usage (the usage-injection rule applies
// identically to the non-stream path).
func BuildOpenAICompletion(id, model string, createdUnix int64, content string, stopReason *schema.StopReason, inputTokens, outputTokens int) OpenAICompletionResponse {
	finish := "stop"
	if fr := MapFinishReason(stopReason); fr != nil {
		finish = *fr
	}
	return OpenAICompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: createdUnix,
		Model:   model,
		Choices: []OpenAICompletionChoice{{
			Index:        0,
			Message:      OpenAICompletionMessage{Role: "assistant", Content: content},
			FinishReason: finish,
		}},
		Usage: OpenAIUsage{
			PromptTokens:     inputTokens,
			CompletionTokens: outputTokens,
			TotalTokens:      inputTokens + outputTokens,
		},
	}
}

// InjectUsageIntoMessageStart stamps the locally-computed client input-token
// estimate into a decoded message_start event's usage.input_tokens.
// Returns the re-marshaled MessageStart payload.
func InjectUsageIntoMessageStart(ms *schema.MessageStart, inputTokens int) {
	ms.Usage.InputTokens = inputTokens
}

// InjectUsageIntoMessageDelta stamps input/output token counts into a
// terminal message_delta event's usage payload.
func InjectUsageIntoMessageDelta(u *schema.StreamUsage, inputTokens, outputTokens int) {
	u.InputTokens = inputTokens
	u.OutputTokens = outputTokens
}

// DecodeDelta unmarshals a content_block_delta event's raw Delta payload.
func DecodeDelta(raw json.RawMessage) (schema.ContentBlockDelta, error) {
	var d schema.ContentBlockDelta
	err := json.Unmarshal(raw, &d)
	return d, err
}

// DecodeMessageDelta unmarshals a message_delta event's raw Delta payload.
func DecodeMessageDelta(raw json.RawMessage) (schema.MessageDelta, error) {
	var d schema.MessageDelta
	err := json.Unmarshal(raw, &d)
	return d, err
}
