// Package schema defines the wire types shared by the Claude Messages API,
// the OpenAI-compatible chat-completions surface, and the internal
// preprocessing/streaming pipeline that bridges them.
package schema

import "encoding/json"

// Role is the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of a Claude Messages API conversation. Content may be
// a plain string or an array of ContentBlock; json.RawMessage defers that
// decision until preprocessing normalizes it.
type Message struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

// ContentBlock is one element of a structured message body.
type ContentBlock struct {
	Type         string          `json:"type"`
	Text         string          `json:"text,omitempty"`
	Source       *ImageSource    `json:"source,omitempty"`
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name,omitempty"`
	Input        json.RawMessage `json:"input,omitempty"`
	ToolUseID    string          `json:"tool_use_id,omitempty"`
	Content      json.RawMessage `json:"content,omitempty"`
	Thinking     string          `json:"thinking,omitempty"`
	Signature    string          `json:"signature,omitempty"`
	CacheControl *CacheControl   `json:"cache_control,omitempty"`
}

// CacheControl requests upstream prompt caching for a content block. ttl is
// stripped by the preprocessor for back-ends that reject it.
type CacheControl struct {
	Type string `json:"type"`
	TTL  string `json:"ttl,omitempty"`
}

// ImageSource is an inline base64-encoded image attachment.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// Tool is a function the model may call.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolChoice constrains tool use.
type ToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// Metadata carries opaque caller-supplied request metadata.
type Metadata struct {
	UserID string `json:"user_id,omitempty"`
}

// Thinking is the extended-thinking request configuration.
type Thinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// CreateMessageParams is a parsed and partially normalized Claude Messages
// API request body, a superset shared by every inbound route.
type CreateMessageParams struct {
	MaxTokens     int             `json:"max_tokens"`
	Messages      []Message       `json:"messages"`
	Model         string          `json:"model"`
	System        json.RawMessage `json:"system,omitempty"`
	Temperature   *float32        `json:"temperature,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	TopK          *int            `json:"top_k,omitempty"`
	TopP          *float32        `json:"top_p,omitempty"`
	Tools         []Tool          `json:"tools,omitempty"`
	ToolChoice    *ToolChoice     `json:"tool_choice,omitempty"`
	Metadata      *Metadata       `json:"metadata,omitempty"`
	Thinking      *Thinking       `json:"thinking,omitempty"`
}

// Usage reports token accounting for one completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StopReason classifies why generation ended.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopMaxTokens    StopReason = "max_tokens"
	StopSequenceStop StopReason = "stop_sequence"
	StopToolUse      StopReason = "tool_use"
	StopRefusal      StopReason = "refusal"
	StopNone         StopReason = "none"
)

// CreateMessageResponse is a complete (non-streaming) Claude response.
type CreateMessageResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         Role           `json:"role"`
	Model        string         `json:"model"`
	Content      []ContentBlock `json:"content"`
	StopReason   *StopReason    `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        Usage          `json:"usage"`
}

// ClaudeContext is attached to the request context by the preprocessor,
// carrying everything downstream stages need without re-parsing the body.
type ClaudeContext struct {
	Stream           bool
	APIFormat        APIFormat
	StopSequences    []string
	SystemPromptHash uint64
	EstimatedInput   int
	Fingerprint      uint64

	// CompletionID and CreatedUnix are stamped by the HTTP handler (derived
	// from the request's trace id and wall-clock time) after preprocessing
	// returns, so every frame of a streamed response and the final
	// aggregated response share one id. Left zero-value for requests driven
	// outside an HTTP handler (e.g. speculative cache fanout), in which
	// case the response transformer falls back to a freshly generated id.
	CompletionID string
	CreatedUnix  int64
}

// APIFormat distinguishes which client-facing schema a request/response
// pair is speaking.
type APIFormat int

const (
	APIFormatClaude APIFormat = iota
	APIFormatOpenAI
)
