// Package preprocess implements the request extractor: it normalizes
// Claude- and OpenAI-shaped request bodies into a single
// canonical form, short-circuiting liveness pings and cache hits, and
// attaching the per-request ClaudeContext downstream stages rely on.
package preprocess

import (
	"encoding/json"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/Laisky/llm-gateway/internal/cache"
	"github.com/Laisky/llm-gateway/internal/gwerror"
	"github.com/Laisky/llm-gateway/internal/schema"
)

// claudeCodePrelude is prepended to the system prompt for OpenAI-format
// requests routed to the Claude Code backend.
const claudeCodePrelude = "You are Claude Code, Anthropic's official CLI for Claude."

// thinkingSuffix marks a request for extended-thinking mode via a model
// name suffix rather than an explicit field.
const thinkingSuffix = "-thinking"

// defaultThinkingBudget is used when a -thinking model is requested without
// an explicit thinking budget.
const defaultThinkingBudget = 1024

// reasoningEffortBudgets maps OpenAI reasoning_effort levels onto thinking
// token budgets.
var reasoningEffortBudgets = map[string]int{
	"low":    256,
	"medium": 2048,
	"high":   16384,
}

// Options configures preprocessing behavior that varies by route.
type Options struct {
	// APIFormat is the wire schema the client is speaking.
	APIFormat schema.APIFormat
	// IsClaudeCode is true for requests routed to the Claude Code backend,
	// which requires the assistant-identity system prelude.
	IsClaudeCode bool
	// Cache is consulted for a pre-recorded response; nil disables the
	// cache short-circuit entirely (e.g. for routes that must always hit
	// upstream).
	Cache *cache.ResponseCache
}

// Result is everything preprocessing produces for a request that was not
// short-circuited.
type Result struct {
	Params  *schema.CreateMessageParams
	Context *schema.ClaudeContext
}

// OpenAIChatMessage is the minimal OpenAI chat-completions message shape
// preprocessing reads from, before normalizing into schema.Message.
type OpenAIChatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// OpenAIChatRequest is the minimal OpenAI-compatible request body
// preprocessing accepts on the chat/completions routes. frequency_penalty
// and extra_body are accepted but have no Claude equivalent and are
// dropped.
type OpenAIChatRequest struct {
	Model               string              `json:"model"`
	Messages            []OpenAIChatMessage `json:"messages"`
	MaxTokens           int                 `json:"max_tokens"`
	MaxCompletionTokens int                 `json:"max_completion_tokens"`
	ReasoningEffort     string              `json:"reasoning_effort,omitempty"`
	FrequencyPenalty    *float32            `json:"frequency_penalty,omitempty"`
	ExtraBody           json.RawMessage     `json:"extra_body,omitempty"`
	Stream              bool                `json:"stream"`
	Temperature         *float32            `json:"temperature,omitempty"`
	Stop                json.RawMessage     `json:"stop,omitempty"`
	TopP                *float32            `json:"top_p,omitempty"`
}

// stopToSequences accepts OpenAI's stop field in both of its wire shapes,
// a bare string or an array of strings.
func stopToSequences(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}

// Process runs the full preprocessing pipeline over a raw request body.
// On a liveness-ping or cache hit it returns a nil *Result and one of
// gwerror.ErrTestMessage / gwerror.ErrCacheFound alongside the data needed
// to answer immediately (the cached stream, for a cache hit).
func Process(body []byte, opt Options) (*Result, RecordedStream, error) {
	params, err := parse(body, opt.APIFormat, opt.IsClaudeCode)
	if err != nil {
		return nil, nil, err
	}

	stripThinkingSuffix(params)
	stopSeqs := mergeStopSequences(params)

	if isLivenessPing(params) {
		return nil, nil, gwerror.ErrTestMessage
	}

	systemHash := cache.SystemPromptHash(params.System)
	fingerprint := cache.Fingerprint(params, params.Thinking != nil)

	if opt.Cache != nil {
		if stream, ok := opt.Cache.Pop(fingerprint); ok {
			return nil, stream, gwerror.ErrCacheFound
		}
	}

	estimated := estimateInputTokens(params)

	ctx := &schema.ClaudeContext{
		Stream:           params.Stream,
		APIFormat:        opt.APIFormat,
		StopSequences:    stopSeqs,
		SystemPromptHash: systemHash,
		EstimatedInput:   estimated,
		Fingerprint:      fingerprint,
	}
	return &Result{Params: params, Context: ctx}, nil, nil
}

// RecordedStream re-exports cache.RecordedStream so callers of this package
// don't need a second import for the cache-hit return value.
type RecordedStream = cache.RecordedStream

func parse(body []byte, format schema.APIFormat, isClaudeCode bool) (*schema.CreateMessageParams, error) {
	if format == schema.APIFormatClaude {
		var p schema.CreateMessageParams
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, gwerror.NewBadRequest("invalid Claude Messages request: " + err.Error())
		}
		if err := validate(&p); err != nil {
			return nil, err
		}
		stripCacheControlTTL(&p)
		return &p, nil
	}

	var req OpenAIChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, gwerror.NewBadRequest("invalid OpenAI chat request: " + err.Error())
	}

	p := &schema.CreateMessageParams{
		Model:         req.Model,
		MaxTokens:     req.MaxTokens,
		Stream:        req.Stream,
		Temperature:   req.Temperature,
		StopSequences: stopToSequences(req.Stop),
		TopP:          req.TopP,
	}
	if req.MaxCompletionTokens > 0 {
		p.MaxTokens = req.MaxCompletionTokens
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = 4096
	}
	if budget, ok := reasoningEffortBudgets[req.ReasoningEffort]; ok {
		p.Thinking = &schema.Thinking{Type: "enabled", BudgetTokens: budget}
	}

	var systemBlocks []schema.ContentBlock
	for _, m := range req.Messages {
		if m.Role == string(schema.RoleSystem) {
			systemBlocks = append(systemBlocks, schema.ContentBlock{Type: "text", Text: rawToText(m.Content)})
			continue
		}
		role := schema.RoleUser
		if m.Role == string(schema.RoleAssistant) {
			role = schema.RoleAssistant
		}
		content, err := json.Marshal(rawToText(m.Content))
		if err != nil {
			return nil, errors.Wrap(err, "marshal normalized message content")
		}
		p.Messages = append(p.Messages, schema.Message{Role: role, Content: content})
	}

	if isClaudeCode {
		systemBlocks = append([]schema.ContentBlock{{Type: "text", Text: claudeCodePrelude}}, systemBlocks...)
	}
	if len(systemBlocks) > 0 {
		buf, err := json.Marshal(systemBlocks)
		if err != nil {
			return nil, errors.Wrap(err, "marshal assembled system blocks")
		}
		p.System = buf
	}

	if err := validate(p); err != nil {
		return nil, err
	}
	stripCacheControlTTL(p)
	return p, nil
}

func rawToText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []schema.ContentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var sb strings.Builder
		for _, b := range blocks {
			if b.Type == "text" {
				sb.WriteString(b.Text)
			}
		}
		return sb.String()
	}
	return string(raw)
}

func validate(p *schema.CreateMessageParams) error {
	if p.Model == "" {
		return gwerror.NewBadRequest("model is required")
	}
	if p.MaxTokens <= 0 {
		return gwerror.NewBadRequest("max_tokens must be greater than 0")
	}
	if len(p.Messages) == 0 {
		return gwerror.NewBadRequest("messages array cannot be empty")
	}
	return nil
}

// stripCacheControlTTL removes cache_control.ttl from every content block,
// since the Claude Web and Claude Code back-ends reject prompt-caching TTL
// overrides on this gateway's traffic shape.
func stripCacheControlTTL(p *schema.CreateMessageParams) {
	for i := range p.Messages {
		var blocks []schema.ContentBlock
		if json.Unmarshal(p.Messages[i].Content, &blocks) != nil {
			continue
		}
		changed := false
		for j := range blocks {
			if blocks[j].CacheControl != nil && blocks[j].CacheControl.TTL != "" {
				blocks[j].CacheControl.TTL = ""
				changed = true
			}
		}
		if changed {
			if buf, err := json.Marshal(blocks); err == nil {
				p.Messages[i].Content = buf
			}
		}
	}
}

func stripThinkingSuffix(p *schema.CreateMessageParams) {
	if !strings.HasSuffix(p.Model, thinkingSuffix) {
		return
	}
	p.Model = strings.TrimSuffix(p.Model, thinkingSuffix)
	if p.Thinking == nil {
		p.Thinking = &schema.Thinking{Type: "enabled", BudgetTokens: defaultThinkingBudget}
	}
}

// mergeStopSequences de-duplicates the request's stop sequences, preserving
// first-seen order, for use by the stop-sequence trie.
func mergeStopSequences(p *schema.CreateMessageParams) []string {
	seen := make(map[string]struct{}, len(p.StopSequences))
	out := make([]string, 0, len(p.StopSequences))
	for _, s := range p.StopSequences {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// isLivenessPing matches the canned "Hi" health-check pattern: a single
// non-streaming user message whose text is exactly "Hi".
func isLivenessPing(p *schema.CreateMessageParams) bool {
	if p.Stream || len(p.Messages) != 1 {
		return false
	}
	m := p.Messages[0]
	if m.Role != schema.RoleUser {
		return false
	}
	return rawToText(m.Content) == "Hi"
}

// estimateInputTokens sums a BPE token estimate over the assembled system
// text and every message's text content.
func estimateInputTokens(p *schema.CreateMessageParams) int {
	total := CountTokens(rawToText(p.System))
	for _, m := range p.Messages {
		total += CountTokens(rawToText(m.Content))
	}
	return total
}
