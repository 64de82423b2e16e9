package preprocess

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/cache"
	"github.com/Laisky/llm-gateway/internal/gwerror"
	"github.com/Laisky/llm-gateway/internal/schema"
)

func claudeBody(t *testing.T, model, text string, stream bool) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"model":      model,
		"max_tokens": 1024,
		"stream":     stream,
		"messages": []map[string]any{
			{"role": "user", "content": text},
		},
	})
	require.NoError(t, err)
	return body
}

func TestProcessLivenessPing(t *testing.T) {
	body := claudeBody(t, "claude-opus-4-1-20250805", "Hi", false)
	_, _, err := Process(body, Options{APIFormat: schema.APIFormatClaude})
	assert.ErrorIs(t, err, gwerror.ErrTestMessage)
}

func TestProcessStreamingHiIsNotAPing(t *testing.T) {
	body := claudeBody(t, "claude-opus-4-1-20250805", "Hi", true)
	res, _, err := Process(body, Options{APIFormat: schema.APIFormatClaude})
	require.NoError(t, err)
	assert.True(t, res.Context.Stream)
}

func TestProcessThinkingSuffix(t *testing.T) {
	body := claudeBody(t, "claude-sonnet-4-20250514-thinking", "hello", false)
	res, _, err := Process(body, Options{APIFormat: schema.APIFormatClaude})
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-20250514", res.Params.Model)
	require.NotNil(t, res.Params.Thinking)
	assert.Equal(t, "enabled", res.Params.Thinking.Type)
	assert.Equal(t, 1024, res.Params.Thinking.BudgetTokens)
}

func TestProcessOpenAISystemBlockSplit(t *testing.T) {
	body, err := json.Marshal(map[string]any{
		"model":      "claude-sonnet-4-20250514",
		"max_tokens": 512,
		"messages": []map[string]any{
			{"role": "system", "content": "be terse"},
			{"role": "user", "content": "hello"},
		},
	})
	require.NoError(t, err)

	res, _, perr := Process(body, Options{APIFormat: schema.APIFormatOpenAI, IsClaudeCode: true})
	require.NoError(t, perr)

	var blocks []schema.ContentBlock
	require.NoError(t, json.Unmarshal(res.Params.System, &blocks))
	require.Len(t, blocks, 2)
	assert.Equal(t, claudeCodePrelude, blocks[0].Text)
	assert.Equal(t, "be terse", blocks[1].Text)

	// No system role survives in the messages list.
	require.Len(t, res.Params.Messages, 1)
	assert.Equal(t, schema.RoleUser, res.Params.Messages[0].Role)
}

func TestProcessOpenAIReasoningEffort(t *testing.T) {
	for effort, want := range map[string]int{"low": 256, "medium": 2048, "high": 16384} {
		body, err := json.Marshal(map[string]any{
			"model":            "claude-sonnet-4-20250514",
			"max_tokens":       512,
			"reasoning_effort": effort,
			"messages":         []map[string]any{{"role": "user", "content": "hello"}},
		})
		require.NoError(t, err)

		res, _, perr := Process(body, Options{APIFormat: schema.APIFormatOpenAI})
		require.NoError(t, perr)
		require.NotNil(t, res.Params.Thinking, effort)
		assert.Equal(t, want, res.Params.Thinking.BudgetTokens, effort)
	}
}

func TestProcessOpenAIMaxCompletionTokensWins(t *testing.T) {
	body, err := json.Marshal(map[string]any{
		"model":                 "claude-sonnet-4-20250514",
		"max_tokens":            512,
		"max_completion_tokens": 2048,
		"messages":              []map[string]any{{"role": "user", "content": "hello"}},
	})
	require.NoError(t, err)

	res, _, perr := Process(body, Options{APIFormat: schema.APIFormatOpenAI})
	require.NoError(t, perr)
	assert.Equal(t, 2048, res.Params.MaxTokens)
}

func TestStopToSequences(t *testing.T) {
	assert.Nil(t, stopToSequences(nil))
	assert.Equal(t, []string{"END"}, stopToSequences(json.RawMessage(`"END"`)))
	assert.Equal(t, []string{"a", "b"}, stopToSequences(json.RawMessage(`["a","b"]`)))
}

func TestMergeStopSequencesDeduplicates(t *testing.T) {
	p := &schema.CreateMessageParams{StopSequences: []string{"a", "b", "a", "", "c", "b"}}
	assert.Equal(t, []string{"a", "b", "c"}, mergeStopSequences(p))
}

func TestProcessCacheHit(t *testing.T) {
	store := cache.NewResponseCache(10, 0)
	body := claudeBody(t, "claude-opus-4-1-20250805", "real question", false)

	// Prime the cache under the exact fingerprint Process will compute.
	res, _, err := Process(body, Options{APIFormat: schema.APIFormatClaude})
	require.NoError(t, err)
	store.Push(res.Context.Fingerprint, cache.RecordedStream{[]byte("recorded")})

	_, recorded, err := Process(body, Options{APIFormat: schema.APIFormatClaude, Cache: store})
	assert.ErrorIs(t, err, gwerror.ErrCacheFound)
	require.Len(t, recorded, 1)
	assert.Equal(t, "recorded", string(recorded[0]))
}

func TestProcessValidation(t *testing.T) {
	for name, body := range map[string]string{
		"missing model":    `{"max_tokens":10,"messages":[{"role":"user","content":"x"}]}`,
		"zero max_tokens":  `{"model":"m","messages":[{"role":"user","content":"x"}]}`,
		"missing messages": `{"model":"m","max_tokens":10}`,
	} {
		_, _, err := Process([]byte(body), Options{APIFormat: schema.APIFormatClaude})
		var bad *gwerror.BadRequestError
		assert.ErrorAs(t, err, &bad, name)
	}
}

func TestFingerprintStableAcrossIdenticalBodies(t *testing.T) {
	body := claudeBody(t, "claude-opus-4-1-20250805", "same", false)
	a, _, err := Process(body, Options{APIFormat: schema.APIFormatClaude})
	require.NoError(t, err)
	b, _, err := Process(body, Options{APIFormat: schema.APIFormatClaude})
	require.NoError(t, err)
	assert.Equal(t, a.Context.Fingerprint, b.Context.Fingerprint)
	assert.Equal(t, a.Context.SystemPromptHash, b.Context.SystemPromptHash)
}
