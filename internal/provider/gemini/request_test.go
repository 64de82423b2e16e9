package gemini

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Laisky/llm-gateway/internal/schema"
)

func TestNewContext(t *testing.T) {
	ctx := NewContext("models/gemini-1.5-flash:streamGenerateContent", url.Values{"alt": {"sse"}}, false)
	assert.Equal(t, "gemini-1.5-flash", ctx.Model)
	assert.True(t, ctx.Stream)
	assert.False(t, ctx.Vertex)
	assert.Equal(t, schema.GeminiFormatNative, ctx.APIFormat)

	ctx = NewContext("models/gemini-1.5-pro:generateContent", nil, false)
	assert.Equal(t, "gemini-1.5-pro", ctx.Model)
	assert.False(t, ctx.Stream)
}

func TestNewOpenAIContext(t *testing.T) {
	ctx := NewOpenAIContext("gemini-1.5-pro", true, false)
	assert.Equal(t, schema.GeminiFormatOpenAI, ctx.APIFormat)
	assert.True(t, ctx.Stream)
}

func TestForwardQuery(t *testing.T) {
	q := url.Values{"key": {"secret"}, "alt": {"sse"}}
	out := forwardQuery(q)
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "alt")
	assert.Contains(t, out, "sse")
}

func TestApplySafetyOff(t *testing.T) {
	body := []byte(`{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`)
	out, err := applySafetyOff(body)
	assert.NoError(t, err)

	var obj map[string]json.RawMessage
	assert.NoError(t, json.Unmarshal(out, &obj))
	assert.Contains(t, obj, "safetySettings")
	assert.Contains(t, obj, "contents")
}

func TestNativeContentsEmpty(t *testing.T) {
	assert.True(t, nativeContentsEmpty([]byte(`{"contents":[]}`)))
	assert.False(t, nativeContentsEmpty([]byte(`{"contents":[{"role":"model"}]}`)))
	assert.False(t, nativeContentsEmpty([]byte(`{}`)))
}

func TestOpenAIChoicesEmpty(t *testing.T) {
	assert.True(t, openAIChoicesEmpty([]byte(`{"choices":[]}`)))
	assert.False(t, openAIChoicesEmpty([]byte(`{"choices":[{"index":0}]}`)))
	assert.False(t, openAIChoicesEmpty([]byte(`{}`)))
}
