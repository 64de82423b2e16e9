package common

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizePayloadForLoggingRedactsDataURL(t *testing.T) {
	t.Parallel()

	blob := strings.Repeat("A", 1024)
	body, err := json.Marshal(map[string]any{
		"messages": []any{map[string]any{
			"role":    "user",
			"content": "data:image/png;base64," + blob,
		}},
	})
	require.NoError(t, err)

	preview, truncated := SanitizePayloadForLogging(body, 512)
	text := string(preview)

	assert.Contains(t, text, "data:image/png;base64,[truncated base64 len=1024]")
	assert.NotContains(t, text, blob)
	assert.False(t, truncated)
}

func TestSanitizePayloadForLoggingRedactsBareBase64(t *testing.T) {
	t.Parallel()

	blob := strings.Repeat("B", 1024)
	body, err := json.Marshal(map[string]any{"audio": blob})
	require.NoError(t, err)

	preview, truncated := SanitizePayloadForLogging(body, 512)
	assert.Contains(t, string(preview), "[base64 len=1024]")
	assert.NotContains(t, string(preview), blob)
	assert.False(t, truncated)
}

func TestSanitizePayloadForLoggingKeepsShortText(t *testing.T) {
	t.Parallel()

	body := []byte(`{"model":"claude-sonnet-4-20250514","messages":[{"role":"user","content":"hello"}]}`)
	preview, truncated := SanitizePayloadForLogging(body, DefaultLogBodyLimit)

	assert.False(t, truncated)
	assert.Contains(t, string(preview), "hello")
}

func TestSanitizePayloadForLoggingTruncatesNonJSON(t *testing.T) {
	t.Parallel()

	body := []byte(strings.Repeat("z", 100))
	preview, truncated := SanitizePayloadForLogging(body, 10)

	assert.True(t, truncated)
	assert.Len(t, preview, 10)
}

func TestSanitizePayloadForLoggingZeroLimitPassthrough(t *testing.T) {
	t.Parallel()

	body := []byte(strings.Repeat("z", 100))
	preview, truncated := SanitizePayloadForLogging(body, 0)
	assert.False(t, truncated)
	assert.Len(t, preview, 100)
}
