package gemini

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Laisky/llm-gateway/internal/schema"
)

func TestEmptyChoicesDispatch(t *testing.T) {
	assert.True(t, emptyChoices(schema.GeminiFormatNative, []byte(`{"contents":[]}`)))
	assert.False(t, emptyChoices(schema.GeminiFormatNative, []byte(`{"choices":[]}`)))
	assert.True(t, emptyChoices(schema.GeminiFormatOpenAI, []byte(`{"choices":[]}`)))
	assert.False(t, emptyChoices(schema.GeminiFormatOpenAI, []byte(`{"contents":[]}`)))
}

func TestErrString(t *testing.T) {
	assert.Equal(t, "", errString(nil))
	assert.Equal(t, "boom", errString(errors.New("boom")))
}
