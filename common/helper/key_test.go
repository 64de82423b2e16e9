package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskAPIKey(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                                      "***",
		"short":                                 "***",
		"12345678901":                           "***",
		"123456789012":                          "123456...9012",
		"sk-1234567890abcdefghij":               "sk-123...ghij",
		"AIzaSy-abc123def456ghi789jkl012mno345": "AIzaSy...o345",
	}
	for key, want := range cases {
		assert.Equal(t, want, MaskAPIKey(key), "key %q", key)
	}
}
