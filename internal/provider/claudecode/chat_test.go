package claudecode

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Laisky/llm-gateway/internal/credential"
)

func boolPtr(v bool) *bool { return &v }

func TestBuildAttemptSet(t *testing.T) {
	sonnet4 := "claude-sonnet-4-20250514"
	other := "claude-opus-4-1-20250805"

	cases := []struct {
		name     string
		model    string
		cookie   *credential.CookieStatus
		wantSet  []attempt1M
		wantBase string
	}{
		{
			name:     "sonnet4 unknown support probes both",
			model:    sonnet4,
			cookie:   &credential.CookieStatus{},
			wantSet:  []attempt1M{attempt1Menabled, attemptNon1M},
			wantBase: sonnet4,
		},
		{
			name:     "sonnet4 known supported goes straight to 1m",
			model:    sonnet4,
			cookie:   &credential.CookieStatus{SupportsClaude1M: boolPtr(true)},
			wantSet:  []attempt1M{attempt1Menabled},
			wantBase: sonnet4,
		},
		{
			name:     "sonnet4 known unsupported skips 1m",
			model:    sonnet4,
			cookie:   &credential.CookieStatus{SupportsClaude1M: boolPtr(false)},
			wantSet:  []attempt1M{attemptNon1M},
			wantBase: sonnet4,
		},
		{
			name:     "non-sonnet4 with explicit -1M suffix probes both",
			model:    other + oneMillionSuffix,
			cookie:   &credential.CookieStatus{},
			wantSet:  []attempt1M{attempt1Menabled, attemptNon1M},
			wantBase: other,
		},
		{
			name:     "non-sonnet4 without suffix never tries 1m",
			model:    other,
			cookie:   &credential.CookieStatus{},
			wantSet:  []attempt1M{attemptNon1M},
			wantBase: other,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model, attempts := buildAttemptSet(tc.model, tc.cookie)
			assert.Equal(t, tc.wantBase, model)
			assert.Equal(t, tc.wantSet, attempts)
		})
	}
}

func TestIsContextForbidden(t *testing.T) {
	body := []byte(`{"error":{"message":"the long context beta is not yet available for this subscription."}}`)
	assert.True(t, isContextForbidden(400, body))
	assert.True(t, isContextForbidden(403, body))
	assert.False(t, isContextForbidden(429, body))
	assert.False(t, isContextForbidden(400, []byte(`{"error":{"message":"other"}}`)))

	wrapped := []byte(`{"error":{"message":"Request failed: the long context beta is not yet available for this subscription. Contact support."}}`)
	assert.True(t, isContextForbidden(403, wrapped))
}
