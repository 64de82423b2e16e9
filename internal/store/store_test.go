package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/credential"
)

func testCookie(t *testing.T, seed byte) credential.Cookie {
	t.Helper()
	raw := strings.Repeat(string([]byte{'A' + seed%26}), 86) + "-xxxxxxAA"
	c, err := credential.ParseCookie(raw)
	require.NoError(t, err)
	return c
}

func TestLoadMissingFileYieldsEmptyState(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.json"))
	state, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Cookies)
	assert.Empty(t, state.WastedCookie)
	assert.Empty(t, state.GeminiKeys)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s := New(path)

	reset := int64(1700000000)
	state := State{
		Cookies: []*credential.CookieStatus{
			{Cookie: testCookie(t, 0)},
			{Cookie: testCookie(t, 1), ResetTime: &reset},
		},
		WastedCookie: []credential.UselessCookie{
			credential.NewUselessCookie(testCookie(t, 2), credential.Banned()),
		},
		GeminiKeys: []*credential.KeyStatus{
			{Key: credential.NewGeminiKey("AIzaSy-test-key"), Count403: 2},
		},
	}
	require.NoError(t, s.Save(state))

	got, err := s.Load()
	require.NoError(t, err)
	require.Len(t, got.Cookies, 2)
	assert.Equal(t, state.Cookies[0].Cookie.Raw(), got.Cookies[0].Cookie.Raw())
	require.NotNil(t, got.Cookies[1].ResetTime)
	assert.Equal(t, reset, *got.Cookies[1].ResetTime)
	require.Len(t, got.WastedCookie, 1)
	assert.Equal(t, credential.ReasonBanned, got.WastedCookie[0].Reason.Kind)
	require.Len(t, got.GeminiKeys, 1)
	assert.Equal(t, "AIzaSy-test-key", got.GeminiKeys[0].Key.String())
	assert.Equal(t, 2, got.GeminiKeys[0].Count403)
}

func TestSaveReplacesPreviousState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := New(path)

	require.NoError(t, s.Save(State{GeminiKeys: []*credential.KeyStatus{
		{Key: credential.NewGeminiKey("key-one")},
	}}))
	require.NoError(t, s.Save(State{GeminiKeys: []*credential.KeyStatus{
		{Key: credential.NewGeminiKey("key-two")},
	}}))

	got, err := s.Load()
	require.NoError(t, err)
	require.Len(t, got.GeminiKeys, 1)
	assert.Equal(t, "key-two", got.GeminiKeys[0].Key.String())

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := New(path).Load()
	assert.Error(t, err)
}
