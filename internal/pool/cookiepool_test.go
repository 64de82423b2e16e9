package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/credential"
)

func mustCookie(t *testing.T, seed byte) *credential.CookieStatus {
	t.Helper()
	// 86 chars of the allowed alphabet followed by the fixed 6-char+AA suffix.
	body := make([]byte, 86)
	for i := range body {
		body[i] = 'a' + (seed+byte(i))%26
	}
	raw := string(body) + "-abcdeAA"
	cs, err := credential.NewCookieStatus(raw, nil)
	require.NoError(t, err)
	return cs
}

func TestCookiePool_SubmitThenRequestIsFIFO(t *testing.T) {
	p := NewCookiePool(nil, nil)
	defer p.Close()

	c1, c2, c3 := mustCookie(t, 1), mustCookie(t, 2), mustCookie(t, 3)
	p.Submit(c1)
	p.Submit(c2)
	p.Submit(c3)

	got1, err := p.Request(nil)
	require.NoError(t, err)
	got2, err := p.Request(nil)
	require.NoError(t, err)
	got3, err := p.Request(nil)
	require.NoError(t, err)

	assert.Equal(t, c1.Cookie.Raw(), got1.Cookie.Raw())
	assert.Equal(t, c2.Cookie.Raw(), got2.Cookie.Raw())
	assert.Equal(t, c3.Cookie.Raw(), got3.Cookie.Raw())
}

func TestCookiePool_RequestEmptyPoolErrors(t *testing.T) {
	p := NewCookiePool(nil, nil)
	defer p.Close()

	_, err := p.Request(nil)
	assert.Error(t, err)
}

func TestCookiePool_Affinity(t *testing.T) {
	p := NewCookiePool(nil, nil)
	defer p.Close()

	a, b, c := mustCookie(t, 1), mustCookie(t, 2), mustCookie(t, 3)
	p.Submit(a)
	p.Submit(b)
	p.Submit(c)

	h := uint64(0xDEADBEEF)
	got1, err := p.Request(&h)
	require.NoError(t, err)
	got2, err := p.Request(nil)
	require.NoError(t, err)
	got3, err := p.Request(&h)
	require.NoError(t, err)
	got4, err := p.Request(nil)
	require.NoError(t, err)

	assert.Equal(t, a.Cookie.Raw(), got1.Cookie.Raw())
	assert.Equal(t, b.Cookie.Raw(), got2.Cookie.Raw())
	assert.Equal(t, a.Cookie.Raw(), got3.Cookie.Raw(), "affinity should return same cookie")
	assert.Equal(t, c.Cookie.Raw(), got4.Cookie.Raw())
}

func TestCookiePool_ReturnTooManyRequestThenReset(t *testing.T) {
	p := NewCookiePool(nil, nil)
	defer p.Close()

	a, b := mustCookie(t, 1), mustCookie(t, 2)
	p.Submit(a)
	p.Submit(b)

	got, err := p.Request(nil)
	require.NoError(t, err)
	assert.Equal(t, a.Cookie.Raw(), got.Cookie.Raw())

	resetAt := time.Now().Add(-time.Second).Unix() // already elapsed
	reason := credential.TooManyRequest(resetAt)
	p.Return(got, &reason)

	status := p.GetStatus()
	assert.Len(t, status.Valid, 2, "an already-elapsed reset_time is treated as a plain Return(None), no movement")
	assert.Len(t, status.Exhausted, 0)

	// now exercise a future reset timestamp, which must move the cookie to exhausted.
	got2, err := p.Request(nil)
	require.NoError(t, err)
	resetAt2 := time.Now().Add(time.Hour).Unix()
	reason2 := credential.TooManyRequest(resetAt2)
	p.Return(got2, &reason2)

	status2 := p.GetStatus()
	assert.Len(t, status2.Valid, 1)
	assert.Len(t, status2.Exhausted, 1)
	assert.Equal(t, got2.Cookie.Raw(), status2.Exhausted[0].Cookie.Raw())
}

func TestCookiePool_DeleteNotFound(t *testing.T) {
	p := NewCookiePool(nil, nil)
	defer p.Close()

	c := mustCookie(t, 1)
	err := p.Delete(c)
	assert.Error(t, err)
}

func TestCookiePool_SubmitDuplicateIgnored(t *testing.T) {
	p := NewCookiePool(nil, nil)
	defer p.Close()

	c := mustCookie(t, 1)
	p.Submit(c)
	p.Submit(c)

	status := p.GetStatus()
	assert.Len(t, status.Valid, 1)
}

func TestCookiePool_InvariantDisjointSets(t *testing.T) {
	p := NewCookiePool(nil, nil)
	defer p.Close()

	a, b := mustCookie(t, 1), mustCookie(t, 2)
	p.Submit(a)
	p.Submit(b)

	got, err := p.Request(nil)
	require.NoError(t, err)
	p.Return(got, ptrReason(credential.Banned()))

	status := p.GetStatus()
	seen := map[string]int{}
	for _, cs := range status.Valid {
		seen[cs.Cookie.Raw()]++
	}
	for _, cs := range status.Exhausted {
		seen[cs.Cookie.Raw()]++
	}
	for _, u := range status.Invalid {
		seen[u.Cookie.Raw()]++
	}
	for raw, n := range seen {
		assert.Equal(t, 1, n, "cookie %s must appear in exactly one set", raw)
	}
}

func ptrReason(r credential.Reason) *credential.Reason { return &r }
