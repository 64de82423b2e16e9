package credential

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCookieRaw = "sk-ant-sid01-" + validSessionID

var validSessionID = strings.Repeat("a", 86) + "-abcdefAA"

func TestParseCookie(t *testing.T) {
	c, err := ParseCookie(validCookieRaw)
	require.NoError(t, err)
	assert.Equal(t, validSessionID, c.Raw())

	// Copy-pasted sessionKey= prefix and surrounding noise are tolerated.
	c2, err := ParseCookie("sessionKey=" + validCookieRaw + "; Path=/")
	require.NoError(t, err)
	assert.Equal(t, c.Raw(), c2.Raw())
}

func TestParseCookieRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not a cookie", strings.Repeat("a", 40)} {
		_, err := ParseCookie(raw)
		assert.Error(t, err, raw)
	}
}

func TestCookieDisplayForms(t *testing.T) {
	c, err := ParseCookie(validCookieRaw)
	require.NoError(t, err)

	assert.Equal(t, "sessionKey=sk-ant-sid01-"+validSessionID, c.String())
	assert.Equal(t, validSessionID[:10]+"...", c.Ellipsis())
}

func TestCookieJSONRoundTrip(t *testing.T) {
	c, err := ParseCookie(validCookieRaw)
	require.NoError(t, err)

	buf, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, `"`+validSessionID+`"`, string(buf))

	var back Cookie
	require.NoError(t, json.Unmarshal(buf, &back))
	assert.Equal(t, c.Raw(), back.Raw())
}

func TestReasonMovement(t *testing.T) {
	assert.True(t, Restricted(100).Exhausting())
	assert.True(t, TooManyRequest(100).Exhausting())
	assert.False(t, Banned().Exhausting())

	for _, r := range []Reason{NonPro(), Disabled(), Banned(), Null()} {
		assert.True(t, r.Invalidating(), r.String())
	}
	for _, r := range []Reason{NoneReason(), NormalPro(), Restricted(100), TooManyRequest(100)} {
		assert.False(t, r.Invalidating(), r.String())
	}
}

func TestUsageBreakdownBuckets(t *testing.T) {
	var u UsageBreakdown
	u.add(10, 20, FamilySonnet)
	u.add(1, 2, FamilyOpus)
	u.add(100, 200, FamilyOther)

	assert.Equal(t, uint64(111), u.TotalInputTokens)
	assert.Equal(t, uint64(222), u.TotalOutputTokens)
	assert.Equal(t, uint64(10), u.SonnetInputTokens)
	assert.Equal(t, uint64(2), u.OpusOutputTokens)
}

func TestGeminiKeyJSONRoundTrip(t *testing.T) {
	k := NewGeminiKey("AIzaSy-example")
	buf, err := json.Marshal(KeyStatus{Key: k, Count403: 3})
	require.NoError(t, err)

	var back KeyStatus
	require.NoError(t, json.Unmarshal(buf, &back))
	assert.Equal(t, "AIzaSy-example", back.Key.String())
	assert.Equal(t, 3, back.Count403)
}
