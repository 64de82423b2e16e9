package credential

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenInfoStampsExpiry(t *testing.T) {
	before := time.Now()
	tok := NewTokenInfo(TokenInfoRaw{
		AccessToken: "opaque-token",
		ExpiresIn:   3600,
	})
	after := time.Now()

	assert.False(t, tok.ExpiresAt.Before(before.Add(time.Hour)))
	assert.False(t, tok.ExpiresAt.After(after.Add(time.Hour)))
}

func TestIsExpiredProactiveWindow(t *testing.T) {
	fresh := NewTokenInfo(TokenInfoRaw{AccessToken: "x", ExpiresIn: 3600})
	assert.False(t, fresh.IsExpired())

	// Inside the five-minute renewal window counts as expired.
	closing := NewTokenInfo(TokenInfoRaw{AccessToken: "x", ExpiresIn: 240})
	assert.True(t, closing.IsExpired())

	past := NewTokenInfo(TokenInfoRaw{AccessToken: "x", ExpiresIn: -10})
	assert.True(t, past.IsExpired())
}

func TestNewTokenInfoJWTExpClaimWins(t *testing.T) {
	// The server claims an hour via expires_in, but the token's own exp
	// says fifteen minutes: the earlier of the two governs refresh.
	exp := time.Now().Add(15 * time.Minute)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tok := NewTokenInfo(TokenInfoRaw{AccessToken: signed, ExpiresIn: 3600})
	assert.WithinDuration(t, exp, tok.ExpiresAt, time.Second)
}

func TestNewTokenInfoJWTLaterExpIgnored(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tok := NewTokenInfo(TokenInfoRaw{AccessToken: signed, ExpiresIn: 60})
	assert.WithinDuration(t, time.Now().Add(time.Minute), tok.ExpiresAt, time.Second)
}
