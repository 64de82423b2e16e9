package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Account identifies the Anthropic account an OAuth token belongs to.
type Account struct {
	EmailAddress string `json:"email_address"`
	UUID         string `json:"uuid"`
}

// Organization identifies the organization scoped into an OAuth token.
type Organization struct {
	Name string `json:"name"`
	UUID string `json:"uuid"`
}

// TokenInfoRaw is the literal shape of a Claude Code OAuth token response,
// before ExpiresIn is resolved into an absolute ExpiresAt.
type TokenInfoRaw struct {
	AccessToken  string       `json:"access_token"`
	Account      Account      `json:"account"`
	ExpiresIn    int64        `json:"expires_in"`
	Organization Organization `json:"organization"`
	RefreshToken string       `json:"refresh_token"`
	Scope        string       `json:"scope"`
	TokenType    string       `json:"token_type"`
}

// TokenInfo is a Claude Code OAuth token with its expiry resolved to a
// wall-clock instant, so repeated IsExpired checks don't depend on when it
// was minted.
type TokenInfo struct {
	AccessToken  string       `json:"access_token"`
	Account      Account      `json:"account"`
	ExpiresIn    int64        `json:"expires_in"`
	Organization Organization `json:"organization"`
	RefreshToken string       `json:"refresh_token"`
	Scope        string       `json:"scope"`
	TokenType    string       `json:"token_type"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// NewTokenInfo resolves a raw token response into a TokenInfo, stamping
// ExpiresAt relative to now. When the access token itself is a JWT carrying
// an exp claim earlier than expires_in implies, the claim wins, so a token
// minted against a stale server clock is still refreshed in time.
func NewTokenInfo(raw TokenInfoRaw) *TokenInfo {
	t := &TokenInfo{
		AccessToken:  raw.AccessToken,
		Account:      raw.Account,
		ExpiresIn:    raw.ExpiresIn,
		Organization: raw.Organization,
		RefreshToken: raw.RefreshToken,
		Scope:        raw.Scope,
		TokenType:    raw.TokenType,
		ExpiresAt:    time.Now().Add(time.Duration(raw.ExpiresIn) * time.Second),
	}
	if exp, ok := jwtExpiry(raw.AccessToken); ok && exp.Before(t.ExpiresAt) {
		t.ExpiresAt = exp
	}
	return t
}

// jwtExpiry extracts the exp claim from an access token that happens to be
// a JWT. Opaque tokens (the common case) simply fail to parse and fall back
// to expires_in. The signature is deliberately not verified: the gateway is
// the token's consumer, not its audience, and only needs the timestamp.
func jwtExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// refreshSkew is how far ahead of real expiry a token is treated as expired,
// leaving headroom to refresh before an in-flight request is rejected upstream.
const refreshSkew = 5 * time.Minute

// IsExpired reports whether the token should be refreshed before use.
func (t *TokenInfo) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt.Add(-refreshSkew))
}
