package claudecode

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/Laisky/errors/v2"

	"github.com/Laisky/llm-gateway/internal/credential"
	"github.com/Laisky/llm-gateway/internal/gatewayconfig"
)

// ensureToken makes sure s.cookie carries an unexpired OAuth token, minting
// one via PKCE authorization-code exchange if absent or refreshing it if
// expired. A non-nil Reason means the caller should
// return s.cookie with that Reason instead of retrying with it.
func (p *Provider) ensureToken(ctx context.Context, s *session) (*credential.Reason, error) {
	switch {
	case s.cookie.Token == nil:
		orgUUID, reason, err := getOrganization(ctx, s)
		if err != nil {
			return reason, err
		}
		s.orgUUID = orgUUID

		tok, err := exchangeAuthorizationCode(ctx, s, orgUUID)
		if err != nil {
			return nil, errors.Wrap(err, "authorization code exchange")
		}
		s.cookie.AddToken(tok)

	case s.cookie.Token.IsExpired():
		tok, err := refreshToken(ctx, s, s.cookie.Token.RefreshToken)
		if err != nil {
			return nil, errors.Wrap(err, "refresh token")
		}
		s.cookie.AddToken(tok)
	}

	if s.orgUUID == "" && s.cookie.Token != nil {
		s.orgUUID = s.cookie.Token.Organization.UUID
	}
	return nil, nil
}

// pkce holds one authorization attempt's random state and code verifier:
// 32 random bytes for state, S256 challenge over the verifier.
type pkce struct {
	state        string
	codeVerifier string
	challenge    string
}

func newPKCE() (*pkce, error) {
	stateBytes := make([]byte, 32)
	if _, err := rand.Read(stateBytes); err != nil {
		return nil, errors.Wrap(err, "generate oauth state")
	}
	verifierBytes := make([]byte, 32)
	if _, err := rand.Read(verifierBytes); err != nil {
		return nil, errors.Wrap(err, "generate pkce verifier")
	}

	verifier := base64.RawURLEncoding.EncodeToString(verifierBytes)
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	return &pkce{
		state:        base64.RawURLEncoding.EncodeToString(stateBytes),
		codeVerifier: verifier,
		challenge:    challenge,
	}, nil
}

// exchangeAuthorizationCode runs the full authorize and token dance that
// mints the initial token.
func exchangeAuthorizationCode(ctx context.Context, s *session, orgUUID string) (*credential.TokenInfo, error) {
	cfg := gatewayconfig.Current()
	p, err := newPKCE()
	if err != nil {
		return nil, err
	}

	authorizeBody, err := json.Marshal(map[string]string{
		"response_type":         "code",
		"client_id":             cfg.CCClientID(),
		"organization_uuid":     orgUUID,
		"redirect_uri":          gatewayconfig.ClaudeCodeRedirectURI,
		"scope":                 "user:profile user:inference",
		"state":                 p.state,
		"code_challenge":        p.challenge,
		"code_challenge_method": "S256",
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal authorize request")
	}

	authorizePath := "/v1/oauth/" + orgUUID + "/authorize"
	var authResp struct {
		RedirectURI string `json:"redirect_uri"`
	}
	if err := s.postJSONInto(ctx, authorizePath, authorizeBody, &authResp); err != nil {
		return nil, errors.Wrap(err, "authorize request")
	}

	code, state, err := parseCodeAndState(authResp.RedirectURI)
	if err != nil {
		return nil, err
	}
	if state != p.state {
		return nil, errors.New("authorize response state mismatch")
	}

	tokenBody, err := json.Marshal(map[string]string{
		"grant_type":    "authorization_code",
		"code":          code,
		"code_verifier": p.codeVerifier,
		"state":         state,
		"client_id":     cfg.CCClientID(),
		"redirect_uri":  gatewayconfig.ClaudeCodeRedirectURI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal token exchange request")
	}

	return postTokenEndpoint(ctx, tokenBody)
}

// refreshToken exchanges a refresh token for a new access token.
func refreshToken(ctx context.Context, s *session, refreshToken string) (*credential.TokenInfo, error) {
	cfg := gatewayconfig.Current()
	body, err := json.Marshal(map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"client_id":     cfg.CCClientID(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal refresh request")
	}
	return postTokenEndpoint(ctx, body)
}

func postTokenEndpoint(ctx context.Context, body []byte) (*credential.TokenInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gatewayconfig.ClaudeCodeTokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build token request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send token request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("token endpoint: status %d", resp.StatusCode)
	}

	var raw credential.TokenInfoRaw
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode token response")
	}
	return credential.NewTokenInfo(raw), nil
}

// parseCodeAndState extracts the `code` and `state` query parameters from
// the authorize endpoint's redirect_uri.
func parseCodeAndState(redirectURI string) (code, state string, err error) {
	if redirectURI == "" {
		return "", "", errors.New("authorize response missing redirect_uri")
	}
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", "", errors.Wrap(err, "parse authorize redirect_uri")
	}
	q := u.Query()
	code = q.Get("code")
	state = q.Get("state")
	if code == "" || state == "" {
		return "", "", errors.New("authorize redirect_uri missing code or state")
	}
	return code, state, nil
}

func (s *session) postJSONInto(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build post request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", s.cookie.Cookie.String())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "send post request")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("post %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
