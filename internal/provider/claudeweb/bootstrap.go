package claudeweb

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/Laisky/llm-gateway/internal/credential"
	"github.com/Laisky/llm-gateway/internal/gatewayconfig"
)

// bootstrap runs the account/organization/capability/flag checks that must
// pass before any chat traffic is sent. A non-nil Reason
// return means the caller must return the cookie with that Reason instead
// of retrying with it.
func (s *session) bootstrap(ctx context.Context) (*credential.Reason, error) {
	boot, err := s.getJSON(ctx, "/api/bootstrap")
	if err != nil {
		return nil, err
	}

	account, ok := boot["account"]
	if !ok || account == nil {
		r := credential.Null()
		return &r, errors.New("bootstrap: null account")
	}
	accObj, _ := account.(map[string]any)
	memberships, _ := accObj["memberships"].([]any)

	var orgCapsFromMembership []any
	for _, m := range memberships {
		mObj, _ := m.(map[string]any)
		org, _ := mObj["organization"].(map[string]any)
		if hasCapability(org["capabilities"], "chat") {
			orgCapsFromMembership, _ = org["capabilities"].([]any)
			break
		}
	}
	if orgCapsFromMembership == nil {
		r := credential.Null()
		return &r, errors.New("bootstrap: no organization with chat capability")
	}

	for _, c := range orgCapsFromMembership {
		if str, ok := c.(string); ok {
			s.capabilities = append(s.capabilities, str)
		}
	}

	cfg := gatewayconfig.Current()
	if !s.isPro() && cfg.SkipNonPro {
		r := credential.NonPro()
		return &r, errors.New("bootstrap: non-pro account")
	}

	orgs, err := s.getJSONArray(ctx, "/api/organizations")
	if err != nil {
		return nil, err
	}

	var best map[string]any
	bestCaps := -1
	for _, raw := range orgs {
		org, _ := raw.(map[string]any)
		if !hasCapability(org["capabilities"], "chat") {
			continue
		}
		caps, _ := org["capabilities"].([]any)
		if len(caps) > bestCaps {
			bestCaps = len(caps)
			best = org
		}
	}
	if best == nil {
		r := credential.Null()
		return &r, errors.New("bootstrap: no organization with chat capability in /api/organizations")
	}

	if reason := checkFlags(best, cfg); reason != nil {
		return reason, errors.Errorf("bootstrap: account flagged (%s)", reason.String())
	}

	uuid, _ := best["uuid"].(string)
	if uuid == "" {
		r := credential.Null()
		return &r, errors.New("bootstrap: organization missing uuid")
	}
	s.orgUUID = uuid
	return nil, nil
}

// checkFlags classifies active_flags, ignoring flags whose
// expires_at has already passed.
func checkFlags(org map[string]any, cfg *gatewayconfig.GatewayConfig) *credential.Reason {
	flags, _ := org["active_flags"].([]any)
	if len(flags) == 0 {
		return nil
	}

	now := time.Now()
	type flagged struct {
		kind   string
		expire time.Time
	}
	var active []flagged
	for _, raw := range flags {
		f, _ := raw.(map[string]any)
		kind, _ := f["type"].(string)
		expireStr, _ := f["expires_at"].(string)
		if kind == "" || expireStr == "" {
			continue
		}
		expire, err := time.Parse(time.RFC3339, expireStr)
		if err != nil || !now.Before(expire) {
			continue
		}
		active = append(active, flagged{kind: kind, expire: expire})
	}

	latest := func(substr string) (time.Time, bool) {
		var best time.Time
		found := false
		for _, f := range active {
			if indexOf(f.kind, substr) && (!found || f.expire.After(best)) {
				best, found = f.expire, true
			}
		}
		return best, found
	}

	for _, f := range active {
		if indexOf(f.kind, "banned") {
			r := credential.Banned()
			return &r
		}
	}

	if expire, ok := latest("restricted"); ok && cfg.SkipRestricted {
		r := credential.Restricted(expire.Unix())
		return &r
	}
	if expire, ok := latest("second_warning"); ok && cfg.SkipSecondWarning {
		r := credential.Restricted(expire.Unix())
		return &r
	}
	if expire, ok := latest("first_warning"); ok && cfg.SkipFirstWarning {
		r := credential.Restricted(expire.Unix())
		return &r
	}
	if len(active) == 0 && cfg.SkipNormalPro {
		r := credential.NormalPro()
		return &r
	}
	return nil
}

func hasCapability(v any, want string) bool {
	arr, _ := v.([]any)
	for _, c := range arr {
		if str, ok := c.(string); ok && str == want {
			return true
		}
	}
	return false
}

func (s *session) getJSON(ctx context.Context, path string) (map[string]any, error) {
	body, err := s.doGet(ctx, path)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	var out map[string]any
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode bootstrap response")
	}
	return out, nil
}

func (s *session) getJSONArray(ctx context.Context, path string) ([]any, error) {
	body, err := s.doGet(ctx, path)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	var out []any
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode organizations response")
	}
	return out, nil
}

func (s *session) doGet(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build bootstrap request")
	}
	req.Header.Set("Cookie", s.cookie.Cookie.String())
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "bootstrap request")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, errors.Errorf("bootstrap request %s: status %d", path, resp.StatusCode)
	}
	return resp.Body, nil
}
