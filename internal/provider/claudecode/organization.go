package claudecode

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/Laisky/llm-gateway/internal/credential"
)

// getOrganization resolves the chat-capable, paid-tier organization uuid
// backing s.cookie. This is the minimal bootstrap probe the OAuth exchange
// needs, a trimmed-down cousin of the Claude Web provider's full bootstrap,
// choosing the membership the OAuth authorize call is scoped to.
func getOrganization(ctx context.Context, s *session) (string, *credential.Reason, error) {
	body, err := s.doGet(ctx, "/api/bootstrap")
	if err != nil {
		return "", nil, err
	}
	defer body.Close()

	var boot map[string]any
	if err := json.NewDecoder(body).Decode(&boot); err != nil {
		return "", nil, errors.Wrap(err, "decode bootstrap response")
	}

	account, _ := boot["account"].(map[string]any)
	if account == nil {
		r := credential.Null()
		return "", &r, errors.New("bootstrap: null account")
	}

	memberships, _ := account["memberships"].([]any)
	var org map[string]any
	for _, m := range memberships {
		mObj, _ := m.(map[string]any)
		o, _ := mObj["organization"].(map[string]any)
		if hasChatCapability(o) {
			org = o
			break
		}
	}
	if org == nil {
		r := credential.Null()
		return "", &r, errors.New("bootstrap: no organization with chat capability")
	}

	caps, _ := org["capabilities"].([]any)
	if !isProCapabilitySet(caps) {
		r := credential.NonPro()
		return "", &r, errors.New("bootstrap: non-pro account")
	}

	uuid, _ := org["uuid"].(string)
	if uuid == "" {
		r := credential.Null()
		return "", &r, errors.New("bootstrap: organization missing uuid")
	}
	return uuid, nil, nil
}

func hasChatCapability(org map[string]any) bool {
	caps, _ := org["capabilities"].([]any)
	for _, c := range caps {
		if s, ok := c.(string); ok && s == "chat" {
			return true
		}
	}
	return false
}

func isProCapabilitySet(caps []any) bool {
	for _, c := range caps {
		s, ok := c.(string)
		if !ok {
			continue
		}
		if strings.Contains(s, "pro") || strings.Contains(s, "enterprise") ||
			strings.Contains(s, "raven") || strings.Contains(s, "max") {
			return true
		}
	}
	return false
}
