package claudecode

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/Laisky/llm-gateway/internal/credential"
	"github.com/Laisky/llm-gateway/internal/retry"
	"github.com/Laisky/llm-gateway/internal/schema"
)

// sonnet4ModelPrefix identifies the model family eligible for the 1M-context
// beta.
const sonnet4ModelPrefix = "claude-sonnet-4-20250514"

const oneMillionSuffix = "-1M"

// oauthBetaHeader and oauthBeta1MHeader are the anthropic-beta values sent
// without (resp. with) the 1M-context beta enabled.
const (
	oauthBetaHeader     = "oauth-2025-04-20"
	oauthBeta1MHeader   = "oauth-2025-04-20,context-1m-2025-08-07"
	anthropicAPIVersion = "2023-06-01"
)

// contextForbiddenMessage is the exact upstream message that marks a 1M
// attempt as ineligible rather than a generic failure.
const contextForbiddenMessage = "the long context beta is not yet available for this subscription."

// attempt1M enumerates one candidate for the attempt-set loop: whether this
// attempt requests the 1M-context beta header.
type attempt1M bool

const (
	attemptNon1M     attempt1M = false
	attempt1Menabled attempt1M = true
)

// buildAttemptSet decides which beta-header variants to try, in order, per
// the subscription's known capability.
func buildAttemptSet(model string, cookie *credential.CookieStatus) (resolvedModel string, attempts []attempt1M) {
	requested1M := strings.HasSuffix(model, oneMillionSuffix)
	resolvedModel = strings.TrimSuffix(model, oneMillionSuffix)
	isSonnet4 := strings.HasPrefix(resolvedModel, sonnet4ModelPrefix)

	switch {
	case isSonnet4 && cookie.SupportsClaude1M != nil && *cookie.SupportsClaude1M:
		return resolvedModel, []attempt1M{attempt1Menabled}
	case isSonnet4 && cookie.SupportsClaude1M != nil && !*cookie.SupportsClaude1M:
		return resolvedModel, []attempt1M{attemptNon1M}
	case isSonnet4:
		return resolvedModel, []attempt1M{attempt1Menabled, attemptNon1M}
	case requested1M:
		return resolvedModel, []attempt1M{attempt1Menabled, attemptNon1M}
	default:
		return resolvedModel, []attempt1M{attemptNon1M}
	}
}

// sendChat runs the 1M-context attempt-set loop against /v1/messages,
// falling back when the subscription lacks the 1M beta. A non-nil Reason
// classifies a non-1M-related failure that should rotate the cookie; context_1m_forbidden failures are handled
// internally by advancing the attempt set, never surfaced as a Reason.
func (p *Provider) sendChat(ctx context.Context, s *session, params *schema.CreateMessageParams) (io.ReadCloser, *credential.Reason, error) {
	model, attempts := buildAttemptSet(params.Model, s.cookie)
	isSonnet4 := strings.HasPrefix(model, sonnet4ModelPrefix)

	body, err := marshalMessagesRequest(params, model)
	if err != nil {
		return nil, nil, err
	}

	var lastReason *credential.Reason
	var lastErr error

	for i, use1M := range attempts {
		resp, err := s.postMessages(ctx, body, bool(use1M))
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if isSonnet4 {
				used := bool(use1M)
				s.cookie.SetSupportsClaude1M(used)
			}
			return resp.Body, nil, nil
		}

		respBody, readErr := retry.ReadBody(resp)
		if readErr != nil {
			return nil, nil, readErr
		}

		if bool(use1M) && isContextForbidden(resp.StatusCode, respBody) {
			s.cookie.SetSupportsClaude1M(false)
			if i < len(attempts)-1 {
				continue
			}
		}

		cls := retry.ClassifyResponse(resp.StatusCode, respBody)
		if cls.HasReason {
			reason := cls.Reason
			lastReason = &reason
		}
		lastErr = cls.PropagateErr
		if !cls.HasReason {
			return nil, nil, lastErr
		}
	}

	return nil, lastReason, lastErr
}

// isContextForbidden recognizes the "long context beta" rejection; the
// marker is matched as a substring since upstream wraps it in varying
// envelope text.
func isContextForbidden(status int, body []byte) bool {
	if status != http.StatusBadRequest && status != http.StatusForbidden {
		return false
	}
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return false
	}
	return strings.Contains(parsed.Error.Message, contextForbiddenMessage)
}

func (s *session) postMessages(ctx context.Context, body []byte, use1M bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build messages request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+s.cookie.Token.AccessToken)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	if use1M {
		req.Header.Set("anthropic-beta", oauthBeta1MHeader)
	} else {
		req.Header.Set("anthropic-beta", oauthBetaHeader)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send messages request")
	}
	return resp, nil
}

// marshalMessagesRequest builds the upstream /v1/messages body, which is
// the canonical CreateMessageParams with the resolved model substituted in
// (the 1M/-thinking suffixes already stripped by the caller/preprocessor).
func marshalMessagesRequest(p *schema.CreateMessageParams, model string) ([]byte, error) {
	clone := *p
	clone.Model = model
	buf, err := json.Marshal(clone)
	if err != nil {
		return nil, errors.Wrap(err, "marshal messages request")
	}
	return buf, nil
}
