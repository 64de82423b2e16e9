// Package claudecode implements the Claude Code backend: an OAuth access
// token is minted (via PKCE authorization-code
// exchange) against a Claude Web cookie's paid organization, then used to
// call Anthropic's first-party /v1/messages API directly, bypassing the
// scraped web chat endpoint entirely.
package claudecode

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/Laisky/llm-gateway/common/client"
	"github.com/Laisky/llm-gateway/common/logger"
	"github.com/Laisky/llm-gateway/internal/credential"
	"github.com/Laisky/llm-gateway/internal/gatewayconfig"
	"github.com/Laisky/llm-gateway/internal/gwerror"
	"github.com/Laisky/llm-gateway/internal/pool"
	"github.com/Laisky/llm-gateway/internal/schema"
	"github.com/Laisky/llm-gateway/internal/stream"
	"github.com/Laisky/llm-gateway/monitor"
)

// Provider drives Claude Code traffic against the cookie pool, reusing the
// same credentials the Claude Web provider rotates.
type Provider struct {
	Pool *pool.CookiePool
}

// New builds a Claude Code provider bound to the given cookie pool.
func New(p *pool.CookiePool) *Provider {
	return &Provider{Pool: p}
}

// session is one attempt's worth of token/organization state, analogous to
// one attempt's working state.
type session struct {
	endpoint   string
	httpClient *http.Client
	cookie     *credential.CookieStatus
	orgUUID    string
}

// Complete resolves an access token for the acquired cookie (exchanging or
// refreshing it as needed), runs the 1M-context attempt dance, and streams
// the converted response, all under the bounded retry loop.
func (p *Provider) Complete(ctx context.Context, params *schema.CreateMessageParams, cctx *schema.ClaudeContext, w io.Writer) (stream.Result, error) {
	cfg := gatewayconfig.Current()

	var lastErr error
	for attempt := 0; attempt < cfg.MaxRetries+1; attempt++ {
		if attempt > 0 {
			logger.Logger.Info("claude code retry", zap.Int("attempt", attempt))
			monitor.GlobalRecorder.RecordRetry("claude_code")
		}

		cs, err := p.Pool.Request(&cctx.SystemPromptHash)
		if err != nil {
			return stream.Result{}, errors.Wrap(err, "acquire cookie")
		}

		jar, err := cookiejar.New(nil)
		if err != nil {
			p.Pool.Return(cs, nil)
			return stream.Result{}, errors.Wrap(err, "build cookie jar")
		}
		s := &session{
			endpoint:   cfg.Endpoint(),
			httpClient: client.NewJarClient(jar),
			cookie:     cs,
		}

		res, reason, runErr := p.attempt(ctx, s, params, cctx, w)
		if runErr == nil {
			s.cookie.AddAndBucketUsage(uint64(cctx.EstimatedInput), uint64(res.OutputTokens),
				credential.FamilyForModel(params.Model))
		}
		p.Pool.Return(s.cookie, reason)

		if runErr == nil {
			return res, nil
		}
		lastErr = runErr
		if reason == nil {
			return stream.Result{}, runErr
		}
	}

	return stream.Result{}, errors.Wrap(gwerror.ErrTooManyRetries, errString(lastErr))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// attempt ensures s.cookie carries a usable access token, sends the chat
// request, and converts the response. The returned Reason (nil for a plain
// success) is what Complete feeds back into Pool.Return.
func (p *Provider) attempt(ctx context.Context, s *session, params *schema.CreateMessageParams, cctx *schema.ClaudeContext, w io.Writer) (stream.Result, *credential.Reason, error) {
	if reason, err := p.ensureToken(ctx, s); err != nil {
		return stream.Result{}, reason, err
	}

	body, reason, err := p.sendChat(ctx, s, params)
	if err != nil {
		return stream.Result{}, reason, err
	}
	defer body.Close()

	res, err := convertResponse(ctx, body, params, cctx, w)
	if err != nil {
		return stream.Result{}, nil, err
	}
	return res, nil, nil
}
