// Package claudeweb implements the Claude Web backend:
// bootstrap/capability checks, conversation lifecycle, prompt
// assembly with image upload, and cleanup.
package claudeweb

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

// Provider drives Claude Web traffic against the cookie pool. A fresh
// session (cookie, HTTP client with its own cookie jar, bootstrap state) is
// built per attempt of the retry loop.
type Provider struct {
	Pool *pool.CookiePool
}

// New builds a Claude Web provider bound to the given cookie pool.
func New(p *pool.CookiePool) *Provider {
	return &Provider{Pool: p}
}

// session is one attempt's worth of bootstrap-derived state, analogous to
// one attempt's working state.
type session struct {
	endpoint     string
	httpClient   *http.Client
	cookie       *credential.CookieStatus
	capabilities []string
	orgUUID      string
	convUUID     string
}

// isPro reports whether any collected capability marks this a paid tier,
// treated as paid-tier.
func (s *session) isPro() bool {
	for _, c := range s.capabilities {
		if containsAny(c, "pro", "enterprise", "raven", "max") {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if indexOf(s, sub) {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) bool {
	if len(sub) == 0 || len(sub) > len(s) {
		return len(sub) == 0
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

// Complete runs the full bootstrap→send→stream→cleanup flow with the
// bounded retry loop, writing the client-facing stream to w.
func (p *Provider) Complete(ctx context.Context, params *schema.CreateMessageParams, cctx *schema.ClaudeContext, w io.Writer) (stream.Result, error) {
	cfg := gatewayconfig.Current()

	var lastErr error
	for attempt := 0; attempt < cfg.MaxRetries+1; attempt++ {
		if attempt > 0 {
			logger.Logger.Info("claude web retry", zap.Int("attempt", attempt))
			monitor.GlobalRecorder.RecordRetry("claude_web")
		}

		cs, err := p.Pool.Request(&cctx.SystemPromptHash)
		if err != nil {
			return stream.Result{}, errors.Wrap(err, "acquire cookie")
		}

		s := &session{cookie: cs}
		res, reason, runErr := p.attempt(ctx, s, params, cctx, w)
		if runErr == nil {
			s.cookie.AddAndBucketUsage(uint64(cctx.EstimatedInput), uint64(res.OutputTokens),
				credential.FamilyForModel(params.Model))
		}
		p.cleanupAndReturn(ctx, s, reason)

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

// attempt builds one session's HTTP client, bootstraps it, sends the chat,
// and converts the response. It returns the credential.Reason to apply to
// the cookie on Return (nil means "no reason", i.e. plain success or a
// non-retriable terminal failure) alongside any error to propagate.
func (p *Provider) attempt(ctx context.Context, s *session, params *schema.CreateMessageParams, cctx *schema.ClaudeContext, w io.Writer) (stream.Result, *credential.Reason, error) {
	cfg := gatewayconfig.Current()
	s.endpoint = cfg.Endpoint()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return stream.Result{}, nil, errors.Wrap(err, "build cookie jar")
	}
	s.httpClient = client.NewJarClient(jar)

	if reason, err := s.bootstrap(ctx); err != nil {
		return stream.Result{}, reason, err
	}

	body, reason, err := s.sendChat(ctx, params)
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

// cleanupAndReturn deletes or renames the conversation (per
// preserve_chats) and returns the cookie to the pool with the classified
// Reason. The conversation is cleaned up on error and success alike.
func (p *Provider) cleanupAndReturn(ctx context.Context, s *session, reason *credential.Reason) {
	if s.convUUID != "" && s.httpClient != nil {
		if err := s.cleanupConversation(ctx); err != nil {
			logger.Logger.Warn("failed to clean up claude web conversation", zap.Error(err))
		}
	}
	p.Pool.Return(s.cookie, reason)
}
