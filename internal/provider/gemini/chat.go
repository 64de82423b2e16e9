package gemini

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/Laisky/llm-gateway/common/client"
	"github.com/Laisky/llm-gateway/common/helper"
	"github.com/Laisky/llm-gateway/common/logger"
	"github.com/Laisky/llm-gateway/internal/credential"
	"github.com/Laisky/llm-gateway/internal/gatewayconfig"
	"github.com/Laisky/llm-gateway/internal/gwerror"
	"github.com/Laisky/llm-gateway/internal/pool"
	"github.com/Laisky/llm-gateway/internal/retry"
	"github.com/Laisky/llm-gateway/internal/schema"
	"github.com/Laisky/llm-gateway/monitor"
)

// Provider drives Gemini traffic: AI Studio requests rotate through the key
// pool, Vertex requests authenticate with the configured service account
// instead. Unlike the Claude backends the response body is never decoded
// into a Go struct for rewriting; it is forwarded byte-for-byte.
type Provider struct {
	Keys *pool.KeyPool
}

// New builds a Gemini provider bound to the given key pool.
func New(keys *pool.KeyPool) *Provider {
	return &Provider{Keys: keys}
}

// Run drives one request to completion, writing the upstream response (or
// forwarding its stream) to w.
func (p *Provider) Run(ctx context.Context, gctx Context, body []byte, w io.Writer) error {
	if gctx.APIFormat == schema.GeminiFormatNative {
		rewritten, err := applySafetyOff(body)
		if err != nil {
			return err
		}
		body = rewritten
	}

	if gctx.APIFormat == schema.GeminiFormatNative && !gctx.Stream {
		return runHeartbeat(ctx, w, func(inner io.Writer) error {
			return p.tryChat(ctx, gctx, body, inner)
		})
	}
	return p.tryChat(ctx, gctx, body, w)
}

// tryChat runs the bounded retry loop, adapted for
// the key pool's simpler Reason-less credential model: any non-2xx response
// rotates to the next key (bumping Count403 on a 403) and retries; a
// transport failure does the same. Non-streaming responses are buffered so
// an empty-choices response can be silently retried; streaming responses
// are forwarded as they arrive and never retried mid-stream.
func (p *Provider) tryChat(ctx context.Context, gctx Context, body []byte, w io.Writer) error {
	cfg := gatewayconfig.Current()

	var lastErr error
	for attempt := 0; attempt < cfg.MaxRetries+1; attempt++ {
		if attempt > 0 {
			logger.Logger.Info("gemini retry", zap.Int("attempt", attempt))
			monitor.GlobalRecorder.RecordRetry(backendLabel(gctx.Vertex))
		}

		respBody, err := p.send(ctx, gctx, body)
		if err != nil {
			lastErr = err
			continue
		}

		if gctx.Stream {
			_, err := io.Copy(w, respBody)
			respBody.Close()
			return err
		}

		buf, err := io.ReadAll(respBody)
		respBody.Close()
		if err != nil {
			return errors.Wrap(err, "read gemini response")
		}

		if emptyChoices(gctx.APIFormat, buf) {
			logger.Logger.Warn("gemini response had empty choices, retrying")
			lastErr = errors.New("empty choices")
			continue
		}

		_, err = w.Write(buf)
		return err
	}

	return errors.Wrap(gwerror.ErrTooManyRetries, errString(lastErr))
}

// backendLabel names the Gemini dispatch path for metrics.
func backendLabel(vertex bool) string {
	if vertex {
		return "gemini_vertex"
	}
	return "gemini_ai_studio"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func emptyChoices(format schema.GeminiAPIFormat, body []byte) bool {
	if format == schema.GeminiFormatOpenAI {
		return openAIChoicesEmpty(body)
	}
	return nativeContentsEmpty(body)
}

// send dispatches one attempt to either Vertex or AI Studio and returns the
// (still open, 2xx) response body, or a retriable error describing why the
// attempt failed.
func (p *Provider) send(ctx context.Context, gctx Context, body []byte) (io.ReadCloser, error) {
	if gctx.Vertex {
		return p.sendVertex(ctx, gctx, body)
	}
	return p.sendAIStudio(ctx, gctx, body)
}

func (p *Provider) sendAIStudio(ctx context.Context, gctx Context, body []byte) (io.ReadCloser, error) {
	ks, err := p.Keys.Request()
	if err != nil {
		return nil, errors.Wrap(err, "acquire gemini key")
	}

	req, err := buildAIStudioRequest(ctx, gctx, ks.Key, body)
	if err != nil {
		p.Keys.Return(ks)
		return nil, err
	}

	logger.Logger.Info("gemini request", zap.String("key", helper.MaskAPIKey(ks.Key.String())))
	resp, err := client.HTTPClient.Do(req)
	if err != nil {
		p.Keys.Return(ks)
		return nil, errors.Wrap(gwerror.ErrTransport, err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := retry.ReadBody(resp)
		if resp.StatusCode == http.StatusForbidden {
			ks.Count403++
		}
		p.Keys.Return(ks)
		if readErr != nil {
			return nil, readErr
		}
		return nil, gwerror.NewUpstreamHTTP(resp.StatusCode, string(respBody))
	}

	p.Keys.Return(ks)
	return resp.Body, nil
}

func (p *Provider) sendVertex(ctx context.Context, gctx Context, body []byte) (io.ReadCloser, error) {
	cfg := gatewayconfig.Current()
	if cfg.Vertex.ProjectID == "" {
		return nil, errors.New("vertex project_id not configured")
	}
	httpClient, err := vertexClient(ctx)
	if err != nil {
		return nil, err
	}

	req, err := buildVertexRequest(ctx, gctx, cfg.Vertex.ProjectID, body)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(gwerror.ErrTransport, err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := retry.ReadBody(resp)
		if readErr != nil {
			return nil, readErr
		}
		return nil, gwerror.NewUpstreamHTTP(resp.StatusCode, string(respBody))
	}

	return resp.Body, nil
}

func buildAIStudioRequest(ctx context.Context, gctx Context, key credential.GeminiKey, body []byte) (*http.Request, error) {
	if gctx.APIFormat == schema.GeminiFormatOpenAI {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, gatewayconfig.GeminiEndpoint+"/v1beta/openai/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrap(err, "build gemini openai request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+key.String())
		return req, nil
	}

	u := gatewayconfig.GeminiEndpoint + "/v1beta/" + gctx.Path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build gemini native request")
	}
	req.Header.Set("Content-Type", "application/json")
	q := req.URL.Query()
	extra := forwardQuery(gctx.Query)
	for i := 0; i+1 < len(extra); i += 2 {
		q.Set(extra[i], extra[i+1])
	}
	q.Set("key", key.String())
	req.URL.RawQuery = q.Encode()
	return req, nil
}

func buildVertexRequest(ctx context.Context, gctx Context, projectID string, body []byte) (*http.Request, error) {
	if gctx.APIFormat == schema.GeminiFormatOpenAI {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, vertexOpenAIEndpoint(projectID), bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrap(err, "build vertex openai request")
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	u := vertexEndpoint(projectID, gctx.Model, gctx.Stream)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build vertex native request")
	}
	req.Header.Set("Content-Type", "application/json")
	q := req.URL.Query()
	extra := forwardQuery(gctx.Query)
	for i := 0; i+1 < len(extra); i += 2 {
		q.Set(extra[i], extra[i+1])
	}
	req.URL.RawQuery = q.Encode()
	return req, nil
}
