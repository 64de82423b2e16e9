package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/llm-gateway/common"
	"github.com/Laisky/llm-gateway/common/ctxkey"
	"github.com/Laisky/llm-gateway/common/tracing"
	"github.com/Laisky/llm-gateway/internal/cache"
	"github.com/Laisky/llm-gateway/internal/gatewayconfig"
	"github.com/Laisky/llm-gateway/internal/gwerror"
	"github.com/Laisky/llm-gateway/internal/preprocess"
	"github.com/Laisky/llm-gateway/internal/schema"
	"github.com/Laisky/llm-gateway/internal/stream"
	"github.com/Laisky/llm-gateway/monitor"
)

// completer is implemented by both the Claude Web and Claude Code
// providers; the routes below are generic over which one they drive.
type completer interface {
	Complete(ctx context.Context, params *schema.CreateMessageParams, cctx *schema.ClaudeContext, w io.Writer) (stream.Result, error)
}

// bodyProbe reads just enough of a request body to answer a liveness ping
// or pick cache-replay framing without fully parsing it, since that work is
// preprocess.Process's job.
type bodyProbe struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

// MessagesHandler builds the handler for a Claude-schema completion route
// (`/v1/messages` or `/code/v1/messages`), backed by provider p and,
// optionally, a response cache.
func MessagesHandler(p completer, cacheStore *cache.ResponseCache, isClaudeCode bool) gin.HandlerFunc {
	return newCompletionHandler(p, cacheStore, schema.APIFormatClaude, isClaudeCode)
}

// ChatCompletionsHandler builds the handler for an OpenAI-schema completion
// route (`/v1/chat/completions` or `/code/v1/chat/completions`).
func ChatCompletionsHandler(p completer, cacheStore *cache.ResponseCache, isClaudeCode bool) gin.HandlerFunc {
	return newCompletionHandler(p, cacheStore, schema.APIFormatOpenAI, isClaudeCode)
}

func newCompletionHandler(p completer, cacheStore *cache.ResponseCache, format schema.APIFormat, isClaudeCode bool) gin.HandlerFunc {
	backend := "claude_web"
	if isClaudeCode {
		backend = "claude_code"
	}
	return func(c *gin.Context) {
		body, err := common.GetRequestBody(c)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
			return
		}
		_ = common.LogClientRequestPayload(c, backend, common.DefaultLogBodyLimit)

		var probe bodyProbe
		_ = json.Unmarshal(body, &probe)

		result, recorded, err := preprocess.Process(body, preprocess.Options{
			APIFormat:    format,
			IsClaudeCode: isClaudeCode,
			Cache:        cacheStore,
		})
		switch {
		case err == gwerror.ErrTestMessage:
			writeLivenessReply(c, format, probe.Model)
			return
		case err == gwerror.ErrCacheFound:
			monitor.GlobalRecorder.RecordCacheResult(true)
			serveRecorded(c, probe.Stream, recorded)
			return
		case err != nil:
			respondError(c, probe.Stream, false, err)
			return
		}
		if cacheStore != nil {
			monitor.GlobalRecorder.RecordCacheResult(false)
		}

		result.Context.CompletionID = tracing.GenerateChatCompletionID(c)
		result.Context.CreatedUnix = nowUnix()
		c.Set(ctxkey.ClaudeContext, result.Context)

		runOne := func(ctx context.Context, w io.Writer) error {
			start := time.Now()
			_, err := p.Complete(ctx, result.Params, result.Context, w)
			monitor.GlobalRecorder.RecordProviderRequest(backend, providerOutcome(err), time.Since(start))
			return err
		}

		if result.Context.Stream {
			common.SetEventStreamHeaders(c)
		} else {
			c.Writer.Header().Set("Content-Type", "application/json")
		}

		if cacheStore != nil {
			rw := newRecordingWriter(c.Writer)
			err = runOne(c.Request.Context(), rw)
			if err == nil {
				cacheStore.Push(result.Context.Fingerprint, rw.recorded)
				if fanout := gatewayconfig.Current().CacheResponseFanout; fanout > 1 {
					spawnFanout(cacheStore, result.Context.Fingerprint, fanout-1, runOne)
				}
			}
		} else {
			err = runOne(c.Request.Context(), c.Writer)
		}

		if err != nil {
			respondError(c, result.Context.Stream, result.Context.Stream, err)
			return
		}
		if result.Context.Stream {
			c.Writer.Flush()
		}
	}
}

// serveRecorded answers a cache hit by replaying the recorded byte stream
// verbatim, consuming one recorded slot.
func serveRecorded(c *gin.Context, streaming bool, recorded cache.RecordedStream) {
	if streaming {
		common.SetEventStreamHeaders(c)
	} else {
		c.Writer.Header().Set("Content-Type", "application/json")
	}
	c.Status(http.StatusOK)
	if err := replayRecordedStream(c.Writer, recorded); err != nil {
		gmw.GetLogger(c).Warn("failed to replay cached response", zap.Error(err))
		return
	}
	c.Writer.Flush()
}
