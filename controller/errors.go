// Package controller wires the gateway's inbound HTTP surface onto the
// request preprocessor, credential pools, and providers: Claude Messages
// and OpenAI-compatible entry points for both the Claude Web and Claude
// Code backends, a Gemini/Vertex pass-through, and the admin
// credential-management endpoints.
package controller

import (
	"errors"
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/llm-gateway/internal/gwerror"
	"github.com/Laisky/llm-gateway/internal/retry"
)

// writeError renders the standard `{"error":{"message","type"}}` failure
// shape used by every non-streaming route.
func writeError(c *gin.Context, status int, errType, msg string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"message": msg,
			"type":    errType,
		},
	})
}

// statusForError classifies a terminal provider/preprocessor error into an
// HTTP status and error type. Soft
// short-circuits (ErrTestMessage, ErrCacheFound) are handled by callers
// before this is ever reached.
func statusForError(err error) (status int, errType string) {
	var bad *gwerror.BadRequestError
	if errors.As(err, &bad) {
		return http.StatusBadRequest, "invalid_request_error"
	}

	var upstream *gwerror.UpstreamHTTPError
	if errors.As(err, &upstream) {
		return upstream.Status, "upstream_error"
	}

	var invalidCookie *gwerror.InvalidCookieError
	if errors.As(err, &invalidCookie) {
		return http.StatusBadGateway, "upstream_error"
	}

	switch {
	case errors.Is(err, gwerror.ErrNoCookieAvailable), errors.Is(err, gwerror.ErrNoKeyAvailable):
		return http.StatusServiceUnavailable, "no_credential_available"
	case errors.Is(err, gwerror.ErrTooManyRetries):
		return http.StatusBadGateway, "too_many_retries"
	case errors.Is(err, gwerror.ErrCloudflareBlocked):
		return http.StatusBadGateway, "upstream_blocked"
	case errors.Is(err, gwerror.ErrTransport):
		return http.StatusBadGateway, "upstream_transport_error"
	case errors.Is(err, gwerror.ErrPadtxtTooShort):
		return http.StatusInternalServerError, "server_error"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

// providerOutcome labels a completed provider invocation for metrics.
func providerOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, gwerror.ErrTooManyRetries):
		return "retry_exhausted"
	default:
		return "error"
	}
}

// respondError converts a terminal error into the appropriate client-facing
// response. For a non-streaming request this is a JSON error body. For a
// streaming request whose SSE headers have already been written, recovery
// is impossible, so a synthesized error event sequence is
// appended instead of an out-of-band JSON body, letting the client's SSE
// parser complete cleanly.
func respondError(c *gin.Context, streaming bool, headersSent bool, err error) {
	status, errType := statusForError(err)
	logger := gmw.GetLogger(c)

	if streaming && headersSent {
		logger.Warn("streaming request failed after headers sent", zap.Error(err))
		frames, encErr := retry.ErrorStreamFrames(err.Error())
		if encErr != nil {
			logger.Error("failed to synthesize error stream", zap.Error(encErr))
			return
		}
		_, _ = c.Writer.Write(frames)
		c.Writer.Flush()
		return
	}

	logger.Warn("request failed", zap.Error(err), zap.Int("status", status))
	writeError(c, status, errType, err.Error())
}
