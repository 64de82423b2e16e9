// Package common holds gin request plumbing shared by every route: body
// caching for multi-reader handlers, sanitized payload logging, and SSE
// response headers.
package common

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/llm-gateway/common/ctxkey"
)

// GetRequestBody reads the request body once and caches it on the gin
// context, so the probe, the preprocessor, and the payload logger can each
// see the full bytes without fighting over a single-read stream.
func GetRequestBody(c *gin.Context) ([]byte, error) {
	if cached, _ := c.Get(ctxkey.RequestBody); cached != nil {
		return cached.([]byte), nil
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read request body")
	}
	_ = c.Request.Body.Close()
	c.Set(ctxkey.RequestBody, body)
	return body, nil
}

// restoreRequestBody puts the cached bytes back on c.Request.Body so later
// stages that read the body directly (gin binding, reverse proxying) still
// work.
func restoreRequestBody(c *gin.Context, body []byte) {
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
}

// UnmarshalBodyReusable decodes the JSON request body into v, logging a
// sanitized payload preview on first touch and leaving the body readable
// for the rest of the handler chain. Every gateway route speaks JSON, so
// no other content type is attempted.
func UnmarshalBodyReusable(c *gin.Context, v any) error {
	body, err := GetRequestBody(c)
	if err != nil {
		return err
	}
	if err := LogClientRequestPayload(c, "", DefaultLogBodyLimit); err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrap(err, "unmarshal request body")
	}
	restoreRequestBody(c, body)
	return nil
}

// LogClientRequestPayload emits one DEBUG line per request with a
// sanitized, size-capped preview of the inbound payload (inline base64
// images redacted). Repeat calls on the same request are no-ops.
func LogClientRequestPayload(c *gin.Context, label string, limit int) error {
	if logged, ok := c.Get(ctxkey.ClientRequestPayloadLogged); ok && logged == true {
		return nil
	}

	body, err := GetRequestBody(c)
	if err != nil {
		return err
	}

	preview, truncated := SanitizePayloadForLogging(body, limit)
	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("url", c.Request.URL.String()),
		zap.Int("body_bytes", len(body)),
		zap.Bool("body_truncated", truncated),
		zap.ByteString("body_preview", preview),
	}
	if label != "" {
		fields = append(fields, zap.String("label", label))
	}
	gmw.GetLogger(c).Debug("client request received", fields...)

	c.Set(ctxkey.ClientRequestPayloadLogged, true)
	restoreRequestBody(c, body)
	return nil
}

// SetEventStreamHeaders marks the response as a server-sent event stream
// and disables every buffering layer that would hold frames back from the
// client.
func SetEventStreamHeaders(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Transfer-Encoding", "chunked")
	h.Set("X-Accel-Buffering", "no")
}
