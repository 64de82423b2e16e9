package controller

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Laisky/llm-gateway/common"
	"github.com/Laisky/llm-gateway/internal/gatewayconfig"
	"github.com/Laisky/llm-gateway/internal/provider/gemini"
	"github.com/Laisky/llm-gateway/internal/schema"
	"github.com/Laisky/llm-gateway/monitor"
)

// openAICompatSuffix marks the Gemini OpenAI-compatibility route, whose
// model and stream flag live in the request body rather than the path.
const openAICompatSuffix = "openai/chat/completions"

// geminiBodyProbe reads the fields the OpenAI-compatible Gemini route needs
// out of an otherwise opaquely-forwarded request body.
type geminiBodyProbe struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

// GeminiHandler builds the handler for the `/gemini/*path` pass-through
// route, dispatching to AI Studio or Vertex depending on
// whether a Vertex service account is configured.
func GeminiHandler(p *gemini.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := common.GetRequestBody(c)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
			return
		}

		vertex := gatewayconfig.Current().Vertex.Enabled()
		path := strings.TrimPrefix(c.Param("path"), "/")

		var gctx gemini.Context
		if strings.HasSuffix(path, openAICompatSuffix) {
			var probe geminiBodyProbe
			_ = json.Unmarshal(body, &probe)
			gctx = gemini.NewOpenAIContext(probe.Model, probe.Stream, vertex)
		} else {
			gctx = gemini.NewContext(path, c.Request.URL.Query(), vertex)
		}

		if gctx.Stream {
			common.SetEventStreamHeaders(c)
		} else {
			c.Writer.Header().Set("Content-Type", "application/json")
		}

		backend := "gemini_ai_studio"
		if vertex {
			backend = "gemini_vertex"
		}
		start := time.Now()
		err = p.Run(c.Request.Context(), gctx, body, c.Writer)
		monitor.GlobalRecorder.RecordProviderRequest(backend, providerOutcome(err), time.Since(start))
		if err != nil {
			respondStreamAgnosticError(c, gctx.APIFormat == schema.GeminiFormatNative && gctx.Stream, err)
			return
		}
		if gctx.Stream {
			c.Writer.Flush()
		}
	}
}

// respondStreamAgnosticError adapts respondError for Gemini, whose errors
// never carry Claude SSE framing: streaming failures just terminate the
// response (bytes already written, no recovery); a
// pre-stream failure still gets the normal JSON error body.
func respondStreamAgnosticError(c *gin.Context, streaming bool, err error) {
	if streaming {
		return
	}
	status, errType := statusForError(err)
	writeError(c, status, errType, err.Error())
}
