// Package gemini implements the Gemini backend: a
// direct proxy to Google's Generative Language API (or, when a Vertex
// service account is configured, Vertex AI's publisher-model endpoint),
// speaking either Gemini's native request/response schema or its
// OpenAI-compatible chat/completions schema. Unlike the Claude backends,
// Gemini responses are forwarded as opaque bytes rather than decoded and
// rewritten.
package gemini

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/Laisky/llm-gateway/internal/gatewayconfig"
	"github.com/Laisky/llm-gateway/internal/schema"
)

// Context carries the per-request routing facts the provider needs,
// extracted from the inbound path/query by the router before the body is
// read.
type Context struct {
	Model     string
	Vertex    bool
	Stream    bool
	Path      string
	Query     url.Values
	APIFormat schema.GeminiAPIFormat
}

// NewContext derives a Context for a native Gemini route from its wildcard
// path (e.g. "models/gemini-1.5-flash:streamGenerateContent") and query
// string. A Vertex model override in config takes precedence over the
// path-derived model, matching the original's "vertex config wins" rule.
func NewContext(path string, query url.Values, vertex bool) Context {
	segments := strings.Split(path, "/")
	last := segments[len(segments)-1]
	model := last
	if i := strings.Index(last, ":"); i >= 0 {
		model = last[:i]
	}
	if vertex {
		if mid := gatewayconfig.Current().Vertex.ModelID; mid != "" {
			model = mid
		}
	}
	return Context{
		Model:     model,
		Vertex:    vertex,
		Stream:    strings.Contains(path, "streamGenerateContent"),
		Path:      path,
		Query:     query,
		APIFormat: schema.GeminiFormatNative,
	}
}

// NewOpenAIContext derives a Context for the OpenAI-compatible
// chat/completions route, where model and stream come from the request
// body rather than the path.
func NewOpenAIContext(model string, stream, vertex bool) Context {
	return Context{
		Model:     model,
		Vertex:    vertex,
		Stream:    stream,
		APIFormat: schema.GeminiFormatOpenAI,
	}
}

// forwardQuery returns the inbound query parameters minus the AI-Studio
// api-key, which the caller re-attaches (AI Studio) or drops entirely
// (Vertex, which authenticates via a Bearer token instead).
func forwardQuery(q url.Values) []string {
	out := make([]string, 0, len(q)*2)
	for k, vs := range q {
		if k == "key" {
			continue
		}
		for _, v := range vs {
			out = append(out, k, v)
		}
	}
	return out
}

// safetyOffPayload is the fixed safety-settings override applied to every
// native-format request, matching GeminiRequestBody::safety_off.
var safetyOffPayload = json.RawMessage(`[
	{"category":"HARM_CATEGORY_HARASSMENT","threshold":"OFF"},
	{"category":"HARM_CATEGORY_HATE_SPEECH","threshold":"OFF"},
	{"category":"HARM_CATEGORY_SEXUALLY_EXPLICIT","threshold":"OFF"},
	{"category":"HARM_CATEGORY_DANGEROUS_CONTENT","threshold":"OFF"},
	{"category":"HARM_CATEGORY_CIVIC_INTEGRITY","threshold":"BLOCK_NONE"}
]`)

// applySafetyOff rewrites a native-format Gemini request body to disable
// all safety filtering. Any other top-level field is
// left exactly as the client sent it.
func applySafetyOff(body []byte) ([]byte, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, errors.Wrap(err, "parse gemini request body")
	}
	obj["safetySettings"] = safetyOffPayload
	buf, err := json.Marshal(obj)
	if err != nil {
		return nil, errors.Wrap(err, "marshal gemini request body")
	}
	return buf, nil
}

// nativeContentsEmpty reports whether a native-format body carries an
// empty top-level "contents" array, a malformed-but-2xx response worth
// retrying.
func nativeContentsEmpty(body []byte) bool {
	var obj struct {
		Contents []json.RawMessage `json:"contents"`
	}
	if json.Unmarshal(body, &obj) != nil {
		return false
	}
	return obj.Contents != nil && len(obj.Contents) == 0
}

// openAIChoicesEmpty reports whether an OpenAI-format body carries an empty
// top-level "choices" array.
func openAIChoicesEmpty(body []byte) bool {
	var obj struct {
		Choices []json.RawMessage `json:"choices"`
	}
	if json.Unmarshal(body, &obj) != nil {
		return false
	}
	return obj.Choices != nil && len(obj.Choices) == 0
}
