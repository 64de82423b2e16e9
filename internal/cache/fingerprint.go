// Package cache implements the response cache and the request/system-
// prompt fingerprints that key it.
package cache

import (
	"encoding/json"
	"hash/fnv"
	"sort"

	"github.com/Laisky/llm-gateway/internal/schema"
)

// requestKeys is the subset of a request body
// that determines whether two requests are cache-equivalent. Field order is
// fixed so two semantically identical requests always hash the same way.
type requestKeys struct {
	MaxTokens       int              `json:"max_tokens"`
	Messages        []schema.Message `json:"messages"`
	Model           string           `json:"model"`
	System          json.RawMessage  `json:"system,omitempty"`
	StopSequences   []string         `json:"stop_sequences,omitempty"`
	ThinkingEnabled bool             `json:"thinking"`
	TopK            *int             `json:"top_k,omitempty"`
}

// Fingerprint computes the request fingerprint used both as the response
// cache key and as the cookie affinity hint: a plain FNV-1a hash over
// canonical JSON. The hash only keys an in-process cache, so a
// cryptographic digest would buy nothing here.
func Fingerprint(p *schema.CreateMessageParams, thinkingEnabled bool) uint64 {
	stops := append([]string(nil), p.StopSequences...)
	sort.Strings(stops)

	keys := requestKeys{
		MaxTokens:       p.MaxTokens,
		Messages:        p.Messages,
		Model:           p.Model,
		System:          p.System,
		StopSequences:   stops,
		ThinkingEnabled: thinkingEnabled,
		TopK:            p.TopK,
	}

	// Marshal errors are not expected for already-validated request types;
	// fall back to hashing the zero value rather than propagating an error
	// through every caller of this otherwise pure function.
	buf, err := json.Marshal(keys)
	if err != nil {
		buf = []byte{}
	}

	h := fnv.New64a()
	_, _ = h.Write(buf)
	return h.Sum64()
}

// FingerprintBytes hashes an already-serialized request body directly. The
// Gemini provider's native and OpenAI-compatible payloads don't share a
// common Go struct the way schema.CreateMessageParams does, so rather than
// define a parallel field-subset type this hashes the canonical wire bytes
// the client sent, the same FNV-1a construction Fingerprint uses.
func FingerprintBytes(body []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(body)
	return h.Sum64()
}

// SystemPromptHash hashes only the assembled system blocks, used as the
// cookie-pool affinity hint so repeated requests sharing a large cached
// system prompt tend to land on the same upstream cookie.
func SystemPromptHash(system json.RawMessage) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(system)
	return h.Sum64()
}
