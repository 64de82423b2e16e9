package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// DefaultLogBodyLimit caps request-body previews in debug logs.
	DefaultLogBodyLimit = 4096
	// LogTruncationSuffix marks truncated log values.
	LogTruncationSuffix = "...[truncated]"

	// Strings at least this long with a base64-shaped prefix are assumed
	// to be binary payloads (inline images, audio) and redacted outright.
	base64RedactionThreshold = 256
	base64SampleSize         = 256
)

// SanitizePayloadForLogging produces a log-safe preview of a request body:
// JSON bodies are walked and every string leaf is truncated or, for inline
// base64 blobs and data URLs, replaced with a length placeholder; non-JSON
// bodies are truncated wholesale. Returns the preview and whether the
// preview itself had to be cut to fit limit.
func SanitizePayloadForLogging(body []byte, limit int) ([]byte, bool) {
	if limit <= 0 {
		return body, false
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		var payload any
		if json.Unmarshal(body, &payload) == nil {
			if preview, err := json.Marshal(sanitizeValue(payload, limit)); err == nil {
				if len(preview) > limit {
					return truncateWithSuffix(preview, limit), true
				}
				return preview, false
			}
		}
	}

	if len(body) > limit {
		return body[:limit], true
	}
	return body, false
}

// sanitizeValue walks a decoded JSON tree, sanitizing every string leaf.
func sanitizeValue(value any, limit int) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			out[key] = sanitizeValue(inner, limit)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = sanitizeValue(inner, limit)
		}
		return out
	case string:
		return sanitizeString(v, limit)
	default:
		return v
	}
}

func sanitizeString(value string, limit int) string {
	if value == "" {
		return value
	}
	if redacted, ok := redactDataURL(value); ok {
		return capString(redacted, limit)
	}
	if looksLikeBase64(value) {
		return capString(fmt.Sprintf("[base64 len=%d]", len(value)), limit)
	}
	return capString(value, limit)
}

// redactDataURL keeps a data URL's media-type header but replaces the
// base64 payload with its length, so an inline image never floods a log
// line.
func redactDataURL(value string) (string, bool) {
	lower := strings.ToLower(value)
	if !strings.HasPrefix(lower, "data:") {
		return "", false
	}
	idx := strings.Index(lower, "base64,")
	if idx < 0 {
		return "", false
	}
	header := value[:idx+len("base64,")]
	payloadLen := len(value) - len(header)
	return header + fmt.Sprintf("[truncated base64 len=%d]", payloadLen), true
}

// looksLikeBase64 samples the head of a long whitespace-free string for the
// base64 (standard and URL-safe) alphabet.
func looksLikeBase64(value string) bool {
	if len(value) < base64RedactionThreshold {
		return false
	}
	if strings.ContainsAny(value, " \n\r\t") {
		return false
	}
	sample := value
	if len(sample) > base64SampleSize {
		sample = sample[:base64SampleSize]
	}
	for i := 0; i < len(sample); i++ {
		switch ch := sample[i]; {
		case ch >= 'A' && ch <= 'Z', ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
		case ch == '+', ch == '/', ch == '=', ch == '-', ch == '_':
		default:
			return false
		}
	}
	return true
}

// capString bounds a string at limit, marking the cut with
// LogTruncationSuffix when it happens.
func capString(value string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(value) <= limit {
		return value
	}
	if limit <= len(LogTruncationSuffix) {
		return LogTruncationSuffix[:limit]
	}
	return value[:limit-len(LogTruncationSuffix)] + LogTruncationSuffix
}

// truncateWithSuffix bounds a byte slice at limit, ending with the
// truncation marker.
func truncateWithSuffix(data []byte, limit int) []byte {
	suffix := []byte(LogTruncationSuffix)
	if limit <= len(suffix) {
		return append([]byte{}, suffix[:limit]...)
	}
	out := make([]byte, 0, limit)
	out = append(out, data[:limit-len(suffix)]...)
	return append(out, suffix...)
}
