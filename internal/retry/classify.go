// Package retry classifies upstream HTTP failures into credential.Reason
// values or opaque propagated errors, and drives the bounded retry loop
// providers run across cookie/key acquisitions.
package retry

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/Laisky/llm-gateway/internal/credential"
	"github.com/Laisky/llm-gateway/internal/gwerror"
)

// innerHTTPError mirrors the upstream JSON error body shape:
// {"error":{"message":..., "type":"..."}}. message is usually a string but
// Claude Web sometimes nests a rate-limit object under it, so it is decoded
// as json.RawMessage and only interpreted where needed.
type innerHTTPError struct {
	Error struct {
		Message json.RawMessage `json:"message"`
		Type    string          `json:"type"`
	} `json:"error"`
}

// Classification is the outcome of inspecting one upstream HTTP response.
type Classification struct {
	// Retriable reports whether the caller should rotate credentials and
	// retry, rather than propagate immediately.
	Retriable bool
	// Reason is non-zero-kind when the credential itself should be marked
	// exhausted/invalid before the retry (cookie or key pools alike reuse
	// credential.Reason's shape for this purpose).
	Reason credential.Reason
	// HasReason reports whether Reason should be applied to the credential
	// at all (a bare transport/5xx failure carries no reason).
	HasReason bool
	// PropagateErr is set when the caller must stop retrying and return
	// this error to the client as-is.
	PropagateErr error
}

// ClassifyResponse inspects a completed (non-2xx) HTTP response and decides
// whether to retry, what Reason (if any) to attach to the credential that
// produced it, and what error to propagate if retries are exhausted or the
// failure is immediately terminal. body is the already-read response body.
func ClassifyResponse(status int, body []byte) Classification {
	if status == http.StatusFound || status == http.StatusTemporaryRedirect {
		return Classification{
			PropagateErr: errors.Wrap(gwerror.ErrCloudflareBlocked, "upstream returned redirect"),
		}
	}

	var parsed innerHTTPError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Classification{
			PropagateErr: gwerror.NewUpstreamHTTP(status, string(body)),
		}
	}

	var msgStr string
	_ = json.Unmarshal(parsed.Error.Message, &msgStr)

	if status == http.StatusBadRequest && msgStr == "This organization has been disabled." {
		return Classification{
			Retriable: true,
			Reason:    credential.Disabled(),
			HasReason: true,
		}
	}

	if status == http.StatusTooManyRequests {
		if resetsAt, ok := parseResetsAt(parsed.Error.Message); ok {
			return Classification{
				Retriable: true,
				Reason:    credential.TooManyRequest(resetsAt),
				HasReason: true,
			}
		}
	}

	return Classification{
		PropagateErr: gwerror.NewUpstreamHTTP(status, string(body)),
	}
}

// parseResetsAt extracts a "resetsAt" epoch-seconds field from a raw
// message payload, which may either be a bare string/number or (on 429s)
// a nested object carrying resetsAt alongside other rate-limit metadata.
func parseResetsAt(raw json.RawMessage) (int64, bool) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, false
	}
	v, ok := obj["resetsAt"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case string:
		t, err := time.Parse(time.RFC3339, n)
		if err != nil {
			return 0, false
		}
		return t.Unix(), true
	default:
		return 0, false
	}
}

// ClassifyTransportError wraps a low-level dial/TLS/timeout failure (no HTTP
// response at all) as a retriable transport error with no credential
// Reason attached.
func ClassifyTransportError(err error) Classification {
	return Classification{
		Retriable:    true,
		PropagateErr: errors.Wrap(gwerror.ErrTransport, err.Error()),
	}
}

// ReadBody drains and closes an HTTP response body, returning its bytes.
// Centralized here since every provider's retry loop needs the body read
// before status-based classification can run.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	return b, nil
}
