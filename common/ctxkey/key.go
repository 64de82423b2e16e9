// Package ctxkey centralizes the gin.Context keys the gateway stashes
// per-request state under, so handlers and middleware share named
// constants rather than ad hoc string literals.
package ctxkey

const (
	// RequestBody caches the raw request body bytes so handlers can re-read
	// a body already consumed by an earlier UnmarshalBodyReusable call.
	// Set in: common/gin.go GetRequestBody.
	RequestBody = "gateway_request_body"

	// ClientRequestPayloadLogged marks that the inbound payload has already
	// been logged once for this request, so retried unmarshal calls don't
	// duplicate the debug log line.
	// Set in: common/gin.go LogClientRequestPayload.
	ClientRequestPayloadLogged = "gateway_client_request_payload_logged"

	// ClaudeContext holds the *schema.ClaudeContext the preprocessor
	// produced for the request: stream flag, API format, merged stop
	// sequences, system prompt hash, and the locally estimated input token
	// count, for any later middleware that needs the parsed view.
	// Set in: controller completion handlers after preprocessing.
	ClaudeContext = "gateway_claude_context"

	// AuthPrincipal records which static secret (user or admin) authenticated
	// the request, for logging.
	// Set in: middleware/auth.go.
	AuthPrincipal = "gateway_auth_principal"
)
