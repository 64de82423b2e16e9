// Package gwerror declares the gateway's sentinel error kinds. Soft kinds
// (TestMessage, CacheFound) are short-circuits the outermost handler
// converts into ordinary responses; the rest surface to the client or drive
// a retry loop. All are compared with errors.Is after wrapping via
// github.com/Laisky/errors/v2.
package gwerror

import "github.com/Laisky/errors/v2"

var (
	// ErrNoCookieAvailable is returned by the cookie actor when the valid
	// deque is empty at dispatch time.
	ErrNoCookieAvailable = errors.New("no cookie available")
	// ErrNoKeyAvailable is returned by the key actor when the valid deque
	// is empty at dispatch time.
	ErrNoKeyAvailable = errors.New("no key available")
	// ErrNotFound is returned by Delete when the credential is absent from
	// every set.
	ErrNotFound = errors.New("credential not found")
	// ErrTestMessage is a soft short-circuit: the canned liveness-ping
	// response has already been written.
	ErrTestMessage = errors.New("test message short-circuit")
	// ErrCacheFound is a soft short-circuit: a cached response was served.
	ErrCacheFound = errors.New("cache hit short-circuit")
	// ErrTooManyRetries is returned when the retry loop exhausts its bound.
	ErrTooManyRetries = errors.New("too many retries")
	// ErrPadtxtTooShort is returned when the configured padding corpus is
	// smaller than the shortfall needed to reach the minimum prompt length.
	ErrPadtxtTooShort = errors.New("padding corpus too short")
	// ErrCloudflareBlocked marks an upstream 302, interpreted as an
	// edge-network challenge page rather than a usable response.
	ErrCloudflareBlocked = errors.New("blocked by upstream edge network")
	// ErrTransport marks a retriable low-level transport failure (dial,
	// TLS, timeout) as opposed to a classified HTTP status.
	ErrTransport = errors.New("upstream transport error")
)

// Reason mirrors internal/credential.Reason without importing it, so this
// package stays a dependency-free leaf; InvalidCookie carries the string
// form of the reason for logging/propagation.
type InvalidCookieError struct {
	Reason string
}

func (e *InvalidCookieError) Error() string {
	return "invalid cookie: " + e.Reason
}

// NewInvalidCookie wraps a pool Reason's string form as an InvalidCookie error.
func NewInvalidCookie(reason string) error {
	return &InvalidCookieError{Reason: reason}
}

// BadRequestError carries a client-facing validation failure message.
type BadRequestError struct {
	Msg string
}

func (e *BadRequestError) Error() string { return e.Msg }

// NewBadRequest builds a BadRequestError.
func NewBadRequest(msg string) error {
	return &BadRequestError{Msg: msg}
}

// UpstreamHTTPError carries a passed-through upstream HTTP failure.
type UpstreamHTTPError struct {
	Status int
	Body   string
}

func (e *UpstreamHTTPError) Error() string {
	return errors.Errorf("upstream http %d: %s", e.Status, e.Body).Error()
}

// NewUpstreamHTTP builds an UpstreamHTTPError.
func NewUpstreamHTTP(status int, body string) error {
	return &UpstreamHTTPError{Status: status, Body: body}
}
