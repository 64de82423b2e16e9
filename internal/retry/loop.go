package retry

import (
	"context"
	"net/http"

	"github.com/Laisky/errors/v2"

	"github.com/Laisky/llm-gateway/internal/credential"
	"github.com/Laisky/llm-gateway/internal/gwerror"
)

// Attempt performs one upstream call. It returns a transport error (no
// response at all) separately from an HTTP-level failure, which is
// signaled by a non-2xx status on the returned response.
type Attempt func(ctx context.Context) (*http.Response, error)

// OnReason is called once per failed attempt that classifies to a
// credential Reason, so the caller can return its current credential to
// its pool actor with that Reason before the next attempt acquires a new
// one.
type OnReason func(reason credential.Reason)

// Run drives the bounded retry loop: maxRetries+1
// total attempts, rotating away from whatever credential produced a
// retriable failure between attempts. It returns the first successful
// response, or the terminal propagated error — either an immediately
// non-retriable classification, or gwerror.ErrTooManyRetries wrapping the
// last retriable failure once the bound is exhausted.
func Run(ctx context.Context, maxRetries int, attempt Attempt, onReason OnReason) (*http.Response, error) {
	var lastErr error
	for i := 0; i < maxRetries+1; i++ {
		resp, err := attempt(ctx)
		if err != nil {
			cls := ClassifyTransportError(err)
			lastErr = cls.PropagateErr
			if !cls.Retriable {
				return nil, lastErr
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		body, readErr := ReadBody(resp)
		if readErr != nil {
			return nil, readErr
		}

		cls := ClassifyResponse(resp.StatusCode, body)
		if cls.HasReason && onReason != nil {
			onReason(cls.Reason)
		}
		lastErr = cls.PropagateErr
		if !cls.Retriable {
			return nil, lastErr
		}
	}
	return nil, errors.Wrap(gwerror.ErrTooManyRetries, lastErr.Error())
}
