package retry

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/credential"
)

func jsonResp(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func TestRunSucceedsFirstTry(t *testing.T) {
	calls := 0
	resp, err := Run(context.Background(), 3, func(ctx context.Context) (*http.Response, error) {
		calls++
		return jsonResp(200, "ok"), nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestRunRetriesOnRateLimitThenSucceeds(t *testing.T) {
	calls := 0
	var gotReason credential.Reason
	resp, err := Run(context.Background(), 3, func(ctx context.Context) (*http.Response, error) {
		calls++
		if calls == 1 {
			return jsonResp(429, `{"error":{"message":{"resetsAt":1700000000},"type":"error"}}`), nil
		}
		return jsonResp(200, "ok"), nil
	}, func(reason credential.Reason) {
		gotReason = reason
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, credential.ReasonTooManyRequest, gotReason.Kind)
}

func TestRunExhaustsRetries(t *testing.T) {
	calls := 0
	_, err := Run(context.Background(), 2, func(ctx context.Context) (*http.Response, error) {
		calls++
		return jsonResp(429, `{"error":{"message":{"resetsAt":1700000000},"type":"error"}}`), nil
	}, func(credential.Reason) {})
	assert.Equal(t, 3, calls)
	require.Error(t, err)
}

func TestRunPropagatesImmediatelyOnTerminalError(t *testing.T) {
	calls := 0
	_, err := Run(context.Background(), 5, func(ctx context.Context) (*http.Response, error) {
		calls++
		return jsonResp(500, `{"error":{"message":"boom","type":"error"}}`), nil
	}, nil)
	assert.Equal(t, 1, calls)
	require.Error(t, err)
}
