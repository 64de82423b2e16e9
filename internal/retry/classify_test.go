package retry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/credential"
)

func TestClassifyResponseCloudflare(t *testing.T) {
	cls := ClassifyResponse(302, nil)
	assert.False(t, cls.Retriable)
	assert.Error(t, cls.PropagateErr)
}

func TestClassifyResponseDisabled(t *testing.T) {
	body := []byte(`{"error":{"message":"This organization has been disabled.","type":"error"}}`)
	cls := ClassifyResponse(400, body)
	require.True(t, cls.Retriable)
	require.True(t, cls.HasReason)
	assert.Equal(t, credential.ReasonDisabled, cls.Reason.Kind)
}

func TestClassifyResponseRateLimit(t *testing.T) {
	body := []byte(`{"error":{"message":{"resetsAt":1700000000,"type":"rate_limit"},"type":"error"}}`)
	cls := ClassifyResponse(429, body)
	require.True(t, cls.Retriable)
	require.True(t, cls.HasReason)
	assert.Equal(t, credential.ReasonTooManyRequest, cls.Reason.Kind)
	assert.EqualValues(t, 1700000000, cls.Reason.At)
}

func TestClassifyResponseOtherError(t *testing.T) {
	body := []byte(`{"error":{"message":"internal server error","type":"error"}}`)
	cls := ClassifyResponse(500, body)
	assert.False(t, cls.Retriable)
	assert.False(t, cls.HasReason)
	assert.Error(t, cls.PropagateErr)
}

func TestClassifyTransportError(t *testing.T) {
	cls := ClassifyTransportError(assert.AnError)
	assert.True(t, cls.Retriable)
	assert.Error(t, cls.PropagateErr)
}
