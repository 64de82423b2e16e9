package client

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/gatewayconfig"
)

func TestInit(t *testing.T) {
	gatewayconfig.Publish(&gatewayconfig.GatewayConfig{})
	Init()

	require.NotNil(t, UserContentRequestHTTPClient)
	require.NotNil(t, UserContentRequestHTTPClient.Transport)
	require.Greater(t, UserContentRequestHTTPClient.Timeout.Seconds(), 0.0)

	if transport, ok := UserContentRequestHTTPClient.Transport.(*http.Transport); ok {
		require.NotNil(t, transport.TLSNextProto)
		require.Empty(t, transport.TLSNextProto)
	}

	require.NotNil(t, HTTPClient)
	require.NotNil(t, ImpatientHTTPClient)
}

func TestUserContentRequestHTTPClient_SSRF(t *testing.T) {
	gatewayconfig.Publish(&gatewayconfig.GatewayConfig{})
	Init()

	_, err := UserContentRequestHTTPClient.Get("http://127.0.0.1:12345")
	require.Error(t, err)
	require.Contains(t, err.Error(), "blocked private address")

	_, err = UserContentRequestHTTPClient.Get("http://localhost:12345")
	require.Error(t, err)
	require.Contains(t, err.Error(), "blocked private address")
}

func TestUserContentRequestHTTPClient_ProxyExemption(t *testing.T) {
	gatewayconfig.Publish(&gatewayconfig.GatewayConfig{Proxy: "http://127.0.0.1:8080"})
	Init()

	// The dialer allows connecting to the configured proxy host itself even
	// though it is a private address; the failure here should be a plain
	// connection error (nothing listening), not the SSRF guard.
	_, err := UserContentRequestHTTPClient.Get("http://example.com")
	require.Error(t, err)
	require.NotContains(t, err.Error(), "blocked private address")

	gatewayconfig.Publish(&gatewayconfig.GatewayConfig{})
	Init()
}
