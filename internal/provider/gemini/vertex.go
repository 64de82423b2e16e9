package gemini

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Laisky/errors/v2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"

	"github.com/Laisky/llm-gateway/internal/gatewayconfig"
)

// vertexScope is the single OAuth scope the Vertex publisher-model API
// needs; the original hand-rolls a refresh_token POST against
// oauth2.googleapis.com, which golang.org/x/oauth2/google's JWT config
// already does (including token caching and renewal), so the gateway uses
// that instead of reimplementing the token dance.
const vertexScope = "https://www.googleapis.com/auth/cloud-platform"

// vertexClient builds an HTTP client that signs requests with a
// service-account access token minted from the configured credential JSON.
// Without
// an explicit credential the client falls back to application-default
// credentials, for deployments running on GCP with an ambient identity.
func vertexClient(ctx context.Context) (*http.Client, error) {
	cfg := gatewayconfig.Current()
	if !cfg.Vertex.Enabled() {
		return nil, errors.New("vertex credential not configured")
	}

	if len(cfg.Vertex.CredentialJSON) > 0 {
		jwtCfg, err := google.JWTConfigFromJSON(cfg.Vertex.CredentialJSON, vertexScope)
		if err != nil {
			return nil, errors.Wrap(err, "parse vertex service account credential")
		}
		return jwtCfg.Client(ctx), nil
	}

	client, _, err := htransport.NewClient(ctx, option.WithScopes(vertexScope))
	if err != nil {
		return nil, errors.Wrap(err, "resolve application-default vertex credentials")
	}
	return client, nil
}

// vertexEndpoint builds the publisher-model URL for the native Gemini
// schema.
func vertexEndpoint(projectID, model string, stream bool) string {
	method := "generateContent"
	if stream {
		method = "streamGenerateContent"
	}
	return fmt.Sprintf(
		"https://aiplatform.googleapis.com/v1/projects/%s/locations/global/publishers/google/models/%s:%s",
		projectID, model, method,
	)
}

// vertexOpenAIEndpoint builds the OpenAI-compatible chat/completions URL
// Vertex exposes.
func vertexOpenAIEndpoint(projectID string) string {
	return fmt.Sprintf(
		"https://aiplatform.googleapis.com/v1beta1/projects/%s/locations/global/endpoints/openapi/chat/completions",
		projectID,
	)
}
