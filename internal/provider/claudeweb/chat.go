package claudeweb

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/Laisky/errors/v2"
	"github.com/google/uuid"

	"github.com/Laisky/llm-gateway/internal/credential"
	"github.com/Laisky/llm-gateway/internal/gatewayconfig"
	"github.com/Laisky/llm-gateway/internal/retry"
	"github.com/Laisky/llm-gateway/internal/schema"
)

// sendChat creates a conversation, configures thinking mode, assembles and
// sends the completion request. A non-nil Reason
// means the completion POST classified to a retriable credential failure.
func (s *session) sendChat(ctx context.Context, p *schema.CreateMessageParams) (io.ReadCloser, *credential.Reason, error) {
	if s.orgUUID == "" {
		return nil, nil, errors.New("send chat: organization uuid not set")
	}

	s.convUUID = uuid.NewString()
	createBody, _ := json.Marshal(map[string]string{
		"uuid": s.convUUID,
		"name": conversationName(),
	})
	convPath := "/api/organizations/" + s.orgUUID + "/chat_conversations"
	if err := s.postJSON(ctx, convPath, createBody, nil); err != nil {
		return nil, nil, errors.Wrap(err, "create conversation")
	}

	if p.Thinking != nil && s.isPro() {
		settingsBody, _ := json.Marshal(map[string]any{
			"settings": map[string]any{"paprika_mode": "extended"},
		})
		settingsPath := convPath + "/" + s.convUUID
		_ = s.putJSON(ctx, settingsPath, settingsBody)
	}

	reqBody, images, err := s.transformRequest(p)
	if err != nil {
		return nil, nil, err
	}
	reqBody.Files = s.uploadImages(ctx, images)

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, nil, errors.Wrap(err, "marshal completion request")
	}

	completionPath := convPath + "/" + s.convUUID + "/completion"
	url := s.endpoint + completionPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, errors.Wrap(err, "build completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cookie", s.cookie.Cookie.String())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, nil, errors.Wrap(err, "send completion request")
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.Body, nil, nil
	}

	body, readErr := retry.ReadBody(resp)
	if readErr != nil {
		return nil, nil, readErr
	}
	cls := retry.ClassifyResponse(resp.StatusCode, body)
	if cls.HasReason {
		reason := cls.Reason
		return nil, &reason, cls.PropagateErr
	}
	return nil, nil, cls.PropagateErr
}

// cleanupConversation deletes the conversation, or renames it when
// preserve_chats is configured.
func (s *session) cleanupConversation(ctx context.Context) error {
	path := "/api/organizations/" + s.orgUUID + "/chat_conversations/" + s.convUUID

	if gatewayconfig.Current().PreserveChats {
		body, _ := json.Marshal(map[string]string{"name": conversationName() + "-closed"})
		return s.putJSON(ctx, path, body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.endpoint+path, nil)
	if err != nil {
		return errors.Wrap(err, "build delete conversation request")
	}
	req.Header.Set("Cookie", s.cookie.Cookie.String())
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "delete conversation request")
	}
	defer resp.Body.Close()
	return nil
}

func (s *session) postJSON(ctx context.Context, path string, body []byte, _ any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build post request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", s.cookie.Cookie.String())
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "post request")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("post %s: status %d", path, resp.StatusCode)
	}
	return nil
}

func (s *session) putJSON(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build put request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", s.cookie.Cookie.String())
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "put request")
	}
	defer resp.Body.Close()
	return nil
}
