package claudeweb

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/Laisky/llm-gateway/common/logger"
	"github.com/Laisky/llm-gateway/internal/schema"
)

// imageFileName picks an upload filename by media type.
func imageFileName(mediaType string) string {
	switch strings.ToLower(mediaType) {
	case "image/png":
		return "image.png"
	case "image/jpeg", "image/jpg":
		return "image.jpg"
	case "image/gif":
		return "image.gif"
	case "image/webp":
		return "image.webp"
	case "application/pdf":
		return "document.pdf"
	default:
		return "file"
	}
}

// uploadImages uploads each base64 image as a multipart part, returning the
// uploaded file UUIDs in order; an image that fails to decode or upload is
// skipped with a warning, matching the source's best-effort filter_map.
func (s *session) uploadImages(ctx context.Context, images []schema.ImageSource) []string {
	var fileUUIDs []string
	for _, img := range images {
		uuid, err := s.uploadImage(ctx, img)
		if err != nil {
			logger.Logger.Warn("failed to upload claude web image attachment", zap.Error(err))
			continue
		}
		fileUUIDs = append(fileUUIDs, uuid)
	}
	return fileUUIDs
}

func (s *session) uploadImage(ctx context.Context, img schema.ImageSource) (string, error) {
	data, err := base64.StdEncoding.DecodeString(img.Data)
	if err != nil {
		return "", errors.Wrap(err, "decode base64 image")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", imageFileName(img.MediaType))
	if err != nil {
		return "", errors.Wrap(err, "create multipart form file")
	}
	if _, err := part.Write(data); err != nil {
		return "", errors.Wrap(err, "write image bytes")
	}
	if err := writer.Close(); err != nil {
		return "", errors.Wrap(err, "close multipart writer")
	}

	url := s.endpoint + "/api/" + s.orgUUID + "/upload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", errors.Wrap(err, "build upload request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Cookie", s.cookie.Cookie.String())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "upload image request")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Errorf("upload image: status %d", resp.StatusCode)
	}

	var out struct {
		FileUUID string `json:"file_uuid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode upload response")
	}
	return out.FileUUID, nil
}
