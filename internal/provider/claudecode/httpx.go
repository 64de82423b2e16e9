package claudecode

import (
	"context"
	"io"
	"net/http"

	"github.com/Laisky/errors/v2"
)

// doGet issues a GET against s.endpoint with the session cookie attached;
// every call carries the cookie regardless of which Anthropic surface is
// being hit.
func (s *session) doGet(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build get request")
	}
	req.Header.Set("Cookie", s.cookie.Cookie.String())
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send get request")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, errors.Errorf("get %s: status %d", path, resp.StatusCode)
	}
	return resp.Body, nil
}
