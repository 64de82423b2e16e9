package controller

import (
	"net/http"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Laisky/llm-gateway/internal/pool"
)

// watchInterval is how often the cookie watch feed pushes a fresh pool
// snapshot to each connected admin client.
const watchInterval = 5 * time.Second

var watchUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The route already sits behind AdminAuth; the admin UI may be served
	// from a different origin than the API, so the browser origin check
	// adds nothing here.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WatchCookies upgrades the connection to a websocket and pushes the cookie
// pool's valid/exhausted/invalid snapshot on connect and every
// watchInterval thereafter, so the admin UI can track pool transitions
// without polling GET /api/cookies.
func WatchCookies(cp *pool.CookiePool) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := watchUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error response.
			gmw.GetLogger(c).Warn("cookie watch upgrade failed", zap.Error(err))
			return
		}
		logger := gmw.GetLogger(c)

		// Drain client frames so pings and close handshakes are processed;
		// the feed itself is one-directional.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					conn.Close()
					return
				}
			}
		}()

		defer conn.Close()
		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()

		for {
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(cp.GetStatus()); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("cookie watch client gone", zap.Error(err))
				}
				return
			}

			select {
			case <-c.Request.Context().Done():
				return
			case <-ticker.C:
			}
		}
	}
}
