package middleware

import (
	"net/http"
	"strings"

	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/llm-gateway/common/ctxkey"
	"github.com/Laisky/llm-gateway/internal/gatewayconfig"
)

// bearerToken extracts the Authorization header's bearer credential, falling
// back to the raw header value for clients that send the secret unprefixed.
func bearerToken(c *gin.Context) string {
	auth := c.Request.Header.Get("Authorization")
	if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(auth)
}

func abortUnauthorized(c *gin.Context, msg string) {
	gmw.GetLogger(c).Warn("rejected unauthenticated request",
		zap.String("path", c.Request.URL.Path))
	c.JSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"message": msg,
			"type":    "authentication_error",
		},
	})
	c.Abort()
}

// AdminAuth gates the admin surface (/api/*) behind the configured admin
// password, compared in constant time.
func AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !gatewayconfig.Current().AdminAuth(bearerToken(c)) {
			abortUnauthorized(c, "invalid admin credential")
			return
		}
		c.Set(ctxkey.AuthPrincipal, "admin")
		c.Next()
	}
}

// UserAuth gates the inference surface behind the configured user password.
// Claude-format clients send it as X-API-Key; OpenAI-format clients send it
// as a bearer token. Both are accepted on every route.
func UserAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := gatewayconfig.Current()
		key := c.Request.Header.Get("X-API-Key")
		if key == "" {
			key = bearerToken(c)
		}
		if !cfg.UserAuth(key) {
			abortUnauthorized(c, "invalid API credential")
			return
		}
		c.Set(ctxkey.AuthPrincipal, "user")
		c.Next()
	}
}
