// Package router wires the gateway's HTTP surface onto the controller
// package, grouping routes by auth requirement under shared middleware
// chains.
package router

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/llm-gateway/controller"
	"github.com/Laisky/llm-gateway/internal/cache"
	"github.com/Laisky/llm-gateway/internal/pool"
	"github.com/Laisky/llm-gateway/internal/provider/claudecode"
	"github.com/Laisky/llm-gateway/internal/provider/claudeweb"
	"github.com/Laisky/llm-gateway/internal/provider/gemini"
	"github.com/Laisky/llm-gateway/middleware"
)

// Gateway bundles every backend the router dispatches onto: the two
// credential pools, the three providers built on top of them, and the
// shared response cache.
type Gateway struct {
	Cookies *pool.CookiePool
	Keys    *pool.KeyPool

	ClaudeWeb  *claudeweb.Provider
	ClaudeCode *claudecode.Provider
	Gemini     *gemini.Provider

	ResponseCache *cache.ResponseCache
}

// SetAPIRouter mounts the inference routes, the Gemini pass-through, and
// the admin credential-management surface.
func SetAPIRouter(router *gin.Engine, gw *Gateway) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	inference := router.Group("/")
	inference.Use(middleware.UserAuth())
	{
		inference.POST("/v1/messages", controller.MessagesHandler(gw.ClaudeWeb, gw.ResponseCache, false))
		inference.POST("/v1/chat/completions", controller.ChatCompletionsHandler(gw.ClaudeWeb, gw.ResponseCache, false))
		inference.POST("/code/v1/messages", controller.MessagesHandler(gw.ClaudeCode, nil, true))
		inference.POST("/code/v1/chat/completions", controller.ChatCompletionsHandler(gw.ClaudeCode, nil, true))
		inference.POST("/gemini/*path", controller.GeminiHandler(gw.Gemini))
	}

	// Compression stays off the inference group: gzip buffering breaks SSE
	// flushes, and the websocket watch route can't be wrapped either.
	admin := router.Group("/api")
	admin.Use(middleware.AdminAuth(), gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/cookies/watch"})))
	{
		admin.GET("/version", controller.GetVersion)
		admin.GET("/auth", controller.GetAuth)
		admin.GET("/config", controller.GetConfig)
		admin.GET("/cookies", controller.GetCookies(gw.Cookies))
		admin.GET("/cookies/watch", controller.WatchCookies(gw.Cookies))
		admin.GET("/keys", controller.GetKeys(gw.Keys))
		admin.POST("/cookie", controller.PostCookie(gw.Cookies))
		admin.DELETE("/cookie", controller.DeleteCookie(gw.Cookies))
		admin.POST("/key", controller.PostKey(gw.Keys))
		admin.DELETE("/key", controller.DeleteKey(gw.Keys))
	}
}
