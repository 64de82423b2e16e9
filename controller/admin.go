package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Laisky/llm-gateway/common"
	"github.com/Laisky/llm-gateway/common/telemetry"
	"github.com/Laisky/llm-gateway/internal/credential"
	"github.com/Laisky/llm-gateway/internal/gatewayconfig"
	"github.com/Laisky/llm-gateway/internal/gwerror"
	"github.com/Laisky/llm-gateway/internal/pool"
)

// GetVersion reports the running build version, unauthenticated callers
// never see this — the route sits behind AdminAuth.
func GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": telemetry.Version})
}

// GetAuth is a no-op handshake: reaching this handler at all means
// AdminAuth already accepted the caller's credential.
func GetAuth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// redactedConfig is the subset of GatewayConfig safe to hand back to an
// admin client: secrets (passwords, the Vertex service-account key) are
// never echoed back over the wire.
type redactedConfig struct {
	IP                  string `json:"ip"`
	Port                int    `json:"port"`
	MaxRetries          int    `json:"max_retries"`
	PreserveChats       bool   `json:"preserve_chats"`
	WebSearch           bool   `json:"web_search"`
	UseRealRoles        bool   `json:"use_real_roles"`
	CacheResponseFanout int    `json:"cache_response_fanout"`
	VertexEnabled       bool   `json:"vertex_enabled"`
	OpenTelemetryOn     bool   `json:"otel_enabled"`
}

// GetConfig returns the current configuration snapshot, with credentials
// and the Vertex service-account blob redacted.
func GetConfig(c *gin.Context) {
	cfg := gatewayconfig.Current()
	c.JSON(http.StatusOK, redactedConfig{
		IP:                  cfg.IP,
		Port:                cfg.Port,
		MaxRetries:          cfg.MaxRetries,
		PreserveChats:       cfg.PreserveChats,
		WebSearch:           cfg.WebSearch,
		UseRealRoles:        cfg.UseRealRoles,
		CacheResponseFanout: cfg.CacheResponseFanout,
		VertexEnabled:       cfg.Vertex.Enabled(),
		OpenTelemetryOn:     cfg.OpenTelemetryEnabled,
	})
}

// GetCookies returns the cookie pool's valid/exhausted/invalid snapshot.
func GetCookies(cp *pool.CookiePool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, cp.GetStatus())
	}
}

// GetKeys returns the Gemini key pool's snapshot.
func GetKeys(kp *pool.KeyPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, kp.GetStatus())
	}
}

type cookieRequest struct {
	Cookie    string `json:"cookie"`
	ResetTime *int64 `json:"reset_time,omitempty"`
}

// PostCookie submits a new cookie to the pool.
func PostCookie(cp *pool.CookiePool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cookieRequest
		if err := common.UnmarshalBodyReusable(c, &req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
			return
		}
		cs, err := credential.NewCookieStatus(req.Cookie, req.ResetTime)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
			return
		}
		cp.Submit(cs)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// DeleteCookie removes a cookie from every set it could be in.
func DeleteCookie(cp *pool.CookiePool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cookieRequest
		if err := common.UnmarshalBodyReusable(c, &req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
			return
		}
		cs, err := credential.NewCookieStatus(req.Cookie, nil)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
			return
		}
		if err := cp.Delete(cs); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, gwerror.ErrNotFound) {
				status = http.StatusNotFound
			}
			writeError(c, status, "not_found", err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

type keyRequest struct {
	Key string `json:"key"`
}

// PostKey submits a new Gemini key to the pool.
func PostKey(kp *pool.KeyPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req keyRequest
		if err := common.UnmarshalBodyReusable(c, &req); err != nil || req.Key == "" {
			writeError(c, http.StatusBadRequest, "invalid_request_error", "key is required")
			return
		}
		kp.Submit(credential.NewKeyStatus(req.Key))
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// DeleteKey removes a Gemini key from the pool.
func DeleteKey(kp *pool.KeyPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req keyRequest
		if err := common.UnmarshalBodyReusable(c, &req); err != nil || req.Key == "" {
			writeError(c, http.StatusBadRequest, "invalid_request_error", "key is required")
			return
		}
		if err := kp.Delete(credential.NewKeyStatus(req.Key)); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, gwerror.ErrNotFound) {
				status = http.StatusNotFound
			}
			writeError(c, status, "not_found", err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
