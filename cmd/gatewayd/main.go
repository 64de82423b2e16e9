// Command gatewayd runs the LLM gateway: it loads configuration, restores
// the persisted credential pools, wires the providers and HTTP surface, and
// serves until interrupted.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v7"
	glog "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Laisky/llm-gateway/common/client"
	"github.com/Laisky/llm-gateway/common/logger"
	"github.com/Laisky/llm-gateway/common/telemetry"
	"github.com/Laisky/llm-gateway/internal/cache"
	"github.com/Laisky/llm-gateway/internal/gatewayconfig"
	"github.com/Laisky/llm-gateway/internal/pool"
	"github.com/Laisky/llm-gateway/internal/provider/claudecode"
	"github.com/Laisky/llm-gateway/internal/provider/claudeweb"
	"github.com/Laisky/llm-gateway/internal/provider/gemini"
	"github.com/Laisky/llm-gateway/internal/store"
	"github.com/Laisky/llm-gateway/middleware"
	"github.com/Laisky/llm-gateway/monitor"
	"github.com/Laisky/llm-gateway/router"
)

const (
	defaultConfigPath = "config.json"
	defaultStatePath  = "credentials.json"

	shutdownTimeout   = 10 * time.Second
	poolStatsInterval = 30 * time.Second
)

func main() {
	ctx := context.Background()

	logLevel := os.Getenv("CLEWDR_LOG_LEVEL")
	if logLevel == "" {
		logLevel = glog.LevelInfo.String()
	}
	if err := logger.Setup(logLevel); err != nil {
		panic(err)
	}

	configPath := os.Getenv("CLEWDR_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg, err := gatewayconfig.Load(configPath)
	if err != nil {
		logger.Logger.Fatal("failed to load config", zap.Error(err))
	}

	logger.Logger.Info("llm gateway starting",
		zap.String("version", telemetry.Version),
		zap.String("config", configPath))

	if os.Getenv("GIN_MODE") != gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	bundle, err := telemetry.InitOpenTelemetry(ctx)
	if err != nil {
		logger.Logger.Fatal("failed to initialize OpenTelemetry", zap.Error(err))
	}
	if err := monitor.Init(); err != nil {
		logger.Logger.Fatal("failed to initialize metrics", zap.Error(err))
	}

	client.Init()

	// Restore the credential pools from the persisted state file and keep
	// it current: every pool transition rewrites the file.
	statePath := os.Getenv("CLEWDR_STATE_FILE")
	if statePath == "" {
		statePath = defaultStatePath
	}
	st := store.New(statePath)
	seed, err := st.Load()
	if err != nil {
		logger.Logger.Fatal("failed to load credential state", zap.Error(err))
	}

	cookies := pool.NewCookiePool(seed.Cookies, seed.WastedCookie)
	keys := pool.NewKeyPool(seed.GeminiKeys)
	defer cookies.Close()
	defer keys.Close()

	persist := func() {
		cs := cookies.GetStatus()
		state := store.State{
			Cookies:      append(cs.Valid, cs.Exhausted...),
			WastedCookie: cs.Invalid,
			GeminiKeys:   keys.GetStatus(),
		}
		if err := st.Save(state); err != nil {
			logger.Logger.Error("failed to persist credential state", zap.Error(err))
		}
	}
	cookies.SetOnChange(persist)
	keys.SetOnChange(persist)

	stopStats := monitor.StartPoolStatsLoop(poolStatsInterval, func() monitor.PoolSizes {
		cs := cookies.GetStatus()
		return monitor.PoolSizes{
			CookiesValid:     len(cs.Valid),
			CookiesExhausted: len(cs.Exhausted),
			CookiesInvalid:   len(cs.Invalid),
			GeminiKeys:       len(keys.GetStatus()),
		}
	})
	defer stopStats()

	gw := &router.Gateway{
		Cookies:       cookies,
		Keys:          keys,
		ClaudeWeb:     claudeweb.New(cookies),
		ClaudeCode:    claudecode.New(cookies),
		Gemini:        gemini.New(keys),
		ResponseCache: cache.NewResponseCache(cache.DefaultCapacity, cache.DefaultTTL),
	}

	server := gin.New()
	server.RedirectTrailingSlash = false
	server.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLevel(logLevel),
			
		),
	)
	server.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:    []string{"Authorization", "Content-Type", "X-API-Key", "anthropic-version", "anthropic-beta"},
		MaxAge:          12 * time.Hour,
	}))
	if cfg.OpenTelemetryEnabled {
		server.Use(otelgin.Middleware(cfg.OpenTelemetryServiceName))
	}
	server.Use(middleware.Metrics())

	if cfg.PrometheusEnabled {
		server.GET("/metrics", middleware.AdminAuth(), gin.WrapH(monitor.Prometheus.Handler()))
	}

	router.SetAPIRouter(server, gw)

	addr := net.JoinHostPort(cfg.IP, strconv.Itoa(cfg.Port))
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server,
		// No global write timeout: completions stream for minutes. Idle
		// upstreams are bounded by the stream pipeline's own timeouts.
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Logger.Info("server started", zap.String("address", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		logger.Logger.Fatal("HTTP server failed", zap.Error(err))
	case <-sigCtx.Done():
	}

	logger.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := bundle.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("failed to shut down telemetry", zap.Error(err))
	}
}
