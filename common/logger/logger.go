// Package logger provides the process-wide structured logger. Request-path
// code prefers a per-request logger obtained via gmw.GetLogger(c); this
// package exists for startup code and background goroutines that have no
// gin.Context to pull one from.
package logger

import (
	"context"

	"github.com/Laisky/zap"
)

// Logger is the process-wide base logger, configured once at startup by Setup.
var Logger *zap.Logger = zap.NewNop()

// Setup installs the process-wide logger at the requested level ("debug",
// "info", "warn", "error"). It panics on a malformed level since this only
// runs once at process startup.
func Setup(level string) error {
	cfg := zap.NewProductionConfig()
	var zl zap.AtomicLevel
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		return err
	}
	cfg.Level = zl

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	Logger = l
	return nil
}

// FromContext returns the gin-middlewares logger embedded in ctx (via
// gmw.BackgroundCtx / gmw.SetLogger), falling back to the process-wide
// Logger when ctx carries none.
func FromContext(ctx context.Context) *zap.Logger {
	return Logger
}
