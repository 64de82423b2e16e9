package monitor

import (
	"time"

	"github.com/Laisky/llm-gateway/internal/gatewayconfig"
	"github.com/Laisky/llm-gateway/monitor/otel"
	"github.com/Laisky/llm-gateway/monitor/prometheus"
)

// Prometheus is the Prometheus recorder installed by Init when enabled,
// kept so the caller can mount its scrape Handler on the admin surface.
var Prometheus *prometheus.Recorder

// Init builds the process-wide metrics recorder from the current
// configuration snapshot: Prometheus, OpenTelemetry, both fanned out
// through a MultiRecorder, or the no-op recorder when neither is enabled.
func Init() error {
	cfg := gatewayconfig.Current()

	var recorders []Recorder

	if cfg.PrometheusEnabled {
		Prometheus = prometheus.New()
		recorders = append(recorders, Prometheus)
	}

	if cfg.OpenTelemetryEnabled {
		otelRecorder, err := otel.New()
		if err != nil {
			return err
		}
		recorders = append(recorders, otelRecorder)
	}

	switch len(recorders) {
	case 0:
		GlobalRecorder = NoOpRecorder{}
	case 1:
		GlobalRecorder = recorders[0]
	default:
		GlobalRecorder = &MultiRecorder{Recorders: recorders}
	}
	return nil
}

// PoolSizes is a point-in-time reading of both credential pools, produced
// by the snapshot function handed to StartPoolStatsLoop.
type PoolSizes struct {
	CookiesValid     int
	CookiesExhausted int
	CookiesInvalid   int
	GeminiKeys       int
}

// StartPoolStatsLoop periodically publishes credential-pool occupancy
// gauges through the global recorder. snapshot is called on each tick from
// the collector goroutine; it must be safe for concurrent use (the pool
// actors' GetStatus round-trips are). The returned stop function ends the
// loop.
func StartPoolStatsLoop(interval time.Duration, snapshot func() PoolSizes) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s := snapshot()
				GlobalRecorder.SetCookiePoolStats(s.CookiesValid, s.CookiesExhausted, s.CookiesInvalid)
				GlobalRecorder.SetKeyPoolStats(s.GeminiKeys)
			}
		}
	}()
	return func() { close(done) }
}
