// Package monitor owns the gateway's operational metrics: HTTP request
// outcomes, provider latency and retry counts, cache hit rate, and
// point-in-time credential pool gauges, dual-recorded through OpenTelemetry
// and Prometheus behind a single Recorder interface.
package monitor

import "time"

// Recorder is the gateway-domain metrics sink. Every exported method is
// safe for concurrent use from request-handling goroutines.
type Recorder interface {
	// RecordHTTPRequest records one completed inbound request.
	RecordHTTPRequest(route, method string, status int, duration time.Duration)
	// RecordProviderRequest records one completed outbound call to a
	// backend (claude_web, claude_code, gemini_ai_studio, gemini_vertex),
	// outcome being "success", "retry_exhausted", or "error".
	RecordProviderRequest(backend, outcome string, duration time.Duration)
	// RecordRetry records one retry attempt against a backend.
	RecordRetry(backend string)
	// RecordCacheResult records one response-cache lookup outcome.
	RecordCacheResult(hit bool)
	// SetCookiePoolStats publishes the cookie actor's current set sizes.
	SetCookiePoolStats(valid, exhausted, invalid int)
	// SetKeyPoolStats publishes the Gemini key pool's current size.
	SetKeyPoolStats(count int)
}

// NoOpRecorder discards every metric, used when neither Prometheus nor
// OpenTelemetry metrics are enabled.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordHTTPRequest(string, string, int, time.Duration) {}
func (NoOpRecorder) RecordProviderRequest(string, string, time.Duration)  {}
func (NoOpRecorder) RecordRetry(string)                                   {}
func (NoOpRecorder) RecordCacheResult(bool)                               {}
func (NoOpRecorder) SetCookiePoolStats(valid, exhausted, invalid int)     {}
func (NoOpRecorder) SetKeyPoolStats(count int)                            {}

// MultiRecorder fans every call out to each underlying recorder.
type MultiRecorder struct {
	Recorders []Recorder
}

func (m *MultiRecorder) RecordHTTPRequest(route, method string, status int, d time.Duration) {
	for _, r := range m.Recorders {
		r.RecordHTTPRequest(route, method, status, d)
	}
}

func (m *MultiRecorder) RecordProviderRequest(backend, outcome string, d time.Duration) {
	for _, r := range m.Recorders {
		r.RecordProviderRequest(backend, outcome, d)
	}
}

func (m *MultiRecorder) RecordRetry(backend string) {
	for _, r := range m.Recorders {
		r.RecordRetry(backend)
	}
}

func (m *MultiRecorder) RecordCacheResult(hit bool) {
	for _, r := range m.Recorders {
		r.RecordCacheResult(hit)
	}
}

func (m *MultiRecorder) SetCookiePoolStats(valid, exhausted, invalid int) {
	for _, r := range m.Recorders {
		r.SetCookiePoolStats(valid, exhausted, invalid)
	}
}

func (m *MultiRecorder) SetKeyPoolStats(count int) {
	for _, r := range m.Recorders {
		r.SetKeyPoolStats(count)
	}
}

// GlobalRecorder is the process-wide metrics sink, set by InitMonitoring.
// Defaults to NoOpRecorder so request-path code never needs a nil check.
var GlobalRecorder Recorder = NoOpRecorder{}
