// Package prometheus implements monitor.Recorder on a dedicated registry
// (prometheus.NewRegistry + process/Go collectors + promhttp.HandlerFor)
// rather than registering onto prometheus.DefaultRegisterer, so tests and
// embedding processes never collide on duplicate metric names.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements monitor.Recorder via client_golang instruments
// registered onto a private registry, exposed for scraping through Handler.
type Recorder struct {
	registry *prometheus.Registry

	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	providerRequestDuration *prometheus.HistogramVec
	providerRequestsTotal   *prometheus.CounterVec
	providerRetriesTotal    *prometheus.CounterVec

	cacheResultsTotal *prometheus.CounterVec

	cookiesValid     prometheus.Gauge
	cookiesExhausted prometheus.Gauge
	cookiesInvalid   prometheus.Gauge
	geminiKeys       prometheus.Gauge
}

// New builds a Recorder on a fresh registry, pre-registering the standard
// process and Go runtime collectors alongside the gateway's own metrics.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())

	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gateway",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Inbound HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Inbound HTTP requests, by route/method/status.",
		}, []string{"route", "method", "status"}),

		providerRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gateway",
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Outbound provider call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "outcome"}),

		providerRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Outbound provider calls, by backend/outcome.",
		}, []string{"backend", "outcome"}),

		providerRetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "provider",
			Name:      "retries_total",
			Help:      "Outbound provider retry attempts, by backend.",
		}, []string{"backend"}),

		cacheResultsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "cache",
			Name:      "results_total",
			Help:      "Response cache lookups, by result (hit/miss).",
		}, []string{"result"}),

		cookiesValid: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gateway",
			Subsystem: "pool",
			Name:      "cookies_valid",
			Help:      "Cookies currently in the valid set.",
		}),
		cookiesExhausted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gateway",
			Subsystem: "pool",
			Name:      "cookies_exhausted",
			Help:      "Cookies currently rate-limited.",
		}),
		cookiesInvalid: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gateway",
			Subsystem: "pool",
			Name:      "cookies_invalid",
			Help:      "Cookies retired as permanently unusable.",
		}),
		geminiKeys: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gateway",
			Subsystem: "pool",
			Name:      "gemini_keys",
			Help:      "Gemini keys currently in the pool.",
		}),
	}
}

// Handler returns the scrape endpoint for this recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func statusBucket(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func (r *Recorder) RecordHTTPRequest(route, method string, status int, d time.Duration) {
	labels := prometheus.Labels{"route": route, "method": method, "status": statusBucket(status)}
	r.httpRequestDuration.With(labels).Observe(d.Seconds())
	r.httpRequestsTotal.With(labels).Inc()
}

func (r *Recorder) RecordProviderRequest(backend, outcome string, d time.Duration) {
	labels := prometheus.Labels{"backend": backend, "outcome": outcome}
	r.providerRequestDuration.With(labels).Observe(d.Seconds())
	r.providerRequestsTotal.With(labels).Inc()
}

func (r *Recorder) RecordRetry(backend string) {
	r.providerRetriesTotal.With(prometheus.Labels{"backend": backend}).Inc()
}

func (r *Recorder) RecordCacheResult(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheResultsTotal.With(prometheus.Labels{"result": result}).Inc()
}

func (r *Recorder) SetCookiePoolStats(valid, exhausted, invalid int) {
	r.cookiesValid.Set(float64(valid))
	r.cookiesExhausted.Set(float64(exhausted))
	r.cookiesInvalid.Set(float64(invalid))
}

func (r *Recorder) SetKeyPoolStats(count int) {
	r.geminiKeys.Set(float64(count))
}
