// Package otel implements monitor.Recorder on top of OpenTelemetry's
// metric API: a meter-backed struct with one instrument per tracked
// measurement — HTTP outcomes, provider latency and retries, cache hit
// rate, and credential pool gauges.
package otel

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Laisky/errors/v2"
)

// Recorder implements monitor.Recorder using the global OpenTelemetry
// MeterProvider installed by common/telemetry.InitOpenTelemetry.
type Recorder struct {
	httpRequestDuration metric.Float64Histogram
	httpRequestsTotal   metric.Int64Counter

	providerRequestDuration metric.Float64Histogram
	providerRequestsTotal   metric.Int64Counter
	providerRetriesTotal    metric.Int64Counter

	cacheHitsTotal   metric.Int64Counter
	cacheMissesTotal metric.Int64Counter

	cookiesValid     metric.Int64Gauge
	cookiesExhausted metric.Int64Gauge
	cookiesInvalid   metric.Int64Gauge
	geminiKeys       metric.Int64Gauge
}

// New builds a Recorder bound to a named meter from the global provider.
func New() (*Recorder, error) {
	meter := otel.Meter("github.com/Laisky/llm-gateway")

	r := &Recorder{}
	var err error

	if r.httpRequestDuration, err = meter.Float64Histogram(
		"gateway.http.request.duration",
		metric.WithDescription("Inbound HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, errors.Wrap(err, "create http request duration histogram")
	}
	if r.httpRequestsTotal, err = meter.Int64Counter(
		"gateway.http.requests.total",
		metric.WithDescription("Inbound HTTP requests, by route/method/status"),
	); err != nil {
		return nil, errors.Wrap(err, "create http requests counter")
	}

	if r.providerRequestDuration, err = meter.Float64Histogram(
		"gateway.provider.request.duration",
		metric.WithDescription("Outbound provider call duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, errors.Wrap(err, "create provider request duration histogram")
	}
	if r.providerRequestsTotal, err = meter.Int64Counter(
		"gateway.provider.requests.total",
		metric.WithDescription("Outbound provider calls, by backend/outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "create provider requests counter")
	}
	if r.providerRetriesTotal, err = meter.Int64Counter(
		"gateway.provider.retries.total",
		metric.WithDescription("Outbound provider retry attempts, by backend"),
	); err != nil {
		return nil, errors.Wrap(err, "create provider retries counter")
	}

	if r.cacheHitsTotal, err = meter.Int64Counter(
		"gateway.cache.hits.total",
		metric.WithDescription("Response cache hits"),
	); err != nil {
		return nil, errors.Wrap(err, "create cache hits counter")
	}
	if r.cacheMissesTotal, err = meter.Int64Counter(
		"gateway.cache.misses.total",
		metric.WithDescription("Response cache misses"),
	); err != nil {
		return nil, errors.Wrap(err, "create cache misses counter")
	}

	if r.cookiesValid, err = meter.Int64Gauge(
		"gateway.pool.cookies.valid",
		metric.WithDescription("Cookies currently in the valid set"),
	); err != nil {
		return nil, errors.Wrap(err, "create cookies valid gauge")
	}
	if r.cookiesExhausted, err = meter.Int64Gauge(
		"gateway.pool.cookies.exhausted",
		metric.WithDescription("Cookies currently rate-limited"),
	); err != nil {
		return nil, errors.Wrap(err, "create cookies exhausted gauge")
	}
	if r.cookiesInvalid, err = meter.Int64Gauge(
		"gateway.pool.cookies.invalid",
		metric.WithDescription("Cookies retired as permanently unusable"),
	); err != nil {
		return nil, errors.Wrap(err, "create cookies invalid gauge")
	}
	if r.geminiKeys, err = meter.Int64Gauge(
		"gateway.pool.gemini_keys",
		metric.WithDescription("Gemini keys currently in the pool"),
	); err != nil {
		return nil, errors.Wrap(err, "create gemini keys gauge")
	}

	return r, nil
}

func (r *Recorder) RecordHTTPRequest(route, method string, status int, d time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("method", method),
		attribute.String("status", strconv.Itoa(status)),
	)
	r.httpRequestDuration.Record(ctx, d.Seconds(), attrs)
	r.httpRequestsTotal.Add(ctx, 1, attrs)
}

func (r *Recorder) RecordProviderRequest(backend, outcome string, d time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("outcome", outcome),
	)
	r.providerRequestDuration.Record(ctx, d.Seconds(), attrs)
	r.providerRequestsTotal.Add(ctx, 1, attrs)
}

func (r *Recorder) RecordRetry(backend string) {
	r.providerRetriesTotal.Add(context.Background(), 1, metric.WithAttributes(attribute.String("backend", backend)))
}

func (r *Recorder) RecordCacheResult(hit bool) {
	ctx := context.Background()
	if hit {
		r.cacheHitsTotal.Add(ctx, 1)
		return
	}
	r.cacheMissesTotal.Add(ctx, 1)
}

func (r *Recorder) SetCookiePoolStats(valid, exhausted, invalid int) {
	ctx := context.Background()
	r.cookiesValid.Record(ctx, int64(valid))
	r.cookiesExhausted.Record(ctx, int64(exhausted))
	r.cookiesInvalid.Record(ctx, int64(invalid))
}

func (r *Recorder) SetKeyPoolStats(count int) {
	r.geminiKeys.Record(context.Background(), int64(count))
}
