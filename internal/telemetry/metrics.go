package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/gravitypreview"
)

// Metrics holds the OpenTelemetry instruments recorded by the preview pipeline
type Metrics struct {
	// Normalize metrics
	NormalizeTotal       metric.Int64Counter
	NormalizeErrorsTotal metric.Int64Counter
	NormalizeDuration    metric.Float64Histogram
	ModulesEmitted       metric.Int64Histogram

	// Memoization metrics
	CacheHitsTotal   metric.Int64Counter
	CacheMissesTotal metric.Int64Counter

	// esbuild verification metrics
	CheckTotal       metric.Int64Counter
	CheckErrorsTotal metric.Int64Counter
	CheckDuration    metric.Float64Histogram
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary.
// Instruments resolve against whichever meter provider is global at first use.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.NormalizeTotal, _ = meter.Int64Counter(
		"preview.normalize.total",
		metric.WithDescription("Total number of bundles normalized"),
		metric.WithUnit("{bundle}"),
	)

	m.NormalizeErrorsTotal, _ = meter.Int64Counter(
		"preview.normalize.errors.total",
		metric.WithDescription("Total number of bundles rejected during normalization"),
		metric.WithUnit("{error}"),
	)

	m.NormalizeDuration, _ = meter.Float64Histogram(
		"preview.normalize.duration",
		metric.WithDescription("Duration of bundle normalization"),
		metric.WithUnit("ms"),
	)

	m.ModulesEmitted, _ = meter.Int64Histogram(
		"preview.normalize.modules",
		metric.WithDescription("Number of modules in each normalized bundle"),
		metric.WithUnit("{module}"),
	)

	m.CacheHitsTotal, _ = meter.Int64Counter(
		"preview.cache.hits.total",
		metric.WithDescription("Total number of normalizations served from the memo cache"),
		metric.WithUnit("{hit}"),
	)

	m.CacheMissesTotal, _ = meter.Int64Counter(
		"preview.cache.misses.total",
		metric.WithDescription("Total number of normalizations computed on a cache miss"),
		metric.WithUnit("{miss}"),
	)

	m.CheckTotal, _ = meter.Int64Counter(
		"preview.check.total",
		metric.WithDescription("Total number of esbuild verification runs"),
		metric.WithUnit("{build}"),
	)

	m.CheckErrorsTotal, _ = meter.Int64Counter(
		"preview.check.errors.total",
		metric.WithDescription("Total number of verification runs that reported errors"),
		metric.WithUnit("{build}"),
	)

	m.CheckDuration, _ = meter.Float64Histogram(
		"preview.check.duration",
		metric.WithDescription("Duration of esbuild verification runs"),
		metric.WithUnit("ms"),
	)

	return m
}
