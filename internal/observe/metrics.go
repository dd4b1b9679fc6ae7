// Package observe provides application-wide observability primitives for
// signshop: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all signshop metrics.
const meterName = "github.com/MrWong99/signshop"

// All fields are safe for concurrent use; the underlying OTel types handle
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TriggerDuration tracks how long one shop exchange takes, including
	// economy and inventory calls. Use with attribute:
	//   attribute.String("kind", ...)
	TriggerDuration metric.Float64Histogram

	// StoreSaveDuration tracks how long persisting the registry takes. Use
	// with attribute:
	//   attribute.String("backend", ...)
	StoreSaveDuration metric.Float64Histogram

	// --- Counters ---

	// ShopOperations counts build, trigger and destroy calls. Use with attributes:
	//   attribute.String("op", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ShopOperations metric.Int64Counter

	// --- Error counters ---

	// StoreErrors counts failed load and save calls. Use with attributes:
	//   attribute.String("backend", ...), attribute.String("op", ...)
	StoreErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveShops tracks the number of registered shops.
	ActiveShops metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// in-process operations that call out to the host world.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TriggerDuration, err = m.Float64Histogram("signshop.trigger.duration",
		metric.WithDescription("Latency of a shop exchange."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StoreSaveDuration, err = m.Float64Histogram("signshop.store.save.duration",
		metric.WithDescription("Latency of persisting the shop registry."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ShopOperations, err = m.Int64Counter("signshop.shop.operations",
		metric.WithDescription("Total shop operations by op, kind, and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.StoreErrors, err = m.Int64Counter("signshop.store.errors",
		metric.WithDescription("Total registry store errors by backend and op."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveShops, err = m.Int64UpDownCounter("signshop.active_shops",
		metric.WithDescription("Number of registered shops."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("signshop.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordShopOp is a convenience method that records a shop operation
// counter increment with the standard attribute set.
func (m *Metrics) RecordShopOp(ctx context.Context, op, kind, status string) {
	m.ShopOperations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordStoreError is a convenience method that records a store error
// counter increment.
func (m *Metrics) RecordStoreError(ctx context.Context, backend, op string) {
	m.StoreErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("op", op),
		),
	)
}
