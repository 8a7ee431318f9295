package metrics

import (
	"context"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/leafsii/appconfig/pkg/appconfig"
)

type Metrics struct {
	HTTPRequests metric.Int64Counter
	HTTPDuration metric.Float64Histogram
	Operations   metric.Int64Counter
	Errors       metric.Int64Counter
	Reaped       metric.Int64Counter

	provider *sdkmetric.MeterProvider
}

// Setup creates the instruments on a private Prometheus registry and returns
// the handler that serves it.
func Setup(serviceName string) (*Metrics, http.Handler, error) {
	registry := promclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(serviceName)

	m := &Metrics{provider: provider}

	m.HTTPRequests, err = meter.Int64Counter(
		"appconfig_http_requests",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"appconfig_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.Operations, err = meter.Int64Counter(
		"appconfig_operations",
		metric.WithDescription("Item store operations by name and backing store"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.Errors, err = meter.Int64Counter(
		"appconfig_operation_errors",
		metric.WithDescription("Failed item store operations by error kind"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.Reaped, err = meter.Int64Counter(
		"appconfig_items_reaped",
		metric.WithDescription("Items removed by the expiry pass"),
	)
	if err != nil {
		return nil, nil, err
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m, handler, nil
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

// RecordOperation implements appconfig.Recorder.
func (m *Metrics) RecordOperation(ctx context.Context, op string, backing appconfig.BackingStore, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("op", op),
		attribute.String("backing_store", backing.String()),
	}
	m.Operations.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil {
		attrs = append(attrs, attribute.String("kind", appconfig.KindOf(err).String()))
		m.Errors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordReaped implements appconfig.Recorder.
func (m *Metrics) RecordReaped(ctx context.Context, backing appconfig.BackingStore, count int) {
	m.Reaped.Add(ctx, int64(count), metric.WithAttributes(attribute.String("backing_store", backing.String())))
}

var _ appconfig.Recorder = (*Metrics)(nil)
