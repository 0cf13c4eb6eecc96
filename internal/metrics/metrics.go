package metrics

import (
	"context"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type Metrics struct {
	CartOperations    metric.Int64Counter
	CartOperationTime metric.Float64Histogram
	HTTPRequests      metric.Int64Counter
	HTTPDuration      metric.Float64Histogram
}

// Setup wires an OTel meter provider to a Prometheus registry and returns
// the instruments plus the handler that serves the registry.
func Setup(serviceName string) (*Metrics, http.Handler, error) {
	registry := promclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	m, err := newMetrics(provider.Meter(serviceName))
	if err != nil {
		return nil, nil, err
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m, handler, nil
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.CartOperations, err = meter.Int64Counter(
		"cart_operations_total",
		metric.WithDescription("Total number of cart store operations"),
	)
	if err != nil {
		return nil, err
	}

	m.CartOperationTime, err = meter.Float64Histogram(
		"cart_operation_duration_seconds",
		metric.WithDescription("Cart store operation duration in seconds"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequests, err = meter.Int64Counter(
		"cart_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"cart_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordOperation counts one accessor call. Safe on a nil receiver.
func (m *Metrics) RecordOperation(ctx context.Context, operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	labels := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)

	m.CartOperations.Add(ctx, 1, labels)
	m.CartOperationTime.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}
