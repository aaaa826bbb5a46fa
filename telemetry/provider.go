package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const meterName = "github.com/Barthelemy-Drabczuk/digestive-database"

// NewPrometheusProvider builds a MeterProvider backed by a Prometheus
// exporter and returns the /metrics handler alongside it. Callers are
// responsible for serving the handler and for calling
// MeterProvider.Shutdown on exit.
func NewPrometheusProvider(serviceName string) (*sdkmetric.MeterProvider, http.Handler, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, nil, err
	}

	reader, err := promexporter.New()
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	return mp, promhttp.Handler(), nil
}

// MeterName is the instrumentation scope name used when deriving a
// metric.Meter from the provider returned by NewPrometheusProvider.
const MeterName = meterName
