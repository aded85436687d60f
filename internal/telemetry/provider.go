package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// InitMeterProvider installs a process-wide OpenTelemetry MeterProvider
// backed by a ManualReader and returns the reader, so a host process can
// pull a point-in-time metrics snapshot (Snapshot) without wiring a push
// exporter. Meter/Tracer calls made before this runs fall back to otel's
// no-op provider, same as with no provider configured at all; call this
// once, early, in process startup.
func InitMeterProvider() *sdkmetric.ManualReader {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	return reader
}

// Snapshot collects the current state of every instrument registered
// against reader's provider, for inspection (e.g. a metrics-dump command).
func Snapshot(ctx context.Context, reader *sdkmetric.ManualReader) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := reader.Collect(ctx, &rm)
	return rm, err
}
