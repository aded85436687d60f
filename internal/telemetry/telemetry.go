// Package telemetry provides the OpenTelemetry meter/tracer accessors the
// rest of the core uses, so instrumentation code never imports
// go.opentelemetry.io/otel directly.
package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Meter returns the named meter from the global MeterProvider. Callers
// should pass a stable, package-qualified name (e.g.
// "github.com/runtimelab/jitcore/recompile").
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Tracer returns the named tracer from the global TracerProvider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
