package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitMeterProviderCollectsRegisteredCounter(t *testing.T) {
	reader := InitMeterProvider()

	meter := Meter("jitcore.telemetry.provider_test")
	counter, err := meter.Int64Counter("test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	rm, err := Snapshot(context.Background(), reader)
	require.NoError(t, err)
	require.NotEmpty(t, rm.ScopeMetrics)

	var found bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "test.counter" {
				found = true
			}
		}
	}
	require.True(t, found, "collected snapshot must include the registered counter")
}
