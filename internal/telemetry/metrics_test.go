package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMetrics_recorded(t *testing.T) {
	ctx := context.Background()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })
	otel.SetMeterProvider(mp)

	m := initMetrics()
	state := metric.WithAttributes(attribute.String("state", "uncompensated_failure"))
	m.ProvisioningTotal.Add(ctx, 1, state)
	m.ProvisioningDuration.Record(ctx, 12.5, state)
	m.CompensationTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
	m.OrphansTotal.Add(ctx, 1)
	m.IdempotentReplaysTotal.Add(ctx, 1)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		require.Equal(t, meterName, sm.Scope.Name)
		for _, md := range sm.Metrics {
			names[md.Name] = true
		}
	}

	for _, want := range []string{
		"peopleops.provisioning.total",
		"peopleops.provisioning.duration",
		"peopleops.compensation.total",
		"peopleops.orphans.total",
		"peopleops.provisioning.replays.total",
	} {
		require.True(t, names[want], "missing metric %s", want)
	}
}

func TestGetMetrics_singleton(t *testing.T) {
	require.Same(t, GetMetrics(), GetMetrics())
}
