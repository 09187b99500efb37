package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/peopleops"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Saga metrics, attributed by terminal state
	ProvisioningTotal    metric.Int64Counter
	ProvisioningDuration metric.Float64Histogram

	// Compensation metrics, attributed by outcome
	CompensationTotal metric.Int64Counter

	// Principals left behind in the identity service
	OrphansTotal metric.Int64Counter

	// Idempotency replays served without touching either store
	IdempotentReplaysTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.ProvisioningTotal, _ = meter.Int64Counter(
		"peopleops.provisioning.total",
		metric.WithDescription("Total number of provisioning requests by terminal state"),
		metric.WithUnit("{request}"),
	)

	m.ProvisioningDuration, _ = meter.Float64Histogram(
		"peopleops.provisioning.duration",
		metric.WithDescription("Duration of provisioning requests"),
		metric.WithUnit("ms"),
	)

	m.CompensationTotal, _ = meter.Int64Counter(
		"peopleops.compensation.total",
		metric.WithDescription("Total number of compensating principal deletes by outcome"),
		metric.WithUnit("{compensation}"),
	)

	m.OrphansTotal, _ = meter.Int64Counter(
		"peopleops.orphans.total",
		metric.WithDescription("Total number of principals left behind after failed compensation"),
		metric.WithUnit("{principal}"),
	)

	m.IdempotentReplaysTotal, _ = meter.Int64Counter(
		"peopleops.provisioning.replays.total",
		metric.WithDescription("Total number of provisioning results replayed for a repeated idempotency key"),
		metric.WithUnit("{request}"),
	)

	return m
}
