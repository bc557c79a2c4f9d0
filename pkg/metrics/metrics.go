// Package metrics exposes Prometheus metrics for connector operations and
// connector instance pools.
//
// # Basic Usage
//
//	timer := metrics.NewTimer()
//	uid, err := connector.Create(ctx, oc, attrs, opts)
//	metrics.RecordOperation("sample", "create", oc.Name(), timer.Elapsed(), err)
//
//	metrics.SetPoolInstances("sample", stats.Active, stats.Idle)
//	metrics.RecordPoolEvent("sample", metrics.PoolEventEvicted)
//
// All metrics are registered with the default registry on package load and
// carry the idconnect_ prefix.
package metrics

import (
	"time"

	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pool events.
const (
	PoolEventCreated     = "created"
	PoolEventReused      = "reused"
	PoolEventEvicted     = "evicted"
	PoolEventInvalidated = "invalidated"
	PoolEventTimeout     = "timeout"
)

// StatusSuccess labels operations that returned no error.
const StatusSuccess = "success"

var (
	// OperationsTotal counts facade operations by outcome. status is
	// "success" or the error type of the failure.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idconnect_operations_total",
			Help: "Total number of connector operations",
		},
		[]string{"connector", "operation", "object_class", "status"},
	)

	// OperationDuration tracks facade operation latency.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "idconnect_operation_duration_seconds",
			Help:    "Connector operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"connector", "operation"},
	)

	// PoolInstances reports active and idle connector instances.
	PoolInstances = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "idconnect_pool_instances",
			Help: "Connector instances held by the pool",
		},
		[]string{"connector", "state"},
	)

	// PoolEvents counts instance pool events.
	PoolEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idconnect_pool_events_total",
			Help: "Connector instance pool events",
		},
		[]string{"connector", "event"},
	)

	// SyncDeltas counts delivered and dropped sync deltas.
	SyncDeltas = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idconnect_sync_deltas_total",
			Help: "Sync deltas seen by the facade",
		},
		[]string{"connector", "object_class", "outcome"},
	)
)

// RecordOperation records the outcome and latency of one operation.
func RecordOperation(connector, operation, objectClass string, elapsed time.Duration, err error) {
	status := StatusSuccess
	if err != nil {
		status = string(errors.TypeOf(err))
	}
	OperationsTotal.WithLabelValues(connector, operation, objectClass, status).Inc()
	OperationDuration.WithLabelValues(connector, operation).Observe(elapsed.Seconds())
}

// SetPoolInstances mirrors pool occupancy.
func SetPoolInstances(connector string, active, idle int) {
	PoolInstances.WithLabelValues(connector, "active").Set(float64(active))
	PoolInstances.WithLabelValues(connector, "idle").Set(float64(idle))
}

// RecordPoolEvent counts a pool event.
func RecordPoolEvent(connector, event string) {
	PoolEvents.WithLabelValues(connector, event).Inc()
}

// RecordSyncDelta counts a sync delta as "delivered" or "dropped".
func RecordSyncDelta(connector, objectClass, outcome string) {
	SyncDeltas.WithLabelValues(connector, objectClass, outcome).Inc()
}

// Timer measures elapsed time
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the time since the timer started
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
