package metrics

import (
	"testing"
	"time"

	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordOperation(t *testing.T) {
	RecordOperation("metrics-test", "create", "__ACCOUNT__", 5*time.Millisecond, nil)
	RecordOperation("metrics-test", "create", "__ACCOUNT__", time.Millisecond,
		errors.New(errors.ErrorTypeAlreadyExists, "exists"))

	assert.Equal(t, 1.0, testutil.ToFloat64(OperationsTotal.WithLabelValues("metrics-test", "create", "__ACCOUNT__", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(OperationsTotal.WithLabelValues("metrics-test", "create", "__ACCOUNT__", "already_exists")))
}

func TestPoolMetrics(t *testing.T) {
	SetPoolInstances("metrics-test", 2, 3)
	assert.Equal(t, 2.0, testutil.ToFloat64(PoolInstances.WithLabelValues("metrics-test", "active")))
	assert.Equal(t, 3.0, testutil.ToFloat64(PoolInstances.WithLabelValues("metrics-test", "idle")))

	RecordPoolEvent("metrics-test", PoolEventEvicted)
	RecordPoolEvent("metrics-test", PoolEventEvicted)
	assert.Equal(t, 2.0, testutil.ToFloat64(PoolEvents.WithLabelValues("metrics-test", PoolEventEvicted)))

	RecordSyncDelta("metrics-test", "__ACCOUNT__", "dropped")
	assert.Equal(t, 1.0, testutil.ToFloat64(SyncDeltas.WithLabelValues("metrics-test", "__ACCOUNT__", "dropped")))
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, timer.Elapsed(), time.Millisecond)
}
