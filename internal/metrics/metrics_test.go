// ABOUTME: Tests for the Prometheus instrumentation
// ABOUTME: Verifies counter increments and that a nil receiver is a no-op

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ThreadCreated()
	m.ThreadCreated()
	m.ThreadUpdated()
	m.MessageAppended()
	m.ListenerNotified()
	m.ListenerPanicked()
	m.CacheHit()
	m.CacheMiss()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.threadsCreated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.threadsUpdated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.messagesAppended))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.notifications))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.listenerPanics))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cacheMisses))
}

func TestMetrics_ObserveOp(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveOp("create_thread", time.Now().Add(-10*time.Millisecond))
	m.ObserveOp("create_thread", time.Now())

	count := testutil.CollectAndCount(m.opDuration, "braid_operation_duration_seconds")
	assert.Equal(t, 1, count, "one labeled series after observations")
}

func TestMetrics_NilReceiverIsNoOp(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ThreadCreated()
		m.ThreadUpdated()
		m.MessageAppended()
		m.ListenerNotified()
		m.ListenerPanicked()
		m.CacheHit()
		m.CacheMiss()
		m.ObserveOp("anything", time.Now())
	})
}
