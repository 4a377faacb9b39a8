// ABOUTME: Prometheus instrumentation for the threading engine
// ABOUTME: Counters for lifecycle operations plus per-operation latency histograms

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and turns all recording methods into no-ops, so instrumentation stays
// optional for embedders and tests.
type Metrics struct {
	threadsCreated   prometheus.Counter
	threadsUpdated   prometheus.Counter
	messagesAppended prometheus.Counter
	notifications    prometheus.Counter
	listenerPanics   prometheus.Counter
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	opDuration       *prometheus.HistogramVec
}

// New creates engine metrics registered on reg. Pass nil to use the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		threadsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "braid_threads_created_total",
			Help: "Number of threads created.",
		}),
		threadsUpdated: factory.NewCounter(prometheus.CounterOpts{
			Name: "braid_threads_updated_total",
			Help: "Number of thread update operations applied.",
		}),
		messagesAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "braid_messages_appended_total",
			Help: "Number of messages appended to threads.",
		}),
		notifications: factory.NewCounter(prometheus.CounterOpts{
			Name: "braid_listener_notifications_total",
			Help: "Number of listener callbacks invoked.",
		}),
		listenerPanics: factory.NewCounter(prometheus.CounterOpts{
			Name: "braid_listener_panics_total",
			Help: "Number of listener callbacks that panicked.",
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "braid_thread_cache_hits_total",
			Help: "Thread cache lookups served without a store read.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "braid_thread_cache_misses_total",
			Help: "Thread cache lookups that fell through to the store.",
		}),
		opDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "braid_operation_duration_seconds",
			Help:    "Latency of engine operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

// ThreadCreated records a successful thread creation.
func (m *Metrics) ThreadCreated() {
	if m != nil {
		m.threadsCreated.Inc()
	}
}

// ThreadUpdated records a successful thread update.
func (m *Metrics) ThreadUpdated() {
	if m != nil {
		m.threadsUpdated.Inc()
	}
}

// MessageAppended records a successful message append.
func (m *Metrics) MessageAppended() {
	if m != nil {
		m.messagesAppended.Inc()
	}
}

// ListenerNotified records one listener callback invocation.
func (m *Metrics) ListenerNotified() {
	if m != nil {
		m.notifications.Inc()
	}
}

// ListenerPanicked records a recovered listener panic.
func (m *Metrics) ListenerPanicked() {
	if m != nil {
		m.listenerPanics.Inc()
	}
}

// CacheHit records a thread cache hit.
func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

// CacheMiss records a thread cache miss.
func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

// ObserveOp records the latency of an operation started at start.
func (m *Metrics) ObserveOp(op string, start time.Time) {
	if m != nil {
		m.opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
