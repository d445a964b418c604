package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics exposes the engine's Prometheus instrumentation. Queue
// depth and session count are GaugeFuncs so the unbounded-queue growth risk
// is visible on the dashboard instead of hidden in the heap.
type EngineMetrics struct {
	eventsIngested *prometheus.CounterVec
	syncDuration   prometheus.Histogram
}

// NewEngineMetrics registers the collectors against the default registry.
func NewEngineMetrics(sessions *SessionRegistry, queue *PushQueue) *EngineMetrics {
	m := &EngineMetrics{
		eventsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "masquerade_events_ingested_total",
			Help: "Client events processed by the ingestion pipeline, by event name.",
		}, []string{"name"}),
		syncDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "masquerade_sync_duration_seconds",
			Help:    "Latency of the save-and-synchronize endpoints.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "masquerade_sessions_active",
		Help: "Contract sessions currently registered (never evicted).",
	}, func() float64 {
		return float64(sessions.Count())
	})
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "masquerade_push_queue_events",
		Help: "Undrained server-to-client events across all user queues.",
	}, func() float64 {
		events, _ := queue.Depth()
		return float64(events)
	})
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "masquerade_push_queue_messages",
		Help: "Undrained push messages across all user queues.",
	}, func() float64 {
		_, messages := queue.Depth()
		return float64(messages)
	})

	return m
}

// ObserveEvent counts one ingested event.
func (m *EngineMetrics) ObserveEvent(name string) {
	m.eventsIngested.WithLabelValues(name).Inc()
}

// ObserveSyncDuration records one sync request's latency.
func (m *EngineMetrics) ObserveSyncDuration(d time.Duration) {
	m.syncDuration.Observe(d.Seconds())
}
