// Package metrics holds the Prometheus instrumentation a worker process
// exposes, lifted out of the teacher's cmd/worker/main.go so it can be
// shared between the binary and its tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the vectors a worker updates while dispatching
// messages.
type Metrics struct {
	Processed    *prometheus.CounterVec
	TaskDuration *prometheus.HistogramVec
	QueueDepth   *prometheus.GaugeVec
	QueueLatency *prometheus.HistogramVec
}

// New registers and returns a fresh Metrics bundle against the default
// registry.
func New() *Metrics {
	return &Metrics{
		Processed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "taskq_processed_total",
			Help: "Total messages dispatched, labeled by outcome and task.",
		}, []string{"status", "task"}),

		TaskDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskq_task_duration_seconds",
			Help:    "Duration of handler invocation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),

		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "taskq_queue_depth",
			Help: "Number of messages in each logical collection.",
		}, []string{"queue"}),

		QueueLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskq_queue_latency_seconds",
			Help:    "Time between message creation and the start of processing.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),
	}
}
