package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains platform-level metrics shared across tasks. Task-specific
// metrics live with their owning task and register through the registry.
type Metrics struct {
	// Task metrics
	TaskStatus    *prometheus.GaugeVec
	BatchesRead   *prometheus.CounterVec
	EventsEmitted *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec

	// Store metrics
	StoreConnected  prometheus.Gauge
	StoreRTT        prometheus.Gauge
	StoreReconnects prometheus.Counter
	StoreOpDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all platform metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		TaskStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "wavescope",
				Subsystem: "task",
				Name:      "status",
				Help:      "Task status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"task"},
		),

		BatchesRead: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wavescope",
				Subsystem: "stream",
				Name:      "batches_read_total",
				Help:      "Total number of entry batches read from streams",
			},
			[]string{"task", "key"},
		),

		EventsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wavescope",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Total number of events handed to the event loop",
			},
			[]string{"task", "type"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wavescope",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"task", "class"},
		),

		StoreConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "wavescope",
				Subsystem: "store",
				Name:      "connected",
				Help:      "Store connection status (0=disconnected, 1=connected)",
			},
		),

		StoreRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "wavescope",
				Subsystem: "store",
				Name:      "rtt_milliseconds",
				Help:      "Store round-trip time in milliseconds",
			},
		),

		StoreReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "wavescope",
				Subsystem: "store",
				Name:      "reconnects_total",
				Help:      "Total number of store reconnections",
			},
		),

		StoreOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "wavescope",
				Subsystem: "store",
				Name:      "op_duration_seconds",
				Help:      "Store operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordTaskStatus updates the task status metric.
func (c *Metrics) RecordTaskStatus(task string, status int) {
	c.TaskStatus.WithLabelValues(task).Set(float64(status))
}

// RecordBatchRead increments the batch counter for a stream key.
func (c *Metrics) RecordBatchRead(task, key string) {
	c.BatchesRead.WithLabelValues(task, key).Inc()
}

// RecordEventEmitted increments the emitted event counter.
func (c *Metrics) RecordEventEmitted(task, eventType string) {
	c.EventsEmitted.WithLabelValues(task, eventType).Inc()
}

// RecordError increments the error counter.
func (c *Metrics) RecordError(task, class string) {
	c.ErrorsTotal.WithLabelValues(task, class).Inc()
}

// RecordStoreStatus updates the store connection status.
func (c *Metrics) RecordStoreStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.StoreConnected.Set(value)
}

// RecordStoreRTT updates the store round-trip time.
func (c *Metrics) RecordStoreRTT(rtt time.Duration) {
	c.StoreRTT.Set(float64(rtt.Milliseconds()))
}

// RecordStoreReconnect increments the reconnection counter.
func (c *Metrics) RecordStoreReconnect() {
	c.StoreReconnects.Inc()
}

// RecordStoreOpDuration records how long a store operation took.
func (c *Metrics) RecordStoreOpDuration(operation string, duration time.Duration) {
	c.StoreOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
