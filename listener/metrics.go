package listener

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/wavescope/metric"
)

// Metrics holds Prometheus metrics for one listener task. Registry names
// are scoped by key so listeners for different streams export side by side
// and a replacement task can take over its key's registrations.
type Metrics struct {
	registry *metric.MetricsRegistry
	key      string

	running     prometheus.Gauge
	entries     prometheus.Counter
	batches     prometheus.Counter
	dropped     prometheus.Counter
	overflows   prometheus.Counter
	storeErrors prometheus.Counter
}

// newMetrics creates and registers listener metrics. A nil registry disables
// metrics entirely.
func newMetrics(registry *metric.MetricsRegistry, key string, logger *slog.Logger) *Metrics {
	if registry == nil {
		return nil
	}

	labels := prometheus.Labels{"key": key}
	m := &Metrics{
		registry: registry,
		key:      key,
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "wavescope",
			Subsystem:   "listener",
			Name:        "running",
			Help:        "Listener state (0=stopped, 1=listening)",
			ConstLabels: labels,
		}),
		entries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "wavescope",
			Subsystem:   "listener",
			Name:        "entries_total",
			Help:        "Stream entries received",
			ConstLabels: labels,
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "wavescope",
			Subsystem:   "listener",
			Name:        "batches_total",
			Help:        "Entry batches read from the stream",
			ConstLabels: labels,
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "wavescope",
			Subsystem:   "listener",
			Name:        "batches_dropped_total",
			Help:        "Batches dropped under backpressure",
			ConstLabels: labels,
		}),
		overflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "wavescope",
			Subsystem:   "listener",
			Name:        "overflow_episodes_total",
			Help:        "Saturation episodes reported to the event loop",
			ConstLabels: labels,
		}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "wavescope",
			Subsystem:   "listener",
			Name:        "store_errors_total",
			Help:        "Terminal store errors",
			ConstLabels: labels,
		}),
	}

	for name, c := range m.collectors() {
		if err := registry.Register("listener", scopedName(name, key), c); err != nil {
			logger.Warn("metric registration failed", "metric", name, "error", err)
		}
	}
	return m
}

func (m *Metrics) collectors() map[string]prometheus.Collector {
	return map[string]prometheus.Collector{
		"running":                 m.running,
		"entries_total":           m.entries,
		"batches_total":           m.batches,
		"batches_dropped_total":   m.dropped,
		"overflow_episodes_total": m.overflows,
		"store_errors_total":      m.storeErrors,
	}
}

// unregister releases the task's registrations so a replacement listener
// for the same key can register fresh collectors.
func (m *Metrics) unregister() {
	if m == nil {
		return
	}
	for name := range m.collectors() {
		m.registry.Unregister("listener", scopedName(name, m.key))
	}
}

func scopedName(name, key string) string {
	return fmt.Sprintf("%s[%s]", name, key)
}
