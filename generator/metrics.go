package generator

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/wavescope/metric"
)

// Metrics holds Prometheus metrics for one generator task. Registry names
// are scoped by key so a replacement task can take over its key's
// registrations.
type Metrics struct {
	registry *metric.MetricsRegistry
	key      string

	running     prometheus.Gauge
	entries     prometheus.Counter
	samples     prometheus.Counter
	saturated   prometheus.Counter
	writeErrors prometheus.Counter
}

// newMetrics creates and registers generator metrics. A nil registry
// disables metrics entirely.
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
			Subsystem:   "generator",
			Name:        "running",
			Help:        "Generator state (0=stopped, 1=running)",
			ConstLabels: labels,
		}),
		entries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "wavescope",
			Subsystem:   "generator",
			Name:        "entries_total",
			Help:        "Stream entries appended",
			ConstLabels: labels,
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "wavescope",
			Subsystem:   "generator",
			Name:        "samples_total",
			Help:        "Samples synthesized",
			ConstLabels: labels,
		}),
		saturated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "wavescope",
			Subsystem:   "generator",
			Name:        "samples_saturated_total",
			Help:        "Samples clamped to the element type range during encode",
			ConstLabels: labels,
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "wavescope",
			Subsystem:   "generator",
			Name:        "write_errors_total",
			Help:        "Append failures that stopped the task",
			ConstLabels: labels,
		}),
	}

	for name, c := range m.collectors() {
		if err := registry.Register("generator", scopedName(name, key), c); err != nil {
			logger.Warn("metric registration failed", "metric", name, "error", err)
		}
	}
	return m
}

func (m *Metrics) collectors() map[string]prometheus.Collector {
	return map[string]prometheus.Collector{
		"running":                 m.running,
		"entries_total":           m.entries,
		"samples_total":           m.samples,
		"samples_saturated_total": m.saturated,
		"write_errors_total":      m.writeErrors,
	}
}

// unregister releases the task's registrations so a replacement generator
// for the same key can register fresh collectors.
func (m *Metrics) unregister() {
	if m == nil {
		return
	}
	for name := range m.collectors() {
		m.registry.Unregister("generator", scopedName(name, m.key))
	}
}

func scopedName(name, key string) string {
	return fmt.Sprintf("%s[%s]", name, key)
}
