package listener

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/wavescope/metric"
)

// runningSeriesKeys returns the key label of every exported
// wavescope_listener_running series.
func runningSeriesKeys(t *testing.T, registry *metric.MetricsRegistry) []string {
	t.Helper()
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	var keys []string
	for _, fam := range families {
		if fam.GetName() != "wavescope_listener_running" {
			continue
		}
		for _, series := range fam.GetMetric() {
			for _, label := range series.GetLabel() {
				if label.GetName() == "key" {
					keys = append(keys, label.GetValue())
				}
			}
		}
	}
	return keys
}

func TestMetricsExportPerKey(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	a := newMetrics(registry, "key-a", slog.Default())
	b := newMetrics(registry, "key-b", slog.Default())
	a.running.Set(1)
	b.running.Set(1)

	assert.ElementsMatch(t, []string{"key-a", "key-b"}, runningSeriesKeys(t, registry))
}

func TestReplacementMetricsReRegister(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	old := newMetrics(registry, "key-a", slog.Default())
	old.running.Set(1)
	old.unregister()

	replacement := newMetrics(registry, "key-a", slog.Default())
	replacement.running.Set(1)

	assert.Equal(t, []string{"key-a"}, runningSeriesKeys(t, registry))
}

func TestNilRegistryDisablesMetrics(t *testing.T) {
	var m *Metrics
	assert.Nil(t, newMetrics(nil, "key-a", slog.Default()))
	m.unregister() // nil-safe
}
