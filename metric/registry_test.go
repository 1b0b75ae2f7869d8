package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/wavescope/errors"
)

func TestNewRegistryHasCoreMetrics(t *testing.T) {
	r := NewMetricsRegistry()
	require.NotNil(t, r.CoreMetrics())
	require.NotNil(t, r.PrometheusRegistry())

	// Core metrics must be usable immediately.
	r.CoreMetrics().RecordTaskStatus("listener", 2)
	r.CoreMetrics().RecordBatchRead("listener", "sensor:raw")
	r.CoreMetrics().RecordStoreStatus(true)

	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["wavescope_task_status"])
	assert.True(t, names["wavescope_stream_batches_read_total"])
	assert.True(t, names["wavescope_store_connected"])
}

func TestRegisterTaskMetric(t *testing.T) {
	r := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wavescope",
		Subsystem: "generator",
		Name:      "cycles_total",
		Help:      "Generator write cycles",
	})
	require.NoError(t, r.Register("generator", "cycles_total", counter))
	counter.Inc()

	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if f.GetName() == "wavescope_generator_cycles_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	r := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "wavescope_test_gauge"})
	require.NoError(t, r.Register("listener", "test_gauge", gauge))

	err := r.Register("listener", "test_gauge", gauge)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestUnregisterAllowsReRegistration(t *testing.T) {
	r := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "wavescope_test_depth"})
	require.NoError(t, r.Register("listener", "depth", gauge))

	assert.True(t, r.Unregister("listener", "depth"))
	assert.False(t, r.Unregister("listener", "depth"))

	require.NoError(t, r.Register("listener", "depth", gauge))
}

func TestServerDefaults(t *testing.T) {
	s := NewServer(0, "", NewMetricsRegistry())
	assert.Equal(t, "http://localhost:9090/metrics", s.Address())
	assert.NoError(t, s.Stop())
}
