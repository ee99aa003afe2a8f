package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampref/streampref/errors"
)

func newTestCounter(name string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streampref",
		Subsystem: "test",
		Name:      name,
		Help:      "test counter",
	})
}

func TestRegisterAndUnregister(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := newTestCounter("ops_total")
	require.NoError(t, registry.RegisterCounter("engine", "ops", counter))

	assert.True(t, registry.Unregister("engine", "ops"))
	assert.False(t, registry.Unregister("engine", "ops"), "second unregister finds nothing")
}

func TestRegisterDuplicateKey(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NoError(t, registry.RegisterCounter("engine", "ops", newTestCounter("ops_total")))

	err := registry.RegisterCounter("engine", "ops", newTestCounter("other_total"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegisterPrometheusConflict(t *testing.T) {
	registry := NewMetricsRegistry()

	// Same prometheus identity under two registry keys.
	require.NoError(t, registry.RegisterCounter("engine", "ops", newTestCounter("ops_total")))

	err := registry.RegisterCounter("engine", "ops2", newTestCounter("ops_total"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestCoreMetricsRegistered(t *testing.T) {
	registry := NewMetricsRegistry()

	core := registry.CoreMetrics()
	require.NotNil(t, core)

	core.RecordServiceStatus("engine", 2)
	core.RecordDeltaReceived("engine")
	core.RecordResultPublished("engine", "results.q1")
	core.RecordError("engine", "fatal")
	core.RecordNATSStatus(true)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]struct{}, len(families))
	for _, f := range families {
		names[f.GetName()] = struct{}{}
	}
	assert.Contains(t, names, "streampref_service_status")
	assert.Contains(t, names, "streampref_stream_deltas_received_total")
	assert.Contains(t, names, "streampref_stream_results_published_total")
	assert.Contains(t, names, "streampref_nats_connected")
}
