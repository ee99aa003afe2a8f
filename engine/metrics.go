package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/streampref/streampref/metric"
)

// engineMetrics instruments the tick loop. A nil receiver records
// nothing, so the engine runs identically with metrics disabled.
type engineMetrics struct {
	ticks         *prometheus.CounterVec
	tickDuration  *prometheus.HistogramVec
	resultSize    *prometheus.GaugeVec
	queryErrors   *prometheus.CounterVec
	activeQueries prometheus.Gauge
}

func newEngineMetrics(registrar metric.MetricsRegistrar) (*engineMetrics, error) {
	if registrar == nil {
		return nil, nil
	}

	m := &engineMetrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streampref",
			Subsystem: "engine",
			Name:      "ticks_total",
			Help:      "Query evaluations by outcome",
		}, []string{"query", "status"}),
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "streampref",
			Subsystem: "engine",
			Name:      "tick_duration_seconds",
			Help:      "Time spent evaluating one query for one tick",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"query"}),
		resultSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "streampref",
			Subsystem: "engine",
			Name:      "result_size",
			Help:      "Tuples in the last published delta per direction",
		}, []string{"query", "direction"}),
		queryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streampref",
			Subsystem: "engine",
			Name:      "query_errors_total",
			Help:      "Evaluation failures by error class",
		}, []string{"query", "class"}),
		activeQueries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streampref",
			Subsystem: "engine",
			Name:      "active_queries",
			Help:      "Queries compiled into the running engine",
		}),
	}

	if err := registrar.RegisterCounterVec("engine", "ticks_total", m.ticks); err != nil {
		return nil, err
	}
	if err := registrar.RegisterHistogramVec("engine", "tick_duration_seconds", m.tickDuration); err != nil {
		return nil, err
	}
	if err := registrar.RegisterGaugeVec("engine", "result_size", m.resultSize); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounterVec("engine", "query_errors_total", m.queryErrors); err != nil {
		return nil, err
	}
	if err := registrar.RegisterGauge("engine", "active_queries", m.activeQueries); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *engineMetrics) recordTick(query, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(query, status).Inc()
	m.tickDuration.WithLabelValues(query).Observe(elapsed.Seconds())
}

func (m *engineMetrics) recordResult(query string, inserts, deletes int) {
	if m == nil {
		return
	}
	m.resultSize.WithLabelValues(query, "insert").Set(float64(inserts))
	m.resultSize.WithLabelValues(query, "delete").Set(float64(deletes))
}

func (m *engineMetrics) recordError(query, class string) {
	if m == nil {
		return
	}
	m.queryErrors.WithLabelValues(query, class).Inc()
}

func (m *engineMetrics) recordActive(n int) {
	if m == nil {
		return
	}
	m.activeQueries.Set(float64(n))
}
