package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the platform-level metrics shared by every component.
// The Record methods accept a nil receiver and do nothing, so callers can
// run without instrumentation.
type Metrics struct {
	ServiceStatus    *prometheus.GaugeVec
	DeltasReceived   *prometheus.CounterVec
	ResultsPublished *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec

	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
	NATSRTT        prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "streampref",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"service"},
		),

		DeltasReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streampref",
				Subsystem: "stream",
				Name:      "deltas_received_total",
				Help:      "Total number of stream deltas received",
			},
			[]string{"service"},
		),

		ResultsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streampref",
				Subsystem: "stream",
				Name:      "results_published_total",
				Help:      "Total number of result deltas published",
			},
			[]string{"service", "subject"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streampref",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"service", "type"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "streampref",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "streampref",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "streampref",
				Subsystem: "nats",
				Name:      "rtt_milliseconds",
				Help:      "NATS round-trip time in milliseconds",
			},
		),
	}
}

// RecordServiceStatus updates service status metric
func (c *Metrics) RecordServiceStatus(service string, status int) {
	if c == nil {
		return
	}
	c.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordDeltaReceived increments the received delta counter
func (c *Metrics) RecordDeltaReceived(service string) {
	if c == nil {
		return
	}
	c.DeltasReceived.WithLabelValues(service).Inc()
}

// RecordResultPublished increments the published result counter
func (c *Metrics) RecordResultPublished(service, subject string) {
	if c == nil {
		return
	}
	c.ResultsPublished.WithLabelValues(service, subject).Inc()
}

// RecordError increments error counter
func (c *Metrics) RecordError(service, errorType string) {
	if c == nil {
		return
	}
	c.ErrorsTotal.WithLabelValues(service, errorType).Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	if c == nil {
		return
	}
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	if c == nil {
		return
	}
	c.NATSReconnects.Inc()
}

// RecordNATSRTT updates NATS round-trip time
func (c *Metrics) RecordNATSRTT(rtt time.Duration) {
	if c == nil {
		return
	}
	c.NATSRTT.Set(float64(rtt.Milliseconds()))
}
