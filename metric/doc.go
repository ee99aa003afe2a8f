// Package metric provides the Prometheus metrics infrastructure for the
// StreamPref engine: a registry combining the core platform metrics with
// per-service registrations, and an HTTP server exposing them.
//
// Components register their own metrics through the MetricsRegistrar
// interface under a service-scoped name, so two components cannot
// silently collide on a metric. The core Metrics cover service status,
// delta throughput, errors and the NATS connection.
package metric
