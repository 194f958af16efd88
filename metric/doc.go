// Package metric provides the Prometheus metrics registry and HTTP exposition
// for the memory substrate.
//
// A single Registry owns the prometheus.Registry and the core substrate
// metrics (operation counters and latency histograms by provider, provider
// lifecycle and health gauges, circuit breaker and fallback counters).
// Components register additional collectors through the Registrar interface;
// duplicate registrations are rejected as invalid input rather than
// panicking.
//
// Server exposes the registry at a configurable port and path, with a
// trivial /health endpoint for liveness probes.
package metric
