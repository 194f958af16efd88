// Package substrate is the façade over interchangeable memory backends.
//
// Manager routes every memory operation through the failover manager, so
// callers never pick a backend: candidates are ordered by the configured
// strategy, circuit breakers exclude misbehaving providers, and each served
// result is annotated with the provider that handled it. Deletes sweep every
// active provider, since failover writes mean a record can live anywhere.
//
// App assembles the full stack (registry, health monitor, failover manager,
// Prometheus metrics) behind a single Start/Stop lifecycle for daemons and
// embedders alike.
package substrate
