// Package ninaivalaigal provides the memory substrate for the ninaivalaigal
// platform: a resilient façade over interchangeable memory backends.
//
// # Architecture
//
// The substrate is built from four cooperating layers:
//
//	┌─────────────────────────────────────┐
//	│        substrate.Manager            │  One API for remember/recall/
//	│   (façade, provenance annotation)   │  delete/list across backends
//	└─────────────────────────────────────┘
//	           ↓ routes through
//	┌─────────────────────────────────────┐
//	│        failover.Manager             │  Strategy-ordered candidates,
//	│ (strategies, breakers, retries)     │  circuit breaking, bounded retry
//	└─────────────────────────────────────┘
//	           ↓ resolves via            ↘ records into
//	┌──────────────────────┐  ┌──────────────────────┐
//	│  registry.Registry   │  │   health.Monitor     │
//	│ (lifecycle, primary  │  │ (rolling metrics,    │
//	│  election, sweeps)   │  │  alerts, retention)  │
//	└──────────────────────┘  └──────────────────────┘
//
// Concrete backends live under provider/: PostgreSQL (pgx), SQLite
// (modernc), Redis, a mem0 HTTP sidecar, and an in-process store for tests
// and development. Each registers a factory keyed by provider type; the
// registry constructs instances from configuration.
//
// # Packages
//
//   - provider: backend contract, configs, and the factory dispatch
//   - registry: provider lifecycle, primary election, health sweeps
//   - health: per-provider rolling metrics, status thresholds, alerting
//   - failover: selection strategies, circuit breakers, bounded execution
//   - substrate: the façade and the assembled App lifecycle
//   - metric: Prometheus registry and HTTP exposition
//   - errors: classified errors (transient, invalid, not-found, fatal)
//   - pkg/retry: exponential backoff for backend dial paths
//
// cmd/substrated runs the substrate as a daemon with environment-based
// provider discovery and a Prometheus endpoint.
package ninaivalaigal
