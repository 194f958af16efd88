// Package health tracks per-provider health observations and derives rolling
// status summaries, trend reports, and deduplicated alerts.
//
// The monitor is append-only: callers record one Metric per probe or
// operation outcome via RecordHealthCheck, and the monitor recomputes the
// provider's Summary over a rolling window (default 24h, falling back to the
// last 10 samples when the window is empty). Status is always derived from
// summary fields by ComputeStatus, never set directly.
//
// Alert creation is deduplicated: a new alert is raised only when no
// unresolved alert with the same message exists for that provider. Registered
// callbacks run synchronously per alert; panics are recovered and logged.
//
// A background cleanup loop (Start/Stop) prunes metrics past retention
// (default 168h) and resolved alerts older than 24h.
package health
