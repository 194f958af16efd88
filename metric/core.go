package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the substrate-level metrics shared by every component.
type Metrics struct {
	// Operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	FailoversTotal    *prometheus.CounterVec
	RetriesTotal      *prometheus.CounterVec

	// Provider metrics
	ProviderStatus     *prometheus.GaugeVec
	ProvidersActive    prometheus.Gauge
	HealthCheckStatus  *prometheus.GaugeVec
	CircuitBreakerOpen *prometheus.GaugeVec
	AlertsActive       *prometheus.GaugeVec
}

// NewMetrics creates a Metrics instance with all substrate metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ninaivalaigal",
				Subsystem: "substrate",
				Name:      "operations_total",
				Help:      "Total memory operations by provider, operation, and outcome",
			},
			[]string{"provider", "operation", "outcome"},
		),

		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ninaivalaigal",
				Subsystem: "substrate",
				Name:      "operation_duration_seconds",
				Help:      "Memory operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider", "operation"},
		),

		FailoversTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ninaivalaigal",
				Subsystem: "failover",
				Name:      "fallbacks_total",
				Help:      "Operations served by a non-first-choice provider",
			},
			[]string{"operation"},
		),

		RetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ninaivalaigal",
				Subsystem: "failover",
				Name:      "retries_total",
				Help:      "Retry attempts beyond the first, by operation",
			},
			[]string{"operation"},
		),

		ProviderStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ninaivalaigal",
				Subsystem: "provider",
				Name:      "status",
				Help:      "Provider lifecycle status (0=inactive, 1=registered, 2=active, 3=error)",
			},
			[]string{"provider"},
		),

		ProvidersActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ninaivalaigal",
				Subsystem: "provider",
				Name:      "active",
				Help:      "Number of providers currently eligible for operations",
			},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ninaivalaigal",
				Subsystem: "health",
				Name:      "status",
				Help:      "Provider health (0=unknown, 1=critical, 2=unhealthy, 3=degraded, 4=healthy)",
			},
			[]string{"provider"},
		),

		CircuitBreakerOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ninaivalaigal",
				Subsystem: "failover",
				Name:      "circuit_breaker_open",
				Help:      "Circuit breaker state per provider and operation (0=closed, 1=open)",
			},
			[]string{"provider", "operation"},
		),

		AlertsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ninaivalaigal",
				Subsystem: "health",
				Name:      "alerts_active",
				Help:      "Unresolved health alerts by severity",
			},
			[]string{"level"},
		),
	}
}

// RecordOperation records one provider attempt outcome with its duration.
func (m *Metrics) RecordOperation(provider, operation string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.OperationsTotal.WithLabelValues(provider, operation, outcome).Inc()
	m.OperationDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordFallback counts an operation served by a fallback provider.
func (m *Metrics) RecordFallback(operation string) {
	m.FailoversTotal.WithLabelValues(operation).Inc()
}

// RecordRetries counts retry attempts beyond the first for one operation call.
func (m *Metrics) RecordRetries(operation string, extra int) {
	if extra > 0 {
		m.RetriesTotal.WithLabelValues(operation).Add(float64(extra))
	}
}

// RecordProviderStatus updates the lifecycle status gauge for a provider.
func (m *Metrics) RecordProviderStatus(provider string, status int) {
	m.ProviderStatus.WithLabelValues(provider).Set(float64(status))
}

// RecordActiveProviders updates the active-provider count.
func (m *Metrics) RecordActiveProviders(count int) {
	m.ProvidersActive.Set(float64(count))
}

// RecordHealthStatus updates the health gauge for a provider.
func (m *Metrics) RecordHealthStatus(provider string, level int) {
	m.HealthCheckStatus.WithLabelValues(provider).Set(float64(level))
}

// RecordBreakerState updates the breaker gauge for a (provider, operation).
func (m *Metrics) RecordBreakerState(provider, operation string, open bool) {
	value := 0.0
	if open {
		value = 1.0
	}
	m.CircuitBreakerOpen.WithLabelValues(provider, operation).Set(value)
}

// RecordActiveAlerts updates the unresolved-alert gauge for one severity.
func (m *Metrics) RecordActiveAlerts(level string, count int) {
	m.AlertsActive.WithLabelValues(level).Set(float64(count))
}
