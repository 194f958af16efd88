package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Arunosaur/ninaivalaigal-sub001/errors"
)

// Registrar is the interface components use to register their own metrics
// alongside the core substrate metrics.
type Registrar interface {
	RegisterCollector(componentName, metricName string, c prometheus.Collector) error
	Unregister(componentName, metricName string) bool
}

// Registry manages the registration and lifecycle of metrics. Core substrate
// metrics are registered at construction; components add their own through
// the Registrar interface.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
	registered         map[string]prometheus.Collector
	mu                 sync.RWMutex
}

// NewRegistry creates a metrics registry with the core substrate metrics and
// the Go runtime collectors pre-registered.
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		registered:         make(map[string]prometheus.Collector),
		Metrics:            NewMetrics(),
	}

	r.prometheusRegistry.MustRegister(
		r.Metrics.OperationsTotal,
		r.Metrics.OperationDuration,
		r.Metrics.FailoversTotal,
		r.Metrics.RetriesTotal,
		r.Metrics.ProviderStatus,
		r.Metrics.ProvidersActive,
		r.Metrics.HealthCheckStatus,
		r.Metrics.CircuitBreakerOpen,
		r.Metrics.AlertsActive,
	)

	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the core substrate metrics.
func (r *Registry) CoreMetrics() *Metrics {
	return r.Metrics
}

// RegisterCollector registers a component metric. Registering the same
// (component, metric) pair twice is an invalid-input error.
func (r *Registry) RegisterCollector(componentName, metricName string, c prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", componentName, metricName)

	if _, exists := r.registered[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for component %s", metricName, componentName),
			"Registry", "RegisterCollector", "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(c); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegErr) {
			return errors.WrapInvalid(err, "Registry", "RegisterCollector",
				fmt.Sprintf("prometheus conflict for metric %s", metricName))
		}
		return errors.WrapFatal(err, "Registry", "RegisterCollector",
			"failed to register collector with prometheus")
	}

	r.registered[key] = c
	return nil
}

// Unregister removes a component metric from the registry.
func (r *Registry) Unregister(componentName, metricName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", componentName, metricName)

	c, exists := r.registered[key]
	if !exists {
		return false
	}

	ok := r.prometheusRegistry.Unregister(c)
	if ok {
		delete(r.registered, key)
	}
	return ok
}
