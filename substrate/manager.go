package substrate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Arunosaur/ninaivalaigal-sub001/errors"
	"github.com/Arunosaur/ninaivalaigal-sub001/failover"
	"github.com/Arunosaur/ninaivalaigal-sub001/health"
	"github.com/Arunosaur/ninaivalaigal-sub001/metric"
	"github.com/Arunosaur/ninaivalaigal-sub001/provider"
	"github.com/Arunosaur/ninaivalaigal-sub001/registry"
)

// OperationResult annotates a served operation with where and how it was
// served.
type OperationResult struct {
	Provider       string    `json:"provider"`
	ResponseTimeMS float64   `json:"response_time_ms"`
	Timestamp      time.Time `json:"timestamp"`
	Attempts       int       `json:"attempts"`
	FallbackUsed   bool      `json:"fallback_used"`
}

// DeleteResult reports the per-provider outcome of a delete, which runs
// against every active provider so no backend keeps a stale copy.
type DeleteResult struct {
	Deleted []string          `json:"deleted,omitempty"`
	Missing []string          `json:"missing,omitempty"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// HealthStatus is the immediate health view across all providers.
type HealthStatus struct {
	Timestamp time.Time                 `json:"timestamp"`
	Providers map[string]health.Summary `json:"providers"`
	Alerts    []health.Alert            `json:"alerts,omitempty"`
}

// Metrics aggregates registry, health, and failover introspection.
type Metrics struct {
	Timestamp time.Time                `json:"timestamp"`
	Providers []registry.Info          `json:"providers"`
	Health    map[string]health.Export `json:"health"`
	Failover  failover.Statistics      `json:"failover"`
}

// Manager is the façade over interchangeable memory backends. All memory
// operations route through the failover manager; outcomes feed the health
// monitor and the Prometheus metrics.
type Manager struct {
	registry *registry.Registry
	monitor  *health.Monitor
	failover *failover.Manager
	metrics  *metric.Metrics
	logger   *slog.Logger

	deleteTimeout time.Duration
	probeInterval time.Duration

	loopMu     sync.Mutex
	started    bool
	loopCancel context.CancelFunc
	loopWG     sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics wires operation outcomes into the Prometheus metrics.
func WithMetrics(m *metric.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithDeleteTimeout overrides the per-provider timeout used by the
// delete-everywhere sweep.
func WithDeleteTimeout(d time.Duration) Option {
	return func(mgr *Manager) { mgr.deleteTimeout = d }
}

// WithProbeInterval overrides the cadence of the manager's own state probe
// loop, which refreshes the provider, health, and breaker gauges.
func WithProbeInterval(d time.Duration) Option {
	return func(mgr *Manager) { mgr.probeInterval = d }
}

// NewManager creates the substrate façade over an already-populated registry.
func NewManager(reg *registry.Registry, monitor *health.Monitor, fm *failover.Manager, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		registry:      reg,
		monitor:       monitor,
		failover:      fm,
		logger:        logger.With("component", "substrate_manager"),
		deleteTimeout: 5 * time.Second,
		probeInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the background loops: the registry health sweep, the
// monitor's retention cleanup, and the manager's own gauge probe loop.
func (m *Manager) Start(ctx context.Context) error {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()

	if m.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "SubstrateManager", "Start", "lifecycle")
	}

	if err := m.monitor.Start(ctx); err != nil {
		return errors.Wrap(err, "SubstrateManager", "Start", "health monitor startup")
	}
	if err := m.registry.Start(ctx); err != nil {
		m.monitor.Stop()
		return errors.Wrap(err, "SubstrateManager", "Start", "registry startup")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.loopCancel = cancel
	m.loopWG.Add(1)
	go m.probeLoop(loopCtx)

	m.started = true
	m.logger.Info("substrate manager started",
		"active_providers", len(m.registry.ActiveProviders()))
	return nil
}

// Stop halts the background loops and closes all provider instances. The
// loops are joined before provider connections are released.
func (m *Manager) Stop() error {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()

	if !m.started {
		return nil
	}
	m.started = false

	m.loopCancel()
	m.loopWG.Wait()
	m.registry.Stop()
	m.monitor.Stop()

	if err := m.registry.Close(); err != nil {
		return errors.Wrap(err, "SubstrateManager", "Stop", "provider shutdown")
	}
	m.logger.Info("substrate manager stopped")
	return nil
}

// probeLoop periodically republishes registry, health, breaker, and alert
// state to the Prometheus gauges. Backend probing itself stays with the
// registry sweep; this loop only snapshots current state.
func (m *Manager) probeLoop(ctx context.Context) {
	defer m.loopWG.Done()

	ticker := time.NewTicker(m.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refreshGauges()
		}
	}
}

// refreshGauges snapshots component state into the gauges.
func (m *Manager) refreshGauges() {
	if m.metrics == nil {
		return
	}

	active := 0
	for _, info := range m.registry.ListProviders("") {
		if info.Status == provider.StatusActive {
			active++
		}
		m.metrics.RecordProviderStatus(info.Name, providerStatusValue(info.Status))
	}
	m.metrics.RecordActiveProviders(active)

	for name, summary := range m.monitor.GetAllProviderHealth() {
		m.metrics.RecordHealthStatus(name, healthStatusValue(summary.Status))
	}

	for _, info := range m.failover.CircuitBreakers() {
		m.metrics.RecordBreakerState(info.Provider, string(info.Operation), info.Open)
	}

	counts := make(map[health.AlertLevel]int)
	for _, alert := range m.monitor.GetActiveAlerts("") {
		counts[alert.Level]++
	}
	for _, level := range []health.AlertLevel{health.AlertInfo, health.AlertWarning, health.AlertError, health.AlertCritical} {
		m.metrics.RecordActiveAlerts(string(level), counts[level])
	}
}

func providerStatusValue(s provider.Status) int {
	switch s {
	case provider.StatusInactive:
		return 0
	case provider.StatusRegistered:
		return 1
	case provider.StatusActive:
		return 2
	case provider.StatusError:
		return 3
	default:
		return 0
	}
}

func healthStatusValue(s health.Status) int {
	switch s {
	case health.StatusCritical:
		return 1
	case health.StatusUnhealthy:
		return 2
	case health.StatusDegraded:
		return 3
	case health.StatusHealthy:
		return 4
	default:
		return 0
	}
}

// Remember stores a memory on the first provider that accepts it.
func (m *Manager) Remember(ctx context.Context, params provider.RememberParams) (*provider.Memory, *OperationResult, error) {
	if params.Namespace == "" {
		return nil, nil, errors.WrapInvalid(errors.ErrEmptyNamespace, "SubstrateManager", "Remember", "parameter validation")
	}
	if params.Content == "" {
		return nil, nil, errors.WrapInvalid(errors.ErrInvalidMemory, "SubstrateManager", "Remember", "empty content")
	}

	res := m.failover.ExecuteOperation(ctx, provider.OpRemember, func(ctx context.Context, p provider.Provider) (any, error) {
		return p.Remember(ctx, params)
	})
	m.observe(provider.OpRemember, res)

	if !res.Success {
		return nil, nil, errors.Wrap(res.Err, "SubstrateManager", "Remember", "store memory")
	}

	mem := res.Value.(*provider.Memory)
	mem.Provenance = res.ProviderName
	return mem, annotate(res), nil
}

// Recall retrieves memories matching the query from the first provider that
// can serve it.
func (m *Manager) Recall(ctx context.Context, params provider.RecallParams) ([]provider.Memory, *OperationResult, error) {
	if params.Namespace == "" {
		return nil, nil, errors.WrapInvalid(errors.ErrEmptyNamespace, "SubstrateManager", "Recall", "parameter validation")
	}

	res := m.failover.ExecuteOperation(ctx, provider.OpRecall, func(ctx context.Context, p provider.Provider) (any, error) {
		return p.Recall(ctx, params)
	})
	m.observe(provider.OpRecall, res)

	if !res.Success {
		return nil, nil, errors.Wrap(res.Err, "SubstrateManager", "Recall", "query memories")
	}

	memories := res.Value.([]provider.Memory)
	for i := range memories {
		memories[i].Provenance = res.ProviderName
	}
	return memories, annotate(res), nil
}

// ListMemories enumerates memories in a namespace from the first provider
// that can serve it.
func (m *Manager) ListMemories(ctx context.Context, params provider.ListParams) ([]provider.Memory, *OperationResult, error) {
	if params.Namespace == "" {
		return nil, nil, errors.WrapInvalid(errors.ErrEmptyNamespace, "SubstrateManager", "ListMemories", "parameter validation")
	}

	res := m.failover.ExecuteOperation(ctx, provider.OpList, func(ctx context.Context, p provider.Provider) (any, error) {
		return p.ListMemories(ctx, params)
	})
	m.observe(provider.OpList, res)

	if !res.Success {
		return nil, nil, errors.Wrap(res.Err, "SubstrateManager", "ListMemories", "list memories")
	}

	memories := res.Value.([]provider.Memory)
	for i := range memories {
		memories[i].Provenance = res.ProviderName
	}
	return memories, annotate(res), nil
}

// Delete removes a memory from every active provider. Failover writes mean a
// record can live on any backend, so deleting only from the primary would
// leave stale copies behind. The call succeeds when at least one provider
// deleted the record; a record missing everywhere is a not-found error.
func (m *Manager) Delete(ctx context.Context, params provider.DeleteParams) (*DeleteResult, error) {
	if params.Namespace == "" {
		return nil, errors.WrapInvalid(errors.ErrEmptyNamespace, "SubstrateManager", "Delete", "parameter validation")
	}
	if params.ID == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidMemory, "SubstrateManager", "Delete", "empty memory id")
	}

	active := m.registry.ActiveProviders()
	if len(active) == 0 {
		return nil, errors.WrapFatal(errors.ErrNoProviders, "SubstrateManager", "Delete", "no active providers")
	}

	result := &DeleteResult{}
	for _, name := range active {
		if err := ctx.Err(); err != nil {
			return result, errors.WrapTransient(err, "SubstrateManager", "Delete", "context cancelled mid-sweep")
		}

		instance, err := m.registry.GetProvider(name)
		if err != nil {
			continue
		}

		start := time.Now()
		delCtx, cancel := context.WithTimeout(ctx, m.deleteTimeout)
		err = instance.Delete(delCtx, params)
		cancel()
		elapsedMS := float64(time.Since(start)) / float64(time.Millisecond)

		switch {
		case err == nil:
			result.Deleted = append(result.Deleted, name)
			m.record(name, provider.OpDelete, true, elapsedMS, "")
		case errors.IsNotFound(err):
			// Absence on one backend is normal, not a health signal
			result.Missing = append(result.Missing, name)
		default:
			if result.Failed == nil {
				result.Failed = make(map[string]string)
			}
			result.Failed[name] = err.Error()
			m.record(name, provider.OpDelete, false, elapsedMS, err.Error())
			m.logger.Warn("delete failed on provider",
				"provider", name, "namespace", params.Namespace, "id", params.ID, "error", err)
		}
	}

	if len(result.Deleted) > 0 {
		return result, nil
	}
	if len(result.Failed) == 0 {
		return result, errors.WrapNotFound(errors.ErrNotFound, "SubstrateManager", "Delete",
			fmt.Sprintf("memory %s not present on any provider", params.ID))
	}
	return result, errors.WrapTransient(errors.ErrAllProvidersFailed, "SubstrateManager", "Delete",
		fmt.Sprintf("%d providers failed, none deleted", len(result.Failed)))
}

// GetHealthStatus probes every provider immediately and returns the refreshed
// summaries with any unresolved alerts.
func (m *Manager) GetHealthStatus(ctx context.Context) HealthStatus {
	m.registry.CheckAllProviders(ctx)

	return HealthStatus{
		Timestamp: time.Now().UTC(),
		Providers: m.monitor.GetAllProviderHealth(),
		Alerts:    m.monitor.GetActiveAlerts(""),
	}
}

// GetSubstrateMetrics snapshots registry, health, and failover state without
// probing.
func (m *Manager) GetSubstrateMetrics() Metrics {
	infos := m.registry.ListProviders("")

	exports := make(map[string]health.Export, len(infos))
	for _, info := range infos {
		exports[info.Name] = m.monitor.ExportHealthData(info.Name)
	}

	return Metrics{
		Timestamp: time.Now().UTC(),
		Providers: infos,
		Health:    exports,
		Failover:  m.failover.GetFailoverStatistics(),
	}
}

// GetHealthTrends returns aggregate and hourly health statistics for one
// provider.
func (m *Manager) GetHealthTrends(providerName string, hours int) (health.Trends, error) {
	return m.monitor.GetHealthTrends(providerName, hours)
}

// SwitchPrimaryProvider promotes the named provider to primary. A provider
// currently rated unhealthy or critical is refused.
func (m *Manager) SwitchPrimaryProvider(name string) error {
	if summary, ok := m.monitor.GetProviderHealth(name); ok {
		if summary.Status == health.StatusUnhealthy || summary.Status == health.StatusCritical {
			return errors.WrapInvalid(
				fmt.Errorf("provider %s is %s", name, summary.Status),
				"SubstrateManager", "SwitchPrimaryProvider", "refusing unhealthy primary")
		}
	}
	return m.registry.Promote(name)
}

// PrimaryProvider returns the current primary provider name.
func (m *Manager) PrimaryProvider() (string, error) {
	name, _, err := m.registry.GetPrimaryProvider()
	return name, err
}

// ResetCircuitBreakers clears failover breakers for one provider, or all
// when name is empty.
func (m *Manager) ResetCircuitBreakers(name string) int {
	return m.failover.ResetCircuitBreakers(name)
}

// observe feeds one failover result into the Prometheus metrics. The health
// monitor already saw each attempt through the failover manager.
func (m *Manager) observe(op provider.OperationType, res failover.Result) {
	if m.metrics == nil {
		return
	}

	name := res.ProviderName
	if name == "" {
		name = "none"
	}
	m.metrics.RecordOperation(name, string(op), res.Success, time.Duration(res.ResponseTimeMS*float64(time.Millisecond)))
	m.metrics.RecordRetries(string(op), res.Attempts-1)
	if res.FallbackUsed {
		m.metrics.RecordFallback(string(op))
	}
}

// record feeds one direct provider call (outside the failover path) into the
// health monitor and metrics.
func (m *Manager) record(name string, op provider.OperationType, success bool, elapsedMS float64, errMsg string) {
	m.monitor.RecordHealthCheck(name, elapsedMS, success, errMsg)
	if m.metrics != nil {
		m.metrics.RecordOperation(name, string(op), success, time.Duration(elapsedMS*float64(time.Millisecond)))
	}
}

func annotate(res failover.Result) *OperationResult {
	return &OperationResult{
		Provider:       res.ProviderName,
		ResponseTimeMS: res.ResponseTimeMS,
		Timestamp:      time.Now().UTC(),
		Attempts:       res.Attempts,
		FallbackUsed:   res.FallbackUsed,
	}
}
