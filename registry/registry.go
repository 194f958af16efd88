// Package registry tracks configured providers, their lifecycle status, and
// resolves providers by name or by primary election.
//
// Provider lifecycle: registered -> active <-> error -> inactive (terminal
// unless re-registered). The registry itself never fails to initialize
// because of one bad provider: activation errors are caught per provider and
// recorded as status error.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Arunosaur/ninaivalaigal-sub001/config"
	"github.com/Arunosaur/ninaivalaigal-sub001/errors"
	"github.com/Arunosaur/ninaivalaigal-sub001/provider"
)

// HealthRecorder receives probe outcomes. Implemented by health.Monitor.
type HealthRecorder interface {
	RecordHealthCheck(providerName string, responseTimeMS float64, success bool, errorMsg string)
}

// Info is a read-only snapshot of one registered provider.
type Info struct {
	Name            string          `json:"name"`
	ProviderType    provider.Type   `json:"provider_type"`
	Status          provider.Status `json:"status"`
	Priority        int             `json:"priority"`
	Enabled         bool            `json:"enabled"`
	LastHealthCheck time.Time       `json:"last_health_check,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// registered is one tracked provider. Owned exclusively by the registry.
type registered struct {
	cfg             provider.Config
	factory         provider.Factory
	instance        provider.Provider
	status          provider.Status
	lastHealthCheck time.Time
	errorMessage    string
}

// Registry tracks configured providers and their lifecycle.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*registered
	order     []string // registration order, for stable priority ties
	primary   string   // cached primary name, "" when invalidated

	configPath string
	recorder   HealthRecorder
	logger     *slog.Logger

	sweepEvery time.Duration

	loopMu  sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithConfigPath sets the JSON file the registry persists its config set to.
func WithConfigPath(path string) Option {
	return func(r *Registry) { r.configPath = path }
}

// WithHealthRecorder wires probe outcomes into a health monitor.
func WithHealthRecorder(rec HealthRecorder) Option {
	return func(r *Registry) { r.recorder = rec }
}

// WithSweepInterval overrides the background health sweep cadence.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) { r.sweepEvery = d }
}

// New creates a provider registry.
func New(logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		providers:  make(map[string]*registered),
		logger:     logger.With("component", "provider_registry"),
		sweepEvery: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces a provider. An existing same-named entry is
// overwritten with a warning. The full config set is persisted to the
// backing file; when autoActivate is set the provider instance is
// constructed immediately and activation errors mark it status error
// without failing the registration.
func (r *Registry) Register(cfg provider.Config, factory provider.Factory, autoActivate bool) error {
	if err := cfg.Validate(); err != nil {
		return errors.WrapInvalid(err, "Registry", "Register", "config validation")
	}
	cfg = cfg.WithDefaults()

	if factory == nil {
		factory = provider.New
	}

	r.mu.Lock()
	if existing, ok := r.providers[cfg.Name]; ok {
		r.logger.Warn("overwriting existing provider registration",
			"provider", cfg.Name,
			"previous_status", string(existing.status))
		if existing.instance != nil {
			if err := existing.instance.Close(); err != nil {
				r.logger.Warn("closing replaced provider instance",
					"provider", cfg.Name, "error", err)
			}
		}
	} else {
		r.order = append(r.order, cfg.Name)
	}

	r.providers[cfg.Name] = &registered{
		cfg:     cfg,
		factory: factory,
		status:  provider.StatusRegistered,
	}
	r.primary = ""
	configs := r.configSetLocked()
	r.mu.Unlock()

	if err := config.SaveProviders(r.configPath, configs); err != nil {
		r.logger.Warn("persisting provider config set", "error", err)
	}

	if autoActivate {
		if err := r.Activate(cfg.Name); err != nil {
			r.logger.Warn("provider auto-activation failed",
				"provider", cfg.Name, "error", err)
		}
	}
	return nil
}

// configSetLocked snapshots the config set in registration order.
func (r *Registry) configSetLocked() []provider.Config {
	configs := make([]provider.Config, 0, len(r.order))
	for _, name := range r.order {
		if entry, ok := r.providers[name]; ok {
			configs = append(configs, entry.cfg)
		}
	}
	return configs
}

// Activate constructs the provider instance and marks it active.
// Construction errors are recorded on the entry as status error.
func (r *Registry) Activate(name string) error {
	r.mu.Lock()
	entry, ok := r.providers[name]
	if !ok {
		r.mu.Unlock()
		return errors.WrapNotFound(errors.ErrProviderNotFound, "Registry", "Activate", "provider lookup")
	}
	if entry.status == provider.StatusActive && entry.instance != nil {
		r.mu.Unlock()
		return nil
	}
	if !entry.cfg.Enabled {
		r.mu.Unlock()
		return errors.WrapInvalid(errors.ErrProviderInactive, "Registry", "Activate", "provider disabled")
	}
	factory := entry.factory
	cfg := entry.cfg
	r.mu.Unlock()

	// Construct outside the lock: factories may dial networks
	instance, err := factory(cfg)

	r.mu.Lock()
	defer r.mu.Unlock()

	// Entry may have been replaced while constructing
	entry, ok = r.providers[name]
	if !ok {
		if instance != nil {
			_ = instance.Close()
		}
		return errors.WrapNotFound(errors.ErrProviderNotFound, "Registry", "Activate", "provider lookup")
	}

	if err != nil {
		entry.status = provider.StatusError
		entry.errorMessage = err.Error()
		return errors.Wrap(err, "Registry", "Activate", "provider construction")
	}

	entry.instance = instance
	entry.status = provider.StatusActive
	entry.errorMessage = ""
	r.primary = ""
	r.logger.Info("provider activated", "provider", name, "type", string(cfg.ProviderType))
	return nil
}

// GetProvider returns the instance for an active provider, lazily
// constructing it when missing. Non-active providers yield an error.
func (r *Registry) GetProvider(name string) (provider.Provider, error) {
	r.mu.RLock()
	entry, ok := r.providers[name]
	if !ok {
		r.mu.RUnlock()
		return nil, errors.WrapNotFound(errors.ErrProviderNotFound, "Registry", "GetProvider", "provider lookup")
	}
	status := entry.status
	instance := entry.instance
	r.mu.RUnlock()

	if status != provider.StatusActive {
		return nil, errors.WrapTransient(errors.ErrProviderInactive, "Registry", "GetProvider",
			fmt.Sprintf("provider %s is %s", name, status))
	}

	if instance == nil {
		if err := r.Activate(name); err != nil {
			return nil, err
		}
		r.mu.RLock()
		instance = r.providers[name].instance
		r.mu.RUnlock()
	}
	return instance, nil
}

// GetPrimaryProvider resolves the current primary: the lowest-priority
// active provider, cached until invalidated by failover, deactivation, or
// re-registration.
func (r *Registry) GetPrimaryProvider() (string, provider.Provider, error) {
	r.mu.RLock()
	cached := r.primary
	r.mu.RUnlock()

	if cached != "" {
		if instance, err := r.GetProvider(cached); err == nil {
			return cached, instance, nil
		}
	}

	name, err := r.electPrimary()
	if err != nil {
		return "", nil, err
	}

	instance, err := r.GetProvider(name)
	if err != nil {
		return "", nil, err
	}
	return name, instance, nil
}

// electPrimary picks the lowest-priority active provider and caches it.
// Ties preserve registration order.
func (r *Registry) electPrimary() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	type candidate struct {
		name     string
		priority int
		index    int
	}

	var candidates []candidate
	for i, name := range r.order {
		entry := r.providers[name]
		if entry == nil || entry.status != provider.StatusActive {
			continue
		}
		candidates = append(candidates, candidate{name: name, priority: entry.cfg.Priority, index: i})
	}

	if len(candidates) == 0 {
		return "", errors.WrapFatal(errors.ErrNoProviders, "Registry", "electPrimary", "primary election")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority < candidates[j].priority
		}
		return candidates[i].index < candidates[j].index
	})

	r.primary = candidates[0].name
	return r.primary, nil
}

// Promote makes the named provider the primary by lowering its priority
// below every other provider's and persisting the updated config set. The
// provider must be active.
func (r *Registry) Promote(name string) error {
	r.mu.Lock()

	entry, ok := r.providers[name]
	if !ok {
		r.mu.Unlock()
		return errors.WrapNotFound(errors.ErrProviderNotFound, "Registry", "Promote", "provider lookup")
	}
	if entry.status != provider.StatusActive {
		r.mu.Unlock()
		return errors.WrapInvalid(errors.ErrProviderInactive, "Registry", "Promote",
			fmt.Sprintf("provider %s has status %s", name, entry.status))
	}

	minPriority := entry.cfg.Priority
	for _, other := range r.providers {
		if other.cfg.Priority < minPriority {
			minPriority = other.cfg.Priority
		}
	}
	if minPriority > 0 {
		entry.cfg.Priority = minPriority - 1
	} else {
		// Priorities must stay non-negative or the persisted config set
		// fails validation on reload. Make room at 0 by demoting the rest.
		for otherName, other := range r.providers {
			if otherName != name {
				other.cfg.Priority++
			}
		}
		entry.cfg.Priority = 0
	}
	priority := entry.cfg.Priority
	r.primary = name

	cfgs := r.configSetLocked()
	r.mu.Unlock()

	if err := config.SaveProviders(r.configPath, cfgs); err != nil {
		r.logger.Warn("persisting provider config set", "error", err)
	}

	r.logger.Info("provider promoted to primary", "provider", name, "priority", priority)
	return nil
}

// ListProviders returns a snapshot of all providers, optionally filtered by
// status ("" matches all). Order follows registration order.
func (r *Registry) ListProviders(statusFilter provider.Status) []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		entry, ok := r.providers[name]
		if !ok {
			continue
		}
		if statusFilter != "" && entry.status != statusFilter {
			continue
		}
		infos = append(infos, Info{
			Name:            entry.cfg.Name,
			ProviderType:    entry.cfg.ProviderType,
			Status:          entry.status,
			Priority:        entry.cfg.Priority,
			Enabled:         entry.cfg.Enabled,
			LastHealthCheck: entry.lastHealthCheck,
			Error:           entry.errorMessage,
		})
	}
	return infos
}

// ActiveProviders returns the names of active providers in registration
// order.
func (r *Registry) ActiveProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for _, name := range r.order {
		if entry, ok := r.providers[name]; ok && entry.status == provider.StatusActive {
			names = append(names, name)
		}
	}
	return names
}

// Config returns the stored config for a provider.
func (r *Registry) Config(name string) (provider.Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.providers[name]
	if !ok {
		return provider.Config{}, errors.WrapNotFound(errors.ErrProviderNotFound, "Registry", "Config", "provider lookup")
	}
	return entry.cfg, nil
}

// HealthCheckProvider probes one provider and applies status transitions:
// error -> active on recovery, active -> error on failure. The last health
// check time is always recorded, and the outcome is fed to the health
// recorder when one is wired.
func (r *Registry) HealthCheckProvider(ctx context.Context, name string) (bool, error) {
	instance, err := r.GetProvider(name)
	if err != nil {
		// An entry in error state may have recovered; retry activation once
		if errors.IsNotFound(err) {
			return false, err
		}
		if actErr := r.reactivate(name); actErr != nil {
			r.recordProbe(name, 0, false, actErr.Error())
			return false, nil
		}
		instance, err = r.GetProvider(name)
		if err != nil {
			r.recordProbe(name, 0, false, err.Error())
			return false, nil
		}
	}

	cfg, err := r.Config(name)
	if err != nil {
		return false, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	start := time.Now()
	probeErr := instance.HealthCheck(probeCtx)
	if probeErr != nil && probeCtx.Err() == nil {
		// Cheap fallback: a backend that can still list is considered alive
		_, probeErr = instance.ListMemories(probeCtx, provider.ListParams{Namespace: "_health", Limit: 1})
	}
	elapsedMS := float64(time.Since(start)) / float64(time.Millisecond)

	r.mu.Lock()
	entry, ok := r.providers[name]
	if ok {
		entry.lastHealthCheck = time.Now().UTC()
		if probeErr != nil {
			if entry.status == provider.StatusActive {
				entry.status = provider.StatusError
				r.primary = ""
				r.logger.Warn("provider failed health check",
					"provider", name, "error", probeErr)
			}
			entry.errorMessage = probeErr.Error()
		} else if entry.status == provider.StatusError {
			entry.status = provider.StatusActive
			entry.errorMessage = ""
			r.primary = ""
			r.logger.Info("provider recovered", "provider", name)
		}
	}
	r.mu.Unlock()

	if probeErr != nil {
		r.recordProbe(name, elapsedMS, false, probeErr.Error())
		return false, nil
	}
	r.recordProbe(name, elapsedMS, true, "")
	return true, nil
}

// reactivate retries activation for a provider in error state.
func (r *Registry) reactivate(name string) error {
	r.mu.Lock()
	entry, ok := r.providers[name]
	if !ok {
		r.mu.Unlock()
		return errors.ErrProviderNotFound
	}
	if entry.status == provider.StatusInactive {
		r.mu.Unlock()
		return errors.ErrProviderInactive
	}
	if entry.instance != nil {
		// Instance exists; flip status back and let the probe decide
		entry.status = provider.StatusActive
		r.mu.Unlock()
		return nil
	}
	entry.status = provider.StatusActive
	r.mu.Unlock()
	return r.Activate(name)
}

func (r *Registry) recordProbe(name string, elapsedMS float64, success bool, errMsg string) {
	if r.recorder != nil {
		r.recorder.RecordHealthCheck(name, elapsedMS, success, errMsg)
	}
}

// FailoverToBackup marks the failed provider inactive and re-elects the
// lowest-priority remaining active provider as primary. Returns the new
// primary name, or an error when none remains.
func (r *Registry) FailoverToBackup(failedName string) (string, error) {
	r.mu.Lock()
	entry, ok := r.providers[failedName]
	if !ok {
		r.mu.Unlock()
		return "", errors.WrapNotFound(errors.ErrProviderNotFound, "Registry", "FailoverToBackup", "provider lookup")
	}

	entry.status = provider.StatusInactive
	if entry.instance != nil {
		if err := entry.instance.Close(); err != nil {
			r.logger.Warn("closing failed provider", "provider", failedName, "error", err)
		}
		entry.instance = nil
	}
	r.primary = ""
	r.mu.Unlock()

	r.logger.Warn("provider failed over", "provider", failedName)

	name, err := r.electPrimary()
	if err != nil {
		return "", err
	}
	return name, nil
}

// AutoDiscover registers providers found in recognized environment variables
// that are not already present. Existing registrations are never overwritten
// by discovery.
func (r *Registry) AutoDiscover(autoActivate bool) []string {
	var added []string
	for _, cfg := range config.DiscoverFromEnv() {
		r.mu.RLock()
		_, exists := r.providers[cfg.Name]
		r.mu.RUnlock()
		if exists {
			continue
		}
		if err := r.Register(cfg, nil, autoActivate); err != nil {
			r.logger.Warn("auto-discovery registration failed",
				"provider", cfg.Name, "error", err)
			continue
		}
		added = append(added, cfg.Name)
	}
	return added
}

// LoadFromFile registers all providers persisted in the config file. Enabled
// providers are marked active for lazy construction on first use.
func (r *Registry) LoadFromFile() error {
	configs, err := config.LoadProviders(r.configPath)
	if err != nil {
		return errors.Wrap(err, "Registry", "LoadFromFile", "config load")
	}

	for _, cfg := range configs {
		if err := r.Register(cfg, nil, false); err != nil {
			r.logger.Warn("loading persisted provider failed",
				"provider", cfg.Name, "error", err)
			continue
		}
		if cfg.Enabled {
			// Mark eligible; construction is deferred to first GetProvider
			r.mu.Lock()
			if entry, ok := r.providers[cfg.Name]; ok {
				entry.status = provider.StatusActive
			}
			r.mu.Unlock()
		}
	}
	return nil
}

// CheckAllProviders probes every active provider concurrently and joins all
// results. This sweep is the only fan-out in the system; per-call candidate
// iteration elsewhere stays sequential.
func (r *Registry) CheckAllProviders(ctx context.Context) {
	names := r.ActiveProviders()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if _, err := r.HealthCheckProvider(ctx, name); err != nil {
				r.logger.Warn("health sweep probe failed", "provider", name, "error", err)
			}
		}(name)
	}
	wg.Wait()
}

// Start launches the periodic health sweep over all active providers.
func (r *Registry) Start(ctx context.Context) error {
	r.loopMu.Lock()
	defer r.loopMu.Unlock()

	if r.started {
		return errors.ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.started = true

	go r.sweepLoop(loopCtx)
	return nil
}

// Stop cancels the sweep loop and waits for it to exit.
func (r *Registry) Stop() {
	r.loopMu.Lock()
	defer r.loopMu.Unlock()

	if !r.started {
		return
	}
	r.cancel()
	<-r.done
	r.started = false
}

func (r *Registry) sweepLoop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.CheckAllProviders(ctx)
		}
	}
}

// Close closes all provider instances. Call after Stop.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, entry := range r.providers {
		if entry.instance == nil {
			continue
		}
		if err := entry.instance.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "Registry", "Close", "closing provider "+name)
		}
		entry.instance = nil
	}
	return firstErr
}
