package substrate

import (
	"context"
	"log/slog"
	"time"

	"github.com/Arunosaur/ninaivalaigal-sub001/config"
	"github.com/Arunosaur/ninaivalaigal-sub001/errors"
	"github.com/Arunosaur/ninaivalaigal-sub001/failover"
	"github.com/Arunosaur/ninaivalaigal-sub001/health"
	"github.com/Arunosaur/ninaivalaigal-sub001/metric"
	"github.com/Arunosaur/ninaivalaigal-sub001/registry"
)

// AppConfig configures a fully wired substrate application.
type AppConfig struct {
	// ConfigPath is the JSON provider config file. Empty disables
	// persistence.
	ConfigPath string

	// SweepInterval overrides the registry's background probe cadence.
	// Zero keeps the default.
	SweepInterval time.Duration

	// MetricsPort enables the Prometheus HTTP endpoint when non-zero.
	MetricsPort int

	// AutoDiscover registers providers found in the environment.
	AutoDiscover bool

	Logger *slog.Logger
}

// App wires the registry, health monitor, failover manager, and substrate
// façade into one lifecycle. It owns the background loops and the optional
// metrics endpoint.
type App struct {
	Registry  *registry.Registry
	Monitor   *health.Monitor
	Failover  *failover.Manager
	Substrate *Manager
	Metrics   *metric.Registry

	metricsServer *metric.Server
	serverErr     chan error
	logger        *slog.Logger
}

// NewApp builds the substrate stack. Providers are loaded from the config
// file and, when enabled, discovered from the environment; backend factories
// must already be registered by the caller.
func NewApp(cfg AppConfig) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics := metric.NewRegistry()
	monitor := health.NewMonitor(logger)

	regOpts := []registry.Option{
		registry.WithConfigPath(cfg.ConfigPath),
		registry.WithHealthRecorder(monitor),
	}
	if cfg.SweepInterval > 0 {
		regOpts = append(regOpts, registry.WithSweepInterval(cfg.SweepInterval))
	}
	reg := registry.New(logger, regOpts...)

	if err := reg.LoadFromFile(); err != nil {
		return nil, errors.Wrap(err, "App", "NewApp", "provider config load")
	}
	if cfg.AutoDiscover {
		discovered := reg.AutoDiscover(true)
		if len(discovered) > 0 {
			logger.Info("providers discovered from environment", "providers", discovered)
		}
	}

	fm := failover.NewManager(reg, monitor, logger)

	app := &App{
		Registry:  reg,
		Monitor:   monitor,
		Failover:  fm,
		Metrics:   metrics,
		Substrate: NewManager(reg, monitor, fm, logger, WithMetrics(metrics.CoreMetrics())),
		logger:    logger.With("component", "substrate_app"),
	}

	if cfg.MetricsPort > 0 {
		app.metricsServer = metric.NewServer(cfg.MetricsPort, "/metrics", metrics)
	}
	return app, nil
}

// Start launches the substrate loops and, when configured, the metrics
// endpoint.
func (a *App) Start(ctx context.Context) error {
	if err := a.Substrate.Start(ctx); err != nil {
		return err
	}

	if a.metricsServer != nil {
		a.serverErr = make(chan error, 1)
		go func() {
			if err := a.metricsServer.Start(); err != nil {
				a.logger.Error("metrics server failed", "error", err)
				a.serverErr <- err
			}
			close(a.serverErr)
		}()
		a.logger.Info("metrics endpoint started", "address", a.metricsServer.Address())
	}
	return nil
}

// Stop shuts the stack down: metrics endpoint first, then the substrate
// loops and provider connections.
func (a *App) Stop() error {
	var firstErr error

	if a.metricsServer != nil {
		if err := a.metricsServer.Stop(); err != nil {
			firstErr = err
		}
		if a.serverErr != nil {
			<-a.serverErr
		}
	}

	if err := a.Substrate.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// ConfiguredProviders reads the provider config file without constructing an
// App. Useful for CLI inspection.
func ConfiguredProviders(path string) ([]registry.Info, error) {
	cfgs, err := config.LoadProviders(path)
	if err != nil {
		return nil, err
	}

	infos := make([]registry.Info, 0, len(cfgs))
	for _, c := range cfgs {
		infos = append(infos, registry.Info{
			Name:         c.Name,
			ProviderType: c.ProviderType,
			Priority:     c.Priority,
			Enabled:      c.Enabled,
		})
	}
	return infos, nil
}
