// Package main implements the entry point for the memory substrate daemon.
// substrated supervises a set of interchangeable memory backends behind one
// resilient façade: health monitoring, circuit breaking, and automatic
// failover between providers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/Arunosaur/ninaivalaigal-sub001/config"
	"github.com/Arunosaur/ninaivalaigal-sub001/provider/mem0"
	memprovider "github.com/Arunosaur/ninaivalaigal-sub001/provider/memory"
	"github.com/Arunosaur/ninaivalaigal-sub001/provider/postgres"
	redisprovider "github.com/Arunosaur/ninaivalaigal-sub001/provider/redis"
	"github.com/Arunosaur/ninaivalaigal-sub001/provider/sqlite"
	"github.com/Arunosaur/ninaivalaigal-sub001/substrate"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "substrated"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	if err := registerBackends(); err != nil {
		return fmt.Errorf("register backends: %w", err)
	}

	if cliCfg.Validate {
		return validateConfiguration(cliCfg.ConfigPath)
	}

	app, err := substrate.NewApp(substrate.AppConfig{
		ConfigPath:    cliCfg.ConfigPath,
		SweepInterval: cliCfg.SweepInterval,
		MetricsPort:   cliCfg.MetricsPort,
		AutoDiscover:  !cliCfg.NoDiscover,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("build substrate: %w", err)
	}

	// Run application with signal handling
	return runWithSignalHandling(app, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting memory substrate daemon",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// registerBackends installs the factory for every built-in provider type.
func registerBackends() error {
	registrations := []func() error{
		postgres.Register,
		sqlite.Register,
		redisprovider.Register,
		mem0.Register,
		memprovider.Register,
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}

// validateConfiguration checks the provider config file and exits.
func validateConfiguration(path string) error {
	cfgs, err := config.LoadProviders(path)
	if err != nil {
		return fmt.Errorf("load provider config: %w", err)
	}

	for _, cfg := range cfgs {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("provider %q: %w", cfg.Name, err)
		}
	}

	slog.Info("Provider configuration is valid", "providers", len(cfgs))
	return nil
}

// runWithSignalHandling starts the substrate and handles shutdown signals
func runWithSignalHandling(app *substrate.App, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := app.Start(signalCtx); err != nil {
		return fmt.Errorf("start substrate: %w", err)
	}
	slog.Info("Memory substrate started",
		"active_providers", app.Registry.ActiveProviders())

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	done := make(chan error, 1)
	go func() { done <- app.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	case <-time.After(shutdownTimeout):
		return fmt.Errorf("shutdown timed out after %s", shutdownTimeout)
	}

	slog.Info("Memory substrate shutdown complete")
	return nil
}
