package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	MetricsPort     int
	SweepInterval   time.Duration
	ShutdownTimeout time.Duration
	NoDiscover      bool
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("NINAIVALAIGAL_CONFIG", "configs/providers.json"),
		"Path to provider configuration file (env: NINAIVALAIGAL_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("NINAIVALAIGAL_CONFIG", "configs/providers.json"),
		"Path to provider configuration file (env: NINAIVALAIGAL_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("NINAIVALAIGAL_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: NINAIVALAIGAL_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("NINAIVALAIGAL_LOG_FORMAT", "json"),
		"Log format: json, text (env: NINAIVALAIGAL_LOG_FORMAT)")

	flag.BoolVar(&cfg.Debug, "debug",
		getEnvBool("NINAIVALAIGAL_DEBUG", false),
		"Enable debug mode (env: NINAIVALAIGAL_DEBUG)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("NINAIVALAIGAL_METRICS_PORT", 9090),
		"Prometheus metrics port, 0 to disable (env: NINAIVALAIGAL_METRICS_PORT)")

	flag.DurationVar(&cfg.SweepInterval, "sweep-interval",
		getEnvDuration("NINAIVALAIGAL_SWEEP_INTERVAL", 30*time.Second),
		"Background health sweep cadence (env: NINAIVALAIGAL_SWEEP_INTERVAL)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("NINAIVALAIGAL_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: NINAIVALAIGAL_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.NoDiscover, "no-discover", false,
		"Skip provider discovery from environment variables")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate provider configuration and exit")

	// Custom usage
	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()

	// Override log level if debug is set
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	// Validate log format
	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	// Validate metrics port
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}

	if cfg.SweepInterval < 0 {
		return fmt.Errorf("invalid sweep interval: %s", cfg.SweepInterval)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Memory Substrate Daemon

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with a provider config file
  %s --config=/etc/ninaivalaigal/providers.json

  # Run with debug logging
  %s --log-level=debug --log-format=text

  # Run with environment-discovered providers
  export NINAIVALAIGAL_DATABASE_URL=postgres://localhost/memories
  export NINAIVALAIGAL_MEM0_URL=http://localhost:8765
  %s

  # Validate provider configuration only
  %s --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
