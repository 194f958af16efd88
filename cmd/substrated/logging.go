package main

import (
	"log/slog"
	"os"
	"strings"
)

// parseLevel maps a CLI level string onto slog's levels. Unknown values fall
// back to info rather than failing startup.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogger builds the daemon's root logger. JSON on stdout is the default
// so substrated's lines can be shipped with the rest of the platform's logs;
// text goes to stderr for interactive runs. Every line carries the service
// identity and host so logs from multiple substrate nodes stay
// distinguishable.
func setupLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: strings.EqualFold(level, "debug"),
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	host, _ := os.Hostname()
	return slog.New(handler).With(
		"service", appName,
		"version", Version,
		"host", host,
		"pid", os.Getpid(),
	)
}
