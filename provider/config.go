package provider

import (
	"fmt"
	"strings"
	"time"
)

// Type identifies a concrete backend implementation.
type Type string

const (
	// TypePostgres is the native PostgreSQL backend
	TypePostgres Type = "postgres"
	// TypeSQLite is the embedded SQLite backend
	TypeSQLite Type = "sqlite"
	// TypeRedis is the Redis backend
	TypeRedis Type = "redis"
	// TypeMem0HTTP is the mem0 HTTP sidecar backend
	TypeMem0HTTP Type = "mem0_http"
	// TypeMemory is the in-process backend used for tests and local runs
	TypeMemory Type = "memory"
)

// ParseType converts a string to a provider Type.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypePostgres:
		return TypePostgres, nil
	case TypeSQLite:
		return TypeSQLite, nil
	case TypeRedis:
		return TypeRedis, nil
	case TypeMem0HTTP:
		return TypeMem0HTTP, nil
	case TypeMemory:
		return TypeMemory, nil
	default:
		return "", fmt.Errorf("unknown provider type %q", s)
	}
}

// Status represents the lifecycle state of a registered provider.
// Lifecycle: REGISTERED -> ACTIVE <-> ERROR -> INACTIVE (terminal unless
// re-registered).
type Status string

const (
	// StatusRegistered indicates the provider is configured but not activated
	StatusRegistered Status = "registered"
	// StatusActive indicates the provider instance is constructed and usable
	StatusActive Status = "active"
	// StatusInactive indicates the provider was deactivated by failover or
	// an operator; terminal unless re-registered
	StatusInactive Status = "inactive"
	// StatusError indicates activation or a health probe failed
	StatusError Status = "error"
	// StatusUnknown indicates the provider state has not been determined
	StatusUnknown Status = "unknown"
)

// Config describes a single provider. Immutable once activated except via
// explicit re-registration.
type Config struct {
	Name                string            `json:"name"`
	ProviderType        Type              `json:"provider_type"`
	ConnectionString    string            `json:"connection_string"`
	Priority            int               `json:"priority"` // lower = preferred
	Enabled             bool              `json:"enabled"`
	HealthCheckInterval time.Duration     `json:"health_check_interval"`
	Timeout             time.Duration     `json:"timeout"`
	RetryAttempts       int               `json:"retry_attempts"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// Validate checks the config for structural problems.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("provider name must not be empty")
	}
	if _, err := ParseType(string(c.ProviderType)); err != nil {
		return err
	}
	if c.Priority < 0 {
		return fmt.Errorf("provider %s: priority must not be negative", c.Name)
	}
	return nil
}

// WithDefaults returns a copy of the config with zero-valued tunables filled
// in.
func (c Config) WithDefaults() Config {
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = 30 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	return c
}
