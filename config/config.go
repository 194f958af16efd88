// Package config handles substrate configuration: the JSON file that
// persists the provider registry state, and environment-variable
// auto-discovery of well-known backends.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/Arunosaur/ninaivalaigal-sub001/errors"
	"github.com/Arunosaur/ninaivalaigal-sub001/provider"
)

// Environment variables recognized by auto-discovery.
const (
	// EnvDatabaseURL points at the native PostgreSQL backend
	EnvDatabaseURL = "NINAIVALAIGAL_DATABASE_URL"
	// EnvMem0URL points at the mem0 HTTP sidecar
	EnvMem0URL = "NINAIVALAIGAL_MEM0_URL"
	// EnvMem0Secret is the shared secret for the sidecar
	EnvMem0Secret = "NINAIVALAIGAL_MEM0_SECRET"
)

// Default priorities for auto-discovered providers; lower is preferred.
const (
	DatabasePriority = 10
	SidecarPriority  = 20
)

// File is the on-disk registry state.
type File struct {
	Providers []provider.Config `json:"providers"`
}

// LoadProviders reads the provider config set from a JSON file. A missing
// file is not an error; it returns an empty set so startup never aborts on
// first run.
func LoadProviders(path string) ([]provider.Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapInvalid(err, "Config", "LoadProviders", "config file read")
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "LoadProviders", "config file parsing")
	}

	for i := range file.Providers {
		file.Providers[i] = file.Providers[i].WithDefaults()
	}
	return file.Providers, nil
}

// SaveProviders writes the full provider config set back to the JSON file,
// preserving order. The write is atomic: a temp file is renamed over the
// target.
func SaveProviders(path string, providers []provider.Config) error {
	if path == "" {
		return nil
	}

	data, err := json.MarshalIndent(File{Providers: providers}, "", "  ")
	if err != nil {
		return errors.WrapInvalid(err, "Config", "SaveProviders", "config encoding")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapFatal(err, "Config", "SaveProviders", "config directory creation")
	}

	tmp, err := os.CreateTemp(dir, ".providers-*.json")
	if err != nil {
		return errors.WrapFatal(err, "Config", "SaveProviders", "temp file creation")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.WrapFatal(err, "Config", "SaveProviders", "config write")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.WrapFatal(err, "Config", "SaveProviders", "config flush")
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.WrapFatal(err, "Config", "SaveProviders", "config rename")
	}
	return nil
}

// DiscoverFromEnv scans recognized environment variables and returns provider
// configs for backends that are configured in the environment. Names are
// fixed so re-discovery is idempotent.
func DiscoverFromEnv() []provider.Config {
	var discovered []provider.Config

	if dbURL := os.Getenv(EnvDatabaseURL); dbURL != "" {
		discovered = append(discovered, provider.Config{
			Name:             "postgres-primary",
			ProviderType:     provider.TypePostgres,
			ConnectionString: dbURL,
			Priority:         DatabasePriority,
			Enabled:          true,
		}.WithDefaults())
	}

	if sidecarURL := os.Getenv(EnvMem0URL); sidecarURL != "" {
		cfg := provider.Config{
			Name:             "mem0-sidecar",
			ProviderType:     provider.TypeMem0HTTP,
			ConnectionString: sidecarURL,
			Priority:         SidecarPriority,
			Enabled:          true,
		}
		if secret := os.Getenv(EnvMem0Secret); secret != "" {
			cfg.Metadata = map[string]string{"shared_secret": secret}
		}
		discovered = append(discovered, cfg.WithDefaults())
	}

	return discovered
}
