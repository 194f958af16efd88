package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arunosaur/ninaivalaigal-sub001/provider"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.json")

	original := []provider.Config{
		{
			Name:                "postgres-primary",
			ProviderType:        provider.TypePostgres,
			ConnectionString:    "postgres://localhost/nv",
			Priority:            10,
			Enabled:             true,
			HealthCheckInterval: 30 * time.Second,
			Timeout:             5 * time.Second,
			RetryAttempts:       3,
		},
		{
			Name:                "mem0-sidecar",
			ProviderType:        provider.TypeMem0HTTP,
			ConnectionString:    "http://localhost:7070",
			Priority:            20,
			Enabled:             true,
			HealthCheckInterval: 30 * time.Second,
			Timeout:             5 * time.Second,
			RetryAttempts:       3,
			Metadata:            map[string]string{"shared_secret": "s3cret"},
		},
	}

	require.NoError(t, SaveProviders(path, original))

	loaded, err := LoadProviders(path)
	require.NoError(t, err)
	require.Len(t, loaded, len(original))

	// Order-preserving, equivalent set
	for i, cfg := range original {
		assert.Equal(t, cfg.Name, loaded[i].Name)
		assert.Equal(t, cfg.ProviderType, loaded[i].ProviderType)
		assert.Equal(t, cfg.ConnectionString, loaded[i].ConnectionString)
		assert.Equal(t, cfg.Priority, loaded[i].Priority)
		assert.Equal(t, cfg.Enabled, loaded[i].Enabled)
		assert.Equal(t, cfg.Metadata, loaded[i].Metadata)
	}
}

func TestLoadProviders_MissingFile(t *testing.T) {
	loaded, err := LoadProviders(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadProviders_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, SaveProviders(path, nil))

	// Corrupt it
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadProviders(path)
	assert.Error(t, err)
}

func TestDiscoverFromEnv(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "postgres://localhost/nv")
	t.Setenv(EnvMem0URL, "http://localhost:7070")
	t.Setenv(EnvMem0Secret, "s3cret")

	discovered := DiscoverFromEnv()
	require.Len(t, discovered, 2)

	assert.Equal(t, provider.TypePostgres, discovered[0].ProviderType)
	assert.Equal(t, DatabasePriority, discovered[0].Priority)
	assert.Equal(t, provider.TypeMem0HTTP, discovered[1].ProviderType)
	assert.Equal(t, SidecarPriority, discovered[1].Priority)
	assert.Equal(t, "s3cret", discovered[1].Metadata["shared_secret"])
}

func TestDiscoverFromEnv_Empty(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvMem0URL, "")

	assert.Empty(t, DiscoverFromEnv())
}
