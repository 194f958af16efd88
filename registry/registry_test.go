package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arunosaur/ninaivalaigal-sub001/config"
	pkgerrors "github.com/Arunosaur/ninaivalaigal-sub001/errors"
	"github.com/Arunosaur/ninaivalaigal-sub001/provider"
	memprovider "github.com/Arunosaur/ninaivalaigal-sub001/provider/memory"
)

// TestMain registers the in-process backend factory so configs restored via
// LoadFromFile can be activated through the global dispatch.
func TestMain(m *testing.M) {
	if err := memprovider.Register(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// stubProvider lets tests flip health at will.
type stubProvider struct {
	mu        sync.Mutex
	healthErr error
	closed    bool
}

func (s *stubProvider) setHealthErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthErr = err
}

func (s *stubProvider) Remember(context.Context, provider.RememberParams) (*provider.Memory, error) {
	return &provider.Memory{ID: "stub"}, nil
}

func (s *stubProvider) Recall(context.Context, provider.RecallParams) ([]provider.Memory, error) {
	return nil, nil
}

func (s *stubProvider) Delete(context.Context, provider.DeleteParams) error { return nil }

func (s *stubProvider) ListMemories(context.Context, provider.ListParams) ([]provider.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.healthErr != nil {
		return nil, s.healthErr
	}
	return nil, nil
}

func (s *stubProvider) HealthCheck(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthErr
}

func (s *stubProvider) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func stubFactory(s *stubProvider) provider.Factory {
	return func(provider.Config) (provider.Provider, error) {
		return s, nil
	}
}

func memFactory(provider.Config) (provider.Provider, error) {
	return memprovider.New(), nil
}

func testConfig(name string, priority int) provider.Config {
	return provider.Config{
		Name:         name,
		ProviderType: provider.TypeMemory,
		Priority:     priority,
		Enabled:      true,
	}
}

func TestRegisterAndGetProvider(t *testing.T) {
	reg := New(nil)

	require.NoError(t, reg.Register(testConfig("mem-a", 10), memFactory, true))

	instance, err := reg.GetProvider("mem-a")
	require.NoError(t, err)
	assert.NotNil(t, instance)

	_, err = reg.GetProvider("missing")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestGetProvider_NotActiveWithoutActivation(t *testing.T) {
	reg := New(nil)

	require.NoError(t, reg.Register(testConfig("mem-a", 10), memFactory, false))

	_, err := reg.GetProvider("mem-a")
	assert.Error(t, err, "registered but not activated providers are not served")
}

func TestRegisterOverwritesExisting(t *testing.T) {
	reg := New(nil)
	first := &stubProvider{}

	require.NoError(t, reg.Register(testConfig("mem-a", 10), stubFactory(first), true))
	require.NoError(t, reg.Register(testConfig("mem-a", 99), memFactory, true))

	assert.True(t, first.closed, "replaced instance should be closed")

	infos := reg.ListProviders("")
	require.Len(t, infos, 1)
	assert.Equal(t, 99, infos[0].Priority)
}

func TestActivationErrorIsolated(t *testing.T) {
	reg := New(nil)

	badFactory := func(provider.Config) (provider.Provider, error) {
		return nil, errors.New("dial refused")
	}

	require.NoError(t, reg.Register(testConfig("bad", 5), badFactory, true))
	require.NoError(t, reg.Register(testConfig("good", 10), memFactory, true))

	// The bad provider is in error state, the good one serves
	infos := reg.ListProviders(provider.StatusError)
	require.Len(t, infos, 1)
	assert.Equal(t, "bad", infos[0].Name)
	assert.Contains(t, infos[0].Error, "dial refused")

	name, instance, err := reg.GetPrimaryProvider()
	require.NoError(t, err)
	assert.Equal(t, "good", name)
	assert.NotNil(t, instance)
}

func TestPrimaryElection(t *testing.T) {
	reg := New(nil)

	require.NoError(t, reg.Register(testConfig("backup", 20), memFactory, true))
	require.NoError(t, reg.Register(testConfig("main", 10), memFactory, true))
	require.NoError(t, reg.Register(testConfig("tied", 10), memFactory, true))

	name, _, err := reg.GetPrimaryProvider()
	require.NoError(t, err)
	assert.Equal(t, "main", name, "lowest priority wins; ties keep registration order")
}

func TestFailoverToBackup(t *testing.T) {
	reg := New(nil)
	stub := &stubProvider{}

	require.NoError(t, reg.Register(testConfig("main", 10), stubFactory(stub), true))
	require.NoError(t, reg.Register(testConfig("backup", 20), memFactory, true))

	name, _, err := reg.GetPrimaryProvider()
	require.NoError(t, err)
	require.Equal(t, "main", name)

	newPrimary, err := reg.FailoverToBackup("main")
	require.NoError(t, err)
	assert.Equal(t, "backup", newPrimary)
	assert.True(t, stub.closed)

	infos := reg.ListProviders(provider.StatusInactive)
	require.Len(t, infos, 1)
	assert.Equal(t, "main", infos[0].Name)

	// Subsequent calls route to the backup
	name, _, err = reg.GetPrimaryProvider()
	require.NoError(t, err)
	assert.Equal(t, "backup", name)
}

func TestFailoverToBackup_NoneLeft(t *testing.T) {
	reg := New(nil)
	require.NoError(t, reg.Register(testConfig("only", 10), memFactory, true))

	_, err := reg.FailoverToBackup("only")
	assert.ErrorIs(t, err, pkgerrors.ErrNoProviders)
}

func TestHealthCheckTransitions(t *testing.T) {
	reg := New(nil)
	stub := &stubProvider{}

	require.NoError(t, reg.Register(testConfig("p", 10), stubFactory(stub), true))

	ctx := context.Background()

	ok, err := reg.HealthCheckProvider(ctx, "p")
	require.NoError(t, err)
	assert.True(t, ok)

	stub.setHealthErr(errors.New("backend down"))
	ok, err = reg.HealthCheckProvider(ctx, "p")
	require.NoError(t, err)
	assert.False(t, ok)

	infos := reg.ListProviders(provider.StatusError)
	require.Len(t, infos, 1)
	assert.False(t, infos[0].LastHealthCheck.IsZero())

	stub.setHealthErr(nil)
	ok, err = reg.HealthCheckProvider(ctx, "p")
	require.NoError(t, err)
	assert.True(t, ok, "error -> active on recovery")

	infos = reg.ListProviders(provider.StatusActive)
	require.Len(t, infos, 1)
	assert.Empty(t, infos[0].Error)
}

type recordingMonitor struct {
	mu      sync.Mutex
	records []bool
}

func (m *recordingMonitor) RecordHealthCheck(_ string, _ float64, success bool, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, success)
}

func TestProbeOutcomesRecorded(t *testing.T) {
	recorder := &recordingMonitor{}
	reg := New(nil, WithHealthRecorder(recorder))
	stub := &stubProvider{}

	require.NoError(t, reg.Register(testConfig("p", 10), stubFactory(stub), true))

	_, err := reg.HealthCheckProvider(context.Background(), "p")
	require.NoError(t, err)

	stub.setHealthErr(errors.New("down"))
	_, err = reg.HealthCheckProvider(context.Background(), "p")
	require.NoError(t, err)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, []bool{true, false}, recorder.records)
}

func TestCheckAllProviders(t *testing.T) {
	reg := New(nil)
	healthy := &stubProvider{}
	sick := &stubProvider{}
	sick.setHealthErr(errors.New("down"))

	require.NoError(t, reg.Register(testConfig("healthy", 10), stubFactory(healthy), true))
	require.NoError(t, reg.Register(testConfig("sick", 20), stubFactory(sick), true))

	reg.CheckAllProviders(context.Background())

	assert.Len(t, reg.ListProviders(provider.StatusActive), 1)
	assert.Len(t, reg.ListProviders(provider.StatusError), 1)
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.json")

	reg := New(nil, WithConfigPath(path))
	require.NoError(t, reg.Register(testConfig("a", 10), memFactory, false))
	require.NoError(t, reg.Register(testConfig("b", 20), memFactory, false))

	loaded, err := config.LoadProviders(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "a", loaded[0].Name)
	assert.Equal(t, "b", loaded[1].Name)

	// A fresh registry restores the set and lazily serves enabled entries
	restored := New(nil, WithConfigPath(path))
	require.NoError(t, restored.LoadFromFile())

	instance, err := restored.GetProvider("a")
	require.NoError(t, err)
	assert.NotNil(t, instance)
}

func TestPromoteMakesTargetPrimary(t *testing.T) {
	reg := New(nil)

	require.NoError(t, reg.Register(testConfig("main", 10), memFactory, true))
	require.NoError(t, reg.Register(testConfig("backup", 20), memFactory, true))

	require.NoError(t, reg.Promote("backup"))

	name, _, err := reg.GetPrimaryProvider()
	require.NoError(t, err)
	assert.Equal(t, "backup", name)
}

func TestPromoteSurvivesReloadAtPriorityZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.json")

	reg := New(nil, WithConfigPath(path))
	require.NoError(t, reg.Register(testConfig("zero", 0), memFactory, true))
	require.NoError(t, reg.Register(testConfig("ten", 10), memFactory, true))

	require.NoError(t, reg.Promote("ten"))

	// Priorities stay non-negative so the persisted set survives reload
	for _, cfg := range mustLoad(t, path) {
		assert.GreaterOrEqual(t, cfg.Priority, 0, "provider %s", cfg.Name)
	}

	restored := New(nil, WithConfigPath(path))
	require.NoError(t, restored.LoadFromFile())

	infos := restored.ListProviders("")
	require.Len(t, infos, 2, "no provider dropped on reload")

	name, _, err := restored.GetPrimaryProvider()
	require.NoError(t, err)
	assert.Equal(t, "ten", name, "promoted provider stays primary after restart")
}

func mustLoad(t *testing.T, path string) []provider.Config {
	t.Helper()
	cfgs, err := config.LoadProviders(path)
	require.NoError(t, err)
	return cfgs
}

func TestAutoDiscover(t *testing.T) {
	t.Setenv(config.EnvDatabaseURL, "postgres://localhost/nv")
	t.Setenv(config.EnvMem0URL, "http://localhost:7070")

	reg := New(nil)
	added := reg.AutoDiscover(false)

	assert.ElementsMatch(t, []string{"postgres-primary", "mem0-sidecar"}, added)

	// Idempotent: nothing new on a second scan
	assert.Empty(t, reg.AutoDiscover(false))

	infos := reg.ListProviders("")
	priorities := map[string]int{}
	for _, info := range infos {
		priorities[info.Name] = info.Priority
	}
	assert.Equal(t, config.DatabasePriority, priorities["postgres-primary"])
	assert.Equal(t, config.SidecarPriority, priorities["mem0-sidecar"])
}

func TestStartStopSweep(t *testing.T) {
	reg := New(nil, WithSweepInterval(10*time.Millisecond))
	stub := &stubProvider{}
	require.NoError(t, reg.Register(testConfig("p", 10), stubFactory(stub), true))

	require.NoError(t, reg.Start(context.Background()))
	assert.Error(t, reg.Start(context.Background()))

	time.Sleep(35 * time.Millisecond)
	reg.Stop()

	infos := reg.ListProviders("")
	require.Len(t, infos, 1)
	assert.False(t, infos[0].LastHealthCheck.IsZero(), "sweep should have probed the provider")
}
