package failover

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arunosaur/ninaivalaigal-sub001/errors"
	"github.com/Arunosaur/ninaivalaigal-sub001/health"
	"github.com/Arunosaur/ninaivalaigal-sub001/provider"
)

type fakeProvider struct {
	name string
}

func (f *fakeProvider) Remember(context.Context, provider.RememberParams) (*provider.Memory, error) {
	return &provider.Memory{ID: "m1"}, nil
}

func (f *fakeProvider) Recall(context.Context, provider.RecallParams) ([]provider.Memory, error) {
	return nil, nil
}

func (f *fakeProvider) Delete(context.Context, provider.DeleteParams) error { return nil }

func (f *fakeProvider) ListMemories(context.Context, provider.ListParams) ([]provider.Memory, error) {
	return nil, nil
}

func (f *fakeProvider) HealthCheck(context.Context) error { return nil }
func (f *fakeProvider) Close() error                      { return nil }

type fakeSource struct {
	names     []string
	priority  map[string]int
	instances map[string]provider.Provider
}

func newFakeSource(names ...string) *fakeSource {
	src := &fakeSource{
		names:     names,
		priority:  make(map[string]int),
		instances: make(map[string]provider.Provider),
	}
	for i, name := range names {
		src.priority[name] = (i + 1) * 10
		src.instances[name] = &fakeProvider{name: name}
	}
	return src
}

func (f *fakeSource) ActiveProviders() []string {
	return append([]string(nil), f.names...)
}

func (f *fakeSource) GetProvider(name string) (provider.Provider, error) {
	p, ok := f.instances[name]
	if !ok {
		return nil, errors.ErrProviderNotFound
	}
	return p, nil
}

func (f *fakeSource) Config(name string) (provider.Config, error) {
	return provider.Config{Name: name, Priority: f.priority[name]}, nil
}

type fakeHealth struct {
	mu        sync.Mutex
	summaries map[string]health.Summary
	records   []string
}

func (f *fakeHealth) GetProviderHealth(name string) (health.Summary, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.summaries[name]
	return s, ok
}

func (f *fakeHealth) RecordHealthCheck(name string, _ float64, success bool, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, fmt.Sprintf("%s:%t", name, success))
}

func newTestManager(t *testing.T, names ...string) (*Manager, *fakeSource, *fakeHealth) {
	t.Helper()
	src := newFakeSource(names...)
	hs := &fakeHealth{summaries: make(map[string]health.Summary)}
	return NewManager(src, hs, nil), src, hs
}

// failOn returns an Operation that fails for providers in the given set and
// records every provider it was invoked against.
func failOn(calls *[]string, failing map[string]error) Operation {
	return func(_ context.Context, p provider.Provider) (any, error) {
		name := p.(*fakeProvider).name
		*calls = append(*calls, name)
		if err, ok := failing[name]; ok {
			return nil, err
		}
		return name, nil
	}
}

func TestExecuteOperationFirstSuccess(t *testing.T) {
	m, _, hs := newTestManager(t, "alpha", "beta")

	var calls []string
	res := m.ExecuteOperation(context.Background(), provider.OpRecall, failOn(&calls, nil))

	require.True(t, res.Success)
	assert.Equal(t, "alpha", res.ProviderName)
	assert.Equal(t, "alpha", res.Value)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.FallbackUsed)
	assert.Equal(t, []string{"alpha"}, calls)
	assert.Equal(t, []string{"alpha:true"}, hs.records)
}

func TestExecuteOperationFallsBackOnTransientError(t *testing.T) {
	m, _, hs := newTestManager(t, "alpha", "beta")
	m.SetRule(provider.OpRecall, Rule{Strategy: StrategyPriority, MaxRetries: 3})

	var calls []string
	failing := map[string]error{"alpha": errors.ErrConnectionLost}
	res := m.ExecuteOperation(context.Background(), provider.OpRecall, failOn(&calls, failing))

	require.True(t, res.Success)
	assert.Equal(t, "beta", res.ProviderName)
	assert.Equal(t, 2, res.Attempts)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, []string{"alpha", "beta"}, calls)
	assert.Equal(t, []string{"alpha:false", "beta:true"}, hs.records)
}

func TestExecuteOperationNotFoundAbortsCandidateLoop(t *testing.T) {
	m, _, _ := newTestManager(t, "alpha", "beta")
	m.SetRule(provider.OpRecall, Rule{Strategy: StrategyPriority, MaxRetries: 3})

	var calls []string
	failing := map[string]error{"alpha": errors.ErrNotFound}
	res := m.ExecuteOperation(context.Background(), provider.OpRecall, failOn(&calls, failing))

	require.False(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.Contains(t, res.ErrorMessage, errors.ErrNotFound.Error())
	// beta was never asked: a missing key is missing everywhere
	assert.Equal(t, []string{"alpha"}, calls)
}

func TestExecuteOperationBoundedByMaxRetries(t *testing.T) {
	m, _, _ := newTestManager(t, "a", "b", "c", "d", "e")
	m.SetRule(provider.OpRemember, Rule{Strategy: StrategyPriority, MaxRetries: 3})

	var calls []string
	failing := map[string]error{
		"a": errors.ErrConnectionTimeout,
		"b": errors.ErrConnectionTimeout,
		"c": errors.ErrConnectionTimeout,
		"d": errors.ErrConnectionTimeout,
		"e": errors.ErrConnectionTimeout,
	}
	res := m.ExecuteOperation(context.Background(), provider.OpRemember, failOn(&calls, failing))

	require.False(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Len(t, calls, 3)
	assert.Contains(t, res.ErrorMessage, errors.ErrAllProvidersFailed.Error())
}

func TestExecuteOperationNeverReusesProvider(t *testing.T) {
	m, _, _ := newTestManager(t, "a", "b", "c")
	m.SetRule(provider.OpRecall, Rule{Strategy: StrategyPriority, MaxRetries: 10})

	var calls []string
	failing := map[string]error{
		"a": errors.ErrConnectionLost,
		"b": errors.ErrConnectionLost,
		"c": errors.ErrConnectionLost,
	}
	res := m.ExecuteOperation(context.Background(), provider.OpRecall, failOn(&calls, failing))

	require.False(t, res.Success)
	seen := make(map[string]int)
	for _, name := range calls {
		seen[name]++
	}
	for name, count := range seen {
		assert.Equal(t, 1, count, "provider %s attempted more than once", name)
	}
	assert.Equal(t, 3, res.Attempts)
}

func TestExecuteOperationNoProviders(t *testing.T) {
	m, _, _ := newTestManager(t)

	res := m.ExecuteOperation(context.Background(), provider.OpRecall, func(context.Context, provider.Provider) (any, error) {
		t.Fatal("operation must not run without candidates")
		return nil, nil
	})

	require.False(t, res.Success)
	assert.Equal(t, errors.ErrNoProviders.Error(), res.ErrorMessage)
	assert.Zero(t, res.Attempts)
}

func TestBreakerOpensAfterThresholdAndSkipsProvider(t *testing.T) {
	m, _, _ := newTestManager(t, "alpha", "beta")
	m.SetRule(provider.OpRemember, Rule{Strategy: StrategyPriority, MaxRetries: 2})

	base := time.Now()
	m.now = func() time.Time { return base }

	failing := map[string]error{"alpha": errors.ErrConnectionLost}
	for i := 0; i < defaultBreakerThreshold; i++ {
		var calls []string
		res := m.ExecuteOperation(context.Background(), provider.OpRemember, failOn(&calls, failing))
		require.True(t, res.Success)
		assert.Equal(t, "beta", res.ProviderName)
	}

	// Breaker for alpha is now open: it is skipped without consuming an
	// attempt and beta serves on the first try.
	var calls []string
	res := m.ExecuteOperation(context.Background(), provider.OpRemember, failOn(&calls, failing))
	require.True(t, res.Success)
	assert.Equal(t, "beta", res.ProviderName)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, []string{"beta"}, calls)

	stats := m.GetFailoverStatistics()
	require.Len(t, stats.OpenBreakers, 1)
	assert.Equal(t, "alpha", stats.OpenBreakers[0].Provider)
}

func TestBreakerCooldownAllowsProbe(t *testing.T) {
	m, _, _ := newTestManager(t, "alpha", "beta")
	m.SetRule(provider.OpRemember, Rule{Strategy: StrategyPriority, MaxRetries: 2})

	base := time.Now()
	m.now = func() time.Time { return base }

	failing := map[string]error{"alpha": errors.ErrConnectionLost}
	for i := 0; i < defaultBreakerThreshold; i++ {
		m.ExecuteOperation(context.Background(), provider.OpRemember, failOn(&[]string{}, failing))
	}
	require.True(t, m.breakers.isOpen("alpha", provider.OpRemember, base))

	// After the cooldown the breaker re-admits alpha, and a success closes
	// it for good.
	m.now = func() time.Time { return base.Add(breakerCooldown + time.Second) }

	var calls []string
	res := m.ExecuteOperation(context.Background(), provider.OpRemember, failOn(&calls, nil))
	require.True(t, res.Success)
	assert.Equal(t, "alpha", res.ProviderName)
	assert.Equal(t, []string{"alpha"}, calls)
	assert.False(t, m.breakers.isOpen("alpha", provider.OpRemember, m.now()))
}

func TestBreakerIsPerOperation(t *testing.T) {
	m, _, _ := newTestManager(t, "alpha")

	now := time.Now()
	for i := 0; i < defaultBreakerThreshold; i++ {
		m.breakers.recordFailure("alpha", provider.OpRemember, now)
	}

	assert.True(t, m.breakers.isOpen("alpha", provider.OpRemember, now))
	assert.False(t, m.breakers.isOpen("alpha", provider.OpRecall, now))
}

func TestResetCircuitBreakers(t *testing.T) {
	m, _, _ := newTestManager(t, "alpha", "beta")

	now := time.Now()
	for i := 0; i < defaultBreakerThreshold; i++ {
		m.breakers.recordFailure("alpha", provider.OpRemember, now)
		m.breakers.recordFailure("beta", provider.OpRecall, now)
	}

	cleared := m.ResetCircuitBreakers("alpha")
	assert.Equal(t, 1, cleared)
	assert.False(t, m.breakers.isOpen("alpha", provider.OpRemember, now))
	assert.True(t, m.breakers.isOpen("beta", provider.OpRecall, now))

	cleared = m.ResetCircuitBreakers("")
	assert.Equal(t, 1, cleared)
	assert.False(t, m.breakers.isOpen("beta", provider.OpRecall, now))
}

func TestPriorityOrderingIsStableOnTies(t *testing.T) {
	m, src, _ := newTestManager(t, "a", "b", "c")
	src.priority["a"] = 10
	src.priority["b"] = 10
	src.priority["c"] = 5

	m.SetRule(provider.OpRecall, Rule{Strategy: StrategyPriority, MaxRetries: 3})
	recs := m.GetProviderRecommendations(provider.OpRecall)

	require.Len(t, recs, 3)
	assert.Equal(t, "c", recs[0].Provider)
	assert.Equal(t, "a", recs[1].Provider)
	assert.Equal(t, "b", recs[2].Provider)
}

func TestRoundRobinRotatesAcrossCalls(t *testing.T) {
	m, _, _ := newTestManager(t, "a", "b", "c")
	m.SetRule(provider.OpRecall, Rule{Strategy: StrategyRoundRobin, MaxRetries: 3})

	first := m.GetProviderRecommendations(provider.OpRecall)
	second := m.GetProviderRecommendations(provider.OpRecall)
	third := m.GetProviderRecommendations(provider.OpRecall)

	require.Len(t, first, 3)
	assert.Equal(t, "a", first[0].Provider)
	assert.Equal(t, "b", second[0].Provider)
	assert.Equal(t, "c", third[0].Provider)
}

func TestHealthBasedPrefersHealthierProvider(t *testing.T) {
	m, _, hs := newTestManager(t, "a", "b")
	hs.summaries["a"] = health.Summary{
		Status: health.StatusUnhealthy, UptimePercentage: 60,
		AvgResponseTimeMS: 2000, TotalChecks: 50,
	}
	hs.summaries["b"] = health.Summary{
		Status: health.StatusHealthy, UptimePercentage: 99.9,
		AvgResponseTimeMS: 20, TotalChecks: 50,
	}

	m.SetRule(provider.OpRecall, Rule{Strategy: StrategyHealth, MaxRetries: 3})
	recs := m.GetProviderRecommendations(provider.OpRecall)

	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[0].Provider)
	assert.Greater(t, recs[0].Score, recs[1].Score)
}

func TestPerformanceBasedNeutralWithoutHistory(t *testing.T) {
	m, _, _ := newTestManager(t, "a", "b")
	m.metrics.record("a", false, 4000, time.Now())
	m.metrics.record("a", false, 4000, time.Now())

	m.SetRule(provider.OpRecall, Rule{Strategy: StrategyPerformance, MaxRetries: 3})
	recs := m.GetProviderRecommendations(provider.OpRecall)

	require.Len(t, recs, 2)
	// b has no history and scores the neutral 1.0, beating a's failures
	assert.Equal(t, "b", recs[0].Provider)
}

func TestGetFailoverStatistics(t *testing.T) {
	m, _, _ := newTestManager(t, "alpha", "beta")
	m.SetRule(provider.OpRecall, Rule{Strategy: StrategyPriority, MaxRetries: 3})

	failing := map[string]error{"alpha": errors.ErrConnectionLost}
	res := m.ExecuteOperation(context.Background(), provider.OpRecall, failOn(&[]string{}, failing))
	require.True(t, res.Success)

	stats := m.GetFailoverStatistics()
	assert.Equal(t, 2, stats.HistorySize)
	assert.EqualValues(t, 2, stats.TotalOperations)
	assert.EqualValues(t, 1, stats.TotalFailures)

	alpha, ok := stats.ProviderMetrics["alpha"]
	require.True(t, ok)
	assert.Zero(t, alpha.SuccessRate)
	beta, ok := stats.ProviderMetrics["beta"]
	require.True(t, ok)
	assert.Equal(t, float64(100), beta.SuccessRate)
}

func TestExecuteOperationRespectsContextCancellation(t *testing.T) {
	m, _, _ := newTestManager(t, "a", "b")
	m.SetRule(provider.OpRecall, Rule{
		Strategy: StrategyPriority, MaxRetries: 3, RetryDelay: time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	var calls []string
	failing := map[string]error{"a": errors.ErrConnectionLost, "b": errors.ErrConnectionLost}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res := m.ExecuteOperation(ctx, provider.OpRecall, failOn(&calls, failing))
	require.False(t, res.Success)
	// The minute-long retry delay is abandoned on cancel, so only the first
	// candidate ran.
	assert.Equal(t, []string{"a"}, calls)
}
