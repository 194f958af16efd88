package failover

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Arunosaur/ninaivalaigal-sub001/errors"
	"github.com/Arunosaur/ninaivalaigal-sub001/health"
	"github.com/Arunosaur/ninaivalaigal-sub001/provider"
)

// ProviderSource resolves active providers and their instances. Implemented
// by registry.Registry.
type ProviderSource interface {
	ActiveProviders() []string
	GetProvider(name string) (provider.Provider, error)
	Config(name string) (provider.Config, error)
}

// HealthSource supplies health summaries and ingests operation outcomes.
// Implemented by health.Monitor.
type HealthSource interface {
	GetProviderHealth(name string) (health.Summary, bool)
	RecordHealthCheck(providerName string, responseTimeMS float64, success bool, errorMsg string)
}

// Operation is the unit of work executed against one provider instance.
type Operation func(ctx context.Context, p provider.Provider) (any, error)

// Result is the aggregated outcome of one ExecuteOperation call.
type Result struct {
	Success        bool    `json:"success"`
	Value          any     `json:"value,omitempty"`
	ProviderName   string  `json:"provider_name,omitempty"`
	ResponseTimeMS float64 `json:"response_time_ms"`
	ErrorMessage   string  `json:"error_message,omitempty"`
	Attempts       int     `json:"attempts"`
	FallbackUsed   bool    `json:"fallback_used"`

	// Err is the last error when Success is false. Not serialized.
	Err error `json:"-"`
}

// Manager executes operations with strategy-ordered candidates, circuit
// breaking, and bounded retries.
type Manager struct {
	providers    ProviderSource
	healthSource HealthSource
	logger       *slog.Logger

	rulesMu sync.RWMutex
	rules   map[provider.OperationType]Rule

	breakers *breakerBoard
	metrics  *metricsBoard
	history  *historyBoard

	rrMu    sync.Mutex
	rrIndex int

	// now is replaceable in tests to simulate breaker cooldown elapse
	now func() time.Time
}

// NewManager creates a failover manager over the given provider and health
// sources.
func NewManager(providers ProviderSource, healthSource HealthSource, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		providers:    providers,
		healthSource: healthSource,
		logger:       logger.With("component", "failover_manager"),
		rules:        make(map[provider.OperationType]Rule),
		breakers:     newBreakerBoard(),
		metrics:      newMetricsBoard(),
		history:      newHistoryBoard(),
		now:          time.Now,
	}
}

// SetRule configures the failover rule for one operation type.
func (m *Manager) SetRule(op provider.OperationType, rule Rule) {
	if rule.MaxRetries <= 0 {
		rule.MaxRetries = DefaultRule().MaxRetries
	}
	if rule.Timeout <= 0 {
		rule.Timeout = DefaultRule().Timeout
	}

	m.rulesMu.Lock()
	defer m.rulesMu.Unlock()
	m.rules[op] = rule
}

// Rule returns the rule for an operation type, falling back to the default.
func (m *Manager) Rule(op provider.OperationType) Rule {
	m.rulesMu.RLock()
	defer m.rulesMu.RUnlock()

	if rule, ok := m.rules[op]; ok {
		return rule
	}
	return DefaultRule()
}

// ExecuteOperation runs fn against strategy-ordered candidates until one
// succeeds, a not-found aborts, or the bounded attempts are exhausted. Every
// attempt's outcome is recorded into the health source, the rolling metrics,
// and the bounded history.
func (m *Manager) ExecuteOperation(ctx context.Context, op provider.OperationType, fn Operation) Result {
	rule := m.Rule(op)
	now := m.now()
	candidates := m.orderCandidates(rule.Strategy, now)

	if len(candidates) == 0 {
		return Result{
			Success:      false,
			ErrorMessage: errors.ErrNoProviders.Error(),
			Err:          errors.ErrNoProviders,
		}
	}

	var (
		attempts int
		lastErr  error
	)

	for i, candidate := range candidates {
		if attempts >= rule.MaxRetries {
			break
		}
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		if m.breakers.isOpen(candidate.Provider, op, m.now()) {
			m.logger.Debug("skipping provider with open breaker",
				"provider", candidate.Provider, "operation", string(op))
			continue
		}

		instance, err := m.providers.GetProvider(candidate.Provider)
		if err != nil {
			lastErr = err
			continue
		}

		attempts++
		value, elapsedMS, err := m.attempt(ctx, rule, instance, fn)

		if err == nil {
			m.breakers.recordSuccess(candidate.Provider, op)
			m.recordOutcome(candidate.Provider, op, true, elapsedMS, "")
			return Result{
				Success:        true,
				Value:          value,
				ProviderName:   candidate.Provider,
				ResponseTimeMS: elapsedMS,
				Attempts:       attempts,
				FallbackUsed:   i > 0,
			}
		}

		lastErr = err
		m.breakers.recordFailure(candidate.Provider, op, m.now())
		m.recordOutcome(candidate.Provider, op, false, elapsedMS, err.Error())

		if errors.IsNotFound(err) {
			// Permanent: no other provider can resolve this
			break
		}

		m.logger.Warn("provider attempt failed, trying next candidate",
			"provider", candidate.Provider,
			"operation", string(op),
			"attempt", attempts,
			"error", err)

		// Sleep between candidates, not after the last
		if i < len(candidates)-1 && attempts < rule.MaxRetries {
			if !sleepCtx(ctx, rule.RetryDelay) {
				lastErr = ctx.Err()
				break
			}
		}
	}

	finalErr := errors.ErrAllProvidersFailed
	message := finalErr.Error()
	if lastErr != nil {
		if errors.IsNotFound(lastErr) {
			// A missing key is not a provider failure
			finalErr = lastErr
			message = lastErr.Error()
		} else {
			finalErr = fmt.Errorf("%w: %w", errors.ErrAllProvidersFailed, lastErr)
			message = finalErr.Error()
		}
	}

	return Result{
		Success:      false,
		ErrorMessage: message,
		Attempts:     attempts,
		FallbackUsed: attempts > 1,
		Err:          finalErr,
	}
}

// attempt runs fn once, bounded by the rule's per-attempt timeout.
func (m *Manager) attempt(ctx context.Context, rule Rule, instance provider.Provider, fn Operation) (any, float64, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, rule.Timeout)
	defer cancel()

	start := m.now()
	value, err := fn(attemptCtx, instance)
	elapsedMS := float64(m.now().Sub(start)) / float64(time.Millisecond)

	if err == nil && attemptCtx.Err() != nil {
		err = attemptCtx.Err()
	}
	return value, elapsedMS, err
}

func (m *Manager) recordOutcome(providerName string, op provider.OperationType, success bool, elapsedMS float64, errMsg string) {
	now := m.now()
	m.metrics.record(providerName, success, elapsedMS, now)
	m.history.append(HistoryEntry{
		Timestamp:      now,
		Provider:       providerName,
		Operation:      op,
		Success:        success,
		ResponseTimeMS: elapsedMS,
		Error:          errMsg,
	})
	if m.healthSource != nil {
		m.healthSource.RecordHealthCheck(providerName, elapsedMS, success, errMsg)
	}
}

// sleepCtx sleeps for d or until the context is cancelled; returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// GetProviderRecommendations returns the candidates a given operation would
// consider right now, in selection order with their scores.
func (m *Manager) GetProviderRecommendations(op provider.OperationType) []Candidate {
	rule := m.Rule(op)
	return m.orderCandidates(rule.Strategy, m.now())
}

// Statistics is a read-only snapshot of failover state.
type Statistics struct {
	ProviderMetrics map[string]ProviderMetrics `json:"provider_metrics"`
	OpenBreakers    []BreakerInfo              `json:"open_breakers"`
	HistorySize     int                        `json:"history_size"`
	TotalOperations int64                      `json:"total_operations"`
	TotalFailures   int64                      `json:"total_failures"`
}

// GetFailoverStatistics snapshots metrics, breaker state, and history depth.
func (m *Manager) GetFailoverStatistics() Statistics {
	stats := Statistics{
		ProviderMetrics: m.metrics.snapshot(),
	}

	for _, info := range m.breakers.snapshot(m.now()) {
		if info.Open {
			stats.OpenBreakers = append(stats.OpenBreakers, info)
		}
	}

	history := m.history.snapshot()
	stats.HistorySize = len(history)
	for _, entry := range history {
		stats.TotalOperations++
		if !entry.Success {
			stats.TotalFailures++
		}
	}
	return stats
}

// CircuitBreakers returns a snapshot of every tracked breaker, open or
// closed.
func (m *Manager) CircuitBreakers() []BreakerInfo {
	return m.breakers.snapshot(m.now())
}

// OperationHistory returns a copy of the bounded operation history.
func (m *Manager) OperationHistory() []HistoryEntry {
	return m.history.snapshot()
}

// ResetCircuitBreakers clears breakers for one provider, or all when
// providerName is empty. Returns how many tripped breakers were cleared.
func (m *Manager) ResetCircuitBreakers(providerName string) int {
	cleared := m.breakers.reset(providerName)
	if cleared > 0 {
		m.logger.Info("circuit breakers reset",
			"provider", providerName, "cleared", cleared)
	}
	return cleared
}
