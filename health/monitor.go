package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Arunosaur/ninaivalaigal-sub001/errors"
)

// AlertCallback is invoked synchronously for every newly created alert.
// Callbacks must be exception-safe from the monitor's perspective: panics are
// recovered and logged, never propagated.
type AlertCallback func(Alert)

// Monitor ingests timestamped success/failure/latency observations per
// provider and derives rolling health summaries plus alerts.
// All exposed reads return copied snapshots taken under the lock.
type Monitor struct {
	mu         sync.RWMutex
	metrics    map[string][]Metric
	summaries  map[string]Summary
	alerts     []Alert
	callbacks  []AlertCallback
	thresholds Thresholds

	retention      time.Duration
	alertRetention time.Duration
	cleanupEvery   time.Duration

	logger *slog.Logger

	loopMu  sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithThresholds overrides the default status thresholds.
func WithThresholds(t Thresholds) Option {
	return func(m *Monitor) { m.thresholds = t }
}

// WithRetention overrides how long raw metrics are kept.
func WithRetention(d time.Duration) Option {
	return func(m *Monitor) { m.retention = d }
}

// WithCleanupInterval overrides the background cleanup cadence.
func WithCleanupInterval(d time.Duration) Option {
	return func(m *Monitor) { m.cleanupEvery = d }
}

// NewMonitor creates a health monitor with default thresholds and a 168h
// metric retention.
func NewMonitor(logger *slog.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Monitor{
		metrics:        make(map[string][]Metric),
		summaries:      make(map[string]Summary),
		thresholds:     DefaultThresholds(),
		retention:      168 * time.Hour,
		alertRetention: 24 * time.Hour,
		cleanupEvery:   time.Hour,
		logger:         logger.With("component", "health_monitor"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RecordHealthCheck appends one observation, recomputes the provider's
// summary over the rolling window, then runs alert evaluation.
func (m *Monitor) RecordHealthCheck(providerName string, responseTimeMS float64, success bool, errorMsg string) {
	metric := Metric{
		Timestamp:      time.Now().UTC(),
		ResponseTimeMS: responseTimeMS,
		Success:        success,
		ErrorMessage:   errorMsg,
	}

	m.mu.Lock()
	m.metrics[providerName] = append(m.metrics[providerName], metric)
	summary := m.recomputeSummaryLocked(providerName)
	newAlerts := m.evaluateAlertsLocked(providerName, summary)
	callbacks := make([]AlertCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	for _, alert := range newAlerts {
		m.logger.Warn("health alert raised",
			"provider", alert.ProviderName,
			"level", string(alert.Level),
			"message", alert.Message)
		for _, cb := range callbacks {
			m.invokeCallback(cb, alert)
		}
	}
}

// invokeCallback runs a single callback, recovering any panic.
func (m *Monitor) invokeCallback(cb AlertCallback, alert Alert) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("alert callback panicked",
				"provider", alert.ProviderName,
				"panic", fmt.Sprint(r))
		}
	}()
	cb(alert)
}

// recomputeSummaryLocked rebuilds the summary for a provider from its metric
// window. Caller must hold the write lock.
func (m *Monitor) recomputeSummaryLocked(providerName string) Summary {
	all := m.metrics[providerName]
	window := m.windowMetricsLocked(all)

	summary := Summary{
		ProviderName: providerName,
		TotalChecks:  len(window),
	}

	if len(window) == 0 {
		summary.Status = StatusUnknown
		m.summaries[providerName] = summary
		return summary
	}

	var successes int
	var totalRT float64
	for _, metric := range window {
		if metric.Success {
			successes++
		}
		totalRT += metric.ResponseTimeMS
	}

	summary.UptimePercentage = float64(successes) / float64(len(window)) * 100
	summary.ErrorRate = float64(len(window)-successes) / float64(len(window)) * 100
	summary.AvgResponseTimeMS = totalRT / float64(len(window))
	summary.LastCheck = all[len(all)-1].Timestamp

	// Trailing failure run over the full history, not just the window
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Success {
			break
		}
		summary.ConsecutiveFailures++
		if summary.LastError == "" {
			summary.LastError = all[i].ErrorMessage
		}
	}
	if summary.LastError == "" {
		for i := len(all) - 1; i >= 0; i-- {
			if !all[i].Success {
				summary.LastError = all[i].ErrorMessage
				break
			}
		}
	}

	summary.Status = ComputeStatus(m.thresholds, summary)
	m.summaries[providerName] = summary
	return summary
}

// windowMetricsLocked returns metrics inside the rolling window, falling back
// to the last FallbackSamples observations when the window is empty.
func (m *Monitor) windowMetricsLocked(all []Metric) []Metric {
	if len(all) == 0 {
		return nil
	}

	cutoff := time.Now().UTC().Add(-m.thresholds.Window)
	start := len(all)
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Timestamp.Before(cutoff) {
			break
		}
		start = i
	}

	window := all[start:]
	if len(window) == 0 {
		n := m.thresholds.FallbackSamples
		if n <= 0 || n > len(all) {
			n = len(all)
		}
		window = all[len(all)-n:]
	}
	return window
}

// evaluateAlertsLocked checks the summary against the alert thresholds and
// creates alerts that are not already pending. Caller must hold the write
// lock. Messages are threshold-phrased (not count-phrased) so the dedup
// invariant holds across repeated evaluations.
func (m *Monitor) evaluateAlertsLocked(providerName string, s Summary) []Alert {
	t := m.thresholds
	var created []Alert

	raise := func(level AlertLevel, message string) {
		if m.hasUnresolvedLocked(providerName, message) {
			return
		}
		alert := Alert{
			ID:           uuid.NewString(),
			ProviderName: providerName,
			Level:        level,
			Message:      message,
			Timestamp:    time.Now().UTC(),
		}
		m.alerts = append(m.alerts, alert)
		created = append(created, alert)
	}

	if s.ConsecutiveFailures >= t.CriticalConsecutiveFailures {
		raise(AlertCritical, fmt.Sprintf("%d or more consecutive health check failures", t.CriticalConsecutiveFailures))
	} else if s.ConsecutiveFailures >= t.UnhealthyConsecutiveFails {
		raise(AlertWarning, fmt.Sprintf("%d or more consecutive health check failures", t.UnhealthyConsecutiveFails))
	}

	if s.AvgResponseTimeMS > t.CriticalResponseTimeMS {
		raise(AlertError, fmt.Sprintf("average response time above %.0fms", t.CriticalResponseTimeMS))
	} else if s.AvgResponseTimeMS > t.DegradedResponseTimeMS {
		raise(AlertWarning, fmt.Sprintf("average response time above %.0fms", t.DegradedResponseTimeMS))
	}

	if s.ErrorRate > t.CriticalErrorRatePct {
		raise(AlertError, fmt.Sprintf("error rate above %.0f%%", t.CriticalErrorRatePct))
	} else if s.ErrorRate > t.UnhealthyErrorRatePct {
		raise(AlertWarning, fmt.Sprintf("error rate above %.0f%%", t.UnhealthyErrorRatePct))
	}

	return created
}

func (m *Monitor) hasUnresolvedLocked(providerName, message string) bool {
	for _, alert := range m.alerts {
		if !alert.Resolved && alert.ProviderName == providerName && alert.Message == message {
			return true
		}
	}
	return false
}

// RegisterAlertCallback adds a callback invoked for each new alert.
func (m *Monitor) RegisterAlertCallback(cb AlertCallback) {
	if cb == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// ResolveAlert marks the first matching unresolved alert resolved. Returns
// false when no such alert exists.
func (m *Monitor) ResolveAlert(providerName, message string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.alerts {
		if !m.alerts[i].Resolved &&
			m.alerts[i].ProviderName == providerName &&
			m.alerts[i].Message == message {
			m.alerts[i].Resolved = true
			m.alerts[i].ResolvedAt = time.Now().UTC()
			return true
		}
	}
	return false
}

// GetProviderHealth returns the current summary for a provider.
func (m *Monitor) GetProviderHealth(providerName string) (Summary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary, ok := m.summaries[providerName]
	return summary, ok
}

// GetAllProviderHealth returns a copy of all current summaries.
func (m *Monitor) GetAllProviderHealth() map[string]Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]Summary, len(m.summaries))
	for name, summary := range m.summaries {
		result[name] = summary
	}
	return result
}

// GetActiveAlerts returns a copy of all unresolved alerts, optionally
// filtered by provider name ("" matches all).
func (m *Monitor) GetActiveAlerts(providerName string) []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []Alert
	for _, alert := range m.alerts {
		if alert.Resolved {
			continue
		}
		if providerName != "" && alert.ProviderName != providerName {
			continue
		}
		active = append(active, alert)
	}
	return active
}

// Export is the JSON-safe health export for one provider.
type Export struct {
	ProviderName string   `json:"provider_name"`
	Status       Status   `json:"status"`
	Summary      *Summary `json:"summary,omitempty"`
	Metrics      []Metric `json:"metrics"`
}

// ExportHealthData returns the summary and the raw metric window for a
// provider. A provider with no recorded metrics exports an empty metric list
// and status unknown, never an error.
func (m *Monitor) ExportHealthData(providerName string) Export {
	m.mu.RLock()
	defer m.mu.RUnlock()

	export := Export{
		ProviderName: providerName,
		Status:       StatusUnknown,
		Metrics:      []Metric{},
	}

	if summary, ok := m.summaries[providerName]; ok && summary.TotalChecks > 0 {
		s := summary
		export.Summary = &s
		export.Status = summary.Status
	}

	if metrics, ok := m.metrics[providerName]; ok {
		export.Metrics = make([]Metric, len(metrics))
		copy(export.Metrics, metrics)
	}
	return export
}

// Start launches the hourly retention cleanup loop. Safe to call once;
// subsequent calls return ErrAlreadyStarted.
func (m *Monitor) Start(ctx context.Context) error {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()

	if m.started {
		return errors.ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.started = true

	go m.cleanupLoop(loopCtx)
	return nil
}

// Stop cancels the cleanup loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()

	if !m.started {
		return
	}
	m.cancel()
	<-m.done
	m.started = false
}

// cleanupLoop purges old metrics and stale resolved alerts until cancelled.
// A failing sweep is logged and the loop continues; transient failures must
// never terminate monitoring.
func (m *Monitor) cleanupLoop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup(time.Now().UTC())
		}
	}
}

// Cleanup purges metrics older than the retention period and resolved alerts
// older than the alert retention period.
func (m *Monitor) Cleanup(now time.Time) {
	metricCutoff := now.Add(-m.retention)
	alertCutoff := now.Add(-m.alertRetention)

	m.mu.Lock()
	defer m.mu.Unlock()

	for name, metrics := range m.metrics {
		start := 0
		for start < len(metrics) && metrics[start].Timestamp.Before(metricCutoff) {
			start++
		}
		if start > 0 {
			m.metrics[name] = append([]Metric(nil), metrics[start:]...)
		}
	}

	kept := m.alerts[:0]
	for _, alert := range m.alerts {
		if alert.Resolved && alert.ResolvedAt.Before(alertCutoff) {
			continue
		}
		kept = append(kept, alert)
	}
	m.alerts = kept
}
