package failover

import (
	"sync"
	"time"

	"github.com/Arunosaur/ninaivalaigal-sub001/provider"
)

const (
	// metricsWindow is the number of recent operations the success rate and
	// response-time average are computed over
	metricsWindow = 100
	// historyLimit bounds the FIFO operation history
	historyLimit = 1000
	// recentErrorCeiling is where the error penalty bottoms out
	recentErrorCeiling = 10
)

// outcome is one recorded operation result in the rolling window.
type outcome struct {
	success        bool
	responseTimeMS float64
}

// providerMetrics is the rolling per-provider operation record.
type providerMetrics struct {
	window       []outcome // ring, at most metricsWindow entries
	next         int
	filled       bool
	totalOps     int64
	recentErrors int
	lastUsed     time.Time
}

func (pm *providerMetrics) record(success bool, responseTimeMS float64, now time.Time) {
	o := outcome{success: success, responseTimeMS: responseTimeMS}
	if len(pm.window) < metricsWindow {
		pm.window = append(pm.window, o)
	} else {
		pm.window[pm.next] = o
		pm.next = (pm.next + 1) % metricsWindow
		pm.filled = true
	}

	pm.totalOps++
	pm.lastUsed = now
	if success {
		if pm.recentErrors > 0 {
			pm.recentErrors--
		}
	} else {
		pm.recentErrors++
	}
}

func (pm *providerMetrics) successRate() float64 {
	if len(pm.window) == 0 {
		return 100
	}
	var successes int
	for _, o := range pm.window {
		if o.success {
			successes++
		}
	}
	return float64(successes) / float64(len(pm.window)) * 100
}

func (pm *providerMetrics) avgResponseTimeMS() float64 {
	if len(pm.window) == 0 {
		return 0
	}
	var total float64
	for _, o := range pm.window {
		total += o.responseTimeMS
	}
	return total / float64(len(pm.window))
}

// ProviderMetrics is the exported snapshot of one provider's rolling
// metrics.
type ProviderMetrics struct {
	ProviderName      string    `json:"provider_name"`
	AvgResponseTimeMS float64   `json:"avg_response_time_ms"`
	SuccessRate       float64   `json:"success_rate"`
	TotalOperations   int64     `json:"total_operations"`
	RecentErrors      int       `json:"recent_errors"`
	LastUsed          time.Time `json:"last_used,omitempty"`
}

// metricsBoard owns all rolling metrics behind one lock.
type metricsBoard struct {
	mu     sync.Mutex
	byName map[string]*providerMetrics
}

func newMetricsBoard() *metricsBoard {
	return &metricsBoard{byName: make(map[string]*providerMetrics)}
}

func (mb *metricsBoard) record(providerName string, success bool, responseTimeMS float64, now time.Time) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	pm, ok := mb.byName[providerName]
	if !ok {
		pm = &providerMetrics{}
		mb.byName[providerName] = pm
	}
	pm.record(success, responseTimeMS, now)
}

// get returns a snapshot for one provider; ok is false when the provider has
// no recorded operations yet.
func (mb *metricsBoard) get(providerName string) (ProviderMetrics, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	pm, ok := mb.byName[providerName]
	if !ok {
		return ProviderMetrics{ProviderName: providerName, SuccessRate: 100}, false
	}
	return ProviderMetrics{
		ProviderName:      providerName,
		AvgResponseTimeMS: pm.avgResponseTimeMS(),
		SuccessRate:       pm.successRate(),
		TotalOperations:   pm.totalOps,
		RecentErrors:      pm.recentErrors,
		LastUsed:          pm.lastUsed,
	}, true
}

// snapshot returns copies of all provider metrics.
func (mb *metricsBoard) snapshot() map[string]ProviderMetrics {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	out := make(map[string]ProviderMetrics, len(mb.byName))
	for name, pm := range mb.byName {
		out[name] = ProviderMetrics{
			ProviderName:      name,
			AvgResponseTimeMS: pm.avgResponseTimeMS(),
			SuccessRate:       pm.successRate(),
			TotalOperations:   pm.totalOps,
			RecentErrors:      pm.recentErrors,
			LastUsed:          pm.lastUsed,
		}
	}
	return out
}

// HistoryEntry is one completed attempt in the bounded operation history.
type HistoryEntry struct {
	Timestamp      time.Time              `json:"timestamp"`
	Provider       string                 `json:"provider"`
	Operation      provider.OperationType `json:"operation"`
	Success        bool                   `json:"success"`
	ResponseTimeMS float64                `json:"response_time_ms"`
	Error          string                 `json:"error,omitempty"`
}

// historyBoard is the bounded FIFO operation history.
type historyBoard struct {
	mu      sync.Mutex
	entries []HistoryEntry
}

func newHistoryBoard() *historyBoard {
	return &historyBoard{}
}

func (hb *historyBoard) append(entry HistoryEntry) {
	hb.mu.Lock()
	defer hb.mu.Unlock()

	hb.entries = append(hb.entries, entry)
	if len(hb.entries) > historyLimit {
		hb.entries = hb.entries[len(hb.entries)-historyLimit:]
	}
}

// snapshot returns a copy of the history, newest last.
func (hb *historyBoard) snapshot() []HistoryEntry {
	hb.mu.Lock()
	defer hb.mu.Unlock()

	out := make([]HistoryEntry, len(hb.entries))
	copy(out, hb.entries)
	return out
}
