package failover

import (
	"sort"
	"time"

	"github.com/Arunosaur/ninaivalaigal-sub001/health"
)

// Strategy is the algorithm used to order candidate providers for an
// operation.
type Strategy string

const (
	// StrategyPriority orders by ascending configured priority
	StrategyPriority Strategy = "priority_based"
	// StrategyHealth orders by descending composite health score
	StrategyHealth Strategy = "health_based"
	// StrategyRoundRobin rotates a shared index across active providers
	StrategyRoundRobin Strategy = "round_robin"
	// StrategyPerformance orders by descending rolling performance score
	StrategyPerformance Strategy = "performance_based"
	// StrategyHybrid blends health, performance, and priority
	StrategyHybrid Strategy = "hybrid"
)

// Rule configures failover behavior for one operation type.
type Rule struct {
	Strategy   Strategy      `json:"strategy"`
	MaxRetries int           `json:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"`
	Timeout    time.Duration `json:"timeout"`
}

// DefaultRule is used when no rule is configured for an operation type.
func DefaultRule() Rule {
	return Rule{
		Strategy:   StrategyHybrid,
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
		Timeout:    5 * time.Second,
	}
}

// statusWeight maps a derived health status to its score weight.
func statusWeight(s health.Status) float64 {
	switch s {
	case health.StatusHealthy:
		return 1.0
	case health.StatusDegraded:
		return 0.7
	case health.StatusUnhealthy:
		return 0.3
	case health.StatusCritical:
		return 0.1
	default:
		return 0
	}
}

// healthScore computes the composite health score for a provider:
// status weight x uptime fraction x success fraction x response-time
// penalty. Providers with no recorded health yield zero.
func (m *Manager) healthScore(providerName string) float64 {
	summary, ok := m.healthSource.GetProviderHealth(providerName)
	if !ok || summary.TotalChecks == 0 {
		return 0
	}

	score := statusWeight(summary.Status)
	score *= summary.UptimePercentage / 100
	score *= 1 - summary.ErrorRate/100

	// Penalty decays linearly once average latency passes 1s
	if summary.AvgResponseTimeMS > 1000 {
		penalty := 1 - (summary.AvgResponseTimeMS-1000)/10000
		if penalty < 0.1 {
			penalty = 0.1
		}
		score *= penalty
	}
	return score
}

// performanceScore computes the rolling performance score for a provider
// from the manager's own operation metrics.
func (m *Manager) performanceScore(providerName string, now time.Time) float64 {
	metrics, ok := m.metrics.get(providerName)
	if !ok {
		// No history yet: neutral score so new providers get traffic
		return 1.0
	}

	score := metrics.SuccessRate / 100

	// Response-time factor decays once the rolling average passes 100ms
	if metrics.AvgResponseTimeMS > 100 {
		factor := 1 - (metrics.AvgResponseTimeMS-100)/5000
		if factor < 0.1 {
			factor = 0.1
		}
		score *= factor
	}

	// Recency factor decays over an hour since last use
	if !metrics.LastUsed.IsZero() {
		elapsed := now.Sub(metrics.LastUsed)
		factor := 1 - float64(elapsed)/float64(time.Hour)
		if factor < 0.1 {
			factor = 0.1
		}
		score *= factor
	}

	// Error penalty bottoms out at zero
	penalty := 1 - float64(metrics.RecentErrors)/recentErrorCeiling
	if penalty < 0 {
		penalty = 0
	}
	score *= penalty

	return score
}

// Candidate is one provider with its selection score, used by ordering and
// by GetProviderRecommendations.
type Candidate struct {
	Provider string  `json:"provider"`
	Score    float64 `json:"score"`
	Priority int     `json:"priority"`
}

// orderCandidates produces the ordered candidate list for a strategy over
// the currently active providers. A provider never appears twice.
func (m *Manager) orderCandidates(strategy Strategy, now time.Time) []Candidate {
	active := m.providers.ActiveProviders()
	if len(active) == 0 {
		return nil
	}

	candidates := make([]Candidate, 0, len(active))
	for _, name := range active {
		c := Candidate{Provider: name}
		if cfg, err := m.providers.Config(name); err == nil {
			c.Priority = cfg.Priority
		}
		candidates = append(candidates, c)
	}

	switch strategy {
	case StrategyPriority:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Priority < candidates[j].Priority
		})

	case StrategyHealth:
		for i := range candidates {
			candidates[i].Score = m.healthScore(candidates[i].Provider)
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Score > candidates[j].Score
		})

	case StrategyRoundRobin:
		m.rrMu.Lock()
		offset := m.rrIndex % len(candidates)
		m.rrIndex++
		m.rrMu.Unlock()
		rotated := make([]Candidate, 0, len(candidates))
		rotated = append(rotated, candidates[offset:]...)
		rotated = append(rotated, candidates[:offset]...)
		candidates = rotated

	case StrategyPerformance:
		for i := range candidates {
			candidates[i].Score = m.performanceScore(candidates[i].Provider, now)
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Score > candidates[j].Score
		})

	case StrategyHybrid:
		fallthrough
	default:
		for i := range candidates {
			c := &candidates[i]
			c.Score = 0.4*m.healthScore(c.Provider) +
				0.4*m.performanceScore(c.Provider, now) +
				0.2*(1/float64(c.Priority+1))
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Score > candidates[j].Score
		})
	}

	return candidates
}
