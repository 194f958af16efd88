package health

import "time"

// Status represents the derived health state of a provider. It is always a
// pure function of the provider's Summary fields, never set directly.
type Status string

const (
	// StatusHealthy means the provider is serving normally
	StatusHealthy Status = "healthy"
	// StatusDegraded means the provider serves but with elevated latency
	StatusDegraded Status = "degraded"
	// StatusUnhealthy means the provider is failing often enough to avoid
	StatusUnhealthy Status = "unhealthy"
	// StatusCritical means the provider is effectively down
	StatusCritical Status = "critical"
	// StatusUnknown means no observations have been recorded yet
	StatusUnknown Status = "unknown"
)

// AlertLevel represents alert severity.
type AlertLevel string

const (
	// AlertInfo is informational
	AlertInfo AlertLevel = "info"
	// AlertWarning indicates a condition worth watching
	AlertWarning AlertLevel = "warning"
	// AlertError indicates a condition impacting service
	AlertError AlertLevel = "error"
	// AlertCritical indicates the provider is effectively down
	AlertCritical AlertLevel = "critical"
)

// Metric is one timestamped health observation. Appended, never mutated.
type Metric struct {
	Timestamp      time.Time         `json:"timestamp"`
	ResponseTimeMS float64           `json:"response_time_ms"`
	Success        bool              `json:"success"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Summary is the per-provider aggregate over the rolling window. Recomputed
// after every Metric append.
type Summary struct {
	ProviderName        string    `json:"provider_name"`
	Status              Status    `json:"status"`
	UptimePercentage    float64   `json:"uptime_percentage"`
	AvgResponseTimeMS   float64   `json:"avg_response_time_ms"`
	ErrorRate           float64   `json:"error_rate"`
	TotalChecks         int       `json:"total_checks"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	LastCheck           time.Time `json:"last_check"`
}

// Alert is a condition raised against a provider. Only one unresolved alert
// per (provider, message) pair exists at a time.
type Alert struct {
	ID           string     `json:"id"`
	ProviderName string     `json:"provider_name"`
	Level        AlertLevel `json:"alert_level"`
	Message      string     `json:"message"`
	Timestamp    time.Time  `json:"timestamp"`
	Resolved     bool       `json:"resolved"`
	ResolvedAt   time.Time  `json:"resolved_at,omitempty"`
}

// Thresholds holds the status and alerting cut-offs.
type Thresholds struct {
	// Status derivation
	CriticalConsecutiveFailures int           // default 5
	CriticalUptimePct           float64       // default 90
	CriticalErrorRatePct        float64       // default 20
	CriticalResponseTimeMS      float64       // default 5000
	UnhealthyConsecutiveFails   int           // default 3
	UnhealthyUptimePct          float64       // default 95
	UnhealthyErrorRatePct       float64       // default 5
	DegradedResponseTimeMS      float64       // default 1000
	Window                      time.Duration // rolling window, default 24h
	FallbackSamples             int           // samples used when window empty, default 10
}

// DefaultThresholds returns the documented default cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalConsecutiveFailures: 5,
		CriticalUptimePct:           90,
		CriticalErrorRatePct:        20,
		CriticalResponseTimeMS:      5000,
		UnhealthyConsecutiveFails:   3,
		UnhealthyUptimePct:          95,
		UnhealthyErrorRatePct:       5,
		DegradedResponseTimeMS:      1000,
		Window:                      24 * time.Hour,
		FallbackSamples:             10,
	}
}

// ComputeStatus derives a Status from summary fields. Evaluated in priority
// order: critical conditions dominate, then unhealthy, then degraded.
func ComputeStatus(t Thresholds, s Summary) Status {
	if s.TotalChecks == 0 {
		return StatusUnknown
	}

	if s.ConsecutiveFailures >= t.CriticalConsecutiveFailures ||
		s.UptimePercentage < t.CriticalUptimePct ||
		s.ErrorRate > t.CriticalErrorRatePct ||
		s.AvgResponseTimeMS > t.CriticalResponseTimeMS {
		return StatusCritical
	}

	if s.ConsecutiveFailures >= t.UnhealthyConsecutiveFails ||
		s.UptimePercentage < t.UnhealthyUptimePct ||
		s.ErrorRate > t.UnhealthyErrorRatePct {
		return StatusUnhealthy
	}

	if s.AvgResponseTimeMS > t.DegradedResponseTimeMS {
		return StatusDegraded
	}

	return StatusHealthy
}
