package failover

import (
	"sync"
	"time"

	"github.com/Arunosaur/ninaivalaigal-sub001/provider"
)

const (
	// defaultBreakerThreshold is the consecutive-failure count that opens a
	// breaker
	defaultBreakerThreshold = 5
	// breakerCooldown is how long an open breaker excludes its provider
	// before re-evaluation
	breakerCooldown = 5 * time.Minute
)

// breakerKey identifies one circuit breaker.
type breakerKey struct {
	provider  string
	operation provider.OperationType
}

// breakerState tracks consecutive failures for one (provider, operation)
// pair. CLOSED -> OPEN at threshold failures; back to CLOSED after the
// cooldown elapses, an explicit reset, or the next success.
type breakerState struct {
	failures    int
	threshold   int
	lastFailure time.Time
}

func (b *breakerState) isOpen(now time.Time) bool {
	return b.failures >= b.threshold && now.Sub(b.lastFailure) < breakerCooldown
}

// breakerBoard owns all circuit breakers behind one lock.
type breakerBoard struct {
	mu       sync.Mutex
	breakers map[breakerKey]*breakerState
}

func newBreakerBoard() *breakerBoard {
	return &breakerBoard{breakers: make(map[breakerKey]*breakerState)}
}

// isOpen reports whether the breaker for the pair currently excludes the
// provider.
func (bb *breakerBoard) isOpen(providerName string, op provider.OperationType, now time.Time) bool {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	state, ok := bb.breakers[breakerKey{providerName, op}]
	return ok && state.isOpen(now)
}

// recordFailure increments the failure count and stamps the failure time.
func (bb *breakerBoard) recordFailure(providerName string, op provider.OperationType, now time.Time) {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	key := breakerKey{providerName, op}
	state, ok := bb.breakers[key]
	if !ok {
		state = &breakerState{threshold: defaultBreakerThreshold}
		bb.breakers[key] = state
	}
	// A failure after the cooldown restarts the count rather than
	// immediately re-opening
	if state.failures >= state.threshold && now.Sub(state.lastFailure) >= breakerCooldown {
		state.failures = 0
	}
	state.failures++
	state.lastFailure = now
}

// recordSuccess resets the failure counter to zero.
func (bb *breakerBoard) recordSuccess(providerName string, op provider.OperationType) {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	if state, ok := bb.breakers[breakerKey{providerName, op}]; ok {
		state.failures = 0
	}
}

// reset clears breakers for one provider, or all when providerName is empty.
func (bb *breakerBoard) reset(providerName string) int {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	var cleared int
	for key, state := range bb.breakers {
		if providerName != "" && key.provider != providerName {
			continue
		}
		if state.failures > 0 {
			cleared++
		}
		state.failures = 0
	}
	return cleared
}

// BreakerInfo is a snapshot of one breaker's state.
type BreakerInfo struct {
	Provider    string                 `json:"provider"`
	Operation   provider.OperationType `json:"operation"`
	Failures    int                    `json:"failures"`
	Threshold   int                    `json:"threshold"`
	Open        bool                   `json:"open"`
	LastFailure time.Time              `json:"last_failure,omitempty"`
}

// snapshot returns a copy of all breaker states.
func (bb *breakerBoard) snapshot(now time.Time) []BreakerInfo {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	infos := make([]BreakerInfo, 0, len(bb.breakers))
	for key, state := range bb.breakers {
		infos = append(infos, BreakerInfo{
			Provider:    key.provider,
			Operation:   key.operation,
			Failures:    state.failures,
			Threshold:   state.threshold,
			Open:        state.isOpen(now),
			LastFailure: state.lastFailure,
		})
	}
	return infos
}
