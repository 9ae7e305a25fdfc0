package orchestrator

import "time"

// DefaultIdleWarningThreshold is the count of simultaneously idle sub-agents
// that triggers a monitor warning alert.
const DefaultIdleWarningThreshold = 3

// DefaultIdleCriticalSeconds is how long a single sub-agent may sit idle
// before the monitor escalates to a critical alert.
const DefaultIdleCriticalSeconds = 60

// DefaultCleanupWarningCount is the count of agents simultaneously awaiting
// cleanup (StatusDestroying) that triggers a monitor warning alert.
const DefaultCleanupWarningCount = 4

// Reaper walks a set of sub-agents and classifies cleanup candidates: agents
// that have been idle too long, and agents stuck awaiting destruction. It
// also derives the ResourcePressure level from the overall fleet shape,
// which concurrency.Controller then uses to size future waves.
type Reaper struct {
	idleCriticalSeconds int
	cleanupWarningCount int
}

// NewReaper creates a Reaper using the supplied thresholds, falling back to
// spec defaults for non-positive values.
func NewReaper(idleCriticalSeconds, cleanupWarningCount int) *Reaper {
	if idleCriticalSeconds <= 0 {
		idleCriticalSeconds = DefaultIdleCriticalSeconds
	}
	if cleanupWarningCount <= 0 {
		cleanupWarningCount = DefaultCleanupWarningCount
	}
	return &Reaper{idleCriticalSeconds: idleCriticalSeconds, cleanupWarningCount: cleanupWarningCount}
}

// StaleIdle returns every agent in agents that has been idle for at least
// r.idleCriticalSeconds, relative to now.
func (r *Reaper) StaleIdle(agents []*SubAgent, now time.Time) []*SubAgent {
	var stale []*SubAgent
	for _, a := range agents {
		if a.Status != StatusIdle && a.Status != StatusPooled {
			continue
		}
		if a.IdleSince.IsZero() {
			continue
		}
		if now.Sub(a.IdleSince) >= time.Duration(r.idleCriticalSeconds)*time.Second {
			stale = append(stale, a)
		}
	}
	return stale
}

// AwaitingCleanup returns every agent currently in StatusDestroying.
func (r *Reaper) AwaitingCleanup(agents []*SubAgent) []*SubAgent {
	var out []*SubAgent
	for _, a := range agents {
		if a.Status == StatusDestroying {
			out = append(out, a)
		}
	}
	return out
}

// ComputePressure derives a ResourcePressure level from the current fleet
// shape: the count of simultaneously active agents and the count stuck
// awaiting cleanup both push pressure upward, since both represent resource
// consumption (spawned OS processes) that has not yet been reclaimed.
func (r *Reaper) ComputePressure(activeCount, awaitingCleanupCount int) ResourcePressure {
	switch {
	case activeCount >= 4 || awaitingCleanupCount > r.cleanupWarningCount*2:
		return PressureCritical
	case activeCount >= 3 || awaitingCleanupCount > r.cleanupWarningCount:
		return PressureHigh
	case activeCount >= 2:
		return PressureElevated
	default:
		return PressureNormal
	}
}
