package orchestrator

import (
	"fmt"
	"sync"
	"time"

	orcherrors "github.com/ranganaths/swarmctl/errors"
)

// DefaultTransitionLogCap is the maximum number of transitions retained in
// memory before a batch eviction runs.
const DefaultTransitionLogCap = 500

// DefaultTransitionLogEvictPct is the fraction of the oldest entries dropped
// once the cap is reached, amortizing the eviction cost across many
// transitions instead of evicting one-in-one-out.
const DefaultTransitionLogEvictPct = 0.2

// transitions is the allow-list of legal SubAgentStatus edges. Any edge not
// listed here is rejected by Lifecycle.Transition.
var transitions = map[SubAgentStatus]map[SubAgentStatus]bool{
	StatusInitializing: {
		StatusIdle:    true,
		StatusWorking: true,
		StatusError:   true,
	},
	StatusIdle: {
		StatusWorking:    true,
		StatusDestroying: true,
		StatusSuspended:  true,
	},
	StatusWorking: {
		StatusThinking:             true,
		StatusRequestingPermission: true,
		StatusWaitingForAnswer:     true,
		StatusReviewingPlan:        true,
		StatusCompleted:            true,
		StatusError:                true,
		StatusIdle:                 true,
	},
	StatusThinking: {
		StatusWorking:   true,
		StatusCompleted: true,
		StatusError:     true,
	},
	StatusRequestingPermission: {
		StatusWorking: true,
		StatusError:   true,
	},
	StatusWaitingForAnswer: {
		StatusWorking: true,
		StatusError:   true,
	},
	StatusReviewingPlan: {
		StatusWorking: true,
		StatusError:   true,
	},
	StatusCompleted: {
		StatusDestroying: true,
		StatusPooled:     true,
	},
	StatusError: {
		StatusDestroying: true,
	},
	StatusDestroying: {
		StatusDestroyed: true,
	},
	StatusPooled: {
		StatusIdle:       true,
		StatusDestroying: true,
	},
	StatusSuspended: {
		StatusSuspendedIdle: true,
		StatusIdle:          true,
	},
	StatusSuspendedIdle: {
		StatusIdle:       true,
		StatusDestroying: true,
	},
}

// Transition record of one lifecycle edge, for audit and monitor alerting.
type Transition struct {
	AgentID string
	From    SubAgentStatus
	To      SubAgentStatus
	At      time.Time
}

// Lifecycle enforces the allow-listed sub-agent state machine and keeps a
// capped log of every transition that has occurred.
type Lifecycle struct {
	mu         sync.Mutex
	log        []Transition
	cap        int
	evictPct   float64
}

// NewLifecycle creates a Lifecycle with the default cap and eviction ratio.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{cap: DefaultTransitionLogCap, evictPct: DefaultTransitionLogEvictPct}
}

// NewLifecycleWithCap creates a Lifecycle with a custom log cap and eviction
// ratio, as read from config.PoolConfig.
func NewLifecycleWithCap(cap int, evictPct float64) *Lifecycle {
	if cap <= 0 {
		cap = DefaultTransitionLogCap
	}
	if evictPct <= 0 || evictPct >= 1 {
		evictPct = DefaultTransitionLogEvictPct
	}
	return &Lifecycle{cap: cap, evictPct: evictPct}
}

// Transition validates and applies agent.Status -> to, recording it in the
// log. It returns orcherrors.ErrInvalidTransition if the edge is not
// allow-listed.
func (l *Lifecycle) Transition(agent *SubAgent, to SubAgentStatus) error {
	from := agent.Status
	allowed, ok := transitions[from]
	if !ok || !allowed[to] {
		return fmt.Errorf("%w: %s -> %s for agent %s", orcherrors.ErrInvalidTransition, from, to, agent.ID)
	}

	agent.Status = to
	now := time.Now()
	switch to {
	case StatusIdle, StatusPooled:
		agent.IdleSince = now
	case StatusCompleted, StatusError, StatusDestroyed:
		agent.TerminalSince = now
	}

	l.mu.Lock()
	l.log = append(l.log, Transition{AgentID: agent.ID, From: from, To: to, At: now})
	if len(l.log) > l.cap {
		evict := int(float64(l.cap) * l.evictPct)
		if evict < 1 {
			evict = 1
		}
		l.log = append([]Transition(nil), l.log[evict:]...)
	}
	l.mu.Unlock()

	return nil
}

// CanTransition reports whether from -> to is an allow-listed edge, without
// mutating any state.
func CanTransition(from, to SubAgentStatus) bool {
	allowed, ok := transitions[from]
	return ok && allowed[to]
}

// RecentTransitions returns a copy of the last n recorded transitions, most
// recent last.
func (l *Lifecycle) RecentTransitions(n int) []Transition {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.log) {
		n = len(l.log)
	}
	out := make([]Transition, n)
	copy(out, l.log[len(l.log)-n:])
	return out
}

// LogLen returns the current number of retained transitions.
func (l *Lifecycle) LogLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.log)
}
