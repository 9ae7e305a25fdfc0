package orchestrator

import (
	"sync"
	"time"

	"github.com/ranganaths/swarmctl/observability"
)

// DefaultSnapshotInterval is how often the monitor samples fleet state.
const DefaultSnapshotInterval = 10 * time.Second

// DefaultSnapshotRingSize is the number of retained snapshots (1 hour at the
// default 10s interval).
const DefaultSnapshotRingSize = 360

// DefaultAlertDedupWindow suppresses repeat alerts with the same message within
// this window, so a sustained condition produces one alert, not one per
// sampling tick.
const DefaultAlertDedupWindow = 30 * time.Second

// AlertSeverity classifies a monitor alert.
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is one raised monitor condition.
type Alert struct {
	Severity AlertSeverity
	Kind     string
	Message  string
	At       time.Time
}

// Snapshot is one sampled point of fleet state, retained in a ring buffer
// for trend inspection.
type Snapshot struct {
	At                time.Time
	ActiveAgents      int
	IdleAgents        int
	AwaitingCleanup   int
	PendingSubtasks   int
	Pressure          ResourcePressure
}

// Monitor passively samples fleet state on an interval, records it to a
// capped ring buffer, and raises deduplicated alerts when thresholds are
// crossed. It never mutates orchestration state; it only observes.
type Monitor struct {
	mu            sync.Mutex
	ring          []Snapshot
	ringSize      int
	lastAlertAt   map[string]time.Time
	dedupWindow   time.Duration
	reaper        *Reaper
	metrics       *observability.Collector
	logger        observability.Logger
}

// NewMonitor creates a Monitor with the given ring size and alert dedup
// window, falling back to spec defaults for non-positive values.
func NewMonitor(ringSize int, dedupWindow time.Duration, reaper *Reaper, metrics *observability.Collector, logger observability.Logger) *Monitor {
	if ringSize <= 0 {
		ringSize = DefaultSnapshotRingSize
	}
	if dedupWindow <= 0 {
		dedupWindow = DefaultAlertDedupWindow
	}
	return &Monitor{
		ringSize:    ringSize,
		lastAlertAt: make(map[string]time.Time),
		dedupWindow: dedupWindow,
		reaper:      reaper,
		metrics:     metrics,
		logger:      logger,
	}
}

// FleetState is the input the caller gathers from the pool/controller/
// orchestrations before calling Sample; the monitor has no direct access to
// that state so it stays decoupled from the rest of the package's locking.
type FleetState struct {
	Active          []*SubAgent
	PendingSubtasks int
	Pressure        ResourcePressure
}

// Sample records one snapshot and returns any newly raised (non-deduped)
// alerts.
func (m *Monitor) Sample(state FleetState, now time.Time) []Alert {
	idle := 0
	for _, a := range state.Active {
		if a.Status == StatusIdle || a.Status == StatusPooled {
			idle++
		}
	}
	awaitingCleanup := m.reaper.AwaitingCleanup(state.Active)
	staleIdle := m.reaper.StaleIdle(state.Active, now)

	active := 0
	for _, a := range state.Active {
		if a.Status.Active() {
			active++
		}
	}

	snap := Snapshot{
		At:              now,
		ActiveAgents:    active,
		IdleAgents:      idle,
		AwaitingCleanup: len(awaitingCleanup),
		PendingSubtasks: state.PendingSubtasks,
		Pressure:        state.Pressure,
	}

	m.mu.Lock()
	m.ring = append(m.ring, snap)
	if len(m.ring) > m.ringSize {
		m.ring = m.ring[len(m.ring)-m.ringSize:]
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetActiveAgents(active)
		m.metrics.SetPendingTasks(state.PendingSubtasks)
		m.metrics.SetResourcePressure(int(state.Pressure))
	}

	var alerts []Alert
	if idle > DefaultIdleWarningThreshold {
		if a, ok := m.raise(SeverityWarning, "idle-agents", "idle sub-agent count exceeds threshold", now); ok {
			alerts = append(alerts, a)
		}
	}
	for range staleIdle {
		if a, ok := m.raise(SeverityCritical, "idle-timeout", "sub-agent idle beyond critical threshold", now); ok {
			alerts = append(alerts, a)
			break
		}
	}
	if len(awaitingCleanup) > m.reaper.cleanupWarningCount {
		if a, ok := m.raise(SeverityWarning, "cleanup-backlog", "agents awaiting cleanup exceeds threshold", now); ok {
			alerts = append(alerts, a)
		}
	}

	for _, a := range alerts {
		if m.logger != nil {
			m.logger.Warn(string(a.Kind), observability.String("severity", string(a.Severity)), observability.String("message", a.Message))
		}
		if m.metrics != nil {
			m.metrics.RecordAlert(string(a.Severity))
		}
	}

	return alerts
}

// raise dedupes by message text, not kind: two distinct conditions under the
// same kind should each surface, but a sustained identical condition should
// not re-alert inside the dedup window.
func (m *Monitor) raise(severity AlertSeverity, kind, message string, now time.Time) (Alert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.lastAlertAt[message]; ok && now.Sub(last) < m.dedupWindow {
		return Alert{}, false
	}
	m.lastAlertAt[message] = now
	return Alert{Severity: severity, Kind: kind, Message: message, At: now}, true
}

// Snapshots returns a copy of the retained ring buffer, oldest first.
func (m *Monitor) Snapshots() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, len(m.ring))
	copy(out, m.ring)
	return out
}
