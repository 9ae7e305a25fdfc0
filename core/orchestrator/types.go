// Package orchestrator implements the sub-agent orchestration engine: a
// dependency-aware priority scheduler, a resource-pressure-sensitive
// concurrency controller, a sub-agent pool with a lifecycle state machine,
// and the three-phase plan/execute/synthesize pipeline that ties them
// together behind one facade.
package orchestrator

import (
	"time"

	"github.com/google/uuid"
)

// Role is one of the five fixed sub-agent roles. The rotation
// roles[index % len(roles)] is used to assign a role to a sub-task that has
// none yet, preserving role diversity across a wave.
type Role string

const (
	RoleDeveloper  Role = "developer"
	RoleResearcher Role = "researcher"
	RoleReviewer   Role = "reviewer"
	RoleTester     Role = "tester"
	RoleDesigner   Role = "designer"
)

// Roles is the fixed rotation order used by phase 2's role assignment.
var Roles = []Role{RoleDeveloper, RoleResearcher, RoleReviewer, RoleTester, RoleDesigner}

// RoleForIndex returns roles[index % len(roles)].
func RoleForIndex(index int) Role {
	return Roles[index%len(Roles)]
}

// Model is one of the closed set of external CLI models.
type Model string

const (
	ModelOpus   Model = "opus"
	ModelSonnet Model = "sonnet"
	ModelHaiku  Model = "haiku"
)

// Priority orders sub-tasks within a scheduling wave.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// Complexity is the planner's estimated_complexity field.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// PriorityFromComplexity maps the planner's estimated_complexity to a base
// Priority, before any zero-dependency promotion.
func PriorityFromComplexity(c Complexity) Priority {
	switch c {
	case ComplexityHigh:
		return PriorityHigh
	case ComplexityMedium:
		return PriorityMedium
	case ComplexityLow:
		return PriorityLow
	default:
		return PriorityLow
	}
}

// Promote returns p promoted one level, capped at PriorityCritical.
func (p Priority) Promote() Priority {
	if p >= PriorityCritical {
		return PriorityCritical
	}
	return p + 1
}

// SubAgentStatus is the lifecycle state of one sub-agent.
type SubAgentStatus string

const (
	StatusInitializing         SubAgentStatus = "initializing"
	StatusIdle                 SubAgentStatus = "idle"
	StatusWorking              SubAgentStatus = "working"
	StatusThinking             SubAgentStatus = "thinking"
	StatusRequestingPermission SubAgentStatus = "requestingPermission"
	StatusWaitingForAnswer     SubAgentStatus = "waitingForAnswer"
	StatusReviewingPlan        SubAgentStatus = "reviewingPlan"
	StatusCompleted            SubAgentStatus = "completed"
	StatusError                SubAgentStatus = "error"
	StatusDestroying           SubAgentStatus = "destroying"
	StatusDestroyed            SubAgentStatus = "destroyed"
	StatusPooled               SubAgentStatus = "pooled"
	StatusSuspended            SubAgentStatus = "suspended"
	StatusSuspendedIdle        SubAgentStatus = "suspendedIdle"
)

// Active reports whether this status counts against the concurrency
// controller's effective limit: working, thinking, or any
// waiting-for-user state.
func (s SubAgentStatus) Active() bool {
	switch s {
	case StatusWorking, StatusThinking, StatusRequestingPermission, StatusWaitingForAnswer, StatusReviewingPlan:
		return true
	default:
		return false
	}
}

// SubTaskStatus is the strictly-monotonic status of one decomposed unit of work.
type SubTaskStatus string

const (
	SubTaskPending    SubTaskStatus = "pending"
	SubTaskWaiting    SubTaskStatus = "waiting"
	SubTaskInProgress SubTaskStatus = "inProgress"
	SubTaskCompleted  SubTaskStatus = "completed"
	SubTaskFailed     SubTaskStatus = "failed"
)

// Terminal reports whether status is a terminal state.
func (s SubTaskStatus) Terminal() bool {
	return s == SubTaskCompleted || s == SubTaskFailed
}

// Phase is the orchestration's pipeline phase.
type Phase string

const (
	PhaseDecomposing  Phase = "decomposing"
	PhaseExecuting    Phase = "executing"
	PhaseSynthesizing Phase = "synthesizing"
	PhaseCompleted    Phase = "completed"
	PhaseFailed       Phase = "failed"
)

// Terminal reports whether phase is a terminal state; once reached, no
// further mutation of the orchestration occurs.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// CommanderStatus is the terminal status recorded on a Commander after synthesis.
type CommanderStatus string

const (
	CommanderActive    CommanderStatus = "active"
	CommanderCompleted CommanderStatus = "completed"
	CommanderError     CommanderStatus = "error"
)

// Commander is a top-level agent owning one orchestration.
type Commander struct {
	ID         string
	Model      Model
	SubAgentID []string // ordered sub-agent identities, in assignment order
	Status     CommanderStatus
	CreatedAt  time.Time
}

// NewCommander creates a Commander with a fresh identity.
func NewCommander(model Model) *Commander {
	return &Commander{
		ID:        uuid.New().String(),
		Model:     model,
		Status:    CommanderActive,
		CreatedAt: time.Now(),
	}
}

// SubAgent is a worker bound to one role, one-to-one with a sub-task while assigned.
type SubAgent struct {
	ID              string
	Role            Role
	ParentID        string // commander identity, empty while pooled
	Status          SubAgentStatus
	AssignedTaskIdx int // -1 if unassigned
	CreatedAt       time.Time
	IdleSince       time.Time
	TerminalSince   time.Time
}

// NewSubAgent creates a SubAgent with a fresh identity in the initializing state.
func NewSubAgent(role Role) *SubAgent {
	return &SubAgent{
		ID:              role.String() + "-" + uuid.New().String()[:8],
		Role:            role,
		Status:          StatusInitializing,
		AssignedTaskIdx: -1,
		CreatedAt:       time.Now(),
	}
}

func (r Role) String() string { return string(r) }

// SubTask is one decomposed unit of work.
type SubTask struct {
	Index        int
	Title        string
	Prompt       string
	Dependencies []int // all < Index
	Status       SubTaskStatus
	Priority     Priority
	Complexity   Complexity
	CanParallel  bool // advisory only, preserved for forward compatibility

	AssignedAgentID string // "" if unassigned
	ExternalTaskID  string // "" if not yet started on the CLI runtime

	Result string
	Error  string

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// Orchestration is the bookkeeping record for one user submission through all
// three phases, keyed by commander identity.
type Orchestration struct {
	CommanderID string
	Prompt      string
	Subtasks    []*SubTask
	Phase       Phase
	Wave        int
	Synthesis   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AllTerminal reports whether every sub-task has reached a terminal status.
func (o *Orchestration) AllTerminal() bool {
	for _, st := range o.Subtasks {
		if !st.Status.Terminal() {
			return false
		}
	}
	return true
}

// TaskQueueItem is a durable mirror of a running sub-task for interruption survival.
type TaskQueueItem struct {
	QueueID      string
	CommanderID  string
	SubtaskIndex int
	Title        string
	Prompt       string
	AssignedTo   string
	Dependencies []int
	Status       SubTaskStatus
	EnqueuedAt   time.Time
	StartedAt    time.Time
}

// NewTaskQueueItem builds a TaskQueueItem mirroring a SubTask at enqueue time.
func NewTaskQueueItem(commanderID string, st *SubTask) *TaskQueueItem {
	return &TaskQueueItem{
		QueueID:      uuid.New().String(),
		CommanderID:  commanderID,
		SubtaskIndex: st.Index,
		Title:        st.Title,
		Prompt:       st.Prompt,
		AssignedTo:   st.AssignedAgentID,
		Dependencies: st.Dependencies,
		Status:       st.Status,
		EnqueuedAt:   time.Now(),
	}
}

// ResourcePressure is the four-level admission/pool-sizing signal.
type ResourcePressure int

const (
	PressureNormal ResourcePressure = iota
	PressureElevated
	PressureHigh
	PressureCritical
)

func (p ResourcePressure) String() string {
	switch p {
	case PressureNormal:
		return "normal"
	case PressureElevated:
		return "elevated"
	case PressureHigh:
		return "high"
	case PressureCritical:
		return "critical"
	default:
		return "unknown"
	}
}
