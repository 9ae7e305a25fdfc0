package orchestrator

import "sync"

// DefaultMaxPoolSize is the default per-role ceiling on pooled, idle
// sub-agents.
const DefaultMaxPoolSize = 8

// DefaultPressureReleaseCeiling is the highest pressure level at which a
// released sub-agent may still be returned to the pool rather than
// destroyed.
const DefaultPressureReleaseCeiling = PressureElevated

// poolStats tracks hit/miss counters for observability.
type poolStats struct {
	hits   int
	misses int
}

// Pool recycles idle SubAgents by role so that a new sub-task assigned to a
// role with an idle agent reuses that agent's identity and role bookkeeping.
// No process or connection is kept alive between sub-tasks: each run spawns
// a fresh CLI process. Acquisition is LIFO per role: the most recently
// released agent is handed out first.
type Pool struct {
	mu                    sync.Mutex
	byRole                map[Role][]*SubAgent
	maxPoolSize           int
	pressureReleaseCeiling ResourcePressure
	stats                 poolStats
}

// NewPool creates an empty Pool with the given per-role size ceiling and
// pressure-release ceiling.
func NewPool(maxPoolSize int, pressureReleaseCeiling ResourcePressure) *Pool {
	if maxPoolSize <= 0 {
		maxPoolSize = DefaultMaxPoolSize
	}
	return &Pool{
		byRole:                 make(map[Role][]*SubAgent),
		maxPoolSize:            maxPoolSize,
		pressureReleaseCeiling: pressureReleaseCeiling,
	}
}

// AcquireOrCreate returns a pooled idle agent for role if one exists (a pool
// hit), otherwise constructs a fresh SubAgent (a pool miss). The returned
// agent is bound to parentID and has AssignedTaskIdx left at -1 for the
// caller to set.
func (p *Pool) AcquireOrCreate(role Role, parentID string) *SubAgent {
	p.mu.Lock()
	defer p.mu.Unlock()

	bucket := p.byRole[role]
	if n := len(bucket); n > 0 {
		agent := bucket[n-1]
		p.byRole[role] = bucket[:n-1]
		p.stats.hits++
		agent.ParentID = parentID
		agent.Status = StatusIdle
		agent.AssignedTaskIdx = -1
		return agent
	}

	p.stats.misses++
	agent := NewSubAgent(role)
	agent.ParentID = parentID
	return agent
}

// Release returns agent to the pool if capacity and current resource
// pressure allow it; otherwise it marks the agent for destruction and
// returns false so the caller can drop its bookkeeping.
func (p *Pool) Release(agent *SubAgent, pressure ResourcePressure) (pooled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bucket := p.byRole[agent.Role]
	if len(bucket) >= p.maxPoolSize || pressure > p.pressureReleaseCeiling {
		agent.Status = StatusDestroying
		return false
	}

	agent.ParentID = ""
	agent.AssignedTaskIdx = -1
	agent.Status = StatusPooled
	p.byRole[agent.Role] = append(bucket, agent)
	return true
}

// Size returns the number of pooled idle agents for role.
func (p *Pool) Size(role Role) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byRole[role])
}

// TotalSize returns the number of pooled idle agents across all roles.
func (p *Pool) TotalSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, bucket := range p.byRole {
		total += len(bucket)
	}
	return total
}

// HitRate returns hits / (hits + misses), or 0 if the pool has never been
// queried.
func (p *Pool) HitRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := p.stats.hits + p.stats.misses
	if total == 0 {
		return 0
	}
	return float64(p.stats.hits) / float64(total)
}

// Stats returns (hits, misses) since the pool was created.
func (p *Pool) Stats() (hits, misses int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.hits, p.stats.misses
}
