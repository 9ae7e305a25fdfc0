package orchestrator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ranganaths/swarmctl/core/orchestrator"
)

func TestPool_AcquireMissThenReleaseThenHit(t *testing.T) {
	p := orchestrator.NewPool(orchestrator.DefaultMaxPoolSize, orchestrator.PressureElevated)

	agent := p.AcquireOrCreate(orchestrator.RoleDeveloper, "commander-1")
	hits, misses := p.Stats()
	assert.Equal(t, 0, hits)
	assert.Equal(t, 1, misses)

	pooled := p.Release(agent, orchestrator.PressureNormal)
	assert.True(t, pooled)
	assert.Equal(t, 1, p.Size(orchestrator.RoleDeveloper))

	agent2 := p.AcquireOrCreate(orchestrator.RoleDeveloper, "commander-2")
	assert.Equal(t, agent.ID, agent2.ID, "LIFO acquisition returns the most recently released agent")
	hits, misses = p.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestPool_ReleaseDestroysUnderHighPressure(t *testing.T) {
	p := orchestrator.NewPool(orchestrator.DefaultMaxPoolSize, orchestrator.PressureElevated)
	agent := p.AcquireOrCreate(orchestrator.RoleTester, "commander-1")

	pooled := p.Release(agent, orchestrator.PressureHigh)
	assert.False(t, pooled, "pressure above the release ceiling destroys instead of pooling")
	assert.Equal(t, 0, p.Size(orchestrator.RoleTester))
}

func TestPool_ReleaseDestroysWhenFull(t *testing.T) {
	p := orchestrator.NewPool(1, orchestrator.PressureElevated)
	a1 := p.AcquireOrCreate(orchestrator.RoleReviewer, "c1")
	a2 := p.AcquireOrCreate(orchestrator.RoleReviewer, "c2")

	assert.True(t, p.Release(a1, orchestrator.PressureNormal))
	assert.False(t, p.Release(a2, orchestrator.PressureNormal), "second release exceeds the per-role cap")
}
