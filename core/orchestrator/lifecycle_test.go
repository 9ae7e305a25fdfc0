package orchestrator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	swarmctlerrors "github.com/ranganaths/swarmctl/errors"

	"github.com/ranganaths/swarmctl/core/orchestrator"
)

func TestLifecycle_AllowedTransition(t *testing.T) {
	l := orchestrator.NewLifecycle()
	agent := orchestrator.NewSubAgent(orchestrator.RoleDeveloper)

	require.NoError(t, l.Transition(agent, orchestrator.StatusIdle))
	require.NoError(t, l.Transition(agent, orchestrator.StatusWorking))
	assert.Equal(t, orchestrator.StatusWorking, agent.Status)
	assert.Equal(t, 2, l.LogLen())
}

func TestLifecycle_RejectsIllegalTransition(t *testing.T) {
	l := orchestrator.NewLifecycle()
	agent := orchestrator.NewSubAgent(orchestrator.RoleDeveloper)

	err := l.Transition(agent, orchestrator.StatusCompleted)
	require.Error(t, err)
	assert.ErrorIs(t, err, swarmctlerrors.ErrInvalidTransition)
	assert.Equal(t, orchestrator.StatusInitializing, agent.Status, "a rejected transition leaves status unchanged")
}

func TestLifecycle_LogEvictsOldestBatchAtCap(t *testing.T) {
	l := orchestrator.NewLifecycleWithCap(10, 0.2)
	agent := orchestrator.NewSubAgent(orchestrator.RoleDeveloper)
	require.NoError(t, l.Transition(agent, orchestrator.StatusIdle))

	for i := 0; i < 20; i++ {
		require.NoError(t, l.Transition(agent, orchestrator.StatusWorking))
		require.NoError(t, l.Transition(agent, orchestrator.StatusIdle))
	}

	assert.LessOrEqual(t, l.LogLen(), 10)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, orchestrator.CanTransition(orchestrator.StatusWorking, orchestrator.StatusCompleted))
	assert.False(t, orchestrator.CanTransition(orchestrator.StatusCompleted, orchestrator.StatusWorking))
}
