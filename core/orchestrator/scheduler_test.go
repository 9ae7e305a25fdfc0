package orchestrator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ranganaths/swarmctl/core/orchestrator"
)

func TestDerivePriority_ZeroDependencyPromotion(t *testing.T) {
	assert.Equal(t, orchestrator.PriorityHigh, orchestrator.DerivePriority(orchestrator.ComplexityMedium, nil))
	assert.Equal(t, orchestrator.PriorityMedium, orchestrator.DerivePriority(orchestrator.ComplexityMedium, []int{0}))
	assert.Equal(t, orchestrator.PriorityCritical, orchestrator.DerivePriority(orchestrator.ComplexityHigh, nil), "promotion caps at critical")
}

func TestReadySubtasks_OrdersByPriorityThenIndex(t *testing.T) {
	orch := &orchestrator.Orchestration{
		Subtasks: []*orchestrator.SubTask{
			{Index: 0, Status: orchestrator.SubTaskPending, Priority: orchestrator.PriorityLow},
			{Index: 1, Status: orchestrator.SubTaskPending, Priority: orchestrator.PriorityCritical},
			{Index: 2, Status: orchestrator.SubTaskPending, Priority: orchestrator.PriorityCritical},
			{Index: 3, Status: orchestrator.SubTaskCompleted, Priority: orchestrator.PriorityCritical},
		},
	}
	ready := orchestrator.ReadySubtasks(orch)
	assert.Equal(t, []int{1, 2, 0}, indexesOf(ready))
}

func TestReadySubtasks_BlocksOnIncompleteDependency(t *testing.T) {
	orch := &orchestrator.Orchestration{
		Subtasks: []*orchestrator.SubTask{
			{Index: 0, Status: orchestrator.SubTaskInProgress},
			{Index: 1, Status: orchestrator.SubTaskPending, Dependencies: []int{0}},
		},
	}
	assert.Empty(t, orchestrator.ReadySubtasks(orch))
}

func TestScheduler_NextBatchRespectsMaxSize(t *testing.T) {
	s := orchestrator.NewScheduler()
	orch := &orchestrator.Orchestration{
		Subtasks: []*orchestrator.SubTask{
			{Index: 0, Status: orchestrator.SubTaskPending},
			{Index: 1, Status: orchestrator.SubTaskPending},
			{Index: 2, Status: orchestrator.SubTaskPending},
		},
	}
	batch := s.NextBatch(orch, 2)
	assert.Len(t, batch, 2)
}

func indexesOf(subtasks []*orchestrator.SubTask) []int {
	out := make([]int, len(subtasks))
	for i, st := range subtasks {
		out[i] = st.Index
	}
	return out
}
