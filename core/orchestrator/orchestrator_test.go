package orchestrator_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranganaths/swarmctl/core/orchestrator"
	"github.com/ranganaths/swarmctl/runtime"
)

func newTestOrchestrator(rt runtime.Runtime) *orchestrator.Orchestrator {
	return orchestrator.New(rt, nil, nil, orchestrator.Options{
		FallbackRoleCount:       2,
		ShouldDecomposeMinWords: 8,
		PlannerModel:            runtime.ModelHaiku,
		MaxPoolSize:             8,
		IntroDelay:              0,
	})
}

// S1: a short prompt never reaches the planner and is executed directly by
// the fallback role set.
func TestScenario_TrivialFallback(t *testing.T) {
	rt := echoRuntime()
	orch := newTestOrchestrator(rt)
	commander := orchestrator.NewCommander(orchestrator.ModelSonnet)

	result, err := orch.Submit(context.Background(), commander, "fix bug")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.PhaseCompleted, result.Phase)
	assert.Len(t, result.Subtasks, 2)
	for _, st := range result.Subtasks {
		assert.Equal(t, orchestrator.SubTaskCompleted, st.Status)
	}
}

// S2: the planner returns exactly one subtask, which is treated the same as
// a decomposition failure and falls back to direct execution.
func TestScenario_SingleTaskPlanFallback(t *testing.T) {
	rt := newMockRuntime(func(callIndex int, prompt string) (string, error) {
		if callIndex == 0 {
			return `{"subtasks":[{"title":"only","prompt":"do it all","dependencies":[],"can_parallel":true,"estimated_complexity":"low"}]}`, nil
		}
		return "done", nil
	})
	orch := newTestOrchestrator(rt)
	commander := orchestrator.NewCommander(orchestrator.ModelSonnet)

	result, err := orch.Submit(context.Background(), commander, "First handle this entire multi part request for me, then confirm it's done.")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.PhaseCompleted, result.Phase)
	assert.Len(t, result.Subtasks, 2, "single-subtask plans fall back to the 2-role direct execution path")
}

// S3: a linear dependency chain executes in order, with the dependent
// receiving the upstream result as context.
func TestScenario_LinearChain(t *testing.T) {
	var capturedPrompt string
	rt := newMockRuntime(func(callIndex int, prompt string) (string, error) {
		switch callIndex {
		case 0:
			return planJSON, nil
		case 1:
			return "research-output", nil
		case 2:
			capturedPrompt = prompt
			return "final-write", nil
		default:
			return "synthesis", nil
		}
	})
	orch := newTestOrchestrator(rt)
	commander := orchestrator.NewCommander(orchestrator.ModelSonnet)

	result, err := orch.Submit(context.Background(), commander, "First research a topic thoroughly, then write a report about it")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.PhaseCompleted, result.Phase)
	require.Len(t, result.Subtasks, 2)
	assert.Equal(t, orchestrator.SubTaskCompleted, result.Subtasks[0].Status)
	assert.Equal(t, orchestrator.SubTaskCompleted, result.Subtasks[1].Status)
	assert.Contains(t, capturedPrompt, "research-output", "dependent subtask prompt must carry the dependency's result")
}

// S4: independent subtasks with no dependencies on each other all run, and
// the fan-in subtask only starts once both are complete.
func TestScenario_FanOut(t *testing.T) {
	rt := newMockRuntime(func(callIndex int, prompt string) (string, error) {
		if callIndex == 0 {
			return fanOutPlanJSON, nil
		}
		return "ok", nil
	})
	orch := newTestOrchestrator(rt)
	commander := orchestrator.NewCommander(orchestrator.ModelSonnet)

	result, err := orch.Submit(context.Background(), commander, "First do task a, next do task b, then combine them into task c")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.PhaseCompleted, result.Phase)
	require.Len(t, result.Subtasks, 3)
	for _, st := range result.Subtasks {
		assert.Equal(t, orchestrator.SubTaskCompleted, st.Status)
	}
}

// S5: one subtask fails; its dependent is marked failed without ever
// running, and synthesis still runs so the orchestration completes.
func TestScenario_FailureIsolation(t *testing.T) {
	boom := errors.New("boom")
	rt := newMockRuntime(func(callIndex int, prompt string) (string, error) {
		switch callIndex {
		case 0:
			return planJSON, nil
		case 1:
			return "", boom
		default:
			return "synthesis", nil
		}
	})
	orch := newTestOrchestrator(rt)
	commander := orchestrator.NewCommander(orchestrator.ModelSonnet)

	result, err := orch.Submit(context.Background(), commander, "First research a topic thoroughly, then write a report about it")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.PhaseCompleted, result.Phase, "partial subtask failure does not fail the whole orchestration")
	require.Len(t, result.Subtasks, 2)
	assert.Equal(t, orchestrator.SubTaskFailed, result.Subtasks[0].Status)
	assert.Equal(t, orchestrator.SubTaskFailed, result.Subtasks[1].Status, "dependent of a failed subtask is cascaded to failed")
	assert.True(t, strings.Contains(result.Subtasks[1].Error, "0"), "cascaded failure message should name the failed dependency")
}

// Submit waits out the configured intro delay, passing the configured
// duration to the delay hook, before phase 1 begins. Cancellation during
// the wait is covered by TestSubmit_CancelledDuringIntroDelayNeverDecomposes.
func TestSubmit_IntroDelayRunsBeforePhase1(t *testing.T) {
	rt := echoRuntime()
	var delayed time.Duration
	orch := orchestrator.New(rt, nil, nil, orchestrator.Options{
		FallbackRoleCount:       2,
		ShouldDecomposeMinWords: 8,
		PlannerModel:            runtime.ModelHaiku,
		MaxPoolSize:             8,
		IntroDelay:              5 * time.Millisecond,
		IntroDelayFunc: func(ctx context.Context, d time.Duration) {
			delayed = d
		},
	})
	commander := orchestrator.NewCommander(orchestrator.ModelSonnet)

	result, err := orch.Submit(context.Background(), commander, "fix bug")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.PhaseCompleted, result.Phase)
	assert.Equal(t, 5*time.Millisecond, delayed, "Submit must invoke the configured intro delay hook before phase 1")
}

func TestSubmit_CancelledDuringIntroDelayNeverDecomposes(t *testing.T) {
	rt := newMockRuntime(func(callIndex int, prompt string) (string, error) {
		t.Fatal("runtime must not be invoked when cancellation happens during the intro delay")
		return "", nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := orchestrator.New(rt, nil, nil, orchestrator.Options{
		FallbackRoleCount:       2,
		ShouldDecomposeMinWords: 8,
		PlannerModel:            runtime.ModelHaiku,
		MaxPoolSize:             8,
		IntroDelay:              time.Hour,
		IntroDelayFunc:          defaultIntroDelayForTest,
	})
	commander := orchestrator.NewCommander(orchestrator.ModelSonnet)

	result, err := orch.Submit(ctx, commander, "fix bug")
	require.Error(t, err)
	assert.Equal(t, orchestrator.PhaseFailed, result.Phase)
}

func defaultIntroDelayForTest(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// S6: cancelling the context mid-execution surfaces a cancellation error
// and leaves every non-terminal subtask marked failed rather than stuck
// pending forever.
func TestScenario_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 1)

	rt := newMockRuntime(func(callIndex int, prompt string) (string, error) {
		if callIndex == 0 {
			return fanOutPlanJSON, nil
		}
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(50 * time.Millisecond)
		return "ok", nil
	})
	orch := newTestOrchestrator(rt)
	commander := orchestrator.NewCommander(orchestrator.ModelSonnet)

	go func() {
		<-started
		cancel()
	}()

	result, err := orch.Submit(ctx, commander, "First do task a, next do task b, then combine them into task c")
	require.Error(t, err)
	assert.Equal(t, orchestrator.PhaseFailed, result.Phase)
	for _, st := range result.Subtasks {
		assert.True(t, st.Status.Terminal(), "every subtask must be resolved to a terminal status after cancellation")
	}
}
