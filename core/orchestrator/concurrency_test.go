package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranganaths/swarmctl/core/orchestrator"
)

func TestLimitForPressure(t *testing.T) {
	assert.Equal(t, 4, orchestrator.LimitForPressure(orchestrator.PressureNormal))
	assert.Equal(t, 3, orchestrator.LimitForPressure(orchestrator.PressureElevated))
	assert.Equal(t, 2, orchestrator.LimitForPressure(orchestrator.PressureHigh))
	assert.Equal(t, 1, orchestrator.LimitForPressure(orchestrator.PressureCritical))
}

func TestController_RequestStartRespectsLimit(t *testing.T) {
	c := orchestrator.NewController()
	c.SetPressure(orchestrator.PressureCritical)

	assert.True(t, c.RequestStart())
	assert.False(t, c.RequestStart(), "critical pressure allows only one active slot")

	c.TaskCompleted()
	assert.True(t, c.RequestStart(), "a released slot is available again")
}

func TestController_OptimalWaveSize(t *testing.T) {
	c := orchestrator.NewController()
	assert.Equal(t, 4, c.OptimalWaveSize(10, 100), "bounded by the normal-pressure limit")
	assert.Equal(t, 2, c.OptimalWaveSize(2, 100), "bounded by ready count when smaller than the limit")

	c.SetPressure(orchestrator.PressureHigh)
	assert.Equal(t, 2, c.OptimalWaveSize(10, 100))

	c.RequestStart()
	c.RequestStart()
	assert.Equal(t, 0, c.OptimalWaveSize(10, 100), "no headroom left once the pressure limit is saturated")
}

func TestController_AdmitQueuesByPriorityWhenSaturated(t *testing.T) {
	c := orchestrator.NewController()
	c.SetPressure(orchestrator.PressureCritical)
	ctx := context.Background()

	require.True(t, c.Admit(ctx, orchestrator.PriorityMedium), "first caller gets the only slot immediately")

	order := make(chan orchestrator.Priority, 2)
	low := make(chan struct{})
	high := make(chan struct{})
	go func() {
		<-low
		c.Admit(ctx, orchestrator.PriorityLow)
		order <- orchestrator.PriorityLow
	}()
	go func() {
		<-high
		c.Admit(ctx, orchestrator.PriorityHigh)
		order <- orchestrator.PriorityHigh
	}()
	close(low)
	close(high)
	// Give both goroutines a moment to reach Admit and queue before the slot frees.
	time.Sleep(10 * time.Millisecond)

	c.TaskCompleted()
	first := <-order
	assert.Equal(t, orchestrator.PriorityHigh, first, "higher-priority waiter is admitted first regardless of queue arrival order")

	c.TaskCompleted()
	second := <-order
	assert.Equal(t, orchestrator.PriorityLow, second)
}

func TestController_AdmitUnblocksOnContextCancel(t *testing.T) {
	c := orchestrator.NewController()
	c.SetPressure(orchestrator.PressureCritical)
	require.True(t, c.Admit(context.Background(), orchestrator.PriorityMedium))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.False(t, c.Admit(ctx, orchestrator.PriorityMedium), "a queued waiter must unblock when its context is cancelled")
}
