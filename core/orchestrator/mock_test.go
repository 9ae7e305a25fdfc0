package orchestrator_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ranganaths/swarmctl/runtime"
)

// mockRuntime is a scripted stand-in for a real supervised CLI process,
// modeled on the upstream framework's MockLLMProvider: each call consults a
// per-prompt or positional script to decide what to emit, so a test can
// assert exact orchestrator behavior without spawning any real process.
type mockRuntime struct {
	mu        sync.Mutex
	calls     int32
	responder func(callIndex int, prompt string) (string, error)
}

func newMockRuntime(responder func(callIndex int, prompt string) (string, error)) *mockRuntime {
	return &mockRuntime{responder: responder}
}

func (m *mockRuntime) Run(ctx context.Context, model runtime.Model, prompt, workspace string) (<-chan runtime.Event, error) {
	idx := int(atomic.AddInt32(&m.calls, 1)) - 1
	events := make(chan runtime.Event, 2)

	go func() {
		defer close(events)
		result, err := m.responder(idx, prompt)
		select {
		case <-ctx.Done():
			events <- runtime.Event{Kind: runtime.EventFailed, Err: ctx.Err(), Cancelled: true}
			return
		default:
		}
		if err != nil {
			events <- runtime.Event{Kind: runtime.EventFailed, Err: err}
			return
		}
		events <- runtime.Event{Kind: runtime.EventCompleted, Result: result}
	}()

	return events, nil
}

// echoRuntime always succeeds, returning a fixed marker plus the call
// index so a test can distinguish calls without caring about content.
func echoRuntime() *mockRuntime {
	return newMockRuntime(func(callIndex int, prompt string) (string, error) {
		return fmt.Sprintf("result-%d", callIndex), nil
	})
}

// planJSON is a valid two-subtask planner response with subtask 1 depending
// on subtask 0, used by multiple scenario tests.
const planJSON = `{"subtasks":[
  {"title":"research","prompt":"research the topic","dependencies":[],"can_parallel":true,"estimated_complexity":"low"},
  {"title":"write","prompt":"write it up","dependencies":[0],"can_parallel":false,"estimated_complexity":"medium"}
]}`

const fanOutPlanJSON = `{"subtasks":[
  {"title":"a","prompt":"task a","dependencies":[],"can_parallel":true,"estimated_complexity":"low"},
  {"title":"b","prompt":"task b","dependencies":[],"can_parallel":true,"estimated_complexity":"low"},
  {"title":"c","prompt":"task c","dependencies":[0,1],"can_parallel":false,"estimated_complexity":"high"}
]}`
