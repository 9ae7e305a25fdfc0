package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ranganaths/swarmctl/runtime"
)

func TestParser_ClassifiesEachEventKind(t *testing.T) {
	p := runtime.NewParser()

	cases := []struct {
		line string
		kind runtime.EventKind
	}{
		{`{"type":"status","status":"thinking"}`, runtime.EventStatusChange},
		{`{"type":"progress","text":"step 1"}`, runtime.EventProgress},
		{`{"type":"result","result":"done"}`, runtime.EventCompleted},
		{`{"type":"error","error":"boom"}`, runtime.EventFailed},
		{`{"type":"dangerous_command","command":"rm -rf /"}`, runtime.EventDangerousCommand},
		{`{"type":"ask_user_question","question":"continue?"}`, runtime.EventAskUserQuestion},
		{`{"type":"plan_review","plan":"step a, step b"}`, runtime.EventPlanReview},
		{"plain unstructured log line", runtime.EventOutput},
		{"", runtime.EventOutput},
	}

	for _, tc := range cases {
		ev := p.Parse(tc.line)
		assert.Equal(t, tc.kind, ev.Kind, "line: %s", tc.line)
	}
}

func TestParser_DangerousCommandCapturesCommand(t *testing.T) {
	p := runtime.NewParser()
	ev := p.Parse(`{"type":"dangerous_command","command":"rm -rf /"}`)
	assert.Equal(t, "rm -rf /", ev.Command)
}

func TestParser_FailedCarriesErrorMessage(t *testing.T) {
	p := runtime.NewParser()
	ev := p.Parse(`{"type":"error","error":"network unreachable"}`)
	assert.Error(t, ev.Err)
	assert.Equal(t, "network unreachable", ev.Err.Error())
}
