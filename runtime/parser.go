package runtime

import (
	"encoding/json"
	"strings"
	"time"
)

// wireEvent is the shape of one stream-json line emitted by the supervised
// CLI process. Only the fields relevant to classification are declared;
// unrecognized fields are ignored by json.Unmarshal.
type wireEvent struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	Status  string `json:"status"`
	Text    string `json:"text"`
	Result  string `json:"result"`
	Command string `json:"command"`
	Question string `json:"question"`
	Plan    string `json:"plan"`
	Error   string `json:"error"`
}

// Parser classifies one raw output line from the supervised process into an
// Event. Lines that are not recognized JSON are passed through as
// EventOutput verbatim, so nothing the process prints is silently dropped.
type Parser struct{}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse classifies one line.
func (p *Parser) Parse(line string) Event {
	now := time.Now()
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Event{Kind: EventOutput, At: now, Text: line}
	}

	var we wireEvent
	if err := json.Unmarshal([]byte(trimmed), &we); err != nil {
		return Event{Kind: EventOutput, At: now, Text: line}
	}

	switch we.Type {
	case "status", "status_change":
		return Event{Kind: EventStatusChange, At: now, Status: firstNonEmpty(we.Status, we.Subtype)}
	case "progress":
		return Event{Kind: EventProgress, At: now, Text: we.Text}
	case "result", "completed":
		return Event{Kind: EventCompleted, At: now, Result: firstNonEmpty(we.Result, we.Text)}
	case "error", "failed":
		return Event{Kind: EventFailed, At: now, Err: classifyErr(we.Error)}
	case "dangerous_command", "permission_request":
		return Event{Kind: EventDangerousCommand, At: now, Command: we.Command}
	case "ask_user_question", "question":
		return Event{Kind: EventAskUserQuestion, At: now, Question: we.Question}
	case "plan_review", "plan":
		return Event{Kind: EventPlanReview, At: now, Plan: firstNonEmpty(we.Plan, we.Text)}
	default:
		return Event{Kind: EventOutput, At: now, Text: line}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func classifyErr(message string) error {
	if message == "" {
		return nil
	}
	return errString(message)
}

// errString is a minimal error wrapper so a wire-reported error message
// round-trips through the Event.Err field without needing a sentinel.
type errString string

func (e errString) Error() string { return string(e) }
