package orchestrator

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/ranganaths/swarmctl/errors"
	"github.com/ranganaths/swarmctl/runtime"
)

// DefaultMaxSubtasks bounds how many subtasks one decomposition may produce.
const DefaultMaxSubtasks = 6

// DefaultFallbackRoleCount is how many direct-execution sub-tasks are
// synthesized when decomposition fails or yields at most one subtask.
const DefaultFallbackRoleCount = 2

// DefaultShouldDecomposeMinWords is the word-count floor at or below which a
// prompt is executed directly through FallbackPlan instead of being run
// through the planner.
const DefaultShouldDecomposeMinWords = 8

// plannerSubtask mirrors one entry of the planner's JSON contract.
type plannerSubtask struct {
	Title               string `json:"title"`
	Prompt              string `json:"prompt"`
	Dependencies        []int  `json:"dependencies"`
	CanParallel         bool   `json:"can_parallel"`
	EstimatedComplexity string `json:"estimated_complexity"`
}

type plannerResponse struct {
	Subtasks []plannerSubtask `json:"subtasks"`
}

var subtasksJSONPattern = regexp.MustCompile(`(?s)\{.*"subtasks".*\}`)

// ParsePlan parses the planner's raw text output into a slice of SubTask,
// leniently: first a direct JSON decode, then (if that fails) a regex
// extraction of the first brace-delimited object containing "subtasks".
// Returns errors.ErrPlannerUnparsable if neither succeeds, or if the result
// is empty.
func ParsePlan(raw string) ([]*SubTask, error) {
	var resp plannerResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		match := subtasksJSONPattern.FindString(raw)
		if match == "" {
			return nil, errors.Wrapf(errors.ErrPlannerUnparsable, "no JSON object found in planner output")
		}
		if err := json.Unmarshal([]byte(match), &resp); err != nil {
			return nil, errors.Wrapf(errors.ErrPlannerUnparsable, "regex-extracted JSON invalid: %v", err)
		}
	}
	if len(resp.Subtasks) == 0 {
		return nil, errors.Wrapf(errors.ErrPlannerUnparsable, "planner returned zero subtasks")
	}

	n := len(resp.Subtasks)
	if n > DefaultMaxSubtasks {
		n = DefaultMaxSubtasks
	}

	out := make([]*SubTask, 0, n)
	for i := 0; i < n; i++ {
		ps := resp.Subtasks[i]
		complexity := Complexity(strings.ToLower(strings.TrimSpace(ps.EstimatedComplexity)))
		switch complexity {
		case ComplexityLow, ComplexityMedium, ComplexityHigh:
		default:
			complexity = ComplexityMedium
		}
		deps := filterValidDeps(ps.Dependencies, i)
		out = append(out, &SubTask{
			Index:        i,
			Title:        ps.Title,
			Prompt:       ps.Prompt,
			Dependencies: deps,
			Status:       SubTaskPending,
			Priority:     DerivePriority(complexity, deps),
			Complexity:   complexity,
			CanParallel:  ps.CanParallel,
			CreatedAt:    time.Now(),
		})
	}
	return out, nil
}

// filterValidDeps drops any dependency index that is not strictly less than
// the dependent's own index, preventing a forward or self reference from
// the planner's output from creating a cycle.
func filterValidDeps(deps []int, ownIndex int) []int {
	var out []int
	for _, d := range deps {
		if d >= 0 && d < ownIndex {
			out = append(out, d)
		}
	}
	return out
}

// decomposeSeparatorLongPromptWords is the word-count threshold beyond which
// separator punctuation alone (without an explicit sequencing indicator) is
// taken as a multi-step signal.
const decomposeSeparatorLongPromptWords = 12

// decomposeIndicators is the localized multi-step/sequencing vocabulary
// ShouldDecompose scans for. Entries are deliberately chosen so that no
// entry is a substring of another, so a single occurrence in the prompt
// never counts as more than one hit.
var decomposeIndicators = []string{
	// English
	"first", "second", "third", "next", "then", "finally",
	"after that", "once that is done", "also", "additionally",
	// Traditional Chinese
	"首先", "其次", "然後", "接著", "最後", "並且", "同時", "之後",
}

var numberedListPattern = regexp.MustCompile(`\d+[.)]\s`)

// ShouldDecompose reports whether prompt is substantial enough, and
// explicit enough about having multiple steps, to warrant running it
// through the planner rather than executing it directly with a small
// fallback role set. A prompt at or under minWords is always
// executed directly. Above that floor, decomposition requires one of:
// two or more localized sequencing indicators, two or more comma/semicolon/
// ideographic-comma separators in a long prompt, or a numbered list.
func ShouldDecompose(prompt string, minWords int) bool {
	if minWords <= 0 {
		minWords = DefaultShouldDecomposeMinWords
	}
	words := decomposeWordCount(prompt)
	if words <= minWords {
		return false
	}
	if countDecomposeIndicators(prompt) >= 2 {
		return true
	}
	if words > decomposeSeparatorLongPromptWords && countDecomposeSeparators(prompt) >= 2 {
		return true
	}
	return numberedListPattern.MatchString(prompt)
}

// decomposeWordCount counts whitespace-delimited words, plus one additional
// token per CJK character. strings.Fields alone undercounts CJK prompts,
// which are conventionally written with no spaces between words at all.
func decomposeWordCount(prompt string) int {
	n := len(strings.Fields(prompt))
	for _, r := range prompt {
		if unicode.Is(unicode.Han, r) {
			n++
		}
	}
	return n
}

func countDecomposeIndicators(prompt string) int {
	lower := strings.ToLower(prompt)
	hits := 0
	for _, indicator := range decomposeIndicators {
		if strings.Contains(lower, indicator) {
			hits++
		}
	}
	return hits
}

func countDecomposeSeparators(prompt string) int {
	n := 0
	for _, r := range prompt {
		switch r {
		case ',', ';', '、', '，', '；':
			n++
		}
	}
	return n
}

// FallbackPlan builds a direct-execution plan of roleCount subtasks that
// each receive the full original prompt, used when decomposition fails,
// returns a single subtask, or ShouldDecompose rejected the prompt.
func FallbackPlan(prompt string, roleCount int) []*SubTask {
	if roleCount <= 0 {
		roleCount = DefaultFallbackRoleCount
	}
	out := make([]*SubTask, 0, roleCount)
	for i := 0; i < roleCount; i++ {
		out = append(out, &SubTask{
			Index:        i,
			Title:        "direct execution",
			Prompt:       prompt,
			Dependencies: nil,
			Status:       SubTaskPending,
			Priority:     DerivePriority(ComplexityMedium, nil),
			Complexity:   ComplexityMedium,
			CanParallel:  true,
			CreatedAt:    time.Now(),
		})
	}
	return out
}

// Planner decomposes one prompt into a sub-task plan by running it through
// the CLI runtime under the configured planner model, then parsing the
// resulting JSON contract.
type Planner struct {
	rt           runtime.Runtime
	model        runtime.Model
	workspace    string
	planPrompt   func(userPrompt string) string
}

// NewPlanner creates a Planner that spawns rt under model.
func NewPlanner(rt runtime.Runtime, model runtime.Model, workspace string) *Planner {
	return &Planner{
		rt:         rt,
		model:      model,
		workspace:  workspace,
		planPrompt: defaultPlanPrompt,
	}
}

func defaultPlanPrompt(userPrompt string) string {
	var b strings.Builder
	b.WriteString("Decompose the following task into at most ")
	b.WriteString("6 subtasks. Respond with JSON only, matching exactly: ")
	b.WriteString(`{"subtasks":[{"title":"...","prompt":"...","dependencies":[0],"can_parallel":true,"estimated_complexity":"low|medium|high"}]}`)
	b.WriteString("\n\nTask:\n")
	b.WriteString(userPrompt)
	return b.String()
}

// Decompose runs the planner model against prompt and returns the parsed
// plan. The caller is responsible for falling back to FallbackPlan on
// error.
func (p *Planner) Decompose(ctx context.Context, prompt string) ([]*SubTask, error) {
	events, err := p.rt.Run(ctx, p.model, p.planPrompt(prompt), p.workspace)
	if err != nil {
		return nil, err
	}

	var out strings.Builder
	for ev := range events {
		switch ev.Kind {
		case runtime.EventCompleted:
			out.WriteString(ev.Result)
		case runtime.EventOutput:
			out.WriteString(ev.Text)
		case runtime.EventFailed:
			if ev.Err != nil {
				return nil, ev.Err
			}
		}
	}

	return ParsePlan(out.String())
}
