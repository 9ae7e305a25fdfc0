package orchestrator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranganaths/swarmctl/core/orchestrator"
)

func TestParsePlan_DirectJSON(t *testing.T) {
	subtasks, err := orchestrator.ParsePlan(planJSON)
	require.NoError(t, err)
	require.Len(t, subtasks, 2)
	assert.Equal(t, "research", subtasks[0].Title)
	assert.Equal(t, []int{0}, subtasks[1].Dependencies)
}

func TestParsePlan_RegexFallbackExtraction(t *testing.T) {
	noisy := "Sure, here is the plan:\n```json\n" + planJSON + "\n```\nLet me know if you need changes."
	subtasks, err := orchestrator.ParsePlan(noisy)
	require.NoError(t, err)
	assert.Len(t, subtasks, 2)
}

func TestParsePlan_UnparsableReturnsError(t *testing.T) {
	_, err := orchestrator.ParsePlan("not json at all")
	assert.Error(t, err)
}

func TestParsePlan_TruncatesAtMaxSubtasks(t *testing.T) {
	raw := `{"subtasks":[` +
		`{"title":"1","prompt":"p","dependencies":[],"can_parallel":true,"estimated_complexity":"low"},` +
		`{"title":"2","prompt":"p","dependencies":[],"can_parallel":true,"estimated_complexity":"low"},` +
		`{"title":"3","prompt":"p","dependencies":[],"can_parallel":true,"estimated_complexity":"low"},` +
		`{"title":"4","prompt":"p","dependencies":[],"can_parallel":true,"estimated_complexity":"low"},` +
		`{"title":"5","prompt":"p","dependencies":[],"can_parallel":true,"estimated_complexity":"low"},` +
		`{"title":"6","prompt":"p","dependencies":[],"can_parallel":true,"estimated_complexity":"low"},` +
		`{"title":"7","prompt":"p","dependencies":[],"can_parallel":true,"estimated_complexity":"low"}` +
		`]}`
	subtasks, err := orchestrator.ParsePlan(raw)
	require.NoError(t, err)
	assert.Len(t, subtasks, orchestrator.DefaultMaxSubtasks)
}

func TestParsePlan_DropsForwardDependencyReference(t *testing.T) {
	raw := `{"subtasks":[{"title":"a","prompt":"p","dependencies":[1],"can_parallel":true,"estimated_complexity":"low"},{"title":"b","prompt":"p","dependencies":[],"can_parallel":true,"estimated_complexity":"low"}]}`
	subtasks, err := orchestrator.ParsePlan(raw)
	require.NoError(t, err)
	assert.Empty(t, subtasks[0].Dependencies, "a forward reference cannot be satisfied and must be dropped")
}

func TestShouldDecompose(t *testing.T) {
	assert.False(t, orchestrator.ShouldDecompose("fix bug", 8), "well under the word floor")
	assert.False(t, orchestrator.ShouldDecompose("please go fix the login bug right now", 8), "exactly at the word floor must not decompose")
	assert.False(t, orchestrator.ShouldDecompose("please go look at the login bug again today", 8), "above the floor but with no multi-step signal")
	assert.True(t, orchestrator.ShouldDecompose("First research the topic thoroughly, then write a report about it", 8), "two English sequencing indicators")
	assert.True(t, orchestrator.ShouldDecompose("首先調查這個問題，然後撰寫完整的報告", 8), "two Traditional Chinese sequencing indicators")
	assert.True(t, orchestrator.ShouldDecompose("update the handler, add validation, write tests, update the docs, and ship it today", 8), "enough separators in a long prompt, with no indicator words at all")
	assert.True(t, orchestrator.ShouldDecompose("1. Add rate limiting. 2. Write tests for it.", 8), "a numbered list always decomposes")
	assert.False(t, orchestrator.ShouldDecompose("please update the handler and add proper validation and tests", 8), "plain conjunctions without indicators or separators stay direct")
}

func TestFallbackPlan_ProducesRequestedRoleCount(t *testing.T) {
	subtasks := orchestrator.FallbackPlan("do the thing", 3)
	assert.Len(t, subtasks, 3)
	for _, st := range subtasks {
		assert.Equal(t, "do the thing", st.Prompt)
		assert.Empty(t, st.Dependencies)
	}
}
