package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranganaths/swarmctl/runtime"
)

func TestBinaryResolver_ResolvesConfiguredBinaries(t *testing.T) {
	r := runtime.NewBinaryResolver("opus-bin", "sonnet-bin", "haiku-bin")

	binary, err := r.Resolve(runtime.ModelOpus)
	require.NoError(t, err)
	assert.Equal(t, "opus-bin", binary)
}

func TestBinaryResolver_DefaultsToClaude(t *testing.T) {
	r := runtime.NewBinaryResolver("", "", "")
	binary, err := r.Resolve(runtime.ModelSonnet)
	require.NoError(t, err)
	assert.Equal(t, "claude", binary)
}

func TestBinaryResolver_RejectsUnknownModel(t *testing.T) {
	r := runtime.NewBinaryResolver("a", "b", "c")
	_, err := r.Resolve(runtime.Model("gpt-5"))
	assert.Error(t, err)
}
