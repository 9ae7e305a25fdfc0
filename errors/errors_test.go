package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainError(t *testing.T) {
	base := stderrors.New("boom")
	err := NewChainError("scheduler", "nextBatch", base)

	require.ErrorIs(t, err, base)
	assert.Equal(t, "scheduler: nextBatch: boom", err.Error())

	err2 := NewChainError("scheduler", "", base)
	assert.Equal(t, "scheduler: boom", err2.Error())
}

func TestProcessError(t *testing.T) {
	cancelled := NewProcessError("sonnet", "wait", stderrors.New("killed"), true)
	assert.True(t, stderrors.Is(cancelled, ErrCanceled))

	fatal := NewProcessError("opus", "spawn", stderrors.New("binary not found"), false)
	assert.False(t, stderrors.Is(fatal, ErrCanceled))
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsTimeout(Wrap(ErrTimeout, "requestStart")))
	assert.True(t, IsCanceled(Wrap(ErrCanceled, "cancelProcess")))
	assert.True(t, IsNotFound(Wrap(ErrNotFound, "GetTask")))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "anything"))
	assert.Nil(t, Wrapf(nil, "anything %d", 1))
}

func TestWrapf(t *testing.T) {
	err := Wrapf(ErrInvalidInput, "subtask %d", 3)
	assert.EqualError(t, err, "subtask 3: invalid input")
	assert.True(t, stderrors.Is(err, ErrInvalidInput))
}
