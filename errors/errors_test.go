package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPattern(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(base, "Engine", "RunTick", "evaluate delta")
	require.Error(t, err)
	assert.Equal(t, "Engine.RunTick: evaluate delta failed: boom", err.Error())
	assert.True(t, errors.Is(err, base))

	assert.NoError(t, Wrap(nil, "Engine", "RunTick", "evaluate delta"))
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class ErrorClass
	}{
		{
			name:  "cyclic preference is fatal",
			err:   fmt.Errorf("theory rejected: %w", ErrCyclicPreference),
			class: ErrorFatal,
		},
		{
			name:  "delete of missing tuple is fatal",
			err:   ErrDeleteNonexistent,
			class: ErrorFatal,
		},
		{
			name:  "theory evaluation is invalid",
			err:   fmt.Errorf("rule 2: %w", ErrTheoryEvaluation),
			class: ErrorInvalid,
		},
		{
			name:  "unknown errors default to transient",
			err:   errors.New("socket hiccup"),
			class: ErrorTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.class, Classify(tt.err))
		})
	}
}

func TestClassifiedWrappers(t *testing.T) {
	base := errors.New("bad rule")

	err := WrapInvalid(base, "Theory", "Dominates", "predicate check")
	assert.True(t, IsInvalid(err))
	assert.False(t, IsFatal(err))

	var ce *ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "Theory", ce.Component)
	assert.Equal(t, "Dominates", ce.Operation)
	assert.True(t, errors.Is(err, base))

	err = WrapFatal(base, "Engine", "RunTick", "apply delta")
	assert.True(t, IsFatal(err))

	err = WrapTransient(base, "Input", "Start", "subscribe")
	assert.True(t, IsTransient(err))
}
