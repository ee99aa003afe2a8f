package dominance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/tuple"
)

func TestEvaluatorBestDelta(t *testing.T) {
	th := flightTheory(t)
	e, err := NewEvaluator(DepthSearch, th, ModeBest, 0)
	require.NoError(t, err)

	acmeCheap := flight("acme", 100, 0, "win")
	zenithCheap := flight("zenith", 100, 0, "win")

	out, err := e.Evaluate(inserts(acmeCheap, zenithCheap))
	require.NoError(t, err)
	assert.Equal(t, signatures([]tuple.Tuple{acmeCheap}), signatures(out.Inserts))
	assert.Empty(t, out.Deletes)

	// removing the dominant flight promotes the dominated one
	out, err = e.Evaluate(tuple.Delta{Deletes: []tuple.Tuple{acmeCheap}})
	require.NoError(t, err)
	assert.Equal(t, signatures([]tuple.Tuple{zenithCheap}), signatures(out.Inserts))
	assert.Equal(t, signatures([]tuple.Tuple{acmeCheap}), signatures(out.Deletes))

	assert.Equal(t, signatures([]tuple.Tuple{zenithCheap}), signatures(e.Result()))
}

func TestEvaluatorQuietTick(t *testing.T) {
	th := flightTheory(t)
	e, err := NewEvaluator(IncGraph, th, ModeBest, 0)
	require.NoError(t, err)

	acmeCheap := flight("acme", 100, 0, "win")
	_, err = e.Evaluate(inserts(acmeCheap))
	require.NoError(t, err)

	out, err := e.Evaluate(tuple.Delta{})
	require.NoError(t, err)
	assert.True(t, out.Empty())
}

func TestEvaluatorTopKDelta(t *testing.T) {
	th := flightTheory(t)
	e, err := NewEvaluator(IncAncestors, th, ModeTopK, 1)
	require.NoError(t, err)

	acmeCheap := flight("acme", 100, 0, "win")
	acmeDear := flight("acme", 200, 0, "win")

	out, err := e.Evaluate(inserts(acmeCheap, acmeDear))
	require.NoError(t, err)
	assert.Equal(t, signatures([]tuple.Tuple{acmeCheap}), signatures(out.Inserts))

	out, err = e.Evaluate(tuple.Delta{Deletes: []tuple.Tuple{acmeCheap}})
	require.NoError(t, err)
	assert.Equal(t, signatures([]tuple.Tuple{acmeDear}), signatures(out.Inserts))
	assert.Equal(t, signatures([]tuple.Tuple{acmeCheap}), signatures(out.Deletes))
}

func TestEvaluatorConfig(t *testing.T) {
	th := flightTheory(t)

	_, err := NewEvaluator(DepthSearch, th, ModeTopK, 0)
	require.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = NewEvaluator(DepthSearch, th, Mode("bogus"), 0)
	require.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = NewEvaluator(Algorithm("bogus"), th, ModeBest, 0)
	require.ErrorIs(t, err, errors.ErrInvalidConfig)
}
