package sequence

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/tuple"
)

func signatures(seqs []*Sequence) []string {
	out := make([]string, len(seqs))
	for i, s := range seqs {
		out[i] = s.Signature()
	}
	sort.Strings(out)
	return out
}

func TestNewExtractorValidation(t *testing.T) {
	_, err := NewExtractor("bogus", ExtractNaive)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = NewExtractor(Consecutive, "bogus")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestExtractConsecutiveNaive(t *testing.T) {
	ex, err := NewExtractor(Consecutive, ExtractNaive)
	require.NoError(t, err)

	s := seqOf("p1", []string{"A", "B", "C", "D"}, []int64{0, 1, 5, 6})
	runs := ex.Extract([]*Sequence{s})

	require.Len(t, runs, 2)
	assert.Equal(t, []string{"A", "B"}, moves(runs[0]))
	assert.Equal(t, []string{"C", "D"}, moves(runs[1]))
}

func TestExtractEndPositionNaive(t *testing.T) {
	ex, err := NewExtractor(EndPosition, ExtractNaive)
	require.NoError(t, err)

	s := seqOf("p1", []string{"A", "B", "C"}, []int64{0, 1, 2})
	suffixes := ex.Extract([]*Sequence{s})

	require.Len(t, suffixes, 3)
	assert.Equal(t, []string{"A", "B", "C"}, moves(suffixes[0]))
	assert.Equal(t, []string{"C"}, moves(suffixes[2]))
}

// runDifferential feeds the same trace of appends and expiries to a naive
// and an incremental extractor and requires identical candidates each tick.
func runDifferential(t *testing.T, mode ExtractMode) {
	t.Helper()

	makeStore := func() *Store { return NewStore([]string{"player"}, 4, 1) }
	naiveStore, incStore := makeStore(), makeStore()

	naive, err := NewExtractor(mode, ExtractNaive)
	require.NoError(t, err)
	incremental, err := NewExtractor(mode, ExtractIncremental)
	require.NoError(t, err)

	trace := []struct {
		ts   int64
		rows [][2]string
	}{
		{0, [][2]string{{"p1", "A"}}},
		{1, [][2]string{{"p1", "B"}, {"p2", "X"}}},
		{2, [][2]string{{"p1", "A"}}},
		{3, [][2]string{{"p1", "C"}, {"p2", "Y"}}},
		{5, [][2]string{{"p1", "B"}}},
		{6, nil},
		{7, [][2]string{{"p2", "Z"}}},
		{12, nil},
	}

	for _, step := range trace {
		tuples := make([]tuple.Tuple, 0, len(step.rows))
		for _, row := range step.rows {
			tuples = append(tuples, tuple.New(map[string]tuple.Value{
				"player": tuple.String(row[0]),
				"move":   tuple.String(row[1]),
			}, step.ts))
		}
		naiveStore.Advance(step.ts, tuples)
		incStore.Advance(step.ts, tuples)

		fromNaive := naive.Extract(naiveStore.Sequences())
		fromIncremental := incremental.Extract(incStore.Sequences())

		assert.Equal(t, signatures(fromNaive), signatures(fromIncremental),
			"tick %d diverged", step.ts)
	}
}

func TestExtractConsecutiveIncrementalMatchesNaive(t *testing.T) {
	runDifferential(t, Consecutive)
}

func TestExtractEndPositionIncrementalMatchesNaive(t *testing.T) {
	runDifferential(t, EndPosition)
}

func TestFilterLength(t *testing.T) {
	seqs := []*Sequence{
		seqOf("p1", []string{"A"}, []int64{0}),
		seqOf("p1", []string{"A", "B"}, []int64{0, 1}),
		seqOf("p1", []string{"A", "B", "C"}, []int64{0, 1, 2}),
		seqOf("p1", []string{"A", "B", "C", "D", "E"}, []int64{0, 1, 2, 3, 4}),
	}

	filtered := FilterLength(seqs, 2, 4)
	require.Len(t, filtered, 2)
	assert.Equal(t, 2, filtered[0].Len())
	assert.Equal(t, 3, filtered[1].Len())

	assert.Len(t, FilterLength(seqs, 0, 0), 4, "zero bounds filter nothing")
}

func TestAssertLength(t *testing.T) {
	seqs := []*Sequence{seqOf("p1", []string{"A", "B"}, []int64{0, 1})}

	require.NoError(t, AssertLength(seqs, 1, 3))

	err := AssertLength(seqs, 3, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrLengthConstraint)
}
