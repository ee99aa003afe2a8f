package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampref/streampref/tuple"
)

func entity(id string) tuple.Tuple {
	return tuple.New(map[string]tuple.Value{"player": tuple.String(id)}, 0)
}

func state(move string) tuple.Tuple {
	return tuple.New(map[string]tuple.Value{"move": tuple.String(move)}, 0)
}

func seqOf(id string, moves []string, timestamps []int64) *Sequence {
	s := NewSequence(entity(id))
	for i, m := range moves {
		s.Append(state(m), timestamps[i], timestamps[i], timestamps[i]+100)
	}
	s.TakeInserted()
	return s
}

func moves(s *Sequence) []string {
	out := make([]string, s.Len())
	for i := 0; i < s.Len(); i++ {
		v, _ := s.At(i).Get("move")
		out[i] = v.Text()
	}
	return out
}

func TestSequenceAppendAndExpire(t *testing.T) {
	s := NewSequence(entity("p1"))
	s.Append(state("A"), 0, 0, 9)
	s.Append(state("B"), 1, 0, 9)
	s.Append(state("C"), 10, 10, 19)

	require.Equal(t, 3, s.Len())
	assert.Equal(t, 3, s.TakeInserted())
	assert.Equal(t, 0, s.TakeInserted(), "counter resets after take")

	s.DeleteExpired(10)
	assert.Equal(t, []string{"C"}, moves(s))
	assert.Equal(t, 2, s.TakeDeleted())
}

func TestSequenceSubsequenceIsIndependent(t *testing.T) {
	s := seqOf("p1", []string{"A", "B", "C", "D"}, []int64{0, 1, 2, 3})
	sub := s.Subsequence(1, 3)

	assert.Equal(t, []string{"B", "C"}, moves(sub))
	sub.Append(state("X"), 9, 9, 9)
	assert.Equal(t, []string{"A", "B", "C", "D"}, moves(s), "source unchanged")
}

func TestConsecutiveRuns(t *testing.T) {
	tests := []struct {
		name       string
		timestamps []int64
		expected   [][]string
	}{
		{"single run", []int64{0, 1, 2}, [][]string{{"A", "B", "C"}}},
		{"gap splits", []int64{0, 1, 5}, [][]string{{"A", "B"}, {"C"}}},
		{"all gaps", []int64{0, 5, 9}, [][]string{{"A"}, {"B"}, {"C"}}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := seqOf("p1", []string{"A", "B", "C"}, test.timestamps)
			runs := s.ConsecutiveRuns()
			require.Len(t, runs, len(test.expected))
			for i, run := range runs {
				assert.Equal(t, test.expected[i], moves(run))
			}
		})
	}
}

func TestEndPositionSubsequences(t *testing.T) {
	s := seqOf("p1", []string{"A", "B", "C"}, []int64{0, 1, 2})
	suffixes := s.EndPositionSubsequences()

	require.Len(t, suffixes, 3)
	assert.Equal(t, []string{"A", "B", "C"}, moves(suffixes[0]))
	assert.Equal(t, []string{"B", "C"}, moves(suffixes[1]))
	assert.Equal(t, []string{"C"}, moves(suffixes[2]))
}

func TestSequenceRecords(t *testing.T) {
	s := seqOf("p1", []string{"A", "B"}, []int64{3, 4})
	records := s.Records()

	require.Len(t, records, 2)
	pos, ok := records[0].Get(PositionAttribute)
	require.True(t, ok)
	assert.Equal(t, int64(1), pos.Int64())
	player, ok := records[1].Get("player")
	require.True(t, ok)
	assert.Equal(t, "p1", player.Text())
	assert.Equal(t, int64(4), records[1].Timestamp())
}

func TestStoreAdvanceGroupsByIdentifier(t *testing.T) {
	st := NewStore([]string{"player"}, 10, 1)

	tick := func(ts int64, rows ...[2]string) {
		tuples := make([]tuple.Tuple, 0, len(rows))
		for _, row := range rows {
			tuples = append(tuples, tuple.New(map[string]tuple.Value{
				"player": tuple.String(row[0]),
				"move":   tuple.String(row[1]),
			}, ts))
		}
		st.Advance(ts, tuples)
	}

	tick(0, [2]string{"p1", "A"}, [2]string{"p2", "B"})
	tick(1, [2]string{"p1", "B"})

	require.Equal(t, 2, st.Len())
	seqs := st.Sequences()
	assert.Equal(t, []string{"A", "B"}, moves(seqs[0]))
	assert.Equal(t, []string{"B"}, moves(seqs[1]))

	// Identifier attributes are projected out of the position records.
	_, hasID := seqs[0].At(0).Get("player")
	assert.False(t, hasID)
	assert.Equal(t, "p1", mustText(t, seqs[0].Entity(), "player"))
}

func mustText(t *testing.T, tup tuple.Tuple, attr string) string {
	t.Helper()
	v, ok := tup.Get(attr)
	require.True(t, ok)
	return v.Text()
}

func TestStoreWindowExpiry(t *testing.T) {
	// RANGE 2, SLIDE 1: every position is valid for two ticks.
	st := NewStore([]string{"player"}, 2, 1)

	row := func(move string, ts int64) []tuple.Tuple {
		return []tuple.Tuple{tuple.New(map[string]tuple.Value{
			"player": tuple.String("p1"),
			"move":   tuple.String(move),
		}, ts)}
	}

	st.Advance(0, row("A", 0))
	st.Advance(1, row("B", 1))
	require.Equal(t, 1, st.Len())
	assert.Equal(t, []string{"A", "B"}, moves(st.Sequences()[0]))

	st.Advance(2, row("C", 2))
	assert.Equal(t, []string{"B", "C"}, moves(st.Sequences()[0]), "A expired")

	st.Advance(10, nil)
	assert.Equal(t, 0, st.Len(), "all positions expired, entity removed")
}

func TestStoreUnbounded(t *testing.T) {
	st := NewStore([]string{"player"}, Unbounded, 1)
	for ts := int64(0); ts < 5; ts++ {
		st.Advance(ts, []tuple.Tuple{tuple.New(map[string]tuple.Value{
			"player": tuple.String("p1"),
			"move":   tuple.String("A"),
		}, ts)})
	}
	require.Equal(t, 1, st.Len())
	assert.Equal(t, 5, st.Sequences()[0].Len())
}
