package preference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampref/streampref/tuple"
)

func TestIntervalContains(t *testing.T) {
	tests := []struct {
		name     string
		interval Interval
		value    tuple.Value
		expected bool
	}{
		{"point hit", Exactly(tuple.Int(5)), tuple.Int(5), true},
		{"point miss", Exactly(tuple.Int(5)), tuple.Int(6), false},
		{"open right inside", LessThan(tuple.Int(10)), tuple.Int(9), true},
		{"open right boundary", LessThan(tuple.Int(10)), tuple.Int(10), false},
		{"closed right boundary", AtMost(tuple.Int(10)), tuple.Int(10), true},
		{"open left boundary", GreaterThan(tuple.Int(0)), tuple.Int(0), false},
		{"closed left boundary", AtLeast(tuple.Int(0)), tuple.Int(0), true},
		{"bounded inside", Between(tuple.Int(1), false, tuple.Int(9), true), tuple.Int(9), true},
		{"bounded below", Between(tuple.Int(1), false, tuple.Int(9), true), tuple.Int(1), false},
		{"string point", Exactly(tuple.String("fast")), tuple.String("fast"), true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := test.interval.Contains(test.value)
			require.NoError(t, err)
			assert.Equal(t, test.expected, got)
		})
	}
}

func TestIntervalContainsKindMismatch(t *testing.T) {
	_, err := Exactly(tuple.Int(5)).Contains(tuple.String("five"))
	require.Error(t, err)
}

func TestIntervalSplitBy(t *testing.T) {
	// (1 < a < 9) cut by the left limit of (2 < a < 10)
	base := Between(tuple.Int(1), false, tuple.Int(9), false)
	cut := Between(tuple.Int(2), false, tuple.Int(10), false)

	pieces, err := base.SplitBy(cut)
	require.NoError(t, err)
	require.Len(t, pieces, 2)

	assert.Equal(t, Between(tuple.Int(1), false, tuple.Int(2), true), pieces[0])
	assert.Equal(t, Between(tuple.Int(2), false, tuple.Int(9), false), pieces[1])

	// A value in each piece still lies in the original interval.
	for _, piece := range pieces {
		for _, v := range []tuple.Value{tuple.Int(2), tuple.Int(5)} {
			inPiece, err := piece.Contains(v)
			require.NoError(t, err)
			if inPiece {
				inBase, err := base.Contains(v)
				require.NoError(t, err)
				assert.True(t, inBase)
			}
		}
	}
}

func TestIntervalSplitByPoint(t *testing.T) {
	base := Between(tuple.Int(0), true, tuple.Int(10), true)
	pieces, err := base.SplitBy(Exactly(tuple.Int(4)))
	require.NoError(t, err)
	require.Len(t, pieces, 2)

	in, err := pieces[0].Contains(tuple.Int(4))
	require.NoError(t, err)
	first, err := pieces[1].Contains(tuple.Int(4))
	require.NoError(t, err)
	assert.False(t, in)
	assert.True(t, first)
}

func TestIntervalSplitByDisjoint(t *testing.T) {
	base := Between(tuple.Int(0), true, tuple.Int(5), true)
	pieces, err := base.SplitBy(Between(tuple.Int(20), true, tuple.Int(30), true))
	require.NoError(t, err)
	assert.Empty(t, pieces)
}

func TestIntervalSplitByEqual(t *testing.T) {
	base := Exactly(tuple.Int(3))
	pieces, err := base.SplitBy(Exactly(tuple.Int(3)))
	require.NoError(t, err)
	assert.Empty(t, pieces)
}

func TestIntervalFormat(t *testing.T) {
	tests := []struct {
		name     string
		interval Interval
		expected string
	}{
		{"point", Exactly(tuple.Int(5)), "a=5"},
		{"less", LessThan(tuple.Int(10)), "a<10"},
		{"at least", AtLeast(tuple.Int(0)), "a>=0"},
		{"bounded", Between(tuple.Int(1), false, tuple.Int(9), true), "1<a<=9"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, test.interval.Format("a"))
		})
	}
}
