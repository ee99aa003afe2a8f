package tuple

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampref/streampref/errors"
)

func TestValueCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"int less", Int(1), Int(2), -1},
		{"int equal", Int(5), Int(5), 0},
		{"int greater", Int(9), Int(2), 1},
		{"float less", Float(1.5), Float(2.5), -1},
		{"string lexicographic", String("abc"), String("abd"), -1},
		{"string equal", String("x"), String("x"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Compare(tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueCompareKindMismatch(t *testing.T) {
	_, err := Int(1).Compare(String("1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTheoryEvaluation)

	// Integer and float are distinct tags too.
	_, err = Int(1).Compare(Float(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTheoryEvaluation)
}

func TestTupleSignatureStable(t *testing.T) {
	a := New(map[string]Value{"b": Int(2), "a": Int(1)}, 0)
	b := New(map[string]Value{"a": Int(1), "b": Int(2)}, 7)

	assert.Equal(t, a.Signature(), b.Signature())
	assert.Equal(t, "a=1|b=2", a.Signature())
	assert.True(t, a.Equal(b), "timestamps are not part of identity")
}

func TestTupleProjection(t *testing.T) {
	tup := New(map[string]Value{"id": Int(3), "speed": Float(1.5), "zone": String("mid")}, 2)

	proj := tup.Project([]string{"id", "zone"})
	assert.Equal(t, 2, proj.Len())
	_, ok := proj.Get("speed")
	assert.False(t, ok)

	rest := tup.Without(map[string]struct{}{"id": {}})
	assert.Equal(t, 2, rest.Len())
	_, ok = rest.Get("id")
	assert.False(t, ok)

	// The source tuple is untouched.
	assert.Equal(t, 3, tup.Len())
}

func TestTupleWith(t *testing.T) {
	tup := New(map[string]Value{"a": Int(1)}, 0)
	up := tup.With("a", Int(2))

	v, _ := up.Get("a")
	assert.Equal(t, Int(2), v)
	v, _ = tup.Get("a")
	assert.Equal(t, Int(1), v, "With must not mutate the receiver")
}

func TestDeltaEmpty(t *testing.T) {
	assert.True(t, Delta{}.Empty())
	assert.False(t, Delta{Inserts: []Tuple{New(nil, 0)}}.Empty())
}
