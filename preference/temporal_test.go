package preference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/tuple"
)

// sliceHistory adapts a tuple slice to the History interface for tests
type sliceHistory []tuple.Tuple

func (h sliceHistory) Len() int            { return len(h) }
func (h sliceHistory) At(i int) tuple.Tuple { return h[i] }

var moveSchema = map[string]tuple.Kind{
	"move":  tuple.KindString,
	"power": tuple.KindInt,
}

func move(name string) tuple.Tuple {
	return tuple.New(map[string]tuple.Value{
		"move":  tuple.String(name),
		"power": tuple.Int(1),
	}, 0)
}

func history(moves ...string) sliceHistory {
	h := make(sliceHistory, len(moves))
	for i, m := range moves {
		h[i] = move(m)
	}
	return h
}

func TestTemporalConditionHoldsAt(t *testing.T) {
	tests := []struct {
		name     string
		cond     TemporalCondition
		hist     sliceHistory
		pos      int
		expected bool
	}{
		{
			"first at position zero",
			TemporalCondition{First: true},
			history("A", "B"), 0, true,
		},
		{
			"first at later position",
			TemporalCondition{First: true},
			history("A", "B"), 1, false,
		},
		{
			"previous holds",
			TemporalCondition{Previous: Condition{"move": Exactly(tuple.String("A"))}},
			history("A", "B"), 1, true,
		},
		{
			"previous wrong tuple",
			TemporalCondition{Previous: Condition{"move": Exactly(tuple.String("A"))}},
			history("B", "A"), 1, false,
		},
		{
			"previous at position zero",
			TemporalCondition{Previous: Condition{"move": Exactly(tuple.String("A"))}},
			history("A", "B"), 0, false,
		},
		{
			"some previous found",
			TemporalCondition{SomePrevious: Condition{"move": Exactly(tuple.String("A"))}},
			history("A", "B", "C"), 2, true,
		},
		{
			"some previous absent",
			TemporalCondition{SomePrevious: Condition{"move": Exactly(tuple.String("A"))}},
			history("B", "C", "D"), 2, false,
		},
		{
			"some previous at position zero",
			TemporalCondition{SomePrevious: Condition{"move": Exactly(tuple.String("A"))}},
			history("A", "B"), 0, false,
		},
		{
			"all previous holds",
			TemporalCondition{AllPrevious: Condition{"move": Exactly(tuple.String("A"))}},
			history("A", "A", "B"), 2, true,
		},
		{
			"all previous broken",
			TemporalCondition{AllPrevious: Condition{"move": Exactly(tuple.String("A"))}},
			history("A", "B", "C"), 2, false,
		},
		{
			"all previous vacuous at position zero",
			TemporalCondition{AllPrevious: Condition{"move": Exactly(tuple.String("A"))}},
			history("B"), 0, true,
		},
		{
			"present and previous combined",
			TemporalCondition{
				Present:  Condition{"move": Exactly(tuple.String("C"))},
				Previous: Condition{"move": Exactly(tuple.String("A"))},
			},
			history("B", "A", "C"), 2, true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := test.cond.HoldsAt(test.hist, test.pos)
			require.NoError(t, err)
			assert.Equal(t, test.expected, got)
		})
	}
}

func TestTemporalTheoryValidRules(t *testing.T) {
	rules := []TemporalRule{
		{
			Condition: TemporalCondition{First: true},
			Preference: Preference{
				Attr:  "move",
				Best:  Exactly(tuple.String("A")),
				Worst: Exactly(tuple.String("B")),
			},
		},
		{
			Condition: TemporalCondition{
				Previous: Condition{"move": Exactly(tuple.String("A"))},
			},
			Preference: Preference{
				Attr:  "move",
				Best:  Exactly(tuple.String("C")),
				Worst: Exactly(tuple.String("B")),
			},
		},
	}
	theory, err := NewTemporalTheory(rules, moveSchema)
	require.NoError(t, err)

	h := history("A", "B", "A", "C")

	valid, err := theory.ValidRules(h, 0)
	require.NoError(t, err)
	assert.Len(t, valid, 1, "only the FIRST rule applies at position zero")

	valid, err = theory.ValidRules(h, 1)
	require.NoError(t, err)
	assert.Len(t, valid, 1, "only the PREVIOUS(A) rule applies after an A")

	valid, err = theory.ValidRules(h, 2)
	require.NoError(t, err)
	assert.Empty(t, valid, "previous tuple is B, neither rule applies")
}

func TestTemporalTheoryDominates(t *testing.T) {
	rules := []TemporalRule{
		{
			Condition: TemporalCondition{First: true},
			Preference: Preference{
				Attr:  "move",
				Best:  Exactly(tuple.String("A")),
				Worst: Exactly(tuple.String("B")),
			},
		},
		{
			Condition: TemporalCondition{
				Previous: Condition{"move": Exactly(tuple.String("A"))},
			},
			Preference: Preference{
				Attr:  "move",
				Best:  Exactly(tuple.String("C")),
				Worst: Exactly(tuple.String("B")),
			},
		},
	}
	theory, err := NewTemporalTheory(rules, moveSchema)
	require.NoError(t, err)

	// First positions differ: A is preferred to B by the FIRST rule.
	ok, err := theory.Dominates(history("A"), history("B"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = theory.Dominates(history("B"), history("A"))
	require.NoError(t, err)
	assert.False(t, ok)

	// After an A, a C beats a B at the same position.
	ok, err = theory.Dominates(history("B", "A", "C"), history("B", "A", "B"))
	require.NoError(t, err)
	assert.True(t, ok)

	// Shared prefix only, no differing position.
	ok, err = theory.Dominates(history("A", "B"), history("A", "B", "C"))
	require.NoError(t, err)
	assert.False(t, ok)

	// Differing position where no rule is valid.
	ok, err = theory.Dominates(history("B", "C"), history("B", "B"))
	require.NoError(t, err)
	assert.False(t, ok, "PREVIOUS(A) does not hold after a B")
}

func TestTemporalTheoryIsCandidate(t *testing.T) {
	rules := []TemporalRule{
		{
			Condition: TemporalCondition{First: true},
			Preference: Preference{
				Attr:  "move",
				Best:  Exactly(tuple.String("A")),
				Worst: Exactly(tuple.String("B")),
			},
		},
	}
	theory, err := NewTemporalTheory(rules, moveSchema)
	require.NoError(t, err)

	ok, err := theory.IsCandidate(move("A"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = theory.IsCandidate(move("B"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = theory.IsCandidate(move("C"))
	require.NoError(t, err)
	assert.False(t, ok, "C appears in no preference interval")
}

func TestTemporalTheoryConsistency(t *testing.T) {
	// Two rules applicable at the same positions with opposite preferences.
	rules := []TemporalRule{
		{
			Condition: TemporalCondition{
				Previous: Condition{"move": Exactly(tuple.String("A"))},
			},
			Preference: Preference{
				Attr:  "move",
				Best:  Exactly(tuple.String("B")),
				Worst: Exactly(tuple.String("C")),
			},
		},
		{
			Condition: TemporalCondition{
				Previous: Condition{"move": Exactly(tuple.String("A"))},
			},
			Preference: Preference{
				Attr:  "move",
				Best:  Exactly(tuple.String("C")),
				Worst: Exactly(tuple.String("B")),
			},
		},
	}
	_, err := NewTemporalTheory(rules, moveSchema)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCyclicPreference)

	// The same opposite preferences are fine when the rules can never
	// apply at the same position.
	rules[1].Condition = TemporalCondition{
		Previous: Condition{"move": Exactly(tuple.String("D"))},
	}
	_, err = NewTemporalTheory(rules, moveSchema)
	require.NoError(t, err)
}

func TestTemporalCompatibility(t *testing.T) {
	first := TemporalCondition{First: true}
	prevA := TemporalCondition{Previous: Condition{"move": Exactly(tuple.String("A"))}}
	prevB := TemporalCondition{Previous: Condition{"move": Exactly(tuple.String("B"))}}
	allA := TemporalCondition{AllPrevious: Condition{"move": Exactly(tuple.String("A"))}}
	someB := TemporalCondition{SomePrevious: Condition{"move": Exactly(tuple.String("B"))}}

	assert.False(t, first.CompatibleWith(prevA), "FIRST excludes predecessors")
	assert.True(t, first.CompatibleWith(allA), "ALL PREVIOUS is vacuous at position zero")
	assert.False(t, prevA.CompatibleWith(prevB), "previous tuple cannot be both A and B")
	assert.True(t, prevA.CompatibleWith(prevA))
	assert.False(t, allA.CompatibleWith(someB), "all-A history has no B")
	assert.False(t, allA.CompatibleWith(prevB))
}
