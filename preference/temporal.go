package preference

import (
	"fmt"
	"sort"
	"strings"

	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/tuple"
)

// History is an ordered view over an entity's tuples, oldest first.
// Temporal conditions are evaluated against a position within a history.
type History interface {
	Len() int
	At(i int) tuple.Tuple
}

// TemporalCondition extends a plain condition with the history-dependent
// predicate forms. Each past map is a conjunction like Condition, applied
// to earlier positions of the sequence.
type TemporalCondition struct {
	// First restricts the rule to position zero
	First bool
	// Present must hold on the tuple at the evaluated position
	Present Condition
	// Previous must hold on the tuple immediately before the position
	Previous Condition
	// SomePrevious must hold on at least one earlier tuple
	SomePrevious Condition
	// AllPrevious must hold on every earlier tuple, vacuously at position zero
	AllPrevious Condition
}

// requiresPast reports whether the condition can only hold at positions
// with at least one predecessor. ALL PREVIOUS is excluded: it holds
// vacuously at position zero.
func (c TemporalCondition) requiresPast() bool {
	return len(c.Previous) > 0 || len(c.SomePrevious) > 0
}

// HoldsAt evaluates the condition for the tuple at pos within h
func (c TemporalCondition) HoldsAt(h History, pos int) (bool, error) {
	if ok, err := c.Present.Matches(h.At(pos)); err != nil || !ok {
		return ok, err
	}
	return c.PastHoldsAt(h, pos)
}

// PastHoldsAt evaluates only the history-dependent forms of the condition
// at pos, which may be one past the end of h. The present part is left to
// the rule application itself.
func (c TemporalCondition) PastHoldsAt(h History, pos int) (bool, error) {
	if c.First && pos != 0 {
		return false, nil
	}
	if len(c.Previous) > 0 {
		if pos == 0 {
			return false, nil
		}
		if ok, err := c.Previous.Matches(h.At(pos - 1)); err != nil || !ok {
			return ok, err
		}
	}
	if len(c.SomePrevious) > 0 {
		found := false
		for i := 0; i < pos; i++ {
			ok, err := c.SomePrevious.Matches(h.At(i))
			if err != nil {
				return false, err
			}
			if ok {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	for i := 0; i < pos; i++ {
		ok, err := c.AllPrevious.Matches(h.At(i))
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// CompatibleWith reports whether both conditions can hold at the same
// position of some sequence. FIRST conflicts with forms that need a
// predecessor; past conjunctions over a shared attribute conflict when
// their intervals differ (intervals are disjoint after splitting).
func (c TemporalCondition) CompatibleWith(o TemporalCondition) bool {
	if (c.First && o.requiresPast()) || (o.First && c.requiresPast()) {
		return false
	}
	if !compatibleConditions(c.Present, o.Present) {
		return false
	}
	pairs := []struct{ a, b Condition }{
		{c.Previous, o.Previous},
		{c.Previous, o.AllPrevious},
		{c.AllPrevious, o.Previous},
		{c.AllPrevious, o.SomePrevious},
		{c.SomePrevious, o.AllPrevious},
		{c.AllPrevious, o.AllPrevious},
	}
	for _, p := range pairs {
		if !compatibleConditions(p.a, p.b) {
			return false
		}
	}
	return true
}

func (c TemporalCondition) clone() TemporalCondition {
	return TemporalCondition{
		First:        c.First,
		Present:      c.Present.clone(),
		Previous:     c.Previous.clone(),
		SomePrevious: c.SomePrevious.clone(),
		AllPrevious:  c.AllPrevious.clone(),
	}
}

func (c TemporalCondition) signature() string {
	var parts []string
	if c.First {
		parts = append(parts, "FIRST")
	}
	add := func(prefix string, cond Condition) {
		attrs := make([]string, 0, len(cond))
		for a := range cond {
			attrs = append(attrs, a)
		}
		sort.Strings(attrs)
		for _, a := range attrs {
			parts = append(parts, prefix+cond[a].Format(a))
		}
	}
	add("", c.Present)
	add("PREVIOUS ", c.Previous)
	add("SOME PREVIOUS ", c.SomePrevious)
	add("ALL PREVIOUS ", c.AllPrevious)
	return strings.Join(parts, " AND ")
}

// TemporalRule is a conditional preference rule whose condition may refer
// to the entity's history
type TemporalRule struct {
	Condition  TemporalCondition
	Preference Preference
}

// cpRule projects the temporal rule onto its present part, for the
// per-position sub-theories
func (r TemporalRule) cpRule() Rule {
	return Rule{Condition: r.Condition.Present, Preference: r.Preference}
}

// Signature renders the rule in the query language's textual form
func (r TemporalRule) Signature() string {
	var sb strings.Builder
	cond := r.Condition.signature()
	if cond != "" {
		sb.WriteString("IF ")
		sb.WriteString(cond)
		sb.WriteString(" THEN ")
	}
	plain := Rule{Preference: r.Preference}
	sb.WriteString(plain.Signature())
	return sb.String()
}

// Validate checks the rule's structural consistency, including the past
// condition conjunctions
func (r TemporalRule) Validate(schema map[string]tuple.Kind) error {
	if err := r.cpRule().Validate(schema); err != nil {
		return err
	}
	if schema == nil {
		return nil
	}
	for _, cond := range []Condition{r.Condition.Previous,
		r.Condition.SomePrevious, r.Condition.AllPrevious} {
		for attr, iv := range cond {
			kind, ok := schema[attr]
			if !ok {
				return errors.WrapInvalid(
					fmt.Errorf("%w: undeclared attribute %q",
						errors.ErrTheoryEvaluation, attr),
					"preference", "Validate", "checking temporal condition")
			}
			for _, b := range iv.bounds() {
				if b.Kind() != kind {
					return errors.WrapInvalid(
						fmt.Errorf("%w: type mismatch on attribute %q",
							errors.ErrTheoryEvaluation, attr),
						"preference", "Validate", "checking temporal condition")
				}
			}
		}
	}
	return nil
}

// TemporalTheory is a consistent set of temporal rules. Consistency is
// checked per set of temporally compatible rules: each such set must form
// a consistent plain theory over its present parts.
type TemporalTheory struct {
	rules []TemporalRule
}

// NewTemporalTheory builds and checks a temporal theory
func NewTemporalTheory(rules []TemporalRule, schema map[string]tuple.Kind) (*TemporalTheory, error) {
	for _, r := range rules {
		if err := r.Validate(schema); err != nil {
			return nil, err
		}
	}
	split, err := splitTemporalRules(rules)
	if err != nil {
		return nil, errors.WrapInvalid(err, "preference", "NewTemporalTheory", "splitting intervals")
	}
	th := &TemporalTheory{rules: split}
	for _, set := range th.compatibleSets() {
		sub := make([]Rule, 0, len(set))
		for _, idx := range set {
			sub = append(sub, th.rules[idx].cpRule())
		}
		subTheory := newTheoryUnchecked(sub)
		if err := subTheory.checkGlobalConsistency(); err != nil {
			return nil, err
		}
		if err := subTheory.checkLocalConsistency(); err != nil {
			return nil, err
		}
	}
	return th, nil
}

// Rules returns the theory's rules after interval splitting
func (th *TemporalTheory) Rules() []TemporalRule { return th.rules }

// compatibleSets groups rules whose temporal conditions can hold at the
// same sequence position. One set per rule, containing every rule
// compatible with it; duplicate sets are merged.
func (th *TemporalTheory) compatibleSets() [][]int {
	var sets [][]int
	seen := map[string]struct{}{}
	for i, r := range th.rules {
		set := []int{i}
		for j, other := range th.rules {
			if i != j && r.Condition.CompatibleWith(other.Condition) {
				set = append(set, j)
			}
		}
		sort.Ints(set)
		key := fmt.Sprint(set)
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			sets = append(sets, set)
		}
	}
	return sets
}

// ValidRules returns the present parts of the rules whose past condition
// forms hold at pos within h, in rule declaration order. The present
// conditions stay inside the returned rules: dominance search applies
// them per rule application, including on intermediate worsened records.
// pos may be one past the end of h.
func (th *TemporalTheory) ValidRules(h History, pos int) ([]Rule, error) {
	var out []Rule
	for _, r := range th.rules {
		ok, err := r.Condition.PastHoldsAt(h, pos)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r.cpRule())
		}
	}
	return out, nil
}

// Dominates reports whether history a is preferred to history b: they
// must differ at some position, and at the first such position the rules
// valid for a must prefer a's tuple over b's.
func (th *TemporalTheory) Dominates(a, b History) (bool, error) {
	pos := firstDifferentPosition(a, b)
	if pos < 0 {
		return false, nil
	}
	valid, err := th.ValidRules(a, pos)
	if err != nil {
		return false, err
	}
	sub := newTheoryUnchecked(valid)
	return sub.Dominates(a.At(pos), b.At(pos))
}

// DirectlyDominates reports whether a single rule prefers history a over
// history b at their first different position
func (th *TemporalTheory) DirectlyDominates(r TemporalRule, a, b History) (bool, error) {
	pos := firstDifferentPosition(a, b)
	if pos < 0 {
		return false, nil
	}
	ok, err := r.Condition.HoldsAt(a, pos)
	if err != nil || !ok {
		return ok, err
	}
	sub := newTheoryUnchecked([]Rule{r.cpRule()})
	return sub.Dominates(a.At(pos), b.At(pos))
}

// IsCandidate reports whether any rule both matches the tuple's present
// condition and mentions its preference attribute value in a best or
// worst interval. Tuples failing this test cannot take part in any
// dominance relation.
func (th *TemporalTheory) IsCandidate(t tuple.Tuple) (bool, error) {
	for _, r := range th.rules {
		ok, err := r.Condition.Present.Matches(t)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		v, present := t.Get(r.Preference.Attr)
		if !present {
			continue
		}
		for _, iv := range []Interval{r.Preference.Best, r.Preference.Worst} {
			in, err := iv.Contains(v)
			if err != nil {
				return false, err
			}
			if in {
				return true, nil
			}
		}
	}
	return false, nil
}

func firstDifferentPosition(a, b History) int {
	n := a.Len()
	if b.Len() < n {
		n = b.Len()
	}
	for i := 0; i < n; i++ {
		if !a.At(i).Equal(b.At(i)) {
			return i
		}
	}
	return -1
}

// splitTemporalRules rewrites the rules so that all intervals over the
// same attribute, across present, past and preference parts, are equal or
// disjoint
func splitTemporalRules(rules []TemporalRule) ([]TemporalRule, error) {
	work := append([]TemporalRule(nil), rules...)
	for changed := true; changed; {
		changed = false
		for i := 0; i < len(work) && !changed; i++ {
			for j := 0; j < len(work) && !changed; j++ {
				if i == j {
					continue
				}
				out, split, err := splitTemporalRuleBy(work[i], work[j])
				if err != nil {
					return nil, err
				}
				if split {
					work = append(work[:i], append(out, work[i+1:]...)...)
					changed = true
				}
			}
		}
	}
	return work, nil
}

func splitTemporalRuleBy(r, other TemporalRule) ([]TemporalRule, bool, error) {
	part := func(tr *TemporalRule, idx int) *Condition {
		switch idx {
		case 0:
			return &tr.Condition.Present
		case 1:
			return &tr.Condition.Previous
		case 2:
			return &tr.Condition.SomePrevious
		default:
			return &tr.Condition.AllPrevious
		}
	}
	for _, cut := range temporalRuleIntervals(other) {
		for partIdx := 0; partIdx < 4; partIdx++ {
			cond := *part(&r, partIdx)
			iv, ok := cond[cut.attr]
			if !ok {
				continue
			}
			pieces, err := iv.SplitBy(cut.iv)
			if err != nil {
				return nil, false, err
			}
			if len(pieces) == 0 {
				continue
			}
			out := make([]TemporalRule, 0, len(pieces))
			for _, p := range pieces {
				nr := TemporalRule{Condition: r.Condition.clone(), Preference: r.Preference}
				nc := cond.clone()
				nc[cut.attr] = p
				*part(&nr, partIdx) = nc
				out = append(out, nr)
			}
			return out, true, nil
		}
		if cut.attr == r.Preference.Attr {
			for _, side := range []struct {
				iv    Interval
				apply func(TemporalRule, Interval) TemporalRule
			}{
				{r.Preference.Best, func(nr TemporalRule, p Interval) TemporalRule {
					nr.Preference.Best = p
					return nr
				}},
				{r.Preference.Worst, func(nr TemporalRule, p Interval) TemporalRule {
					nr.Preference.Worst = p
					return nr
				}},
			} {
				pieces, err := side.iv.SplitBy(cut.iv)
				if err != nil {
					return nil, false, err
				}
				if len(pieces) > 0 {
					out := make([]TemporalRule, 0, len(pieces))
					for _, p := range pieces {
						out = append(out, side.apply(r, p))
					}
					return out, true, nil
				}
			}
		}
	}
	return nil, false, nil
}

func temporalRuleIntervals(r TemporalRule) []attrInterval {
	var out []attrInterval
	for _, cond := range []Condition{r.Condition.Present, r.Condition.Previous,
		r.Condition.SomePrevious, r.Condition.AllPrevious} {
		for attr, iv := range cond {
			out = append(out, attrInterval{attr, iv})
		}
	}
	out = append(out,
		attrInterval{r.Preference.Attr, r.Preference.Best},
		attrInterval{r.Preference.Attr, r.Preference.Worst})
	return out
}
