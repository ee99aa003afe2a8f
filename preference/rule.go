package preference

import (
	"fmt"
	"sort"
	"strings"

	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/tuple"
)

// term is either a concrete value or an interval. Search-based dominance
// transforms records by replacing a value with a rule's worst interval, so
// intermediate records mix both forms.
type term struct {
	isInterval bool
	v          tuple.Value
	iv         Interval
}

func valueTerm(v tuple.Value) term  { return term{v: v} }
func intervalTerm(iv Interval) term { return term{isInterval: true, iv: iv} }

// covers reports whether the interval admits the term: containment for a
// value, equality for an interval.
func (iv Interval) covers(t term) (bool, error) {
	if t.isInterval {
		return iv.Equal(t.iv), nil
	}
	return iv.Contains(t.v)
}

func (t term) format(attr string) string {
	if t.isInterval {
		return t.iv.Format(attr)
	}
	return attr + "=" + t.v.Format()
}

// record is a mutable working copy of a tuple used during dominance search
type record map[string]term

func recordOf(t tuple.Tuple) record {
	rec := make(record, t.Len())
	for _, attr := range t.Attributes() {
		v, _ := t.Get(attr)
		rec[attr] = valueTerm(v)
	}
	return rec
}

func (r record) clone() record {
	out := make(record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// matchesGoal reports whether r satisfies every attribute of goal. Goal
// attributes holding intervals admit any contained value.
func (r record) matchesGoal(goal record) (bool, error) {
	for attr, gt := range goal {
		rt, ok := r[attr]
		if !ok {
			return false, nil
		}
		if gt.isInterval {
			ok, err := gt.iv.covers(rt)
			if err != nil || !ok {
				return ok, err
			}
			continue
		}
		if rt.isInterval || !rt.v.Equal(gt.v) {
			return false, nil
		}
	}
	return true, nil
}

// Condition is a conjunction of interval predicates over attributes
type Condition map[string]Interval

// Matches reports whether a tuple satisfies every predicate of the condition
func (c Condition) Matches(t tuple.Tuple) (bool, error) {
	for attr, iv := range c {
		v, ok := t.Get(attr)
		if !ok {
			return false, nil
		}
		inside, err := iv.Contains(v)
		if err != nil || !inside {
			return inside, err
		}
	}
	return true, nil
}

func (c Condition) matchesRecord(r record) (bool, error) {
	for attr, iv := range c {
		t, ok := r[attr]
		if !ok {
			return false, nil
		}
		inside, err := iv.covers(t)
		if err != nil || !inside {
			return inside, err
		}
	}
	return true, nil
}

func (c Condition) clone() Condition {
	out := make(Condition, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

func (c Condition) signature() string {
	parts := make([]string, 0, len(c))
	for attr, iv := range c {
		parts = append(parts, iv.Format(attr))
	}
	sort.Strings(parts)
	return strings.Join(parts, " AND ")
}

// Preference orders two disjoint intervals over one attribute: values in
// Best are preferred to values in Worst, with the listed attributes
// indifferent (free to differ between compared tuples).
type Preference struct {
	Attr        string
	Best        Interval
	Worst       Interval
	Indifferent map[string]struct{}
}

// Indiff builds an indifferent attribute set from names
func Indiff(attrs ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		set[a] = struct{}{}
	}
	return set
}

// Rule is a conditional preference rule: when Condition holds, tuples with
// the preference attribute in Best dominate tuples with it in Worst,
// ceteris paribus up to the indifferent attributes.
type Rule struct {
	Condition  Condition
	Preference Preference
}

// Validate checks the structural consistency of a single rule: the
// preference attribute cannot appear in its own condition or indifferent
// set, the two preference intervals must be disjoint and non-empty, and
// interval bounds must agree in type with the declared attribute.
func (r Rule) Validate(schema map[string]tuple.Kind) error {
	p := r.Preference
	if _, ok := r.Condition[p.Attr]; ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: preference attribute %q in own condition",
				errors.ErrTheoryEvaluation, p.Attr),
			"preference", "Validate", "checking rule")
	}
	if _, ok := p.Indifferent[p.Attr]; ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: preference attribute %q marked indifferent",
				errors.ErrTheoryEvaluation, p.Attr),
			"preference", "Validate", "checking rule")
	}
	for attr := range p.Indifferent {
		if _, ok := r.Condition[attr]; ok {
			return errors.WrapInvalid(
				fmt.Errorf("%w: attribute %q both conditioned and indifferent",
					errors.ErrTheoryEvaluation, attr),
				"preference", "Validate", "checking rule")
		}
	}
	for _, iv := range []Interval{p.Best, p.Worst} {
		ok, err := iv.Consistent()
		if err != nil {
			return errors.WrapInvalid(err, "preference", "Validate", "checking interval")
		}
		if !ok {
			return errors.WrapInvalid(
				fmt.Errorf("%w: empty preference interval on %q",
					errors.ErrTheoryEvaluation, p.Attr),
				"preference", "Validate", "checking rule")
		}
	}
	if overlap, err := intervalsOverlap(p.Best, p.Worst); err != nil {
		return errors.WrapInvalid(err, "preference", "Validate", "checking rule")
	} else if overlap {
		return errors.WrapInvalid(
			fmt.Errorf("%w: overlapping best and worst intervals on %q",
				errors.ErrTheoryEvaluation, p.Attr),
			"preference", "Validate", "checking rule")
	}
	if schema != nil {
		if err := r.checkSchema(schema); err != nil {
			return err
		}
	}
	return nil
}

func (r Rule) checkSchema(schema map[string]tuple.Kind) error {
	check := func(attr string, iv Interval) error {
		kind, ok := schema[attr]
		if !ok {
			return errors.WrapInvalid(
				fmt.Errorf("%w: undeclared attribute %q",
					errors.ErrTheoryEvaluation, attr),
				"preference", "Validate", "checking schema")
		}
		for _, b := range iv.bounds() {
			if b.Kind() != kind {
				return errors.WrapInvalid(
					fmt.Errorf("%w: type mismatch on attribute %q",
						errors.ErrTheoryEvaluation, attr),
					"preference", "Validate", "checking schema")
			}
		}
		return nil
	}
	for attr, iv := range r.Condition {
		if err := check(attr, iv); err != nil {
			return err
		}
	}
	if err := check(r.Preference.Attr, r.Preference.Best); err != nil {
		return err
	}
	if err := check(r.Preference.Attr, r.Preference.Worst); err != nil {
		return err
	}
	for attr := range r.Preference.Indifferent {
		if _, ok := schema[attr]; !ok {
			return errors.WrapInvalid(
				fmt.Errorf("%w: undeclared indifferent attribute %q",
					errors.ErrTheoryEvaluation, attr),
				"preference", "Validate", "checking schema")
		}
	}
	return nil
}

func (iv Interval) bounds() []tuple.Value {
	var out []tuple.Value
	if iv.hasLeft {
		out = append(out, iv.left)
	}
	if iv.hasRight {
		out = append(out, iv.right)
	}
	return out
}

func intervalsOverlap(a, b Interval) (bool, error) {
	if a.Equal(b) {
		return true, nil
	}
	if ok, err := a.leftInside(b); err != nil || ok {
		return ok, err
	}
	if ok, err := a.rightInside(b); err != nil || ok {
		return ok, err
	}
	if ok, err := b.leftInside(a); err != nil || ok {
		return ok, err
	}
	return b.rightInside(a)
}

// applies reports whether the rule can transform the record: the condition
// holds and the record's preference attribute lies in the best interval
func (r Rule) applies(rec record) (bool, error) {
	ok, err := r.Condition.matchesRecord(rec)
	if err != nil || !ok {
		return ok, err
	}
	t, present := rec[r.Preference.Attr]
	if !present {
		return true, nil
	}
	return r.Preference.Best.covers(t)
}

// transform produces the worsened record: the preference attribute becomes
// the worst interval and indifferent attributes are dropped
func (r Rule) transform(rec record) record {
	out := rec.clone()
	out[r.Preference.Attr] = intervalTerm(r.Preference.Worst)
	for attr := range r.Preference.Indifferent {
		delete(out, attr)
	}
	return out
}

// Dominates reports direct single-rule dominance: the condition holds for
// both tuples, a's preference value is in Best, b's in Worst, and every
// other non-indifferent attribute matches.
func (r Rule) Dominates(a, b tuple.Tuple) (bool, error) {
	for _, t := range []tuple.Tuple{a, b} {
		ok, err := r.Condition.Matches(t)
		if err != nil || !ok {
			return ok, err
		}
	}
	av, ok := a.Get(r.Preference.Attr)
	if !ok {
		return false, nil
	}
	bv, ok := b.Get(r.Preference.Attr)
	if !ok {
		return false, nil
	}
	if in, err := r.Preference.Best.Contains(av); err != nil || !in {
		return in, err
	}
	if in, err := r.Preference.Worst.Contains(bv); err != nil || !in {
		return in, err
	}
	return r.ceterisParibus(a, b)
}

// ceterisParibus checks equality of all attributes outside the preference
// attribute and the indifferent set
func (r Rule) ceterisParibus(a, b tuple.Tuple) (bool, error) {
	attrs := map[string]struct{}{}
	for _, attr := range a.Attributes() {
		attrs[attr] = struct{}{}
	}
	for _, attr := range b.Attributes() {
		attrs[attr] = struct{}{}
	}
	for attr := range attrs {
		if attr == r.Preference.Attr {
			continue
		}
		if _, indiff := r.Preference.Indifferent[attr]; indiff {
			continue
		}
		av, aok := a.Get(attr)
		bv, bok := b.Get(attr)
		if aok != bok {
			return false, nil
		}
		if aok && !av.Equal(bv) {
			return false, nil
		}
	}
	return true, nil
}

// Signature renders the rule in the query language's textual form,
// suitable as a map key for caches over rule sets
func (r Rule) Signature() string {
	var sb strings.Builder
	if len(r.Condition) > 0 {
		sb.WriteString("IF ")
		sb.WriteString(r.Condition.signature())
		sb.WriteString(" THEN ")
	}
	sb.WriteString(r.Preference.Best.Format(r.Preference.Attr))
	sb.WriteString(" BETTER ")
	sb.WriteString(r.Preference.Worst.Format(r.Preference.Attr))
	if len(r.Preference.Indifferent) > 0 {
		attrs := make([]string, 0, len(r.Preference.Indifferent))
		for a := range r.Preference.Indifferent {
			attrs = append(attrs, a)
		}
		sort.Strings(attrs)
		sb.WriteString(" [")
		sb.WriteString(strings.Join(attrs, ","))
		sb.WriteString("]")
	}
	return sb.String()
}

// splitIntervals rewrites the rules so that all intervals mentioning the
// same attribute are either equal or disjoint. A rule whose interval is
// split becomes several rules, one per piece.
func splitIntervals(rules []Rule) ([]Rule, error) {
	work := append([]Rule(nil), rules...)
	for changed := true; changed; {
		changed = false
		for i := 0; i < len(work) && !changed; i++ {
			for j := 0; j < len(work) && !changed; j++ {
				if i == j {
					continue
				}
				out, split, err := splitRuleBy(work[i], work[j])
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

// splitRuleBy splits any interval of r that an interval of other over the
// same attribute cuts through, returning replacement rules
func splitRuleBy(r, other Rule) ([]Rule, bool, error) {
	for _, cut := range ruleIntervals(other) {
		for attr, iv := range r.Condition {
			if attr != cut.attr {
				continue
			}
			pieces, err := iv.SplitBy(cut.iv)
			if err != nil {
				return nil, false, err
			}
			if len(pieces) > 0 {
				out := make([]Rule, 0, len(pieces))
				for _, p := range pieces {
					nr := Rule{Condition: r.Condition.clone(), Preference: r.Preference}
					nr.Condition[attr] = p
					out = append(out, nr)
				}
				return out, true, nil
			}
		}
		if cut.attr == r.Preference.Attr {
			for _, side := range []struct {
				iv    Interval
				apply func(Rule, Interval) Rule
			}{
				{r.Preference.Best, func(nr Rule, p Interval) Rule { nr.Preference.Best = p; return nr }},
				{r.Preference.Worst, func(nr Rule, p Interval) Rule { nr.Preference.Worst = p; return nr }},
			} {
				pieces, err := side.iv.SplitBy(cut.iv)
				if err != nil {
					return nil, false, err
				}
				if len(pieces) > 0 {
					out := make([]Rule, 0, len(pieces))
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

type attrInterval struct {
	attr string
	iv   Interval
}

func ruleIntervals(r Rule) []attrInterval {
	out := make([]attrInterval, 0, len(r.Condition)+2)
	for attr, iv := range r.Condition {
		out = append(out, attrInterval{attr, iv})
	}
	out = append(out,
		attrInterval{r.Preference.Attr, r.Preference.Best},
		attrInterval{r.Preference.Attr, r.Preference.Worst})
	return out
}
