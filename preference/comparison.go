package preference

import (
	"sort"
	"strings"

	"github.com/streampref/streampref/tuple"
)

// Formula is a conjunction of atomic interval attributions, one interval
// per attribute. The partition strategies compare tuples through formulas
// instead of rule applications.
type Formula map[string]Interval

// Signature renders a canonical textual form, used for deduplication
func (f Formula) Signature() string {
	parts := make([]string, 0, len(f))
	for attr, iv := range f {
		parts = append(parts, iv.Format(attr))
	}
	sort.Strings(parts)
	return "(" + strings.Join(parts, ")^(") + ")"
}

func (f Formula) clone() Formula {
	out := make(Formula, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (f Formula) equal(o Formula) bool {
	if len(f) != len(o) {
		return false
	}
	for attr, iv := range f {
		ov, ok := o[attr]
		if !ok || !iv.Equal(ov) {
			return false
		}
	}
	return true
}

// without returns the attributions of f whose attribute is absent from o
func (f Formula) without(o Formula) Formula {
	out := Formula{}
	for attr, iv := range f {
		if _, ok := o[attr]; !ok {
			out[attr] = iv
		}
	}
	return out
}

// SatisfiedBy reports whether a tuple matches every attribution of the formula
func (f Formula) SatisfiedBy(t tuple.Tuple) (bool, error) {
	for attr, iv := range f {
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

// satisfiesCondition reports whether the formula entails the condition:
// every condition attribute appears with an equal atomic interval
func (f Formula) satisfiesCondition(c Condition) bool {
	for attr, iv := range c {
		fv, ok := f[attr]
		if !ok || !fv.Equal(iv) {
			return false
		}
	}
	return true
}

// FormulaDominates reports whether formula a is preferred to formula b
// under the rule: a carries the best interval, b the worst, both satisfy
// the condition, and all other non-indifferent attributions coincide.
func (r Rule) FormulaDominates(a, b Formula) bool {
	p := r.Preference
	av, ok := a[p.Attr]
	if !ok || !av.Equal(p.Best) {
		return false
	}
	bv, ok := b[p.Attr]
	if !ok || !bv.Equal(p.Worst) {
		return false
	}
	if !a.satisfiesCondition(r.Condition) || !b.satisfiesCondition(r.Condition) {
		return false
	}
	attrs := map[string]struct{}{}
	for attr := range a {
		attrs[attr] = struct{}{}
	}
	for attr := range b {
		attrs[attr] = struct{}{}
	}
	for attr := range attrs {
		if attr == p.Attr {
			continue
		}
		if _, indiff := p.Indifferent[attr]; indiff {
			continue
		}
		av, aok := a[attr]
		bv, bok := b[attr]
		if !aok || !bok || !av.Equal(bv) {
			return false
		}
	}
	return true
}

// Comparison is a precomputed dominance template: any tuple satisfying the
// preferred formula dominates any tuple satisfying the non-preferred
// formula, provided all attributes outside the indifferent set coincide.
type Comparison struct {
	Best        Formula
	Worst       Formula
	Indifferent map[string]struct{}
}

func newComparison(best, worst Formula, r Rule) Comparison {
	indiff := map[string]struct{}{r.Preference.Attr: {}}
	for attr := range r.Preference.Indifferent {
		indiff[attr] = struct{}{}
	}
	return Comparison{Best: best, Worst: worst, Indifferent: indiff}
}

// Signature is a canonical textual form used for set membership
func (c Comparison) Signature() string {
	attrs := make([]string, 0, len(c.Indifferent))
	for a := range c.Indifferent {
		attrs = append(attrs, a)
	}
	sort.Strings(attrs)
	return c.Best.Signature() + " > " + c.Worst.Signature() +
		"[" + strings.Join(attrs, ",") + "]"
}

// Dominates reports whether a dominates b through this comparison
func (c Comparison) Dominates(a, b tuple.Tuple) (bool, error) {
	if ok, err := c.Best.SatisfiedBy(a); err != nil || !ok {
		return ok, err
	}
	if ok, err := c.Worst.SatisfiedBy(b); err != nil || !ok {
		return ok, err
	}
	attrs := map[string]struct{}{}
	for _, attr := range a.Attributes() {
		attrs[attr] = struct{}{}
	}
	for _, attr := range b.Attributes() {
		attrs[attr] = struct{}{}
	}
	for attr := range attrs {
		if _, indiff := c.Indifferent[attr]; indiff {
			continue
		}
		av, aok := a.Get(attr)
		bv, bok := b.Get(attr)
		if !aok || !bok || !av.Equal(bv) {
			return false, nil
		}
	}
	return true, nil
}

// MoreGenericThan reports whether c subsumes other: the other comparison's
// formulas extend c's with extra attributions that c already declares
// indifferent, so every pair matched by other is matched by c.
func (c Comparison) MoreGenericThan(other Comparison) bool {
	extraBest := other.Best.without(c.Best)
	extraWorst := other.Worst.without(c.Worst)
	coreBest := other.Best.without(extraBest)
	coreWorst := other.Worst.without(extraWorst)
	if !c.Best.equal(coreBest) || !c.Worst.equal(coreWorst) {
		return false
	}
	subset := func(small, big map[string]struct{}) bool {
		for k := range small {
			if _, ok := big[k]; !ok {
				return false
			}
		}
		return true
	}
	if extraBest.equal(extraWorst) && subset(other.Indifferent, c.Indifferent) {
		return true
	}
	withAttrs := func(f Formula) map[string]struct{} {
		set := make(map[string]struct{}, len(other.Indifferent)+len(f))
		for k := range other.Indifferent {
			set[k] = struct{}{}
		}
		for k := range f {
			set[k] = struct{}{}
		}
		return set
	}
	return subset(withAttrs(extraBest), c.Indifferent) &&
		subset(withAttrs(extraWorst), c.Indifferent)
}

// atomicFormulas lists the single-attribution formulas appearing in a rule
func (r Rule) atomicFormulas() []Formula {
	out := make([]Formula, 0, len(r.Condition)+2)
	for attr, iv := range r.Condition {
		out = append(out, Formula{attr: iv})
	}
	out = append(out,
		Formula{r.Preference.Attr: r.Preference.Best},
		Formula{r.Preference.Attr: r.Preference.Worst})
	return out
}

// buildFormulas combines the atomic attributions of all rules into every
// consistent multi-attribute formula
func buildFormulas(rules []Rule) []Formula {
	var formulas []Formula
	seen := map[string]struct{}{}
	add := func(f Formula) bool {
		sig := f.Signature()
		if _, ok := seen[sig]; ok {
			return false
		}
		seen[sig] = struct{}{}
		formulas = append(formulas, f)
		return true
	}
	var atomics []Formula
	for _, r := range rules {
		for _, f := range r.atomicFormulas() {
			if add(f) {
				atomics = append(atomics, f)
			}
		}
	}
	for _, atomic := range atomics {
		var attr string
		var iv Interval
		for a, v := range atomic {
			attr, iv = a, v
		}
		var extended []Formula
		for _, f := range formulas {
			if _, ok := f[attr]; ok {
				continue
			}
			nf := f.clone()
			nf[attr] = iv
			if _, ok := seen[nf.Signature()]; !ok {
				seen[nf.Signature()] = struct{}{}
				extended = append(extended, nf)
			}
		}
		formulas = append(formulas, extended...)
	}
	return formulas
}

// buildComparisons derives the essential comparison set for the partition
// strategies: direct rule comparisons between formulas, closed under
// transitivity with a Floyd-Warshall pass, then filtered down to the
// comparisons no more generic one subsumes.
func buildComparisons(rules []Rule) []Comparison {
	formulas := buildFormulas(rules)
	n := len(formulas)
	direct := make([]map[int]map[string]Comparison, n)
	for i := range direct {
		direct[i] = map[int]map[string]Comparison{}
	}
	put := func(i, j int, c Comparison) {
		if direct[i][j] == nil {
			direct[i][j] = map[string]Comparison{}
		}
		direct[i][j][c.Signature()] = c
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			for _, r := range rules {
				if r.FormulaDominates(formulas[i], formulas[j]) {
					put(i, j, newComparison(formulas[i], formulas[j], r))
				}
			}
		}
	}
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if len(direct[i][k]) == 0 || len(direct[k][j]) == 0 {
					continue
				}
				for _, ik := range direct[i][k] {
					for _, kj := range direct[k][j] {
						indiff := make(map[string]struct{},
							len(ik.Indifferent)+len(kj.Indifferent))
						for a := range ik.Indifferent {
							indiff[a] = struct{}{}
						}
						for a := range kj.Indifferent {
							indiff[a] = struct{}{}
						}
						put(i, j, Comparison{
							Best:        ik.Best,
							Worst:       kj.Worst,
							Indifferent: indiff,
						})
					}
				}
			}
		}
	}
	var all []Comparison
	seenComp := map[string]struct{}{}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for sig, c := range direct[i][j] {
				if _, ok := seenComp[sig]; ok {
					continue
				}
				seenComp[sig] = struct{}{}
				all = append(all, c)
			}
		}
	}
	sort.Slice(all, func(a, b int) bool {
		ca, cb := all[a], all[b]
		if len(ca.Indifferent) != len(cb.Indifferent) {
			return len(ca.Indifferent) > len(cb.Indifferent)
		}
		la := len(ca.Best) + len(ca.Worst)
		lb := len(cb.Best) + len(cb.Worst)
		if la != lb {
			return la < lb
		}
		return ca.Signature() < cb.Signature()
	})
	return essentialComparisons(all)
}

// essentialComparisons drops every comparison some other comparison
// subsumes. Candidates are consumed from the tail so that of two mutually
// subsuming comparisons exactly one survives.
func essentialComparisons(all []Comparison) []Comparison {
	remaining := append([]Comparison(nil), all...)
	essential := make([]Comparison, 0, len(all))
	for len(remaining) > 0 {
		c := remaining[len(remaining)-1]
		remaining = remaining[:len(remaining)-1]
		subsumed := false
		for _, other := range remaining {
			if other.MoreGenericThan(c) {
				subsumed = true
				break
			}
		}
		if !subsumed {
			for _, other := range essential {
				if other.MoreGenericThan(c) {
					subsumed = true
					break
				}
			}
		}
		if !subsumed {
			essential = append(essential, c)
		}
	}
	return essential
}
