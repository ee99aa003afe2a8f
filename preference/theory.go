package preference

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/tuple"
)

// Theory is a consistent conditional preference theory. Construction
// validates every rule, rewrites overlapping intervals into disjoint ones
// and verifies global and local acyclicity; an inconsistent rule set is
// rejected with ErrCyclicPreference.
type Theory struct {
	rules []Rule

	comparisons      []Comparison
	comparisonsBuilt bool
}

// NewTheory builds and checks a theory over the given rules. The schema,
// when non-nil, declares the attribute types rules may reference.
func NewTheory(rules []Rule, schema map[string]tuple.Kind) (*Theory, error) {
	for _, r := range rules {
		if err := r.Validate(schema); err != nil {
			return nil, err
		}
	}
	split, err := splitIntervals(rules)
	if err != nil {
		return nil, errors.WrapInvalid(err, "preference", "NewTheory", "splitting intervals")
	}
	th := &Theory{rules: split}
	if err := th.checkGlobalConsistency(); err != nil {
		return nil, err
	}
	if err := th.checkLocalConsistency(); err != nil {
		return nil, err
	}
	return th, nil
}

// newTheoryUnchecked wraps already validated rules. The temporal layer
// uses it for the per-position sub-theories whose rules were checked at
// construction of the enclosing temporal theory.
func newTheoryUnchecked(rules []Rule) *Theory {
	return &Theory{rules: rules}
}

// NewSubTheory wraps rules that an enclosing temporal theory already
// validated and split, skipping the consistency checks. Position-bound
// evaluation over sequences builds these per set of temporally valid
// rules.
func NewSubTheory(rules []Rule) *Theory {
	return newTheoryUnchecked(rules)
}

// Rules returns the theory's rules after interval splitting
func (th *Theory) Rules() []Rule { return th.rules }

// Len returns the number of rules after interval splitting
func (th *Theory) Len() int { return len(th.rules) }

// checkGlobalConsistency builds the attribute dependency graph with edges
// from condition attributes to the preference attribute and from the
// preference attribute to indifferent attributes. A cycle means some
// attribute's preference depends on itself.
func (th *Theory) checkGlobalConsistency() error {
	graph := newDigraph()
	for _, r := range th.rules {
		for attr := range r.Condition {
			graph.addEdge(attr, r.Preference.Attr)
		}
		for attr := range r.Preference.Indifferent {
			graph.addEdge(r.Preference.Attr, attr)
		}
	}
	if !graph.acyclic() {
		return errors.WrapFatal(
			fmt.Errorf("%w: attribute dependency cycle", errors.ErrCyclicPreference),
			"preference", "NewTheory", "checking global consistency")
	}
	return nil
}

// checkLocalConsistency verifies that no set of jointly applicable rules
// prefers an interval over itself: for every maximal set of compatible
// rules, the graph from best to worst intervals must stay acyclic.
func (th *Theory) checkLocalConsistency() error {
	for _, set := range th.compatibleSets() {
		graph := newDigraph()
		for _, idx := range set {
			p := th.rules[idx].Preference
			graph.addEdge(p.Best.Format(p.Attr), p.Worst.Format(p.Attr))
		}
		if !graph.acyclic() {
			return errors.WrapFatal(
				fmt.Errorf("%w: interval preference cycle among compatible rules",
					errors.ErrCyclicPreference),
				"preference", "NewTheory", "checking local consistency")
		}
	}
	return nil
}

// compatible reports whether two rules can apply to the same pair of
// tuples: same preference attribute and no condition attribute bound to
// different intervals
func compatible(a, b Rule) bool {
	if a.Preference.Attr != b.Preference.Attr {
		return false
	}
	return compatibleConditions(a.Condition, b.Condition)
}

func compatibleConditions(a, b Condition) bool {
	for attr, iv := range a {
		if ov, ok := b[attr]; ok && !iv.Equal(ov) {
			return false
		}
	}
	return true
}

// compatibleSets grows maximal sets of pairwise compatible rules,
// starting from singletons and adding every compatible rule until no set
// can be extended
func (th *Theory) compatibleSets() [][]int {
	sets := make([][]int, 0, len(th.rules))
	for i := range th.rules {
		sets = append(sets, []int{i})
	}
	seen := map[string]struct{}{}
	key := func(set []int) string {
		parts := make([]string, len(set))
		for i, idx := range set {
			parts[i] = strconv.Itoa(idx)
		}
		return strings.Join(parts, ",")
	}
	for changed := true; changed; {
		changed = false
		next := make([][]int, 0, len(sets))
		for _, set := range sets {
			extended := false
			for idx := range th.rules {
				if containsIndex(set, idx) {
					continue
				}
				ok := true
				for _, other := range set {
					if !compatible(th.rules[idx], th.rules[other]) {
						ok = false
						break
					}
				}
				if !ok {
					continue
				}
				extended = true
				grown := append(append([]int(nil), set...), idx)
				sort.Ints(grown)
				if k := key(grown); !hasKey(seen, k) {
					seen[k] = struct{}{}
					next = append(next, grown)
					changed = true
				}
			}
			if !extended {
				next = append(next, set)
			}
		}
		sets = next
	}
	return sets
}

func containsIndex(set []int, idx int) bool {
	for _, v := range set {
		if v == idx {
			return true
		}
	}
	return false
}

func hasKey(m map[string]struct{}, k string) bool {
	_, ok := m[k]
	return ok
}

// Dominates reports whether a is preferred to b under the theory, using
// the dominance test by search: a chain of rule applications worsening a
// until it reaches b.
func (th *Theory) Dominates(a, b tuple.Tuple) (bool, error) {
	if a.Equal(b) {
		return false, nil
	}
	return searchDominance(th.rules, recordOf(a), recordOf(b))
}

// DirectDominates reports whether some single rule prefers a to b
func (th *Theory) DirectDominates(a, b tuple.Tuple) (bool, error) {
	for _, r := range th.rules {
		ok, err := r.Dominates(a, b)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// searchDominance recursively worsens rec through rule applications, each
// rule used at most once, until the target record matches the worsened one
func searchDominance(rules []Rule, rec, target record) (bool, error) {
	ok, err := target.matchesGoal(rec)
	if err != nil || ok {
		return ok, err
	}
	for i, r := range rules {
		applies, err := r.applies(rec)
		if err != nil {
			return false, err
		}
		if !applies {
			continue
		}
		rest := make([]Rule, 0, len(rules)-1)
		rest = append(rest, rules[:i]...)
		rest = append(rest, rules[i+1:]...)
		ok, err := searchDominance(rest, r.transform(rec), target)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// Comparisons returns the essential comparison set used by the partition
// strategies, building it on first use
func (th *Theory) Comparisons() []Comparison {
	if !th.comparisonsBuilt {
		th.comparisons = buildComparisons(th.rules)
		th.comparisonsBuilt = true
	}
	return th.comparisons
}
