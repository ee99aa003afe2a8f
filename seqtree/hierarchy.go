// Package seqtree indexes live candidate subsequences in a prefix tree
// and evaluates BESTSEQ and TOPKSEQ queries over them. Sequences sharing
// a prefix share a path; each node ranks its children with the
// position-bound rules of the temporal theory, so whole subtrees are
// decided by one comparison at their branching point.
package seqtree

import (
	"strconv"
	"strings"

	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/preference"
	"github.com/streampref/streampref/tuple"
)

// emptyHistory stands in for the root's prefix
type emptyHistory struct{}

func (emptyHistory) Len() int           { return 0 }
func (emptyHistory) At(int) tuple.Tuple { panic("empty history has no positions") }

// theoryCache maps a prefix to the plain theory of the rules whose past
// conditions hold one position past the prefix. Distinct prefixes often
// validate the same rule set, so theories are shared by rule signature.
type theoryCache struct {
	temporal *preference.TemporalTheory
	theories map[string]*preference.Theory
}

func newTheoryCache(temporal *preference.TemporalTheory) *theoryCache {
	return &theoryCache{
		temporal: temporal,
		theories: map[string]*preference.Theory{},
	}
}

// hierarchyFor builds a child hierarchy for a node whose prefix is given
func (c *theoryCache) hierarchyFor(prefix preference.History) (*hierarchy, error) {
	rules, err := c.temporal.ValidRules(prefix, prefix.Len())
	if err != nil {
		return nil, err
	}
	sigs := make([]string, len(rules))
	for i, r := range rules {
		sigs[i] = r.Signature()
	}
	key := strings.Join(sigs, ";")
	th, ok := c.theories[key]
	if !ok {
		th = preference.NewSubTheory(rules)
		c.theories[key] = th
	}
	return newHierarchy(th.Comparisons()), nil
}

// hierarchy ranks the child records of one tree node with the partition
// comparisons of the node's position-bound theory. Records are keyed by
// signature; a per-record counter tracks how many partitions currently
// dominate it.
type hierarchy struct {
	comparisons []preference.Comparison
	records     map[string]tuple.Tuple
	prefCount   map[string]int
	nonpref     map[string]map[string]struct{}
	domCount    map[string]int
}

func newHierarchy(comparisons []preference.Comparison) *hierarchy {
	return &hierarchy{
		comparisons: comparisons,
		records:     map[string]tuple.Tuple{},
		prefCount:   map[string]int{},
		nonpref:     map[string]map[string]struct{}{},
		domCount:    map[string]int{},
	}
}

func (h *hierarchy) partitionID(rec tuple.Tuple, compIdx int) string {
	comp := h.comparisons[compIdx]
	return strconv.Itoa(compIdx+1) + "|" + rec.Without(comp.Indifferent).Signature()
}

// add registers a record and reports whether some partition dominates it
func (h *hierarchy) add(rec tuple.Tuple) (bool, error) {
	sig := rec.Signature()
	h.records[sig] = rec
	for i, comp := range h.comparisons {
		pid := h.partitionID(rec, i)
		isBest, err := comp.Best.SatisfiedBy(rec)
		if err != nil {
			return false, err
		}
		if isBest {
			h.prefCount[pid]++
			if h.prefCount[pid] == 1 {
				for otherSig := range h.nonpref[pid] {
					h.domCount[otherSig]++
				}
			}
			continue
		}
		isWorst, err := comp.Worst.SatisfiedBy(rec)
		if err != nil {
			return false, err
		}
		if isWorst {
			if h.nonpref[pid] == nil {
				h.nonpref[pid] = map[string]struct{}{}
			}
			h.nonpref[pid][sig] = struct{}{}
			if h.prefCount[pid] > 0 {
				h.domCount[sig]++
			}
		}
	}
	_, dominated := h.domCount[sig]
	return dominated, nil
}

// delete unregisters a record, promoting the members of partitions it was
// the last preferred record of
func (h *hierarchy) delete(rec tuple.Tuple) error {
	sig := rec.Signature()
	if _, ok := h.records[sig]; !ok {
		return errors.WrapFatal(errors.ErrDeleteNonexistent,
			"seqtree", "delete", "removing "+sig)
	}
	delete(h.records, sig)
	for i, comp := range h.comparisons {
		pid := h.partitionID(rec, i)
		isBest, err := comp.Best.SatisfiedBy(rec)
		if err != nil {
			return err
		}
		if isBest {
			h.prefCount[pid]--
			if h.prefCount[pid] <= 0 {
				delete(h.prefCount, pid)
				for otherSig := range h.nonpref[pid] {
					h.domCount[otherSig]--
					if h.domCount[otherSig] <= 0 {
						delete(h.domCount, otherSig)
					}
				}
			}
			continue
		}
		isWorst, err := comp.Worst.SatisfiedBy(rec)
		if err != nil {
			return err
		}
		if isWorst {
			delete(h.nonpref[pid], sig)
			if len(h.nonpref[pid]) == 0 {
				delete(h.nonpref, pid)
			}
		}
	}
	delete(h.domCount, sig)
	return nil
}

// best lists the signatures of the undominated records
func (h *hierarchy) best() []string {
	var out []string
	for sig := range h.records {
		if _, dominated := h.domCount[sig]; !dominated {
			out = append(out, sig)
		}
	}
	return out
}

// dominantDominated splits all record signatures by dominance
func (h *hierarchy) dominantDominated() (dominant, dominated []string) {
	for sig := range h.records {
		if _, dom := h.domCount[sig]; dom {
			dominated = append(dominated, sig)
		} else {
			dominant = append(dominant, sig)
		}
	}
	return dominant, dominated
}

func (h *hierarchy) copy() *hierarchy {
	c := newHierarchy(h.comparisons)
	for k, v := range h.records {
		c.records[k] = v
	}
	for k, v := range h.prefCount {
		c.prefCount[k] = v
	}
	for pid, set := range h.nonpref {
		cp := make(map[string]struct{}, len(set))
		for sig := range set {
			cp[sig] = struct{}{}
		}
		c.nonpref[pid] = cp
	}
	for k, v := range h.domCount {
		c.domCount[k] = v
	}
	return c
}
