package seqtree

import (
	"fmt"

	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/preference"
	"github.com/streampref/streampref/sequence"
)

// Algorithm selects how BESTSEQ/TOPKSEQ dominance is evaluated
type Algorithm string

const (
	// DepthSearch compares all live sequences pairwise each tick
	DepthSearch Algorithm = "depth_search"
	// IncSeqTree maintains the tree across ticks and re-ranks only
	// branches the delta touched
	IncSeqTree Algorithm = "inc_seqtree"
	// IncSeqTreePruning additionally skips subtrees dominated at their
	// branching point
	IncSeqTreePruning Algorithm = "inc_seqtree_pruning"
)

// Algorithms lists every selectable sequence strategy name
var Algorithms = []Algorithm{DepthSearch, IncSeqTree, IncSeqTreePruning}

// Mode selects between the full undominated set and the top ranks
type Mode string

const (
	// ModeBest returns every undominated sequence
	ModeBest Mode = "best"
	// ModeTopK returns the lowest dominance ranks covering k sequences
	ModeTopK Mode = "topk"
)

// Delta is the change log of a sequence result between two ticks
type Delta struct {
	Inserts []*sequence.Sequence
	Deletes []*sequence.Sequence
}

// Empty reports whether the result did not change
func (d Delta) Empty() bool {
	return len(d.Inserts) == 0 && len(d.Deletes) == 0
}

// Evaluator answers BESTSEQ or TOPKSEQ over the live candidate
// subsequences of each tick, reporting results as deltas. One evaluator
// owns one query's state and is not safe for concurrent use.
type Evaluator struct {
	theory   *preference.TemporalTheory
	alg      Algorithm
	mode     Mode
	k        int
	index    *Index
	previous []*sequence.Sequence
}

// NewEvaluator builds an evaluator for the given strategy and mode.
// ModeTopK requires a positive k.
func NewEvaluator(th *preference.TemporalTheory, alg Algorithm, mode Mode, k int) (*Evaluator, error) {
	if mode != ModeBest && mode != ModeTopK {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"seqtree", "NewEvaluator", fmt.Sprintf("unknown mode %q", mode))
	}
	if mode == ModeTopK && k <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"seqtree", "NewEvaluator", fmt.Sprintf("top-k needs k > 0, got %d", k))
	}
	e := &Evaluator{theory: th, alg: alg, mode: mode, k: k}
	switch alg {
	case DepthSearch:
	case IncSeqTree, IncSeqTreePruning:
		index, err := NewIndex(th, alg == IncSeqTreePruning)
		if err != nil {
			return nil, err
		}
		e.index = index
	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"seqtree", "NewEvaluator", fmt.Sprintf("unknown algorithm %q", alg))
	}
	return e, nil
}

// Evaluate ranks this tick's live sequences and returns the sequences
// entering and leaving the result
func (e *Evaluator) Evaluate(seqs []*sequence.Sequence) (Delta, error) {
	var current []*sequence.Sequence
	var err error
	if e.index != nil {
		if err = e.index.Update(seqs); err != nil {
			return Delta{}, err
		}
		if e.mode == ModeTopK {
			current, err = e.index.TopK(e.k)
		} else {
			current = e.index.Best()
		}
	} else {
		if e.mode == ModeTopK {
			current, err = e.topkSearch(seqs)
		} else {
			current, _, err = e.dominantDominated(seqs)
		}
	}
	if err != nil {
		return Delta{}, err
	}
	sequence.SortBySignature(current)
	out := diffSequences(e.previous, current)
	// Result sequences mutate between ticks, so the retained previous
	// result is frozen by copy. Deleted entries of the next delta then
	// carry last tick's content.
	frozen := make([]*sequence.Sequence, len(current))
	for i, s := range current {
		frozen[i] = s.Copy()
	}
	e.previous = frozen
	return out, nil
}

// Result returns the materialized result of the last evaluated tick
func (e *Evaluator) Result() []*sequence.Sequence {
	return e.previous
}

// dominantDominated splits sequences into the undominated ones and the
// rest by pairwise search
func (e *Evaluator) dominantDominated(seqs []*sequence.Sequence) (dominant, dominated []*sequence.Sequence, err error) {
	for _, seq := range seqs {
		isDominated := false
		for _, other := range seqs {
			if other == seq {
				continue
			}
			wins, err := e.theory.Dominates(other, seq)
			if err != nil {
				return nil, nil, err
			}
			if wins {
				isDominated = true
				break
			}
		}
		if isDominated {
			dominated = append(dominated, seq)
		} else {
			dominant = append(dominant, seq)
		}
	}
	return dominant, dominated, nil
}

func (e *Evaluator) topkSearch(seqs []*sequence.Sequence) ([]*sequence.Sequence, error) {
	remaining := seqs
	var result []*sequence.Sequence
	for len(result) < e.k && len(remaining) > 0 {
		dominant, dominated, err := e.dominantDominated(remaining)
		if err != nil {
			return nil, err
		}
		result = append(result, dominant...)
		remaining = dominated
	}
	return result, nil
}

// diffSequences compares result multisets by sequence signature
func diffSequences(previous, current []*sequence.Sequence) Delta {
	counts := map[string]int{}
	for _, s := range current {
		counts[s.Signature()]++
	}
	for _, s := range previous {
		counts[s.Signature()]--
	}
	var delta Delta
	for _, s := range current {
		if counts[s.Signature()] > 0 {
			delta.Inserts = append(delta.Inserts, s)
			counts[s.Signature()]--
		}
	}
	for _, s := range previous {
		if counts[s.Signature()] < 0 {
			delta.Deletes = append(delta.Deletes, s)
			counts[s.Signature()]++
		}
	}
	return delta
}
