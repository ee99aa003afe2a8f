package seqtree

import (
	"sort"

	"github.com/streampref/streampref/preference"
	"github.com/streampref/streampref/sequence"
)

// Index is the persistent sequence tree. It tracks which node every live
// sequence is stored in and patches the tree from the sequences' insert
// and delete counters instead of rebuilding it per tick.
type Index struct {
	pruning bool
	cache   *theoryCache
	root    *node
	located map[*sequence.Sequence]*node
}

// NewIndex builds an empty tree over the temporal theory. With pruning
// enabled, subtrees dominated at their branching point are flagged and
// skipped instead of ranked.
func NewIndex(temporal *preference.TemporalTheory, pruning bool) (*Index, error) {
	cache := newTheoryCache(temporal)
	root, err := newRoot(cache, pruning)
	if err != nil {
		return nil, err
	}
	return &Index{
		pruning: pruning,
		cache:   cache,
		root:    root,
		located: map[*sequence.Sequence]*node{},
	}, nil
}

// Update reconciles the tree with this tick's sequence set. Sequences
// that lost front positions are relocated from the root, grown ones are
// moved deeper from their current node, unseen ones are inserted fresh
// and indexed ones missing from the set are dropped.
func (ix *Index) Update(seqs []*sequence.Sequence) error {
	type placed struct {
		seq  *sequence.Sequence
		node *node
	}
	live := make(map[*sequence.Sequence]struct{}, len(seqs))
	for _, seq := range seqs {
		live[seq] = struct{}{}
	}
	var inserts []*sequence.Sequence
	var toMove, toDelete []placed
	for _, seq := range ix.locatedSequences() {
		at := ix.located[seq]
		deleted := seq.TakeDeleted()
		inserted := seq.TakeInserted()
		if _, ok := live[seq]; !ok {
			toDelete = append(toDelete, placed{seq, at})
			continue
		}
		if deleted > 0 {
			toDelete = append(toDelete, placed{seq, at})
			if seq.Len() > 0 {
				inserts = append(inserts, seq)
			}
		} else if inserted > 0 {
			toMove = append(toMove, placed{seq, at})
		}
	}
	for _, seq := range seqs {
		if _, ok := ix.located[seq]; !ok {
			seq.TakeInserted()
			seq.TakeDeleted()
			inserts = append(inserts, seq)
		}
	}
	for _, p := range toDelete {
		p.node.deleteSeq(p.seq)
		delete(ix.located, p.seq)
	}
	for _, seq := range inserts {
		at, err := ix.root.add(seq, ix.root.dominated)
		if err != nil {
			return err
		}
		ix.located[seq] = at
	}
	for _, p := range toMove {
		at, err := p.node.add(p.seq, p.node.dominated)
		if err != nil {
			return err
		}
		p.node.deleteSeq(p.seq)
		ix.located[p.seq] = at
	}
	return ix.root.clean()
}

// locatedSequences lists the indexed sequences in a stable order
func (ix *Index) locatedSequences() []*sequence.Sequence {
	out := make([]*sequence.Sequence, 0, len(ix.located))
	for seq := range ix.located {
		out = append(out, seq)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Signature() < out[j].Signature()
	})
	return out
}

// Best returns the undominated sequences of the tree
func (ix *Index) Best() []*sequence.Sequence {
	return ix.root.bestRecursive()
}

// TopK peels the lowest dominance ranks off a copy of the tree until k
// sequences are covered, including the final rank whole
func (ix *Index) TopK(k int) ([]*sequence.Sequence, error) {
	return ix.root.copy().topk(k)
}

// Len returns the number of indexed sequences
func (ix *Index) Len() int { return len(ix.located) }
