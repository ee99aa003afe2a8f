package seqtree

import (
	"sort"

	"github.com/streampref/streampref/preference"
	"github.com/streampref/streampref/sequence"
	"github.com/streampref/streampref/tuple"
)

// node is one prefix of the tree. Sequences of exactly the node's length
// are stored at the node; longer ones continue into children keyed by the
// signature of their record at the node's depth. Without pruning every
// node carries a hierarchy over its children; with pruning the hierarchy
// exists only while the node is dominant and has at least two children,
// and a dominated flag propagates down instead.
type node struct {
	depth     int
	prefix    *sequence.Sequence
	children  map[string]*node
	seqs      map[*sequence.Sequence]struct{}
	hier      *hierarchy
	cache     *theoryCache
	pruning   bool
	dominated bool
}

func newRoot(cache *theoryCache, pruning bool) (*node, error) {
	n := &node{
		children: map[string]*node{},
		seqs:     map[*sequence.Sequence]struct{}{},
		cache:    cache,
		pruning:  pruning,
	}
	if !pruning {
		var err error
		n.hier, err = cache.hierarchyFor(emptyHistory{})
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

// prefixHistory exposes the node's prefix for rule validation
func (n *node) prefixHistory() preference.History {
	if n.prefix == nil {
		return emptyHistory{}
	}
	return n.prefix
}

// record is the last tuple of the node's prefix. Only child nodes have
// one; the root is never asked.
func (n *node) record() tuple.Tuple {
	return n.prefix.At(n.depth - 1)
}

func (n *node) empty() bool {
	return len(n.seqs) == 0 && len(n.children) == 0
}

// add stores seq below this node and returns the node it landed in.
// ancestorDominated carries the pruning flag accumulated along the path.
func (n *node) add(seq *sequence.Sequence, ancestorDominated bool) (*node, error) {
	if n.depth == seq.Len() {
		n.seqs[seq] = struct{}{}
		return n, nil
	}
	id := seq.At(n.depth).Signature()
	child, ok := n.children[id]
	if !ok {
		var err error
		child, err = n.newChild(seq, id, ancestorDominated)
		if err != nil {
			return nil, err
		}
	}
	if n.pruning {
		ancestorDominated = ancestorDominated || child.dominated
	}
	return child.add(seq, ancestorDominated)
}

func (n *node) newChild(seq *sequence.Sequence, id string, ancestorDominated bool) (*node, error) {
	child := &node{
		depth:    n.depth + 1,
		prefix:   seq.Subsequence(0, n.depth+1),
		children: map[string]*node{},
		seqs:     map[*sequence.Sequence]struct{}{},
		cache:    n.cache,
		pruning:  n.pruning,
	}
	if n.pruning {
		if ancestorDominated {
			child.setDominated()
			n.children[id] = child
			return child, nil
		}
		// the hierarchy starts paying off at the second child
		if len(n.children) == 1 {
			if err := n.restartHierarchy(); err != nil {
				return nil, err
			}
		}
		n.children[id] = child
		if n.hier != nil {
			dominated, err := n.hier.add(child.record())
			if err != nil {
				return nil, err
			}
			if dominated {
				child.setDominated()
			} else if err := n.updateAllChildren(); err != nil {
				return nil, err
			}
		}
		return child, nil
	}
	var err error
	child.hier, err = n.cache.hierarchyFor(child.prefixHistory())
	if err != nil {
		return nil, err
	}
	n.children[id] = child
	if _, err := n.hier.add(child.record()); err != nil {
		return nil, err
	}
	return child, nil
}

func (n *node) deleteSeq(seq *sequence.Sequence) {
	delete(n.seqs, seq)
}

func (n *node) delChild(child *node) error {
	delete(n.children, child.record().Signature())
	if n.pruning {
		if n.hier == nil {
			return nil
		}
		if len(n.children) <= 1 {
			n.hier = nil
			return nil
		}
		return n.hier.delete(child.record())
	}
	return n.hier.delete(child.record())
}

// restartHierarchy rebuilds a pruning node's hierarchy from its current
// children
func (n *node) restartHierarchy() error {
	hier, err := n.cache.hierarchyFor(n.prefixHistory())
	if err != nil {
		return err
	}
	n.hier = hier
	for _, child := range n.children {
		if _, err := hier.add(child.record()); err != nil {
			return err
		}
	}
	return nil
}

// updateAllChildren refreshes every child's pruning flag from the node's
// hierarchy. Without a hierarchy all children count as dominant.
func (n *node) updateAllChildren() error {
	if n.hier == nil {
		for _, child := range n.children {
			if err := child.setDominant(); err != nil {
				return err
			}
		}
		return nil
	}
	dominant, dominated := n.hier.dominantDominated()
	for _, sig := range dominated {
		n.children[sig].setDominated()
	}
	for _, sig := range dominant {
		if err := n.children[sig].setDominant(); err != nil {
			return err
		}
	}
	return nil
}

// setDominated marks a pruning node dominated; its own hierarchy becomes
// irrelevant until the node turns dominant again
func (n *node) setDominated() {
	n.dominated = true
	n.hier = nil
}

// setDominant clears the pruning flag. A formerly dominated node rebuilds
// its hierarchy and refreshes its subtree, which was skipped while the
// whole branch counted as dominated.
func (n *node) setDominant() error {
	if n.dominated {
		if len(n.children) >= 2 {
			if err := n.restartHierarchy(); err != nil {
				return err
			}
		}
		if err := n.updateAllChildren(); err != nil {
			return err
		}
	}
	n.dominated = false
	return nil
}

// dominantChildren lists the children no sibling dominates, in a stable
// order
func (n *node) dominantChildren() []*node {
	var ids []string
	if n.pruning {
		for id, child := range n.children {
			if !child.dominated {
				ids = append(ids, id)
			}
		}
	} else {
		ids = n.hier.best()
	}
	sort.Strings(ids)
	out := make([]*node, len(ids))
	for i, id := range ids {
		out[i] = n.children[id]
	}
	return out
}

// clean removes empty descendants bottom-up. For pruning nodes, losing a
// dominant child may promote its siblings.
func (n *node) clean() error {
	dominantRemoved := false
	var dead []*node
	for _, child := range n.children {
		if err := child.clean(); err != nil {
			return err
		}
		if child.empty() {
			dead = append(dead, child)
			if n.pruning && !child.dominated {
				dominantRemoved = true
			}
		}
	}
	for _, child := range dead {
		if err := n.delChild(child); err != nil {
			return err
		}
	}
	if n.pruning && !n.dominated && dominantRemoved {
		return n.updateAllChildren()
	}
	return nil
}

// ownSequences lists the node's stored sequences in a stable order
func (n *node) ownSequences() []*sequence.Sequence {
	out := make([]*sequence.Sequence, 0, len(n.seqs))
	for seq := range n.seqs {
		out = append(out, seq)
	}
	sequence.SortBySignature(out)
	return out
}

// bestRecursive collects the undominated sequences of the subtree
func (n *node) bestRecursive() []*sequence.Sequence {
	out := n.ownSequences()
	for _, child := range n.dominantChildren() {
		out = append(out, child.bestRecursive()...)
	}
	return out
}

// removeDominant extracts one dominance rank: the node's own sequences
// plus the dominant descendants, destructively. Emptied children are
// unlinked so the next call yields the following rank.
func (n *node) removeDominant() ([]*sequence.Sequence, error) {
	out := n.ownSequences()
	for seq := range n.seqs {
		delete(n.seqs, seq)
	}
	removedDominant := false
	for _, child := range n.dominantChildren() {
		got, err := child.removeDominant()
		if err != nil {
			return nil, err
		}
		out = append(out, got...)
		if child.empty() {
			if err := n.delChild(child); err != nil {
				return nil, err
			}
			removedDominant = true
		}
	}
	if n.pruning && !n.dominated && removedDominant {
		if err := n.updateAllChildren(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// topk peels ranks off the subtree until k sequences are covered. The
// final rank is included whole.
func (n *node) topk(k int) ([]*sequence.Sequence, error) {
	var out []*sequence.Sequence
	for len(out) < k && (len(n.children) > 0 || len(n.seqs) > 0) {
		layer, err := n.removeDominant()
		if err != nil {
			return nil, err
		}
		if len(layer) == 0 {
			break
		}
		out = append(out, layer...)
	}
	return out, nil
}

// copy clones the subtree. Sequences and prefixes are shared, structure
// and hierarchies are not, so a destructive top-k leaves the original
// intact.
func (n *node) copy() *node {
	c := &node{
		depth:     n.depth,
		prefix:    n.prefix,
		children:  make(map[string]*node, len(n.children)),
		seqs:      make(map[*sequence.Sequence]struct{}, len(n.seqs)),
		cache:     n.cache,
		pruning:   n.pruning,
		dominated: n.dominated,
	}
	for seq := range n.seqs {
		c.seqs[seq] = struct{}{}
	}
	for id, child := range n.children {
		c.children[id] = child.copy()
	}
	if n.hier != nil {
		c.hier = n.hier.copy()
	}
	return c
}
