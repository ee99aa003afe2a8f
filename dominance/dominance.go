// Package dominance evaluates BEST and TOP-k queries over an active set
// of tuples maintained through insert and delete deltas. Six strategies
// share one contract and must agree on results tick for tick; they differ
// only in how much work a delta costs. The rebuild strategies recompute
// the result from the live set every tick, the incremental ones patch
// persistent structures keyed on stable tuple ids.
package dominance

import (
	"fmt"

	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/preference"
	"github.com/streampref/streampref/tuple"
)

// Algorithm selects a dominance strategy at query construction time
type Algorithm string

const (
	// DepthSearch compares every candidate pairwise each tick. The
	// correctness baseline for the differential tests.
	DepthSearch Algorithm = "depth_search"
	// Partition groups tuples by their attributes outside each
	// comparison's indifferent set and compares inside partitions.
	Partition Algorithm = "partition"
	// IncAncestors keeps per-tuple dominator lists and levels across
	// ticks, recomputing levels only for tuples a delta touches.
	IncAncestors Algorithm = "inc_ancestors"
	// IncGraph keeps the dominance graph with both edge directions and
	// patches the nodes a delta touches.
	IncGraph Algorithm = "inc_graph"
	// IncGraphNoTransitive keeps dominator lists only; forward
	// reachability is recomputed on demand during TOP-k layering.
	IncGraphNoTransitive Algorithm = "inc_graph_no_transitive"
	// IncPartition patches per-comparison partition counters instead of
	// rebuilding partitions.
	IncPartition Algorithm = "inc_partition"
)

// Algorithms lists every selectable strategy name
var Algorithms = []Algorithm{
	DepthSearch,
	Partition,
	IncAncestors,
	IncGraph,
	IncGraphNoTransitive,
	IncPartition,
}

// Strategy maintains an active tuple set under deltas and answers BEST
// and TOP-k queries over it. A strategy instance is owned by one query
// and is not safe for concurrent use.
type Strategy interface {
	// Algorithm identifies the strategy variant
	Algorithm() Algorithm
	// Update applies one tick's delta. A delete referencing a tuple not
	// in the active set fails with ErrDeleteNonexistent and leaves the
	// set unchanged.
	Update(delta tuple.Delta) error
	// Best returns the undominated tuples of the active set
	Best() ([]tuple.Tuple, error)
	// TopK returns the union of the lowest dominance ranks covering at
	// least k tuples. A rank is never split: the whole final rank is
	// included even when that exceeds k.
	TopK(k int) ([]tuple.Tuple, error)
}

// New builds the strategy named by alg over the given theory
func New(alg Algorithm, th *preference.Theory) (Strategy, error) {
	switch alg {
	case DepthSearch:
		return &depthSearch{arena: newArena(), theory: th}, nil
	case Partition:
		return &partitionStrategy{
			arena:       newArena(),
			comparisons: th.Comparisons(),
		}, nil
	case IncAncestors:
		return &incAncestors{
			arena:     newArena(),
			theory:    th,
			ancestors: map[int][]int{},
			level:     map[int]int{},
		}, nil
	case IncGraph:
		return &incGraph{
			arena:      newArena(),
			theory:     th,
			ancestors:  map[int][]int{},
			successors: map[int][]int{},
		}, nil
	case IncGraphNoTransitive:
		return &incGraphDirect{
			arena:     newArena(),
			theory:    th,
			ancestors: map[int][]int{},
		}, nil
	case IncPartition:
		return &incPartition{
			arena:       newArena(),
			comparisons: th.Comparisons(),
			prefCount:   map[string]int{},
			notpref:     map[string]map[int]struct{}{},
			pdom:        map[int]int{},
		}, nil
	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"dominance", "New", fmt.Sprintf("unknown algorithm %q", alg))
	}
}
