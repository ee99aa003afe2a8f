package dominance

import (
	"sort"

	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/tuple"
)

// arena is the shared bookkeeping of every strategy: a stable integer id
// per distinct tuple, bag multiplicities for duplicate arrivals and the
// set of currently undominated ids. Ids are never reused, so incremental
// structures can key their adjacency on them across ticks.
type arena struct {
	nextID int
	byID   map[int]tuple.Tuple
	idOf   map[string]int
	count  map[int]int
	best   map[int]struct{}
}

func newArena() *arena {
	return &arena{
		nextID: 1,
		byID:   map[int]tuple.Tuple{},
		idOf:   map[string]int{},
		count:  map[int]int{},
		best:   map[int]struct{}{},
	}
}

// add registers one occurrence of t and reports whether the tuple is new
// to the active set.
func (a *arena) add(t tuple.Tuple) (int, bool) {
	sig := t.Signature()
	if id, ok := a.idOf[sig]; ok {
		a.count[id]++
		return id, false
	}
	id := a.nextID
	a.nextID++
	a.idOf[sig] = id
	a.byID[id] = t
	a.count[id] = 1
	return id, true
}

// remove drops one occurrence of t and reports whether the last occurrence
// is gone. Removing a tuple that is not in the active set is a fatal
// contract violation.
func (a *arena) remove(t tuple.Tuple) (int, bool, error) {
	sig := t.Signature()
	id, ok := a.idOf[sig]
	if !ok {
		return 0, false, errors.WrapFatal(errors.ErrDeleteNonexistent,
			"dominance", "remove", "deleting "+sig)
	}
	a.count[id]--
	if a.count[id] > 0 {
		return id, false, nil
	}
	delete(a.idOf, sig)
	delete(a.byID, id)
	delete(a.count, id)
	delete(a.best, id)
	return id, true, nil
}

// checkDeletes verifies that the active set holds every occurrence the
// delete list references before any mutation happens, so a bad delta
// leaves the set untouched.
func (a *arena) checkDeletes(deletes []tuple.Tuple) error {
	needed := map[string]int{}
	for _, t := range deletes {
		needed[t.Signature()]++
	}
	for sig, n := range needed {
		id, ok := a.idOf[sig]
		if !ok || a.count[id] < n {
			return errors.WrapFatal(errors.ErrDeleteNonexistent,
				"dominance", "checkDeletes", "deleting "+sig)
		}
	}
	return nil
}

// ids returns all live ids in insertion order
func (a *arena) ids() []int {
	out := make([]int, 0, len(a.byID))
	for id := range a.byID {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// expand materializes ids as tuples, repeating each one per its bag
// multiplicity. Ids are emitted in insertion order.
func (a *arena) expand(ids []int) []tuple.Tuple {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	var out []tuple.Tuple
	for _, id := range sorted {
		t := a.byID[id]
		for i := 0; i < a.count[id]; i++ {
			out = append(out, t)
		}
	}
	return out
}

// bestRecords expands the maintained undominated set
func (a *arena) bestRecords() []tuple.Tuple {
	ids := make([]int, 0, len(a.best))
	for id := range a.best {
		ids = append(ids, id)
	}
	return a.expand(ids)
}

func removeID(list []int, id int) []int {
	for i, v := range list {
		if v == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
