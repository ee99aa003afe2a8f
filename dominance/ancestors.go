package dominance

import (
	"sort"

	"github.com/streampref/streampref/preference"
	"github.com/streampref/streampref/tuple"
)

// incAncestors keeps, for every live tuple, the list of tuples dominating
// it and the tuple's dominance level (0 for undominated, otherwise one
// more than its deepest dominator). A delta only invalidates levels of
// tuples whose dominator lists it touched; those are settled again after
// the delta is applied.
type incAncestors struct {
	arena     *arena
	theory    *preference.Theory
	ancestors map[int][]int
	level     map[int]int
	pending   []int
}

func (s *incAncestors) Algorithm() Algorithm { return IncAncestors }

func (s *incAncestors) Update(delta tuple.Delta) error {
	if err := s.arena.checkDeletes(delta.Deletes); err != nil {
		return err
	}
	for _, t := range delta.Deletes {
		id, gone, err := s.arena.remove(t)
		if err != nil {
			return err
		}
		if gone {
			s.clean(id)
		}
	}
	for _, t := range delta.Inserts {
		id, fresh := s.arena.add(t)
		if !fresh {
			continue
		}
		s.pending = append(s.pending, id)
		s.level[id] = -1
		s.ancestors[id] = nil
		if err := s.linkAncestors(id, t); err != nil {
			return err
		}
	}
	s.settleLevels()
	return nil
}

// clean removes a dead id and queues every tuple that loses it as a
// dominator for level settlement. Tuples at or below the dead level
// cannot have it as an ancestor.
func (s *incAncestors) clean(delID int) {
	delLevel := s.level[delID]
	for recID, ancs := range s.ancestors {
		if s.level[recID] != -1 && s.level[recID] <= delLevel {
			continue
		}
		trimmed := removeID(ancs, delID)
		if len(trimmed) != len(ancs) {
			s.ancestors[recID] = trimmed
			s.pending = append(s.pending, recID)
		}
	}
	delete(s.level, delID)
	delete(s.ancestors, delID)
}

// linkAncestors compares a fresh tuple against every live tuple, filling
// its dominator list and invalidating levels of the tuples it dominates
func (s *incAncestors) linkAncestors(newID int, rec tuple.Tuple) error {
	for _, otherID := range s.arena.ids() {
		if otherID == newID {
			continue
		}
		other := s.arena.byID[otherID]
		wins, err := s.theory.Dominates(other, rec)
		if err != nil {
			return err
		}
		if wins {
			s.ancestors[newID] = append(s.ancestors[newID], otherID)
			continue
		}
		wins, err = s.theory.Dominates(rec, other)
		if err != nil {
			return err
		}
		if wins {
			s.ancestors[otherID] = append(s.ancestors[otherID], newID)
			s.pending = append(s.pending, otherID)
			if s.level[otherID] == 0 {
				delete(s.arena.best, otherID)
			}
			s.level[otherID] = -1
		}
	}
	return nil
}

// settleLevels processes the pending queue until every queued tuple has a
// settled level. A tuple waits while any of its dominators is unsettled;
// acyclicity of the dominance relation guarantees progress.
func (s *incAncestors) settleLevels() {
	for len(s.pending) > 0 {
		recID := s.pending[0]
		s.pending = s.pending[1:]
		ancs, alive := s.ancestors[recID]
		if !alive {
			continue
		}
		if len(ancs) == 0 {
			s.level[recID] = 0
			s.arena.best[recID] = struct{}{}
			continue
		}
		ancLevel := -1
		for _, ancID := range ancs {
			if s.level[ancID] == -1 {
				ancLevel = -1
				break
			}
			if s.level[ancID] > ancLevel {
				ancLevel = s.level[ancID]
			}
		}
		if ancLevel == -1 {
			s.pending = append(s.pending, recID)
			continue
		}
		s.level[recID] = ancLevel + 1
	}
}

func (s *incAncestors) Best() ([]tuple.Tuple, error) {
	return s.arena.bestRecords(), nil
}

func (s *incAncestors) TopK(k int) ([]tuple.Tuple, error) {
	byLevel := map[int][]int{}
	var levels []int
	for id, lvl := range s.level {
		if _, ok := byLevel[lvl]; !ok {
			levels = append(levels, lvl)
		}
		byLevel[lvl] = append(byLevel[lvl], id)
	}
	sort.Ints(levels)
	var result []tuple.Tuple
	for _, lvl := range levels {
		if len(result) >= k {
			break
		}
		result = append(result, s.arena.expand(byLevel[lvl])...)
	}
	return result, nil
}
