package dominance

import (
	"github.com/streampref/streampref/preference"
	"github.com/streampref/streampref/tuple"
)

// incGraph keeps the dominance graph across ticks with both edge
// directions, so deletes can promote the freed successors without
// scanning the whole set. TOP-k peels the graph layer by layer over a
// scratch copy of the dominator lists.
type incGraph struct {
	arena      *arena
	theory     *preference.Theory
	ancestors  map[int][]int
	successors map[int][]int
}

func (s *incGraph) Algorithm() Algorithm { return IncGraph }

func (s *incGraph) Update(delta tuple.Delta) error {
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
		if err := s.link(id, t); err != nil {
			return err
		}
	}
	return nil
}

func (s *incGraph) addEdge(fromID, toID int) {
	s.ancestors[toID] = append(s.ancestors[toID], fromID)
	s.successors[fromID] = append(s.successors[fromID], toID)
}

// link compares a fresh tuple against every live tuple and wires the
// dominance edges in both directions
func (s *incGraph) link(newID int, rec tuple.Tuple) error {
	dominated := false
	for _, otherID := range s.arena.ids() {
		if otherID == newID {
			continue
		}
		other := s.arena.byID[otherID]
		wins, err := s.theory.Dominates(rec, other)
		if err != nil {
			return err
		}
		if wins {
			s.addEdge(newID, otherID)
			delete(s.arena.best, otherID)
			continue
		}
		wins, err = s.theory.Dominates(other, rec)
		if err != nil {
			return err
		}
		if wins {
			dominated = true
			s.addEdge(otherID, newID)
		}
	}
	if !dominated {
		s.arena.best[newID] = struct{}{}
	}
	return nil
}

// clean detaches a dead id from both adjacency directions and promotes
// successors left without dominators
func (s *incGraph) clean(delID int) {
	if ancs, ok := s.ancestors[delID]; ok {
		delete(s.ancestors, delID)
		for _, otherID := range ancs {
			s.successors[otherID] = removeID(s.successors[otherID], delID)
		}
	}
	if succs, ok := s.successors[delID]; ok {
		delete(s.successors, delID)
		for _, otherID := range succs {
			s.ancestors[otherID] = removeID(s.ancestors[otherID], delID)
			if len(s.ancestors[otherID]) == 0 {
				s.arena.best[otherID] = struct{}{}
			}
		}
	}
}

func (s *incGraph) Best() ([]tuple.Tuple, error) {
	return s.arena.bestRecords(), nil
}

func (s *incGraph) TopK(k int) ([]tuple.Tuple, error) {
	scratch := make(map[int][]int, len(s.ancestors))
	for id, ancs := range s.ancestors {
		scratch[id] = append([]int(nil), ancs...)
	}
	current := make([]int, 0, len(s.arena.best))
	for id := range s.arena.best {
		current = append(current, id)
	}
	var result []tuple.Tuple
	emitted := 0
	for len(result) < k && emitted < len(s.arena.byID) && len(current) > 0 {
		var next []int
		for _, id := range current {
			emitted++
			for _, succID := range s.successors[id] {
				scratch[succID] = removeID(scratch[succID], id)
				if len(scratch[succID]) == 0 {
					next = append(next, succID)
				}
			}
		}
		result = append(result, s.arena.expand(current)...)
		current = next
	}
	return result, nil
}

// incGraphDirect keeps dominator lists only. Updates are cheaper than
// incGraph because no successor index is maintained; deletes and TOP-k
// layering recover the forward direction by scanning the dominator lists
// on demand.
type incGraphDirect struct {
	arena     *arena
	theory    *preference.Theory
	ancestors map[int][]int
}

func (s *incGraphDirect) Algorithm() Algorithm { return IncGraphNoTransitive }

func (s *incGraphDirect) Update(delta tuple.Delta) error {
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
		if err := s.link(id, t); err != nil {
			return err
		}
	}
	return nil
}

func (s *incGraphDirect) link(newID int, rec tuple.Tuple) error {
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
			delete(s.arena.best, otherID)
		}
	}
	if len(s.ancestors[newID]) == 0 {
		s.arena.best[newID] = struct{}{}
	}
	return nil
}

func (s *incGraphDirect) clean(delID int) {
	delete(s.ancestors, delID)
	for otherID, ancs := range s.ancestors {
		trimmed := removeID(ancs, delID)
		if len(trimmed) != len(ancs) {
			s.ancestors[otherID] = trimmed
			if len(trimmed) == 0 {
				s.arena.best[otherID] = struct{}{}
			}
		}
	}
}

func (s *incGraphDirect) Best() ([]tuple.Tuple, error) {
	return s.arena.bestRecords(), nil
}

func (s *incGraphDirect) TopK(k int) ([]tuple.Tuple, error) {
	scratch := make(map[int]map[int]struct{}, len(s.arena.byID))
	for _, id := range s.arena.ids() {
		pending := map[int]struct{}{}
		for _, ancID := range s.ancestors[id] {
			pending[ancID] = struct{}{}
		}
		scratch[id] = pending
	}
	var result []tuple.Tuple
	for len(result) < k && len(scratch) > 0 {
		var layer []int
		for id, pending := range scratch {
			if len(pending) == 0 {
				layer = append(layer, id)
			}
		}
		if len(layer) == 0 {
			break
		}
		for _, id := range layer {
			delete(scratch, id)
		}
		for _, id := range layer {
			for _, pending := range scratch {
				delete(pending, id)
			}
		}
		result = append(result, s.arena.expand(layer)...)
	}
	return result, nil
}
