package dominance

import (
	"github.com/streampref/streampref/preference"
	"github.com/streampref/streampref/tuple"
)

// depthSearch rebuilds the result from the live set every tick with
// pairwise dominance tests.
type depthSearch struct {
	arena  *arena
	theory *preference.Theory
}

func (s *depthSearch) Algorithm() Algorithm { return DepthSearch }

func (s *depthSearch) Update(delta tuple.Delta) error {
	if err := s.arena.checkDeletes(delta.Deletes); err != nil {
		return err
	}
	for _, t := range delta.Deletes {
		if _, _, err := s.arena.remove(t); err != nil {
			return err
		}
	}
	for _, t := range delta.Inserts {
		s.arena.add(t)
	}
	return nil
}

// split separates ids into the undominated ones and the rest
func (s *depthSearch) split(ids []int) (dominant, dominated []int, err error) {
	for _, id := range ids {
		rec := s.arena.byID[id]
		isDominated := false
		for _, other := range ids {
			if other == id {
				continue
			}
			wins, err := s.theory.Dominates(s.arena.byID[other], rec)
			if err != nil {
				return nil, nil, err
			}
			if wins {
				isDominated = true
				break
			}
		}
		if isDominated {
			dominated = append(dominated, id)
		} else {
			dominant = append(dominant, id)
		}
	}
	return dominant, dominated, nil
}

func (s *depthSearch) Best() ([]tuple.Tuple, error) {
	dominant, _, err := s.split(s.arena.ids())
	if err != nil {
		return nil, err
	}
	return s.arena.expand(dominant), nil
}

func (s *depthSearch) TopK(k int) ([]tuple.Tuple, error) {
	remaining := s.arena.ids()
	var result []tuple.Tuple
	for len(result) < k && len(remaining) > 0 {
		dominant, dominated, err := s.split(remaining)
		if err != nil {
			return nil, err
		}
		result = append(result, s.arena.expand(dominant)...)
		remaining = dominated
	}
	return result, nil
}
