package dominance

import (
	"github.com/streampref/streampref/preference"
	"github.com/streampref/streampref/tuple"
)

// partitionStrategy rebuilds the result every tick, but instead of
// pairwise search it filters the set one comparison at a time: tuples
// agreeing on every attribute outside the comparison's indifferent set
// fall into one partition, and inside a partition the comparison alone
// decides dominance.
type partitionStrategy struct {
	arena       *arena
	comparisons []preference.Comparison
}

func (s *partitionStrategy) Algorithm() Algorithm { return Partition }

func (s *partitionStrategy) Update(delta tuple.Delta) error {
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

// layer applies every comparison in turn, returning the survivors and
// the tuples some comparison dominated
func (s *partitionStrategy) layer(ids []int) (dominant, dominated []int, err error) {
	current := ids
	for _, comp := range s.comparisons {
		kept, dropped, err := s.bestPartition(current, comp)
		if err != nil {
			return nil, nil, err
		}
		current = kept
		dominated = append(dominated, dropped...)
	}
	return current, dominated, nil
}

// bestPartition groups ids by their attributes outside the comparison's
// indifferent set and keeps, per group, the tuples the comparison does
// not dominate
func (s *partitionStrategy) bestPartition(ids []int, comp preference.Comparison) (dominant, dominated []int, err error) {
	groups := map[string][]int{}
	var order []string
	for _, id := range ids {
		key := s.arena.byID[id].Without(comp.Indifferent).Signature()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], id)
	}
	for _, key := range order {
		kept, dropped, err := s.bestDirect(groups[key], comp)
		if err != nil {
			return nil, nil, err
		}
		dominant = append(dominant, kept...)
		dominated = append(dominated, dropped...)
	}
	return dominant, dominated, nil
}

// bestDirect splits one partition by the comparison. When no tuple
// satisfies the preferred formula nothing is dominated, otherwise the
// non-preferred tuples are dropped and the rest survive.
func (s *partitionStrategy) bestDirect(ids []int, comp preference.Comparison) (dominant, dominated []int, err error) {
	var preferred, notPreferred, incomparable []int
	for _, id := range ids {
		rec := s.arena.byID[id]
		isBest, err := comp.Best.SatisfiedBy(rec)
		if err != nil {
			return nil, nil, err
		}
		if isBest {
			preferred = append(preferred, id)
			continue
		}
		isWorst, err := comp.Worst.SatisfiedBy(rec)
		if err != nil {
			return nil, nil, err
		}
		if isWorst {
			notPreferred = append(notPreferred, id)
		} else {
			incomparable = append(incomparable, id)
		}
	}
	if len(preferred) == 0 {
		return ids, nil, nil
	}
	return append(preferred, incomparable...), notPreferred, nil
}

func (s *partitionStrategy) Best() ([]tuple.Tuple, error) {
	dominant, _, err := s.layer(s.arena.ids())
	if err != nil {
		return nil, err
	}
	return s.arena.expand(dominant), nil
}

func (s *partitionStrategy) TopK(k int) ([]tuple.Tuple, error) {
	remaining := s.arena.ids()
	var result []tuple.Tuple
	for len(result) < k && len(remaining) > 0 {
		dominant, dominated, err := s.layer(remaining)
		if err != nil {
			return nil, err
		}
		result = append(result, s.arena.expand(dominant)...)
		remaining = dominated
	}
	return result, nil
}
