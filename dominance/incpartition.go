package dominance

import (
	"strconv"

	"github.com/streampref/streampref/preference"
	"github.com/streampref/streampref/tuple"
)

// incPartition patches per-comparison partition counters instead of
// rebuilding partitions each tick. For every comparison, tuples agreeing
// on the attributes outside its indifferent set share a partition id; a
// counter tracks the preferred members per partition, a set tracks the
// non-preferred ones and a per-tuple dominator count tracks how many
// partitions currently dominate it.
type incPartition struct {
	arena       *arena
	comparisons []preference.Comparison
	prefCount   map[string]int
	notpref     map[string]map[int]struct{}
	pdom        map[int]int
}

func (s *incPartition) Algorithm() Algorithm { return IncPartition }

// partitionID keys a tuple's partition under one comparison
func (s *incPartition) partitionID(t tuple.Tuple, compIdx int) string {
	comp := s.comparisons[compIdx]
	return strconv.Itoa(compIdx+1) + "|" + t.Without(comp.Indifferent).Signature()
}

func (s *incPartition) Update(delta tuple.Delta) error {
	if err := s.arena.checkDeletes(delta.Deletes); err != nil {
		return err
	}
	for _, t := range delta.Deletes {
		id, gone, err := s.arena.remove(t)
		if err != nil {
			return err
		}
		if gone {
			if err := s.detach(id, t); err != nil {
				return err
			}
		}
	}
	for _, t := range delta.Inserts {
		id, fresh := s.arena.add(t)
		if !fresh {
			continue
		}
		if err := s.attach(id, t); err != nil {
			return err
		}
	}
	return nil
}

// attach registers a fresh tuple in every comparison's partitions and
// adjusts dominator counts on both sides
func (s *incPartition) attach(id int, rec tuple.Tuple) error {
	demoted := map[int]struct{}{}
	dominated := false
	for i, comp := range s.comparisons {
		pid := s.partitionID(rec, i)
		isBest, err := comp.Best.SatisfiedBy(rec)
		if err != nil {
			return err
		}
		if isBest {
			s.prefCount[pid]++
			if s.prefCount[pid] == 1 {
				for otherID := range s.notpref[pid] {
					s.pdom[otherID]++
					demoted[otherID] = struct{}{}
				}
			}
			continue
		}
		isWorst, err := comp.Worst.SatisfiedBy(rec)
		if err != nil {
			return err
		}
		if isWorst {
			if s.notpref[pid] == nil {
				s.notpref[pid] = map[int]struct{}{}
			}
			s.notpref[pid][id] = struct{}{}
			if s.prefCount[pid] > 0 {
				s.pdom[id]++
				dominated = true
			}
		}
	}
	for otherID := range demoted {
		delete(s.arena.best, otherID)
	}
	if !dominated {
		s.arena.best[id] = struct{}{}
	}
	return nil
}

// detach unregisters a dead tuple. When the last preferred member of a
// partition goes away its non-preferred members each lose one dominating
// partition, and those left with none are promoted.
func (s *incPartition) detach(id int, rec tuple.Tuple) error {
	for i, comp := range s.comparisons {
		pid := s.partitionID(rec, i)
		isBest, err := comp.Best.SatisfiedBy(rec)
		if err != nil {
			return err
		}
		if isBest {
			s.prefCount[pid]--
			if s.prefCount[pid] <= 0 {
				delete(s.prefCount, pid)
				for otherID := range s.notpref[pid] {
					s.pdom[otherID]--
					if s.pdom[otherID] <= 0 {
						delete(s.pdom, otherID)
						s.arena.best[otherID] = struct{}{}
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
			delete(s.notpref[pid], id)
			if len(s.notpref[pid]) == 0 {
				delete(s.notpref, pid)
			}
		}
	}
	delete(s.pdom, id)
	return nil
}

func (s *incPartition) Best() ([]tuple.Tuple, error) {
	return s.arena.bestRecords(), nil
}

// TopK peels ranks off scratch copies of the live set and the preferred
// counters, so the maintained state survives the query untouched
func (s *incPartition) TopK(k int) ([]tuple.Tuple, error) {
	remaining := map[int]struct{}{}
	for id := range s.arena.byID {
		remaining[id] = struct{}{}
	}
	prefLeft := make(map[string]int, len(s.prefCount))
	for pid, n := range s.prefCount {
		prefLeft[pid] = n
	}
	first := make([]int, 0, len(s.arena.best))
	for id := range s.arena.best {
		first = append(first, id)
	}
	result := s.arena.expand(first)
	if err := s.retire(first, remaining, prefLeft); err != nil {
		return nil, err
	}
	for len(result) < k && len(remaining) > 0 {
		layer, err := s.nextLayer(remaining, prefLeft)
		if err != nil {
			return nil, err
		}
		if len(layer) == 0 {
			break
		}
		result = append(result, s.arena.expand(layer)...)
		if err := s.retire(layer, remaining, prefLeft); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// nextLayer collects the remaining tuples no surviving partition
// dominates
func (s *incPartition) nextLayer(remaining map[int]struct{}, prefLeft map[string]int) ([]int, error) {
	var layer []int
	for id := range remaining {
		rec := s.arena.byID[id]
		dominated := false
		for i, comp := range s.comparisons {
			isWorst, err := comp.Worst.SatisfiedBy(rec)
			if err != nil {
				return nil, err
			}
			if isWorst && prefLeft[s.partitionID(rec, i)] > 0 {
				dominated = true
				break
			}
		}
		if !dominated {
			layer = append(layer, id)
		}
	}
	return layer, nil
}

// retire removes an emitted layer from the scratch set and releases its
// preferred partition counts
func (s *incPartition) retire(layer []int, remaining map[int]struct{}, prefLeft map[string]int) error {
	for _, id := range layer {
		rec := s.arena.byID[id]
		for i, comp := range s.comparisons {
			isBest, err := comp.Best.SatisfiedBy(rec)
			if err != nil {
				return err
			}
			if isBest {
				pid := s.partitionID(rec, i)
				prefLeft[pid]--
				if prefLeft[pid] <= 0 {
					delete(prefLeft, pid)
				}
			}
		}
		delete(remaining, id)
	}
	return nil
}
