// Package sequence materializes per-entity tuple histories: windowed
// sequences grouped by identifier attributes, and the subsequence
// extraction feeding the sequence preference evaluators.
package sequence

import (
	"sort"
	"strings"

	"github.com/streampref/streampref/tuple"
)

// span is the window validity of one position
type span struct {
	start int64
	end   int64
}

// Sequence is the ordered history of one entity: one tuple per position,
// oldest first, each with its original timestamp and window validity.
// Insert and delete counters accumulate between extractions so the
// incremental consumers can patch instead of rebuild.
type Sequence struct {
	entity     tuple.Tuple
	positions  []tuple.Tuple
	timestamps []int64
	spans      []span

	inserted int
	deleted  int
}

// NewSequence creates an empty sequence for an entity
func NewSequence(entity tuple.Tuple) *Sequence {
	return &Sequence{entity: entity}
}

// Entity returns the identifier tuple this sequence belongs to
func (s *Sequence) Entity() tuple.Tuple { return s.entity }

// Len returns the number of positions
func (s *Sequence) Len() int { return len(s.positions) }

// At returns the tuple at position i
func (s *Sequence) At(i int) tuple.Tuple { return s.positions[i] }

// Timestamp returns the original timestamp of position i
func (s *Sequence) Timestamp(i int) int64 { return s.timestamps[i] }

// Last returns the tuple at the final position
func (s *Sequence) Last() tuple.Tuple { return s.positions[len(s.positions)-1] }

// Append adds a tuple at the end with its timestamp and window validity
func (s *Sequence) Append(t tuple.Tuple, timestamp, start, end int64) {
	s.positions = append(s.positions, t)
	s.timestamps = append(s.timestamps, timestamp)
	s.spans = append(s.spans, span{start, end})
	s.inserted++
}

// AppendAll adds every position of other at the end
func (s *Sequence) AppendAll(other *Sequence) {
	s.positions = append(s.positions, other.positions...)
	s.timestamps = append(s.timestamps, other.timestamps...)
	s.spans = append(s.spans, other.spans...)
	s.inserted += other.Len()
}

// DeleteFirst removes n positions from the front
func (s *Sequence) DeleteFirst(n int) {
	if n > len(s.positions) {
		n = len(s.positions)
	}
	s.positions = s.positions[n:]
	s.timestamps = s.timestamps[n:]
	s.spans = s.spans[n:]
	s.deleted += n
}

// DeleteExpired removes leading positions whose window validity does not
// cover the timestamp
func (s *Sequence) DeleteExpired(timestamp int64) {
	n := 0
	for n < len(s.spans) {
		sp := s.spans[n]
		if sp.start <= timestamp && timestamp <= sp.end {
			break
		}
		n++
	}
	if n > 0 {
		s.DeleteFirst(n)
	}
}

// TakeInserted returns the insert counter and resets it
func (s *Sequence) TakeInserted() int {
	n := s.inserted
	s.inserted = 0
	return n
}

// TakeDeleted returns the delete counter and resets it
func (s *Sequence) TakeDeleted() int {
	n := s.deleted
	s.deleted = 0
	return n
}

// Copy returns an independent sequence with zeroed counters
func (s *Sequence) Copy() *Sequence {
	out := NewSequence(s.entity)
	out.positions = append([]tuple.Tuple(nil), s.positions...)
	out.timestamps = append([]int64(nil), s.timestamps...)
	out.spans = append([]span(nil), s.spans...)
	return out
}

// Subsequence returns a copy of positions [start, end)
func (s *Sequence) Subsequence(start, end int) *Sequence {
	out := NewSequence(s.entity)
	out.positions = append([]tuple.Tuple(nil), s.positions[start:end]...)
	out.timestamps = append([]int64(nil), s.timestamps[start:end]...)
	out.spans = append([]span(nil), s.spans[start:end]...)
	return out
}

// ConsecutiveRuns splits the sequence at every timestamp gap, returning
// the maximal runs of consecutive-timestamp positions
func (s *Sequence) ConsecutiveRuns() []*Sequence {
	if s.Len() == 0 {
		return nil
	}
	var runs []*Sequence
	start := 0
	for end := 1; end <= s.Len(); end++ {
		if end == s.Len() || s.timestamps[end] > s.timestamps[end-1]+1 {
			runs = append(runs, s.Subsequence(start, end))
			start = end
		}
	}
	return runs
}

// EndPositionSubsequences returns every suffix of the sequence, longest
// first
func (s *Sequence) EndPositionSubsequences() []*Sequence {
	out := make([]*Sequence, 0, s.Len())
	for pos := 0; pos < s.Len(); pos++ {
		out = append(out, s.Subsequence(pos, s.Len()))
	}
	return out
}

// Equal reports position-wise equality, ignoring timestamps
func (s *Sequence) Equal(other *Sequence) bool {
	if s.Len() != other.Len() {
		return false
	}
	for i := range s.positions {
		if !s.positions[i].Equal(other.positions[i]) {
			return false
		}
	}
	return true
}

// Signature is a canonical textual identity over the entity and the
// ordered position signatures
func (s *Sequence) Signature() string {
	parts := make([]string, len(s.positions))
	for i, p := range s.positions {
		parts[i] = p.Signature()
	}
	return s.entity.Signature() + "<" + strings.Join(parts, "; ") + ">"
}

// PositionAttribute names the 1-based position column added to flattened
// sequence records.
const PositionAttribute = "_pos"

// Records flattens the sequence into one tuple per position, merging the
// entity attributes back in and adding the position attribute
func (s *Sequence) Records() []tuple.Tuple {
	out := make([]tuple.Tuple, 0, s.Len())
	for pos, rec := range s.positions {
		merged := rec
		for _, attr := range s.entity.Attributes() {
			v, _ := s.entity.Get(attr)
			merged = merged.With(attr, v)
		}
		merged = merged.With(PositionAttribute, tuple.Int(int64(pos+1)))
		out = append(out, merged.WithTimestamp(s.timestamps[pos]))
	}
	return out
}

// SortBySignature orders sequences deterministically, longest first with
// signature as tie-break
func SortBySignature(seqs []*Sequence) {
	sort.Slice(seqs, func(i, j int) bool {
		if seqs[i].Len() != seqs[j].Len() {
			return seqs[i].Len() > seqs[j].Len()
		}
		return seqs[i].Signature() < seqs[j].Signature()
	})
}
