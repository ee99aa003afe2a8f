package sequence

import (
	"sort"

	"github.com/streampref/streampref/tuple"
)

// Unbounded disables window expiry for a store.
const Unbounded = int64(-1)

// Store groups a stream into per-entity sequences. The identifier
// attributes partition tuples into entities; all remaining attributes form
// the position record. A bounded store expires positions that fall out of
// the RANGE/SLIDE window as the timestamp advances.
type Store struct {
	identifier    []string
	identifierSet map[string]struct{}
	bound         int64
	slide         int64

	sequences map[string]*Sequence
}

// NewStore creates a store partitioned by the identifier attributes.
// bound is the window RANGE in ticks, or Unbounded; slide defaults to 1.
func NewStore(identifier []string, bound, slide int64) *Store {
	if slide <= 0 {
		slide = 1
	}
	set := make(map[string]struct{}, len(identifier))
	for _, attr := range identifier {
		set[attr] = struct{}{}
	}
	return &Store{
		identifier:    append([]string(nil), identifier...),
		identifierSet: set,
		bound:         bound,
		slide:         slide,
		sequences:     map[string]*Sequence{},
	}
}

// windowSpan computes the validity limits of positions arriving at the
// timestamp
func (st *Store) windowSpan(timestamp int64) (int64, int64) {
	start := (timestamp / st.slide) * st.slide
	return start, start + st.bound - 1
}

// Advance moves the store to the timestamp: expired positions are dropped
// and the tick's inserted tuples are appended to their entity's sequence.
// When several tuples share an entity within one tick, the last one wins
// the position.
func (st *Store) Advance(timestamp int64, inserts []tuple.Tuple) {
	if st.bound == Unbounded {
		st.appendAll(inserts, timestamp, -1, -1)
		return
	}
	for key, seq := range st.sequences {
		seq.DeleteExpired(timestamp)
		if seq.Len() == 0 {
			delete(st.sequences, key)
		}
	}
	start, end := st.windowSpan(timestamp)
	if start <= timestamp && timestamp <= end {
		st.appendAll(inserts, timestamp, start, end)
	}
}

func (st *Store) appendAll(inserts []tuple.Tuple, timestamp, start, end int64) {
	grouped := map[string]tuple.Tuple{}
	order := []string{}
	for _, t := range inserts {
		entity := t.Project(st.identifier)
		key := entity.Signature()
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = t
	}
	for _, key := range order {
		t := grouped[key]
		entity := t.Project(st.identifier)
		record := t.Without(st.identifierSet)
		seq, ok := st.sequences[key]
		if !ok {
			seq = NewSequence(entity)
			st.sequences[key] = seq
		}
		seq.Append(record, timestamp, start, end)
	}
}

// Sequences returns the live sequences in deterministic entity order
func (st *Store) Sequences() []*Sequence {
	keys := make([]string, 0, len(st.sequences))
	for key := range st.sequences {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]*Sequence, 0, len(keys))
	for _, key := range keys {
		out = append(out, st.sequences[key])
	}
	return out
}

// Get returns the sequence for an entity signature, if present
func (st *Store) Get(entityKey string) (*Sequence, bool) {
	seq, ok := st.sequences[entityKey]
	return seq, ok
}

// Len returns the number of live entities
func (st *Store) Len() int { return len(st.sequences) }
