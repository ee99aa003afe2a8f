package tuple

import (
	"sort"
	"strings"
)

// Tuple is an immutable mapping from attribute name to value plus the
// logical timestamp of the tick that produced it. Operators never mutate a
// tuple after creation; updates are expressed as delete+insert deltas.
type Tuple struct {
	attrs map[string]Value
	ts    int64
}

// New creates a tuple from an attribute map. The map is copied.
func New(attrs map[string]Value, ts int64) Tuple {
	cp := make(map[string]Value, len(attrs))
	for k, v := range attrs {
		cp[k] = v
	}
	return Tuple{attrs: cp, ts: ts}
}

// Timestamp returns the logical timestamp of the tuple
func (t Tuple) Timestamp() int64 {
	return t.ts
}

// Len returns the number of attributes
func (t Tuple) Len() int {
	return len(t.attrs)
}

// Get returns the value for an attribute
func (t Tuple) Get(attr string) (Value, bool) {
	v, ok := t.attrs[attr]
	return v, ok
}

// Attributes returns the attribute names in sorted order
func (t Tuple) Attributes() []string {
	names := make([]string, 0, len(t.attrs))
	for name := range t.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Project returns a new tuple restricted to the given attributes.
// Missing attributes are skipped.
func (t Tuple) Project(attrs []string) Tuple {
	cp := make(map[string]Value, len(attrs))
	for _, name := range attrs {
		if v, ok := t.attrs[name]; ok {
			cp[name] = v
		}
	}
	return Tuple{attrs: cp, ts: t.ts}
}

// Without returns a new tuple with the given attributes removed
func (t Tuple) Without(attrs map[string]struct{}) Tuple {
	cp := make(map[string]Value, len(t.attrs))
	for name, v := range t.attrs {
		if _, drop := attrs[name]; !drop {
			cp[name] = v
		}
	}
	return Tuple{attrs: cp, ts: t.ts}
}

// With returns a new tuple with one attribute replaced or added
func (t Tuple) With(attr string, v Value) Tuple {
	cp := make(map[string]Value, len(t.attrs)+1)
	for name, old := range t.attrs {
		cp[name] = old
	}
	cp[attr] = v
	return Tuple{attrs: cp, ts: t.ts}
}

// WithTimestamp returns the same tuple stamped with a new timestamp
func (t Tuple) WithTimestamp(ts int64) Tuple {
	return Tuple{attrs: t.attrs, ts: ts}
}

// Equal reports attribute-wise equality. Timestamps are not part of tuple
// identity: a re-inserted tuple at a later tick counts as the same tuple.
func (t Tuple) Equal(o Tuple) bool {
	if len(t.attrs) != len(o.attrs) {
		return false
	}
	for name, v := range t.attrs {
		ov, ok := o.attrs[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Signature returns a canonical string identity for the tuple, stable
// across attribute iteration order. Used as the key in dominance arenas
// and sequence-tree nodes.
func (t Tuple) Signature() string {
	names := t.Attributes()
	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(t.attrs[name].Format())
	}
	return sb.String()
}

// String renders the tuple for logs and test failure messages
func (t Tuple) String() string {
	return "{" + t.Signature() + "}"
}

// Delta is the pair of inserted and deleted tuples valid at one timestamp
// tick. Deleting a tuple not present in the active set is an error
// surfaced by the consuming strategy, not by the delta itself.
type Delta struct {
	Inserts []Tuple
	Deletes []Tuple
}

// Empty reports whether the delta carries no changes
func (d Delta) Empty() bool {
	return len(d.Inserts) == 0 && len(d.Deletes) == 0
}
