package sequence

import (
	"fmt"

	"github.com/streampref/streampref/errors"
)

// ExtractMode selects which subsequences of a history are candidates.
type ExtractMode string

const (
	// Consecutive extracts maximal runs of consecutive-timestamp positions
	Consecutive ExtractMode = "conseq"
	// EndPosition extracts the suffixes ending at the latest position
	EndPosition ExtractMode = "endseq"
)

// ExtractAlgorithm selects between rebuilding candidates each tick and
// patching the previous tick's candidates with the sequence's counters.
type ExtractAlgorithm string

const (
	ExtractNaive       ExtractAlgorithm = "naive"
	ExtractIncremental ExtractAlgorithm = "incremental"
)

// Extractor produces candidate subsequences per entity and tick. The
// incremental algorithm keeps the previous candidates per source
// sequence and patches them using the source's insert/delete counters.
// Patched candidates accumulate counters of their own, so an incremental
// consumer downstream can patch instead of rebuild too.
type Extractor struct {
	mode ExtractMode
	alg  ExtractAlgorithm

	cache map[*Sequence][]*Sequence
}

// NewExtractor creates an extractor
func NewExtractor(mode ExtractMode, alg ExtractAlgorithm) (*Extractor, error) {
	switch mode {
	case Consecutive, EndPosition:
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: unknown extraction mode %q", errors.ErrInvalidConfig, mode),
			"sequence", "NewExtractor", "validating mode")
	}
	switch alg {
	case ExtractNaive, ExtractIncremental:
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: unknown extraction algorithm %q", errors.ErrInvalidConfig, alg),
			"sequence", "NewExtractor", "validating algorithm")
	}
	return &Extractor{mode: mode, alg: alg, cache: map[*Sequence][]*Sequence{}}, nil
}

// Extract returns the candidate subsequences for the given live source
// sequences
func (e *Extractor) Extract(sources []*Sequence) []*Sequence {
	if e.alg == ExtractNaive {
		var out []*Sequence
		for _, seq := range sources {
			out = append(out, e.fresh(seq)...)
			seq.TakeInserted()
			seq.TakeDeleted()
		}
		return out
	}
	var out []*Sequence
	next := make(map[*Sequence][]*Sequence, len(sources))
	for _, seq := range sources {
		cached, ok := e.cache[seq]
		if !ok {
			cached = e.fresh(seq)
			seq.TakeInserted()
			seq.TakeDeleted()
		} else {
			deleted := seq.TakeDeleted()
			inserted := seq.TakeInserted()
			if e.mode == Consecutive {
				cached = patchConsecutive(cached, seq, deleted, inserted)
			} else {
				cached = patchEndPosition(cached, seq, deleted, inserted)
			}
		}
		next[seq] = cached
		out = append(out, cached...)
	}
	e.cache = next
	return out
}

func (e *Extractor) fresh(seq *Sequence) []*Sequence {
	if e.mode == Consecutive {
		return seq.ConsecutiveRuns()
	}
	return seq.EndPositionSubsequences()
}

// patchConsecutive drops front positions from the oldest runs for every
// deleted source position and extends or appends runs for the inserted
// tail
func patchConsecutive(runs []*Sequence, seq *Sequence, deleted, inserted int) []*Sequence {
	count := 0
	for count < deleted && len(runs) > 0 {
		head := runs[0]
		runs = runs[1:]
		count += head.Len()
		if count > deleted {
			head.DeleteFirst(head.Len() - (count - deleted))
			runs = append([]*Sequence{head}, runs...)
		}
	}
	if inserted == 0 {
		return runs
	}
	tail := seq.Subsequence(seq.Len()-inserted, seq.Len())
	newRuns := tail.ConsecutiveRuns()
	if len(runs) > 0 && len(newRuns) > 0 {
		last := runs[len(runs)-1]
		first := newRuns[0]
		if first.Timestamp(0) == last.Timestamp(last.Len()-1)+1 {
			last.AppendAll(first)
			newRuns = newRuns[1:]
		}
	}
	return append(runs, newRuns...)
}

// patchEndPosition retires suffixes that started before the expired
// prefix, appends the inserted tail to the surviving suffixes and adds
// the suffixes of the inserted tail itself. The candidate list stays
// sorted longest first.
func patchEndPosition(suffixes []*Sequence, seq *Sequence, deleted, inserted int) []*Sequence {
	if deleted > 0 {
		maxLen := seq.Len() - inserted
		for len(suffixes) > 0 && suffixes[0].Len() > maxLen {
			suffixes = suffixes[1:]
		}
	}
	if inserted == 0 {
		return suffixes
	}
	tail := seq.Subsequence(seq.Len()-inserted, seq.Len())
	for _, suffix := range suffixes {
		suffix.AppendAll(tail)
	}
	return append(suffixes, tail.EndPositionSubsequences()...)
}

// FilterLength keeps the sequences whose length is within [min, max].
// min zero means no lower bound; max zero means no upper bound.
func FilterLength(seqs []*Sequence, min, max int) []*Sequence {
	out := make([]*Sequence, 0, len(seqs))
	for _, seq := range seqs {
		if min > 0 && seq.Len() < min {
			continue
		}
		if max > 0 && seq.Len() > max {
			continue
		}
		out = append(out, seq)
	}
	return out
}

// AssertLength verifies that every sequence respects the length bounds.
// A violation means an extraction invariant was broken.
func AssertLength(seqs []*Sequence, min, max int) error {
	for _, seq := range seqs {
		if (min > 0 && seq.Len() < min) || (max > 0 && seq.Len() > max) {
			return errors.WrapFatal(
				fmt.Errorf("%w: subsequence of length %d outside [%d, %d]",
					errors.ErrLengthConstraint, seq.Len(), min, max),
				"sequence", "AssertLength", "checking extracted candidates")
		}
	}
	return nil
}
