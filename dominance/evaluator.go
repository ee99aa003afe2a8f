package dominance

import (
	"fmt"

	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/preference"
	"github.com/streampref/streampref/tuple"
)

// Mode selects between the full undominated set and the top ranks
type Mode string

const (
	// ModeBest returns every undominated tuple
	ModeBest Mode = "best"
	// ModeTopK returns the lowest dominance ranks covering k tuples
	ModeTopK Mode = "topk"
)

// Evaluator drives one strategy across ticks and expresses each tick's
// result as a delta against the previous tick's result, matching the
// change-log model of the surrounding stream.
type Evaluator struct {
	strategy Strategy
	mode     Mode
	k        int
	previous []tuple.Tuple
}

// NewEvaluator builds an evaluator over the named strategy. ModeTopK
// requires a positive k; ModeBest ignores it.
func NewEvaluator(alg Algorithm, th *preference.Theory, mode Mode, k int) (*Evaluator, error) {
	if mode != ModeBest && mode != ModeTopK {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"dominance", "NewEvaluator", fmt.Sprintf("unknown mode %q", mode))
	}
	if mode == ModeTopK && k <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"dominance", "NewEvaluator", fmt.Sprintf("top-k needs k > 0, got %d", k))
	}
	strategy, err := New(alg, th)
	if err != nil {
		return nil, err
	}
	return &Evaluator{strategy: strategy, mode: mode, k: k}, nil
}

// Evaluate applies one tick's delta to the active set and returns the
// tuples entering and leaving the result
func (e *Evaluator) Evaluate(delta tuple.Delta) (tuple.Delta, error) {
	if err := e.strategy.Update(delta); err != nil {
		return tuple.Delta{}, err
	}
	var current []tuple.Tuple
	var err error
	if e.mode == ModeTopK {
		current, err = e.strategy.TopK(e.k)
	} else {
		current, err = e.strategy.Best()
	}
	if err != nil {
		return tuple.Delta{}, err
	}
	out := diffResults(e.previous, current)
	e.previous = current
	return out, nil
}

// Result returns the materialized result of the last evaluated tick
func (e *Evaluator) Result() []tuple.Tuple {
	return e.previous
}

// diffResults compares result multisets by tuple signature
func diffResults(previous, current []tuple.Tuple) tuple.Delta {
	counts := map[string]int{}
	bySig := map[string]tuple.Tuple{}
	for _, t := range current {
		sig := t.Signature()
		counts[sig]++
		bySig[sig] = t
	}
	for _, t := range previous {
		counts[t.Signature()]--
		bySig[t.Signature()] = t
	}
	var delta tuple.Delta
	for _, t := range current {
		sig := t.Signature()
		if counts[sig] > 0 {
			delta.Inserts = append(delta.Inserts, t)
			counts[sig]--
		}
	}
	for _, t := range previous {
		sig := t.Signature()
		if counts[sig] < 0 {
			delta.Deletes = append(delta.Deletes, t)
			counts[sig]++
		}
	}
	return delta
}
