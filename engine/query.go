package engine

import (
	"fmt"
	"log/slog"

	"github.com/streampref/streampref/config"
	"github.com/streampref/streampref/dominance"
	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/preference"
	"github.com/streampref/streampref/seqtree"
	"github.com/streampref/streampref/sequence"
	"github.com/streampref/streampref/tuple"
)

// Result is the per-tick output of one query: the tuples entering and
// leaving its materialized result. Sequence results are flattened to one
// tuple per position with the entity attributes and the position column
// merged back in.
type Result struct {
	Query     string
	Timestamp int64
	Inserts   []tuple.Tuple
	Deletes   []tuple.Tuple
}

// Empty reports whether the result did not change this tick
func (r Result) Empty() bool {
	return len(r.Inserts) == 0 && len(r.Deletes) == 0
}

// frozenSeq is one sequence of a previous extraction result, captured by
// content so later mutations of the live sequence cannot rewrite history
type frozenSeq struct {
	signature string
	records   []tuple.Tuple
}

// Query is one compiled continuous query. A query owns its evaluation
// state and is driven tick by tick; it is not safe for concurrent use,
// but distinct queries are independent.
type Query struct {
	name      string
	operation config.Operation
	k         int

	// best / topk
	dom *dominance.Evaluator

	// sequence operations
	store     *sequence.Store
	extractor *sequence.Extractor
	minLen    int
	maxLen    int
	seq       *seqtree.Evaluator
	previous  []frozenSeq

	logger *slog.Logger
}

// newQuery compiles a validated query declaration
func newQuery(qc config.QueryConfig, schema map[string]tuple.Kind, logger *slog.Logger) (*Query, error) {
	q := &Query{
		name:      qc.Name,
		operation: qc.Operation,
		k:         qc.K,
		minLen:    qc.MinLength,
		maxLen:    qc.MaxLength,
		logger:    logger.With("query", qc.Name),
	}

	switch qc.Operation {
	case config.OpBest, config.OpTopK:
		rules, err := buildRules(qc.Rules, schema)
		if err != nil {
			return nil, err
		}
		theory, err := preference.NewTheory(rules, schema)
		if err != nil {
			return nil, err
		}
		mode := dominance.ModeBest
		if qc.Operation == config.OpTopK {
			mode = dominance.ModeTopK
		}
		q.dom, err = dominance.NewEvaluator(dominance.Algorithm(qc.Algorithm), theory, mode, qc.K)
		if err != nil {
			return nil, err
		}

	case config.OpBestSeq, config.OpTopKSeq:
		if err := q.initStore(qc); err != nil {
			return nil, err
		}
		if qc.Extraction != nil {
			ex, err := sequence.NewExtractor(
				sequence.ExtractMode(qc.Extraction.Mode),
				sequence.ExtractAlgorithm(qc.Extraction.Algorithm))
			if err != nil {
				return nil, err
			}
			q.extractor = ex
		}
		rules, err := buildTemporalRules(qc.Rules, schema)
		if err != nil {
			return nil, err
		}
		theory, err := preference.NewTemporalTheory(rules, schema)
		if err != nil {
			return nil, err
		}
		mode := seqtree.ModeBest
		if qc.Operation == config.OpTopKSeq {
			mode = seqtree.ModeTopK
		}
		q.seq, err = seqtree.NewEvaluator(theory, seqtree.Algorithm(qc.Algorithm), mode, qc.K)
		if err != nil {
			return nil, err
		}

	case config.OpConseq, config.OpEndseq:
		if err := q.initStore(qc); err != nil {
			return nil, err
		}
		mode := sequence.Consecutive
		if qc.Operation == config.OpEndseq {
			mode = sequence.EndPosition
		}
		ex, err := sequence.NewExtractor(mode, sequence.ExtractAlgorithm(qc.Algorithm))
		if err != nil {
			return nil, err
		}
		q.extractor = ex

	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: unknown operation %q", errors.ErrInvalidConfig, qc.Operation),
			"engine", "newQuery", "compiling query "+qc.Name)
	}

	return q, nil
}

func (q *Query) initStore(qc config.QueryConfig) error {
	bound := qc.Window.Range
	if bound == 0 {
		bound = sequence.Unbounded
	}
	q.store = sequence.NewStore(qc.IdentifiedBy, bound, qc.Window.Slide)
	return nil
}

// evaluate advances the query by one tick
func (q *Query) evaluate(timestamp int64, delta tuple.Delta) (Result, error) {
	result := Result{Query: q.name, Timestamp: timestamp}

	if q.dom != nil {
		d, err := q.dom.Evaluate(delta)
		if err != nil {
			return Result{}, err
		}
		result.Inserts = d.Inserts
		result.Deletes = d.Deletes
		return result, nil
	}

	// Sequence operations consume an insert-only stream: the window
	// expires old positions, explicit deletes have no meaning here.
	if len(delta.Deletes) > 0 {
		return Result{}, errors.WrapInvalid(
			fmt.Errorf("%w: %d deletes on a sequence operation", errors.ErrTheoryEvaluation, len(delta.Deletes)),
			"engine", "evaluate", "advancing query "+q.name)
	}
	q.store.Advance(timestamp, delta.Inserts)

	candidates := q.store.Sequences()
	if q.extractor != nil {
		candidates = q.extractor.Extract(candidates)
	}
	candidates = sequence.FilterLength(candidates, q.minLen, q.maxLen)

	if q.seq != nil {
		d, err := q.seq.Evaluate(candidates)
		if err != nil {
			return Result{}, err
		}
		result.Inserts = flatten(d.Inserts)
		result.Deletes = flatten(d.Deletes)
		return result, nil
	}

	inserts, deletes := q.diffExtraction(candidates)
	result.Inserts = inserts
	result.Deletes = deletes
	return result, nil
}

// diffExtraction compares the extracted candidates against the previous
// tick's frozen result by signature multiset
func (q *Query) diffExtraction(current []*sequence.Sequence) (inserts, deletes []tuple.Tuple) {
	counts := map[string]int{}
	frozen := make([]frozenSeq, 0, len(current))
	for _, s := range current {
		sig := s.Signature()
		counts[sig]++
		frozen = append(frozen, frozenSeq{signature: sig, records: s.Records()})
	}
	for _, p := range q.previous {
		counts[p.signature]--
	}
	for _, f := range frozen {
		if counts[f.signature] > 0 {
			inserts = append(inserts, f.records...)
			counts[f.signature]--
		}
	}
	for _, p := range q.previous {
		if counts[p.signature] < 0 {
			deletes = append(deletes, p.records...)
			counts[p.signature]++
		}
	}
	q.previous = frozen
	return inserts, deletes
}

// flatten expands sequences into their per-position records
func flatten(seqs []*sequence.Sequence) []tuple.Tuple {
	var out []tuple.Tuple
	for _, s := range seqs {
		out = append(out, s.Records()...)
	}
	return out
}
