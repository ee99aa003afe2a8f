package config

import (
	"fmt"

	"github.com/streampref/streampref/dominance"
	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/seqtree"
	"github.com/streampref/streampref/sequence"
)

// Operation names a continuous query's result semantics
type Operation string

const (
	// OpBest returns the undominated tuples of the active set
	OpBest Operation = "best"
	// OpTopK returns the lowest dominance ranks covering k tuples
	OpTopK Operation = "topk"
	// OpBestSeq returns the undominated candidate sequences
	OpBestSeq Operation = "bestseq"
	// OpTopKSeq returns the lowest sequence ranks covering k sequences
	OpTopKSeq Operation = "topkseq"
	// OpConseq returns the consecutive-timestamp subsequences
	OpConseq Operation = "conseq"
	// OpEndseq returns the subsequences ending at the latest position
	OpEndseq Operation = "endseq"
)

// QueryConfig declares one continuous query
type QueryConfig struct {
	Name      string    `yaml:"name"`
	Operation Operation `yaml:"operation"`
	K         int       `yaml:"k,omitempty"`
	// Algorithm selects the strategy of the operation's class: a
	// dominance algorithm for best/topk, a sequence-tree algorithm for
	// bestseq/topkseq, naive or incremental for conseq/endseq
	Algorithm string `yaml:"algorithm,omitempty"`

	// Sequence grouping (sequence operations only)
	IdentifiedBy []string     `yaml:"identified_by,omitempty"`
	Window       WindowConfig `yaml:"window,omitempty"`

	// Candidate shaping for bestseq/topkseq, and length bounds
	Extraction *ExtractionConfig `yaml:"extraction,omitempty"`
	MinLength  int               `yaml:"min_length,omitempty"`
	MaxLength  int               `yaml:"max_length,omitempty"`

	Rules []RuleConfig `yaml:"rules,omitempty"`
}

// WindowConfig is the RANGE/SLIDE window of a sequence operation.
// Range zero means unbounded.
type WindowConfig struct {
	Range int64 `yaml:"range"`
	Slide int64 `yaml:"slide"`
}

// ExtractionConfig shapes the candidate subsequences a sequence
// preference query ranks
type ExtractionConfig struct {
	Mode      string `yaml:"mode"`
	Algorithm string `yaml:"algorithm"`
}

// RuleConfig declares one preference rule. The temporal condition forms
// (first, previous, some_previous, all_previous) are only meaningful for
// sequence preference queries.
type RuleConfig struct {
	If           map[string]IntervalConfig `yaml:"if,omitempty"`
	First        bool                      `yaml:"first,omitempty"`
	Previous     map[string]IntervalConfig `yaml:"previous,omitempty"`
	SomePrevious map[string]IntervalConfig `yaml:"some_previous,omitempty"`
	AllPrevious  map[string]IntervalConfig `yaml:"all_previous,omitempty"`
	Then         PreferenceConfig          `yaml:"then"`
}

// temporal reports whether the rule uses any history-dependent form
func (r RuleConfig) temporal() bool {
	return r.First || len(r.Previous) > 0 || len(r.SomePrevious) > 0 || len(r.AllPrevious) > 0
}

// PreferenceConfig declares the preferred and non-preferred interval of
// one attribute
type PreferenceConfig struct {
	Attr        string         `yaml:"attr"`
	Best        IntervalConfig `yaml:"best"`
	Worst       IntervalConfig `yaml:"worst"`
	Indifferent []string       `yaml:"indifferent,omitempty"`
}

// IntervalConfig is one predicate over an attribute: either an equality
// or a range with optional open bounds. Values are typed by the schema.
type IntervalConfig struct {
	Equals  any  `yaml:"equals,omitempty"`
	Min     any  `yaml:"min,omitempty"`
	Max     any  `yaml:"max,omitempty"`
	MinOpen bool `yaml:"min_open,omitempty"`
	MaxOpen bool `yaml:"max_open,omitempty"`
}

func (iv IntervalConfig) empty() bool {
	return iv.Equals == nil && iv.Min == nil && iv.Max == nil
}

func (q *QueryConfig) applyDefaults() {
	if q.Algorithm != "" {
		// explicit choice wins
	} else {
		switch q.Operation {
		case OpBest, OpTopK:
			q.Algorithm = string(dominance.IncPartition)
		case OpBestSeq, OpTopKSeq:
			q.Algorithm = string(seqtree.IncSeqTreePruning)
		case OpConseq, OpEndseq:
			q.Algorithm = string(sequence.ExtractIncremental)
		}
	}
	if q.Window.Slide == 0 {
		q.Window.Slide = 1
	}
	if q.Extraction != nil && q.Extraction.Algorithm == "" {
		q.Extraction.Algorithm = string(sequence.ExtractIncremental)
	}
}

func (q *QueryConfig) invalid(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return errors.WrapInvalid(
		fmt.Errorf("%w: query %q: %s", errors.ErrInvalidConfig, q.Name, msg),
		"config", "Validate", "checking query")
}

// Validate checks the query declaration against the stream schema
func (q *QueryConfig) Validate(schema map[string]string) error {
	switch q.Operation {
	case OpBest, OpTopK:
		return q.validateTupleQuery(schema)
	case OpBestSeq, OpTopKSeq:
		return q.validateSequenceQuery(schema)
	case OpConseq, OpEndseq:
		return q.validateExtractionQuery(schema)
	default:
		return q.invalid("unknown operation %q", q.Operation)
	}
}

func (q *QueryConfig) validateTupleQuery(schema map[string]string) error {
	if !algorithmIn(q.Algorithm, tupleAlgorithms()) {
		return q.invalid("unknown tuple algorithm %q", q.Algorithm)
	}
	if q.Operation == OpTopK && q.K <= 0 {
		return q.invalid("topk needs k > 0, got %d", q.K)
	}
	if len(q.IdentifiedBy) > 0 || q.Window.Range != 0 || q.Extraction != nil {
		return q.invalid("sequence settings are not valid for a tuple operation")
	}
	return q.validateRules(schema, false)
}

func (q *QueryConfig) validateSequenceQuery(schema map[string]string) error {
	if !algorithmIn(q.Algorithm, sequenceAlgorithms()) {
		return q.invalid("unknown sequence algorithm %q", q.Algorithm)
	}
	if q.Operation == OpTopKSeq && q.K <= 0 {
		return q.invalid("topkseq needs k > 0, got %d", q.K)
	}
	if err := q.validateGrouping(schema); err != nil {
		return err
	}
	if q.Extraction != nil {
		if err := q.validateExtraction(q.Extraction.Mode, q.Extraction.Algorithm); err != nil {
			return err
		}
	}
	if err := q.validateLengths(); err != nil {
		return err
	}
	return q.validateRules(schema, true)
}

func (q *QueryConfig) validateExtractionQuery(schema map[string]string) error {
	if !algorithmIn(q.Algorithm, extractionAlgorithms()) {
		return q.invalid("unknown extraction algorithm %q", q.Algorithm)
	}
	if len(q.Rules) > 0 {
		return q.invalid("%s takes no preference rules", q.Operation)
	}
	if q.Extraction != nil {
		return q.invalid("%s is itself an extraction, no extraction block allowed", q.Operation)
	}
	if err := q.validateGrouping(schema); err != nil {
		return err
	}
	return q.validateLengths()
}

func (q *QueryConfig) validateGrouping(schema map[string]string) error {
	if len(q.IdentifiedBy) == 0 {
		return q.invalid("identified_by is required for a sequence operation")
	}
	for _, attr := range q.IdentifiedBy {
		if _, ok := schema[attr]; !ok {
			return q.invalid("identifier attribute %q is not in the schema", attr)
		}
	}
	if q.Window.Range < 0 {
		return q.invalid("window range cannot be negative")
	}
	if q.Window.Slide <= 0 {
		return q.invalid("window slide must be positive")
	}
	return nil
}

func (q *QueryConfig) validateExtraction(mode, alg string) error {
	switch sequence.ExtractMode(mode) {
	case sequence.Consecutive, sequence.EndPosition:
	default:
		return q.invalid("unknown extraction mode %q", mode)
	}
	if !algorithmIn(alg, extractionAlgorithms()) {
		return q.invalid("unknown extraction algorithm %q", alg)
	}
	return nil
}

func (q *QueryConfig) validateLengths() error {
	if q.MinLength < 0 || q.MaxLength < 0 {
		return q.invalid("length bounds cannot be negative")
	}
	if q.MinLength > 0 && q.MaxLength > 0 && q.MinLength > q.MaxLength {
		return q.invalid("min_length %d exceeds max_length %d", q.MinLength, q.MaxLength)
	}
	return nil
}

func (q *QueryConfig) validateRules(schema map[string]string, temporal bool) error {
	if len(q.Rules) == 0 {
		return q.invalid("at least one preference rule is required")
	}
	for i, rule := range q.Rules {
		if rule.temporal() && !temporal {
			return q.invalid("rule %d uses a temporal condition in a tuple operation", i)
		}
		p := rule.Then
		if p.Attr == "" {
			return q.invalid("rule %d has no preference attribute", i)
		}
		if _, ok := schema[p.Attr]; !ok {
			return q.invalid("rule %d prefers unknown attribute %q", i, p.Attr)
		}
		if p.Best.empty() || p.Worst.empty() {
			return q.invalid("rule %d needs both a best and a worst interval", i)
		}
		for _, attr := range p.Indifferent {
			if _, ok := schema[attr]; !ok {
				return q.invalid("rule %d marks unknown attribute %q indifferent", i, attr)
			}
		}
		conds := []map[string]IntervalConfig{rule.If, rule.Previous, rule.SomePrevious, rule.AllPrevious}
		for _, cond := range conds {
			for attr := range cond {
				if _, ok := schema[attr]; !ok {
					return q.invalid("rule %d conditions on unknown attribute %q", i, attr)
				}
			}
		}
	}
	return nil
}

func algorithmIn(alg string, valid []string) bool {
	for _, v := range valid {
		if alg == v {
			return true
		}
	}
	return false
}

func tupleAlgorithms() []string {
	out := make([]string, len(dominance.Algorithms))
	for i, a := range dominance.Algorithms {
		out[i] = string(a)
	}
	return out
}

func sequenceAlgorithms() []string {
	out := make([]string, len(seqtree.Algorithms))
	for i, a := range seqtree.Algorithms {
		out[i] = string(a)
	}
	return out
}

func extractionAlgorithms() []string {
	return []string{string(sequence.ExtractNaive), string(sequence.ExtractIncremental)}
}
