package engine

import (
	"fmt"

	"github.com/streampref/streampref/config"
	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/preference"
	"github.com/streampref/streampref/tuple"
)

// buildValue converts a decoded YAML scalar to a typed value of the
// declared kind
func buildValue(raw any, kind tuple.Kind) (tuple.Value, error) {
	switch kind {
	case tuple.KindInt:
		switch v := raw.(type) {
		case int:
			return tuple.Int(int64(v)), nil
		case int64:
			return tuple.Int(v), nil
		}
	case tuple.KindFloat:
		switch v := raw.(type) {
		case float64:
			return tuple.Float(v), nil
		case int:
			return tuple.Float(float64(v)), nil
		case int64:
			return tuple.Float(float64(v)), nil
		}
	case tuple.KindString:
		if v, ok := raw.(string); ok {
			return tuple.String(v), nil
		}
	}
	return tuple.Value{}, errors.WrapInvalid(
		fmt.Errorf("%w: value %v is not a %s", errors.ErrInvalidConfig, raw, kind),
		"engine", "buildValue", "typing configured value")
}

// buildInterval converts an interval declaration to the preference model
func buildInterval(cfg config.IntervalConfig, kind tuple.Kind) (preference.Interval, error) {
	if cfg.Equals != nil {
		v, err := buildValue(cfg.Equals, kind)
		if err != nil {
			return preference.Interval{}, err
		}
		return preference.Exactly(v), nil
	}
	switch {
	case cfg.Min != nil && cfg.Max != nil:
		lo, err := buildValue(cfg.Min, kind)
		if err != nil {
			return preference.Interval{}, err
		}
		hi, err := buildValue(cfg.Max, kind)
		if err != nil {
			return preference.Interval{}, err
		}
		return preference.Between(lo, !cfg.MinOpen, hi, !cfg.MaxOpen), nil
	case cfg.Min != nil:
		lo, err := buildValue(cfg.Min, kind)
		if err != nil {
			return preference.Interval{}, err
		}
		if cfg.MinOpen {
			return preference.GreaterThan(lo), nil
		}
		return preference.AtLeast(lo), nil
	case cfg.Max != nil:
		hi, err := buildValue(cfg.Max, kind)
		if err != nil {
			return preference.Interval{}, err
		}
		if cfg.MaxOpen {
			return preference.LessThan(hi), nil
		}
		return preference.AtMost(hi), nil
	}
	return preference.Interval{}, errors.WrapInvalid(
		fmt.Errorf("%w: empty interval declaration", errors.ErrInvalidConfig),
		"engine", "buildInterval", "translating interval")
}

// buildCondition converts an attribute-to-interval map
func buildCondition(cfg map[string]config.IntervalConfig, schema map[string]tuple.Kind) (preference.Condition, error) {
	if len(cfg) == 0 {
		return nil, nil
	}
	cond := make(preference.Condition, len(cfg))
	for attr, ivCfg := range cfg {
		iv, err := buildInterval(ivCfg, schema[attr])
		if err != nil {
			return nil, err
		}
		cond[attr] = iv
	}
	return cond, nil
}

// buildPreference converts a rule's then clause
func buildPreference(cfg config.PreferenceConfig, schema map[string]tuple.Kind) (preference.Preference, error) {
	kind := schema[cfg.Attr]
	best, err := buildInterval(cfg.Best, kind)
	if err != nil {
		return preference.Preference{}, err
	}
	worst, err := buildInterval(cfg.Worst, kind)
	if err != nil {
		return preference.Preference{}, err
	}
	return preference.Preference{
		Attr:        cfg.Attr,
		Best:        best,
		Worst:       worst,
		Indifferent: preference.Indiff(cfg.Indifferent...),
	}, nil
}

// buildRules translates tuple preference rules
func buildRules(cfgs []config.RuleConfig, schema map[string]tuple.Kind) ([]preference.Rule, error) {
	rules := make([]preference.Rule, 0, len(cfgs))
	for _, cfg := range cfgs {
		cond, err := buildCondition(cfg.If, schema)
		if err != nil {
			return nil, err
		}
		pref, err := buildPreference(cfg.Then, schema)
		if err != nil {
			return nil, err
		}
		rules = append(rules, preference.Rule{Condition: cond, Preference: pref})
	}
	return rules, nil
}

// buildTemporalRules translates sequence preference rules
func buildTemporalRules(cfgs []config.RuleConfig, schema map[string]tuple.Kind) ([]preference.TemporalRule, error) {
	rules := make([]preference.TemporalRule, 0, len(cfgs))
	for _, cfg := range cfgs {
		present, err := buildCondition(cfg.If, schema)
		if err != nil {
			return nil, err
		}
		previous, err := buildCondition(cfg.Previous, schema)
		if err != nil {
			return nil, err
		}
		somePrevious, err := buildCondition(cfg.SomePrevious, schema)
		if err != nil {
			return nil, err
		}
		allPrevious, err := buildCondition(cfg.AllPrevious, schema)
		if err != nil {
			return nil, err
		}
		pref, err := buildPreference(cfg.Then, schema)
		if err != nil {
			return nil, err
		}
		rules = append(rules, preference.TemporalRule{
			Condition: preference.TemporalCondition{
				First:        cfg.First,
				Present:      present,
				Previous:     previous,
				SomePrevious: somePrevious,
				AllPrevious:  allPrevious,
			},
			Preference: pref,
		})
	}
	return rules, nil
}
