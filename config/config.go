// Package config loads and validates the YAML configuration of a
// StreamPref instance: the NATS connection, the metrics endpoint, the
// engine tick range, the stream schema and the continuous queries.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/tuple"
)

// Config is the root configuration document
type Config struct {
	NATS    NATSConfig        `yaml:"nats"`
	Metrics MetricsConfig     `yaml:"metrics"`
	Engine  EngineConfig      `yaml:"engine"`
	Schema  map[string]string `yaml:"schema"`
	Queries []QueryConfig     `yaml:"queries"`
}

// NATSConfig describes the transport endpoints
type NATSConfig struct {
	URL string `yaml:"url"`
	// InputSubject carries the per-tick tuple deltas
	InputSubject string `yaml:"input_subject"`
	// ResultSubjectPrefix prefixes per-query result subjects
	ResultSubjectPrefix string `yaml:"result_subject_prefix"`
}

// MetricsConfig describes the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// EngineConfig bounds the discrete tick range the driver runs over.
// End below Start means run until the input closes.
type EngineConfig struct {
	Start int64 `yaml:"start"`
	End   int64 `yaml:"end"`
}

// Load reads, defaults and validates a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "reading "+path)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a configuration document
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Parse", "decoding YAML")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with the platform defaults
func (c *Config) ApplyDefaults() {
	if c.NATS.URL == "" {
		c.NATS.URL = "nats://localhost:4222"
	}
	if c.NATS.InputSubject == "" {
		c.NATS.InputSubject = "streampref.deltas"
	}
	if c.NATS.ResultSubjectPrefix == "" {
		c.NATS.ResultSubjectPrefix = "streampref.results"
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Engine.End == 0 && c.Engine.Start == 0 {
		c.Engine.End = -1
	}
	for i := range c.Queries {
		c.Queries[i].applyDefaults()
	}
}

// Validate checks the whole document for consistency
func (c *Config) Validate() error {
	if len(c.Schema) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: schema must declare at least one attribute", errors.ErrInvalidConfig),
			"config", "Validate", "checking schema")
	}
	if _, err := c.TupleSchema(); err != nil {
		return err
	}
	if len(c.Queries) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: at least one query is required", errors.ErrInvalidConfig),
			"config", "Validate", "checking queries")
	}
	seen := map[string]struct{}{}
	for i := range c.Queries {
		q := &c.Queries[i]
		if q.Name == "" {
			return errors.WrapInvalid(
				fmt.Errorf("%w: query %d has no name", errors.ErrInvalidConfig, i),
				"config", "Validate", "checking queries")
		}
		if _, dup := seen[q.Name]; dup {
			return errors.WrapInvalid(
				fmt.Errorf("%w: duplicate query name %q", errors.ErrInvalidConfig, q.Name),
				"config", "Validate", "checking queries")
		}
		seen[q.Name] = struct{}{}
		if err := q.Validate(c.Schema); err != nil {
			return err
		}
	}
	return nil
}

// TupleSchema converts the declared attribute kinds to the tuple model
func (c *Config) TupleSchema() (map[string]tuple.Kind, error) {
	out := make(map[string]tuple.Kind, len(c.Schema))
	for attr, kind := range c.Schema {
		switch kind {
		case "integer", "int":
			out[attr] = tuple.KindInt
		case "float":
			out[attr] = tuple.KindFloat
		case "string":
			out[attr] = tuple.KindString
		default:
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: attribute %q has unknown kind %q", errors.ErrInvalidConfig, attr, kind),
				"config", "TupleSchema", "checking schema")
		}
	}
	return out, nil
}

// ResultSubject returns the NATS subject a query's result deltas are
// published on
func (c *Config) ResultSubject(queryName string) string {
	return c.NATS.ResultSubjectPrefix + "." + queryName
}
