// Package message defines the JSON wire format shared by the input and
// output components. A delta message carries the tuples entering and
// leaving the stream at one timestamp; a result message carries the
// change of one query's result. Rows travel as flat attribute maps typed
// by the configured schema.
package message

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/tuple"
)

// ErrBadRow reports a row that does not match the configured schema
var ErrBadRow = fmt.Errorf("row does not match schema")

// DeltaMessage is the wire form of one input tick
type DeltaMessage struct {
	ID        string           `json:"id,omitempty"`
	Source    string           `json:"source,omitempty"`
	Timestamp int64            `json:"timestamp"`
	Inserts   []map[string]any `json:"inserts,omitempty"`
	Deletes   []map[string]any `json:"deletes,omitempty"`
}

// ParseDelta decodes and validates a delta message
func ParseDelta(data []byte) (*DeltaMessage, error) {
	var m DeltaMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapInvalid(err, "message", "ParseDelta", "decoding delta")
	}
	if m.Timestamp < 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("negative timestamp %d", m.Timestamp),
			"message", "ParseDelta", "validating delta")
	}
	return &m, nil
}

// Delta types the row maps against the schema
func (m *DeltaMessage) Delta(schema map[string]tuple.Kind) (tuple.Delta, error) {
	inserts, err := decodeRows(m.Inserts, schema, m.Timestamp)
	if err != nil {
		return tuple.Delta{}, err
	}
	deletes, err := decodeRows(m.Deletes, schema, m.Timestamp)
	if err != nil {
		return tuple.Delta{}, err
	}
	return tuple.Delta{Inserts: inserts, Deletes: deletes}, nil
}

// ResultMessage is the wire form of one query's output for one tick
type ResultMessage struct {
	ID        string           `json:"id"`
	Query     string           `json:"query"`
	Timestamp int64            `json:"timestamp"`
	Inserts   []map[string]any `json:"inserts,omitempty"`
	Deletes   []map[string]any `json:"deletes,omitempty"`
}

// NewResult builds a result message with a fresh id
func NewResult(query string, timestamp int64, inserts, deletes []tuple.Tuple) *ResultMessage {
	return &ResultMessage{
		ID:        uuid.NewString(),
		Query:     query,
		Timestamp: timestamp,
		Inserts:   encodeRows(inserts),
		Deletes:   encodeRows(deletes),
	}
}

// Encode serializes the result message
func (m *ResultMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "message", "Encode", "encoding result")
	}
	return data, nil
}

// ParseResult decodes a result message
func ParseResult(data []byte) (*ResultMessage, error) {
	var m ResultMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapInvalid(err, "message", "ParseResult", "decoding result")
	}
	return &m, nil
}

func decodeRows(rows []map[string]any, schema map[string]tuple.Kind, ts int64) ([]tuple.Tuple, error) {
	out := make([]tuple.Tuple, 0, len(rows))
	for _, row := range rows {
		t, err := decodeRow(row, schema, ts)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// decodeRow types one attribute map. Every schema attribute must be
// present and no extra attributes are allowed.
func decodeRow(row map[string]any, schema map[string]tuple.Kind, ts int64) (tuple.Tuple, error) {
	if len(row) != len(schema) {
		return tuple.Tuple{}, errors.WrapInvalid(
			fmt.Errorf("%w: %d attributes, schema has %d", ErrBadRow, len(row), len(schema)),
			"message", "decodeRow", "checking attributes")
	}
	attrs := make(map[string]tuple.Value, len(schema))
	for attr, kind := range schema {
		raw, ok := row[attr]
		if !ok {
			return tuple.Tuple{}, errors.WrapInvalid(
				fmt.Errorf("%w: missing attribute %q", ErrBadRow, attr),
				"message", "decodeRow", "checking attributes")
		}
		v, err := decodeValue(raw, kind)
		if err != nil {
			return tuple.Tuple{}, errors.WrapInvalid(
				fmt.Errorf("%w: attribute %q: %v", ErrBadRow, attr, err),
				"message", "decodeRow", "typing attributes")
		}
		attrs[attr] = v
	}
	return tuple.New(attrs, ts), nil
}

// decodeValue converts a JSON scalar to a typed value. JSON numbers
// arrive as float64, so integer attributes require an integral value.
func decodeValue(raw any, kind tuple.Kind) (tuple.Value, error) {
	switch kind {
	case tuple.KindInt:
		f, ok := raw.(float64)
		if !ok || f != math.Trunc(f) {
			return tuple.Value{}, fmt.Errorf("expected integer, got %T(%v)", raw, raw)
		}
		return tuple.Int(int64(f)), nil
	case tuple.KindFloat:
		f, ok := raw.(float64)
		if !ok {
			return tuple.Value{}, fmt.Errorf("expected number, got %T", raw)
		}
		return tuple.Float(f), nil
	case tuple.KindString:
		s, ok := raw.(string)
		if !ok {
			return tuple.Value{}, fmt.Errorf("expected string, got %T", raw)
		}
		return tuple.String(s), nil
	default:
		return tuple.Value{}, fmt.Errorf("unknown kind %v", kind)
	}
}

func encodeRows(tuples []tuple.Tuple) []map[string]any {
	if len(tuples) == 0 {
		return nil
	}
	out := make([]map[string]any, len(tuples))
	for i, t := range tuples {
		out[i] = encodeRow(t)
	}
	return out
}

func encodeRow(t tuple.Tuple) map[string]any {
	row := make(map[string]any, t.Len())
	for _, attr := range t.Attributes() {
		v, _ := t.Get(attr)
		switch v.Kind() {
		case tuple.KindInt:
			row[attr] = v.Int64()
		case tuple.KindFloat:
			row[attr] = v.Float64()
		default:
			row[attr] = v.Text()
		}
	}
	return row
}
