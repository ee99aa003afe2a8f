package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/tuple"
)

var gameSchema = map[string]tuple.Kind{
	"player": tuple.KindString,
	"move":   tuple.KindString,
	"power":  tuple.KindInt,
}

func TestParseDelta(t *testing.T) {
	raw := []byte(`{
		"timestamp": 3,
		"inserts": [{"player": "p1", "move": "attack", "power": 5}],
		"deletes": [{"player": "p2", "move": "retreat", "power": 1}]
	}`)

	m, err := ParseDelta(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(3), m.Timestamp)

	delta, err := m.Delta(gameSchema)
	require.NoError(t, err)
	require.Len(t, delta.Inserts, 1)
	require.Len(t, delta.Deletes, 1)

	ins := delta.Inserts[0]
	assert.Equal(t, int64(3), ins.Timestamp())
	v, ok := ins.Get("power")
	require.True(t, ok)
	assert.Equal(t, int64(5), v.Int64())
}

func TestParseDeltaRejections(t *testing.T) {
	_, err := ParseDelta([]byte(`{bad json`))
	assert.True(t, errors.IsInvalid(err))

	_, err = ParseDelta([]byte(`{"timestamp": -1}`))
	assert.True(t, errors.IsInvalid(err))
}

func TestDeltaSchemaMismatch(t *testing.T) {
	cases := []string{
		// missing attribute
		`{"timestamp": 0, "inserts": [{"player": "p1", "move": "attack"}]}`,
		// unknown attribute
		`{"timestamp": 0, "inserts": [{"player": "p1", "move": "attack", "speed": 1}]}`,
		// fractional value for an integer attribute
		`{"timestamp": 0, "inserts": [{"player": "p1", "move": "attack", "power": 1.5}]}`,
		// wrong type
		`{"timestamp": 0, "inserts": [{"player": "p1", "move": 7, "power": 1}]}`,
	}
	for _, raw := range cases {
		m, err := ParseDelta([]byte(raw))
		require.NoError(t, err)
		_, err = m.Delta(gameSchema)
		assert.True(t, errors.IsInvalid(err), raw)
	}
}

func TestResultRoundTrip(t *testing.T) {
	ins := tuple.New(map[string]tuple.Value{
		"player": tuple.String("p1"),
		"move":   tuple.String("attack"),
		"power":  tuple.Int(5),
	}, 2)

	m := NewResult("best_moves", 2, []tuple.Tuple{ins}, nil)
	assert.NotEmpty(t, m.ID)

	data, err := m.Encode()
	require.NoError(t, err)

	parsed, err := ParseResult(data)
	require.NoError(t, err)
	assert.Equal(t, m.ID, parsed.ID)
	assert.Equal(t, "best_moves", parsed.Query)
	assert.Equal(t, int64(2), parsed.Timestamp)
	require.Len(t, parsed.Inserts, 1)
	assert.Equal(t, "attack", parsed.Inserts[0]["move"])
	assert.Empty(t, parsed.Deletes)
}
