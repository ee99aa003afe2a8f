package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampref/streampref/config"
	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/metric"
	"github.com/streampref/streampref/tuple"
)

const gameDocument = `
schema:
  player: string
  move: string
  power: integer

queries:
  - name: best_moves
    operation: best
    rules:
      - then:
          attr: move
          best:
            equals: attack
          worst:
            equals: retreat
          indifferent: [power]

  - name: runs
    operation: conseq
    identified_by: [player]
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngine(t *testing.T, doc string) *Engine {
	t.Helper()
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	eng, err := NewEngine(cfg, testLogger(), nil)
	require.NoError(t, err)
	return eng
}

func play(player, move string, power int64) tuple.Tuple {
	return tuple.New(map[string]tuple.Value{
		"player": tuple.String(player),
		"move":   tuple.String(move),
		"power":  tuple.Int(power),
	}, 0)
}

func moves(tuples []tuple.Tuple) []string {
	out := make([]string, len(tuples))
	for i, tp := range tuples {
		v, _ := tp.Get("move")
		out[i] = v.Text()
	}
	return out
}

func resultFor(results []Result, name string) (Result, bool) {
	for _, r := range results {
		if r.Query == name {
			return r, true
		}
	}
	return Result{}, false
}

func TestEngineBestQuery(t *testing.T) {
	eng := testEngine(t, gameDocument)
	ctx := context.Background()

	attack := play("p1", "attack", 3)
	retreat := play("p1", "retreat", 7)

	results := eng.RunTick(ctx, Tick{Timestamp: 0, Delta: tuple.Delta{
		Inserts: []tuple.Tuple{attack, retreat},
	}})
	best, ok := resultFor(results, "best_moves")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"attack"}, moves(best.Inserts))
	assert.Empty(t, best.Deletes)

	// Removing the dominant tuple promotes the dominated one.
	results = eng.RunTick(ctx, Tick{Timestamp: 1, Delta: tuple.Delta{
		Deletes: []tuple.Tuple{attack},
	}})
	best, ok = resultFor(results, "best_moves")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"retreat"}, moves(best.Inserts))
	assert.ElementsMatch(t, []string{"attack"}, moves(best.Deletes))
}

func TestEngineConseqFlattening(t *testing.T) {
	eng := testEngine(t, gameDocument)
	ctx := context.Background()

	results := eng.RunTick(ctx, Tick{Timestamp: 0, Delta: tuple.Delta{
		Inserts: []tuple.Tuple{play("p1", "attack", 3)},
	}})
	runs, ok := resultFor(results, "runs")
	require.True(t, ok)
	require.Len(t, runs.Inserts, 1)

	rec := runs.Inserts[0]
	pos, ok := rec.Get("_pos")
	require.True(t, ok)
	assert.Equal(t, int64(1), pos.Int64())
	playerAttr, ok := rec.Get("player")
	require.True(t, ok)
	assert.Equal(t, "p1", playerAttr.Text())
}

func TestEngineQueryIsolation(t *testing.T) {
	eng := testEngine(t, gameDocument)
	ctx := context.Background()

	attack := play("p1", "attack", 3)
	retreat := play("p2", "retreat", 7)

	results := eng.RunTick(ctx, Tick{Timestamp: 0, Delta: tuple.Delta{
		Inserts: []tuple.Tuple{attack, retreat},
	}})
	require.Len(t, results, 2)

	// A delete is meaningless for a windowed sequence query, so the
	// conseq query loses this tick while the tuple query proceeds.
	results = eng.RunTick(ctx, Tick{Timestamp: 1, Delta: tuple.Delta{
		Deletes: []tuple.Tuple{attack},
	}})
	require.Len(t, results, 1)
	assert.Equal(t, "best_moves", results[0].Query)

	// The failed query picks up again on the next clean tick.
	results = eng.RunTick(ctx, Tick{Timestamp: 2, Delta: tuple.Delta{
		Inserts: []tuple.Tuple{play("p1", "fortify", 2)},
	}})
	runs, ok := resultFor(results, "runs")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"fortify"}, moves(runs.Inserts))
	assert.Empty(t, runs.Deletes)
}

const favoredDocument = `
schema:
  player: string
  move: string
  power: integer

queries:
  - name: favored
    operation: bestseq
    identified_by: [player]
    rules:
      - first: true
        then:
          attr: move
          best:
            equals: attack
          worst:
            equals: retreat
          indifferent: [power]
`

func TestEngineBestSeqQuery(t *testing.T) {
	eng := testEngine(t, favoredDocument)
	ctx := context.Background()

	results := eng.RunTick(ctx, Tick{Timestamp: 0, Delta: tuple.Delta{
		Inserts: []tuple.Tuple{play("p1", "attack", 3), play("p2", "retreat", 7)},
	}})
	favored, ok := resultFor(results, "favored")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"attack"}, moves(favored.Inserts))
	assert.Empty(t, favored.Deletes)

	// Growing p2 makes it incomparable to p1's shorter sequence, so
	// both sequences become part of the result.
	results = eng.RunTick(ctx, Tick{Timestamp: 1, Delta: tuple.Delta{
		Inserts: []tuple.Tuple{play("p2", "attack", 5)},
	}})
	favored, ok = resultFor(results, "favored")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"retreat", "attack"}, moves(favored.Inserts))
	assert.Empty(t, favored.Deletes)
}

const boundedDocument = `
schema:
  player: string
  move: string
  power: integer

engine:
  start: 1
  end: 2

queries:
  - name: best_moves
    operation: best
    rules:
      - then:
          attr: move
          best:
            equals: attack
          worst:
            equals: retreat
`

func TestEngineRunBounds(t *testing.T) {
	eng := testEngine(t, boundedDocument)

	ticks := make(chan Tick, 4)
	ticks <- Tick{Timestamp: 0, Delta: tuple.Delta{Inserts: []tuple.Tuple{play("p1", "attack", 1)}}}
	ticks <- Tick{Timestamp: 1, Delta: tuple.Delta{Inserts: []tuple.Tuple{play("p2", "attack", 2)}}}
	ticks <- Tick{Timestamp: 2, Delta: tuple.Delta{Inserts: []tuple.Tuple{play("p3", "attack", 3)}}}
	ticks <- Tick{Timestamp: 3, Delta: tuple.Delta{Inserts: []tuple.Tuple{play("p4", "attack", 4)}}}
	close(ticks)

	var emitted []Result
	err := eng.Run(context.Background(), ticks, func(r Result) error {
		emitted = append(emitted, r)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, emitted, 2)
	for _, r := range emitted {
		assert.GreaterOrEqual(t, r.Timestamp, int64(1))
		assert.LessOrEqual(t, r.Timestamp, int64(2))
	}
}

func TestEngineMetricsRegistration(t *testing.T) {
	cfg, err := config.Parse([]byte(gameDocument))
	require.NoError(t, err)

	registry := metric.NewMetricsRegistry()
	eng, err := NewEngine(cfg, testLogger(), registry)
	require.NoError(t, err)
	require.NotNil(t, eng)

	// The engine metric keys are taken, a second engine on the same
	// registry cannot register.
	_, err = NewEngine(cfg, testLogger(), registry)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestGroupTicks(t *testing.T) {
	grouped := GroupTicks([]Tick{
		{Timestamp: 2, Delta: tuple.Delta{Inserts: []tuple.Tuple{play("p1", "attack", 1)}}},
		{Timestamp: 1, Delta: tuple.Delta{Inserts: []tuple.Tuple{play("p2", "retreat", 2)}}},
		{Timestamp: 2, Delta: tuple.Delta{Deletes: []tuple.Tuple{play("p2", "retreat", 2)}}},
	})
	require.Len(t, grouped, 2)
	assert.Equal(t, int64(1), grouped[0].Timestamp)
	assert.Equal(t, int64(2), grouped[1].Timestamp)
	assert.Len(t, grouped[1].Delta.Inserts, 1)
	assert.Len(t, grouped[1].Delta.Deletes, 1)
}
