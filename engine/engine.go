package engine

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streampref/streampref/config"
	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/metric"
	"github.com/streampref/streampref/tuple"
)

// Tick is one unit of stream progress: the timestamp and the tuples
// entering and leaving the input at that instant.
type Tick struct {
	Timestamp int64
	Delta     tuple.Delta
}

// Engine drives a set of continuous queries over a shared input stream.
// Every tick is fanned out to all queries; a query whose evaluation
// fails loses that tick only and is driven again on the next one.
type Engine struct {
	queries []*Query
	start   int64
	end     int64
	logger  *slog.Logger
	metrics *engineMetrics
}

// NewEngine compiles every configured query. The registrar may be nil,
// in which case the engine runs without instrumentation.
func NewEngine(cfg *config.Config, logger *slog.Logger, registrar metric.MetricsRegistrar) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := cfg.TupleSchema()
	if err != nil {
		return nil, err
	}

	metrics, err := newEngineMetrics(registrar)
	if err != nil {
		return nil, errors.Wrap(err, "engine", "NewEngine", "registering metrics")
	}

	eng := &Engine{
		start:   cfg.Engine.Start,
		end:     cfg.Engine.End,
		logger:  logger.With("component", "engine"),
		metrics: metrics,
	}
	for _, qc := range cfg.Queries {
		q, err := newQuery(qc, schema, logger)
		if err != nil {
			return nil, errors.Wrap(err, "engine", "NewEngine", "compiling query "+qc.Name)
		}
		eng.queries = append(eng.queries, q)
	}
	eng.metrics.recordActive(len(eng.queries))
	return eng, nil
}

// Queries returns the names of the compiled queries in declaration order
func (e *Engine) Queries() []string {
	names := make([]string, len(e.queries))
	for i, q := range e.queries {
		names[i] = q.name
	}
	return names
}

// RunTick evaluates every query against one tick. Queries run
// concurrently; a failing query is logged and skipped for this tick
// without disturbing the others. Results come back in declaration order.
func (e *Engine) RunTick(ctx context.Context, tick Tick) []Result {
	results := make([]*Result, len(e.queries))

	g, _ := errgroup.WithContext(ctx)
	for i, q := range e.queries {
		i, q := i, q
		g.Go(func() error {
			began := time.Now()
			res, err := q.evaluate(tick.Timestamp, tick.Delta)
			if err != nil {
				class := errors.Classify(err).String()
				e.metrics.recordTick(q.name, "error", time.Since(began))
				e.metrics.recordError(q.name, class)
				q.logger.Error("tick evaluation failed",
					"timestamp", tick.Timestamp,
					"class", class,
					"error", err)
				return nil
			}
			e.metrics.recordTick(q.name, "ok", time.Since(began))
			e.metrics.recordResult(q.name, len(res.Inserts), len(res.Deletes))
			results[i] = &res
			return nil
		})
	}
	// Per-query failures are absorbed above, so the group never errors.
	_ = g.Wait()

	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// Run drives the engine from a tick source until the source closes, the
// context is cancelled, or the configured end timestamp is passed. Ticks
// before the start timestamp are dropped. Each changed result is handed
// to emit; an emit failure stops the run.
func (e *Engine) Run(ctx context.Context, ticks <-chan Tick, emit func(Result) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				e.logger.Info("input closed")
				return nil
			}
			if tick.Timestamp < e.start {
				continue
			}
			if e.end >= e.start && tick.Timestamp > e.end {
				e.logger.Info("end timestamp reached", "timestamp", tick.Timestamp)
				return nil
			}
			for _, res := range e.RunTick(ctx, tick) {
				if res.Empty() {
					continue
				}
				if err := emit(res); err != nil {
					return errors.Wrap(err, "engine", "Run", "emitting result for "+res.Query)
				}
			}
		}
	}
}

// GroupTicks folds a timestamp-ordered tuple stream into per-timestamp
// ticks, a convenience for inputs that deliver one change at a time.
func GroupTicks(changes []Tick) []Tick {
	byTime := map[int64]*Tick{}
	for _, c := range changes {
		t, ok := byTime[c.Timestamp]
		if !ok {
			t = &Tick{Timestamp: c.Timestamp}
			byTime[c.Timestamp] = t
		}
		t.Delta.Inserts = append(t.Delta.Inserts, c.Delta.Inserts...)
		t.Delta.Deletes = append(t.Delta.Deletes, c.Delta.Deletes...)
	}
	out := make([]Tick, 0, len(byTime))
	for _, t := range byTime {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}
