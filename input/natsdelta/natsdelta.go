// Package natsdelta receives stream deltas from a NATS subject and turns
// them into engine ticks.
package natsdelta

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/streampref/streampref/component"
	"github.com/streampref/streampref/engine"
	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/message"
	"github.com/streampref/streampref/metric"
	"github.com/streampref/streampref/natsclient"
	"github.com/streampref/streampref/tuple"
)

// Input subscribes to the delta subject and feeds typed ticks to the
// engine through Ticks. Malformed messages are counted and dropped, they
// never stop the stream.
type Input struct {
	subject string
	client  *natsclient.Client
	schema  map[string]tuple.Kind
	metrics *metric.Metrics
	logger  *slog.Logger

	ticks   chan engine.Tick
	done    chan struct{}
	running atomic.Bool
}

var _ component.LifecycleComponent = (*Input)(nil)

// Deps holds the runtime dependencies of the input component
type Deps struct {
	Subject    string
	NATSClient *natsclient.Client
	Schema     map[string]tuple.Kind
	Metrics    *metric.Metrics
	Logger     *slog.Logger
	BufferSize int
}

// NewInput creates the input component
func NewInput(deps Deps) *Input {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	buffer := deps.BufferSize
	if buffer <= 0 {
		buffer = 256
	}
	return &Input{
		subject: deps.Subject,
		client:  deps.NATSClient,
		schema:  deps.Schema,
		metrics: deps.Metrics,
		logger:  logger.With("component", "natsdelta", "subject", deps.Subject),
		ticks:   make(chan engine.Tick, buffer),
		done:    make(chan struct{}),
	}
}

// Name implements component.LifecycleComponent
func (i *Input) Name() string { return "natsdelta" }

// Ticks returns the channel the decoded ticks arrive on
func (i *Input) Ticks() <-chan engine.Tick { return i.ticks }

// Initialize validates the component wiring
func (i *Input) Initialize() error {
	if i.subject == "" {
		return errors.WrapInvalid(fmt.Errorf("empty subject"),
			"natsdelta", "Initialize", "validating subject")
	}
	if i.client == nil {
		return errors.WrapInvalid(fmt.Errorf("nil NATS client"),
			"natsdelta", "Initialize", "validating client")
	}
	if len(i.schema) == 0 {
		return errors.WrapInvalid(fmt.Errorf("empty schema"),
			"natsdelta", "Initialize", "validating schema")
	}
	return nil
}

// Start subscribes to the delta subject
func (i *Input) Start(ctx context.Context) error {
	if !i.running.CompareAndSwap(false, true) {
		return nil
	}
	err := i.client.Subscribe(ctx, i.subject, i.handle)
	if err != nil {
		i.running.Store(false)
		return errors.Wrap(err, "natsdelta", "Start", "subscribing")
	}
	i.logger.Info("listening for deltas")
	return nil
}

// Stop detaches the input. In-flight messages are dropped; the
// subscription itself is drained when the shared client closes.
func (i *Input) Stop(time.Duration) error {
	if !i.running.CompareAndSwap(true, false) {
		return nil
	}
	close(i.done)
	return nil
}

func (i *Input) handle(ctx context.Context, data []byte) {
	m, err := message.ParseDelta(data)
	if err != nil {
		i.metrics.RecordError("natsdelta", "decode")
		i.logger.Warn("dropping malformed delta", "error", err)
		return
	}
	delta, err := m.Delta(i.schema)
	if err != nil {
		i.metrics.RecordError("natsdelta", "schema")
		i.logger.Warn("dropping delta with bad rows", "timestamp", m.Timestamp, "error", err)
		return
	}
	i.metrics.RecordDeltaReceived("natsdelta")

	select {
	case i.ticks <- engine.Tick{Timestamp: m.Timestamp, Delta: delta}:
	case <-i.done:
	case <-ctx.Done():
	}
}
