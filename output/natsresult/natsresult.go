// Package natsresult publishes query result deltas to per-query NATS
// subjects.
package natsresult

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
)

// Output publishes engine results on "<prefix>.<query>"
type Output struct {
	prefix  string
	client  *natsclient.Client
	metrics *metric.Metrics
	logger  *slog.Logger
	running atomic.Bool

	published atomic.Int64
}

var _ component.LifecycleComponent = (*Output)(nil)

// Deps holds the runtime dependencies of the output component
type Deps struct {
	SubjectPrefix string
	NATSClient    *natsclient.Client
	Metrics       *metric.Metrics
	Logger        *slog.Logger
}

// NewOutput creates the output component
func NewOutput(deps Deps) *Output {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Output{
		prefix:  deps.SubjectPrefix,
		client:  deps.NATSClient,
		metrics: deps.Metrics,
		logger:  logger.With("component", "natsresult"),
	}
}

// Name implements component.LifecycleComponent
func (o *Output) Name() string { return "natsresult" }

// Subject returns the subject a query's results are published on
func (o *Output) Subject(query string) string {
	return o.prefix + "." + query
}

// Published returns the number of results published so far
func (o *Output) Published() int64 {
	return o.published.Load()
}

// Initialize validates the component wiring
func (o *Output) Initialize() error {
	if o.prefix == "" {
		return errors.WrapInvalid(fmt.Errorf("empty subject prefix"),
			"natsresult", "Initialize", "validating prefix")
	}
	if o.client == nil {
		return errors.WrapInvalid(fmt.Errorf("nil NATS client"),
			"natsresult", "Initialize", "validating client")
	}
	return nil
}

// Start marks the output ready
func (o *Output) Start(context.Context) error {
	o.running.Store(true)
	return nil
}

// Stop marks the output stopped. Pending messages drain with the shared
// client.
func (o *Output) Stop(time.Duration) error {
	o.running.Store(false)
	return nil
}

// Publish sends one result delta
func (o *Output) Publish(ctx context.Context, res engine.Result) error {
	if !o.running.Load() {
		return errors.WrapInvalid(fmt.Errorf("output not started"),
			"natsresult", "Publish", "checking state")
	}

	msg := message.NewResult(res.Query, res.Timestamp, res.Inserts, res.Deletes)
	data, err := msg.Encode()
	if err != nil {
		o.metrics.RecordError("natsresult", "encode")
		return err
	}

	subject := o.Subject(res.Query)
	if err := o.client.Publish(ctx, subject, data); err != nil {
		o.metrics.RecordError("natsresult", "publish")
		return errors.WrapTransient(err, "natsresult", "Publish", "publishing to "+subject)
	}

	o.published.Add(1)
	o.metrics.RecordResultPublished("natsresult", subject)
	o.logger.Debug("result published",
		"query", res.Query,
		"timestamp", res.Timestamp,
		"inserts", len(res.Inserts),
		"deletes", len(res.Deletes))
	return nil
}
