package natsresult

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampref/streampref/engine"
	"github.com/streampref/streampref/errors"
	"github.com/streampref/streampref/natsclient"
)

func newTestOutput(t *testing.T) *Output {
	t.Helper()
	client, err := natsclient.NewClient("nats://localhost:4222")
	require.NoError(t, err)
	return NewOutput(Deps{
		SubjectPrefix: "streampref.results",
		NATSClient:    client,
	})
}

func TestSubject(t *testing.T) {
	out := newTestOutput(t)
	assert.Equal(t, "streampref.results.best_moves", out.Subject("best_moves"))
}

func TestInitializeValidation(t *testing.T) {
	out := newTestOutput(t)
	require.NoError(t, out.Initialize())

	bad := NewOutput(Deps{})
	assert.True(t, errors.IsInvalid(bad.Initialize()))
}

func TestPublishRequiresStart(t *testing.T) {
	out := newTestOutput(t)
	err := out.Publish(context.Background(), engine.Result{Query: "q", Timestamp: 1})
	assert.True(t, errors.IsInvalid(err))
}

func TestPublishWithoutConnection(t *testing.T) {
	out := newTestOutput(t)
	require.NoError(t, out.Start(context.Background()))

	// The client was never connected, so publishing fails transient and
	// the counter stays put.
	err := out.Publish(context.Background(), engine.Result{Query: "q", Timestamp: 1})
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, int64(0), out.Published())

	require.NoError(t, out.Stop(time.Second))
}
