package component

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComponent struct {
	name      string
	failStart bool
	events    *[]string
}

func (f *fakeComponent) Name() string { return f.name }

func (f *fakeComponent) Initialize() error {
	*f.events = append(*f.events, "init "+f.name)
	return nil
}

func (f *fakeComponent) Start(context.Context) error {
	if f.failStart {
		return errors.New("boom")
	}
	*f.events = append(*f.events, "start "+f.name)
	return nil
}

func (f *fakeComponent) Stop(time.Duration) error {
	*f.events = append(*f.events, "stop "+f.name)
	return nil
}

func newTestManager() *Manager {
	return NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestManagerStartStopOrder(t *testing.T) {
	events := []string{}
	m := newTestManager()
	m.Register(&fakeComponent{name: "a", events: &events})
	m.Register(&fakeComponent{name: "b", events: &events})

	require.NoError(t, m.StartAll(context.Background(), time.Second))
	assert.Equal(t, StateStarted, m.State("a"))
	assert.Equal(t, StateStarted, m.State("b"))

	require.NoError(t, m.StopAll(time.Second))
	assert.Equal(t, []string{
		"init a", "start a",
		"init b", "start b",
		"stop b", "stop a",
	}, events)
	assert.Equal(t, StateStopped, m.State("a"))
}

func TestManagerStartFailureRollsBack(t *testing.T) {
	events := []string{}
	m := newTestManager()
	m.Register(&fakeComponent{name: "a", events: &events})
	m.Register(&fakeComponent{name: "b", failStart: true, events: &events})

	err := m.StartAll(context.Background(), time.Second)
	require.Error(t, err)
	assert.Equal(t, StateFailed, m.State("b"))
	assert.Equal(t, StateStopped, m.State("a"))
	assert.Contains(t, events, "stop a")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "started", StateStarted.String())
	assert.Equal(t, "unknown", State(42).String())
}
