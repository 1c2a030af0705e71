package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlabs/lumen/internal/db"
)

type fakeRunner struct {
	requests chan TurnRequest
	err      error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{requests: make(chan TurnRequest, 8)}
}

func (f *fakeRunner) RunScheduled(_ context.Context, req TurnRequest) error {
	f.requests <- req
	return f.err
}

func newTestScheduler(t *testing.T, runner Runner) *Scheduler {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return New(database, Options{Runner: runner, TurnTimeout: time.Second})
}

func TestTriggerForceFires(t *testing.T) {
	runner := newFakeRunner()
	s := newTestScheduler(t, runner)

	e := &Event{
		Title:      "watering",
		StartAt:    time.Now().Add(24 * time.Hour),
		Enabled:    true,
		Recurrence: RecurrenceRule{Kind: RecurWeekly, Interval: 1},
		Action:     Action{Kind: ActionAgent, Message: "water the plants", Target: TargetIsolated, AgentID: "nova"},
	}
	require.NoError(t, s.Create(e))

	require.NoError(t, s.Trigger(context.Background(), e.ID))

	select {
	case req := <-runner.requests:
		assert.Equal(t, e.ID, req.EventID)
		assert.Equal(t, "nova", req.AgentID)
		assert.Equal(t, TargetIsolated, req.Target)
		assert.Equal(t, "water the plants", req.Message)
	case <-time.After(time.Second):
		t.Fatal("runner was not invoked")
	}

	got, err := s.Get(e.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastTriggeredAt)
}

func TestTriggerUnknownEvent(t *testing.T) {
	s := newTestScheduler(t, newFakeRunner())
	assert.ErrorIs(t, s.Trigger(context.Background(), "nope"), ErrNotFound)
}

func TestFireDueRunsAndReschedules(t *testing.T) {
	runner := newFakeRunner()
	s := newTestScheduler(t, runner)

	e := &Event{
		Title:      "digest",
		StartAt:    time.Now().Add(-time.Minute),
		Enabled:    true,
		Recurrence: RecurrenceRule{Kind: RecurDaily, Interval: 1},
		Action:     Action{Kind: ActionAgent, Message: "send the digest", Target: TargetMain},
	}
	require.NoError(t, s.store.Create(e))
	past := time.Now().Add(-time.Second)
	e.NextOccurrenceAt = &past
	_, err := s.store.db.Exec(`UPDATE calendar_events SET next_occurrence_at = ? WHERE id = ?`, past.Unix(), e.ID)
	require.NoError(t, err)

	s.fireDue(context.Background())

	select {
	case req := <-runner.requests:
		assert.Equal(t, "send the digest", req.Message)
	case <-time.After(time.Second):
		t.Fatal("runner was not invoked")
	}

	got, err := s.Get(e.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextOccurrenceAt)
	assert.True(t, got.NextOccurrenceAt.After(time.Now()))
}

func TestRunnerFailureDoesNotUnschedule(t *testing.T) {
	runner := newFakeRunner()
	runner.err = errors.New("model unavailable")
	s := newTestScheduler(t, runner)

	e := &Event{
		Title:      "digest",
		StartAt:    time.Now().Add(-time.Minute),
		Enabled:    true,
		Recurrence: RecurrenceRule{Kind: RecurDaily, Interval: 1},
		Action:     Action{Kind: ActionAgent, Message: "send the digest", Target: TargetMain},
	}
	require.NoError(t, s.store.Create(e))
	past := time.Now().Add(-time.Second)
	_, err := s.store.db.Exec(`UPDATE calendar_events SET next_occurrence_at = ? WHERE id = ?`, past.Unix(), e.ID)
	require.NoError(t, err)

	s.fireDue(context.Background())
	<-runner.requests

	got, err := s.Get(e.ID)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	require.NotNil(t, got.NextOccurrenceAt)
}

func TestSystemActionNotifies(t *testing.T) {
	var notified *Event
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	s := New(database, Options{Notify: func(e *Event) { notified = e }})

	e := &Event{
		Title:      "standup",
		StartAt:    time.Now().Add(time.Hour),
		Enabled:    true,
		Recurrence: RecurrenceRule{Kind: RecurNone},
		Action:     Action{Kind: ActionSystem, Message: "standup in 10"},
	}
	require.NoError(t, s.Create(e))
	require.NoError(t, s.Trigger(context.Background(), e.ID))

	require.NotNil(t, notified)
	assert.Equal(t, "standup", notified.Title)
}
