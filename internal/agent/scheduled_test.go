package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlabs/lumen/internal/ai"
	"github.com/lumenlabs/lumen/internal/schedule"
	"github.com/lumenlabs/lumen/internal/session"
)

func TestScheduledMainTargetReusesConversation(t *testing.T) {
	o, f := newFixture(t, Options{})
	runner := NewScheduledRunner(o, f.sessions, "nova")

	f.mock.Queue(&ai.ChatResponse{Content: "done"})
	f.mock.Queue(&ai.ChatResponse{Content: "done again"})

	req := schedule.TurnRequest{EventID: "e1", Target: schedule.TargetMain, Message: "check the feeds"}
	require.NoError(t, runner.RunScheduled(context.Background(), req))
	require.NoError(t, runner.RunScheduled(context.Background(), req))

	sessions, err := f.sessions.List()
	require.NoError(t, err)
	// both fires share the fixture's main conversation
	assert.Len(t, sessions, 1)

	msgs, err := f.sessions.Messages(f.sess.ID, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
}

func TestScheduledIsolatedTargetCreatesFreshConversation(t *testing.T) {
	o, f := newFixture(t, Options{})
	runner := NewScheduledRunner(o, f.sessions, "nova")

	f.mock.Queue(&ai.ChatResponse{Content: "ok"})
	f.mock.Queue(&ai.ChatResponse{Content: "ok"})

	req := schedule.TurnRequest{EventID: "e1", Target: schedule.TargetIsolated, Message: "run the backup"}
	require.NoError(t, runner.RunScheduled(context.Background(), req))
	require.NoError(t, runner.RunScheduled(context.Background(), req))

	sessions, err := f.sessions.List()
	require.NoError(t, err)

	isolated := 0
	for _, s := range sessions {
		if s.Kind == session.KindIsolated {
			isolated++
		}
	}
	assert.Equal(t, 2, isolated)
}
