package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lumenlabs/lumen/internal/logging"
	"github.com/lumenlabs/lumen/internal/schedule"
	"github.com/lumenlabs/lumen/internal/session"
	"github.com/lumenlabs/lumen/internal/tools"
)

// ScheduledRunner adapts the orchestrator to fired calendar events. "main"
// targets reuse the agent's main conversation; "isolated" targets get a
// fresh conversation per fire so the task cannot pollute ongoing chat.
type ScheduledRunner struct {
	orchestrator *Orchestrator
	sessions     *session.Store
	agentID      string
}

// NewScheduledRunner wires the adapter. agentID is the fallback when an
// event names no agent.
func NewScheduledRunner(o *Orchestrator, sessions *session.Store, agentID string) *ScheduledRunner {
	return &ScheduledRunner{orchestrator: o, sessions: sessions, agentID: agentID}
}

// RunScheduled resolves or creates the target conversation and runs the
// event's message as a turn
func (r *ScheduledRunner) RunScheduled(ctx context.Context, req schedule.TurnRequest) error {
	agentID := req.AgentID
	if agentID == "" {
		agentID = r.agentID
	}

	var (
		sess *session.Session
		err  error
	)
	switch req.Target {
	case schedule.TargetIsolated:
		sess, err = r.sessions.GetOrCreate(agentID, session.KindIsolated, uuid.NewString())
	default:
		sess, err = r.sessions.GetOrCreate(agentID, session.KindMain, "")
	}
	if err != nil {
		return fmt.Errorf("resolve scheduled conversation: %w", err)
	}

	logging.Infof("[Agent] scheduled turn for event %s on %s", req.EventID, sess.ID)
	_, err = r.orchestrator.Run(ctx, TurnRequest{
		ConversationID: sess.ID,
		Message:        req.Message,
		Security: &tools.SecurityContext{
			AgentID:   agentID,
			SessionID: sess.ID,
			Policy:    tools.FullPolicy(),
		},
	})
	return err
}
