// Package agent drives one user turn to completion: it calls the model,
// dispatches requested tools through the registry, feeds results back, and
// persists every step, possibly across several tool round-trips.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlabs/lumen/internal/ai"
	"github.com/lumenlabs/lumen/internal/events"
	"github.com/lumenlabs/lumen/internal/logging"
	"github.com/lumenlabs/lumen/internal/memory"
	"github.com/lumenlabs/lumen/internal/session"
	"github.com/lumenlabs/lumen/internal/tools"
)

// ErrRoundLimit marks a turn that hit the tool round-trip bound before the
// model produced a final response.
var ErrRoundLimit = errors.New("tool round limit exceeded")

// DefaultMaxRounds bounds tool round-trips within one turn
const DefaultMaxRounds = 24

// TurnRequest is one inbound user turn
type TurnRequest struct {
	// ConversationID is a session id (or session key, for callers that
	// only hold the key)
	ConversationID string

	// Message is the user's text
	Message string

	// Temperature overrides the model temperature when > 0
	Temperature float64

	// Security gates which tools this turn may use. Nil denies all tools.
	Security *tools.SecurityContext

	// Channel is the external channel this turn arrived on, if any. It
	// feeds delivery-context resolution for channel sends.
	Channel string

	// Sink receives this turn's lifecycle events in addition to the
	// orchestrator's own sink. Optional.
	Sink events.Sink
}

// TurnResult is the completed turn
type TurnResult struct {
	RunID      string `json:"run_id"`
	Response   string `json:"response"`
	TokensUsed int    `json:"tokens_used,omitempty"`
}

// Options configures an Orchestrator
type Options struct {
	// Identity is the agent's system-prompt persona
	Identity string

	// MaxRounds bounds tool round-trips per turn. Zero means the default.
	MaxRounds int

	// MaxHistory bounds how many stored messages feed each model call.
	// Zero means the full history.
	MaxHistory int

	// Memories contributes remembered facts to the system prompt. Optional.
	Memories *memory.Store

	// Sink receives lifecycle events for every turn. Optional.
	Sink events.Sink
}

// Orchestrator is the turn state machine. Safe for concurrent use; turns on
// the same conversation are serialized.
type Orchestrator struct {
	provider   ai.Provider
	registry   *tools.Registry
	sessions   *session.Store
	memories   *memory.Store
	sink       events.Sink
	identity   string
	maxRounds  int
	maxHistory int
	locks      *convLocks
}

// New wires an orchestrator from its collaborators
func New(provider ai.Provider, registry *tools.Registry, sessions *session.Store, opts Options) *Orchestrator {
	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Orchestrator{
		provider:   provider,
		registry:   registry,
		sessions:   sessions,
		memories:   opts.Memories,
		sink:       opts.Sink,
		identity:   opts.Identity,
		maxRounds:  maxRounds,
		maxHistory: opts.MaxHistory,
		locks:      newConvLocks(),
	}
}

// Run executes one turn: persist the user message, then loop model call →
// tool dispatch → result append until the model answers without tool calls
// or the round limit trips.
func (o *Orchestrator) Run(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	sess, err := o.sessions.GetByID(req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation %q: %w", req.ConversationID, err)
	}

	unlock := o.locks.lock(sess.ID)
	defer unlock()

	runID := uuid.NewString()
	emit := o.emitter(req.Sink, runID, sess.ID)
	emit(events.TypeRunStarted, map[string]string{"message": req.Message})

	// the user message is durable before the first model call, so a crash
	// mid-turn never loses what the user said
	if err := o.sessions.AppendMessage(sess.ID, session.Message{
		RunID:   runID,
		Role:    "user",
		Content: req.Message,
	}); err != nil {
		emit(events.TypeRunError, err.Error())
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	system := o.systemPrompt(sess)
	defs := o.registry.Definitions(policyOf(req.Security))

	ec := &tools.ExecContext{
		SessionID: sess.ID,
		Channel:   req.Channel,
		Security:  req.Security,
		Emit: func(ev any) {
			emit(events.TypeToolResult, ev)
		},
	}

	tokens := 0
	for round := 0; round < o.maxRounds; round++ {
		history, err := o.sessions.Messages(sess.ID, o.maxHistory)
		if err != nil {
			emit(events.TypeRunError, err.Error())
			return nil, fmt.Errorf("load history: %w", err)
		}

		resp, err := o.provider.Complete(ctx, &ai.ChatRequest{
			Messages:    history,
			Tools:       defs,
			System:      system,
			Temperature: req.Temperature,
		})
		if err != nil {
			// model failures are fatal to the turn, never swallowed
			emit(events.TypeRunError, err.Error())
			return nil, fmt.Errorf("model call: %w", err)
		}
		tokens += resp.Usage.Total()

		if len(resp.ToolCalls) == 0 {
			if err := o.sessions.AppendMessage(sess.ID, session.Message{
				RunID:   runID,
				Role:    "assistant",
				Content: resp.Content,
			}); err != nil {
				emit(events.TypeRunError, err.Error())
				return nil, fmt.Errorf("persist response: %w", err)
			}
			emit(events.TypeRunCompleted, map[string]any{"response": resp.Content, "tokens": tokens})
			return &TurnResult{RunID: runID, Response: resp.Content, TokensUsed: tokens}, nil
		}

		if err := o.appendAssistantCalls(sess.ID, runID, resp); err != nil {
			emit(events.TypeRunError, err.Error())
			return nil, err
		}

		results := make([]session.ToolResult, 0, len(resp.ToolCalls))
		for i := range resp.ToolCalls {
			call := &resp.ToolCalls[i]
			emit(events.TypeToolCall, map[string]any{"id": call.ID, "name": call.Name, "input": call.Input})

			res := o.registry.Execute(ctx, call, req.Security, ec)
			emit(events.TypeToolResult, map[string]any{"id": call.ID, "name": call.Name, "is_error": res.IsError})

			results = append(results, session.ToolResult{
				ToolCallID: call.ID,
				Content:    res.Content,
				IsError:    res.IsError,
			})
		}

		if err := o.appendToolResults(sess.ID, runID, results); err != nil {
			emit(events.TypeRunError, err.Error())
			return nil, err
		}
	}

	emit(events.TypeRunError, ErrRoundLimit.Error())
	return nil, fmt.Errorf("turn %s: %w after %d rounds", runID, ErrRoundLimit, o.maxRounds)
}

// appendAssistantCalls records the model's tool-call response
func (o *Orchestrator) appendAssistantCalls(sessionID, runID string, resp *ai.ChatResponse) error {
	calls := make([]session.ToolCall, 0, len(resp.ToolCalls))
	for _, c := range resp.ToolCalls {
		calls = append(calls, session.ToolCall{ID: c.ID, Name: c.Name, Input: c.Input})
	}
	raw, err := json.Marshal(calls)
	if err != nil {
		return fmt.Errorf("encode tool calls: %w", err)
	}
	if err := o.sessions.AppendMessage(sessionID, session.Message{
		RunID:     runID,
		Role:      "assistant",
		Content:   resp.Content,
		ToolCalls: raw,
	}); err != nil {
		return fmt.Errorf("persist tool calls: %w", err)
	}
	return nil
}

// appendToolResults records one tool-role message carrying every result of
// the round, each tagged with its originating call id
func (o *Orchestrator) appendToolResults(sessionID, runID string, results []session.ToolResult) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode tool results: %w", err)
	}
	if err := o.sessions.AppendMessage(sessionID, session.Message{
		RunID:       runID,
		Role:        "tool",
		ToolResults: raw,
	}); err != nil {
		return fmt.Errorf("persist tool results: %w", err)
	}
	return nil
}

// systemPrompt assembles the identity, the current time, and remembered
// facts into the system block
func (o *Orchestrator) systemPrompt(sess *session.Session) string {
	prompt := o.identity
	if prompt == "" {
		prompt = "You are a capable personal assistant. Use your tools when they help."
	}
	prompt += "\n\nCurrent time: " + time.Now().Format(time.RFC1123)
	if o.memories != nil {
		if section := o.memories.PromptSection(); section != "" {
			prompt += "\n\n" + section
		}
	}
	if sess.Kind == session.KindIsolated {
		prompt += "\n\nThis is an isolated scheduled task. Complete it and report the outcome."
	}
	return prompt
}

// emitter folds the orchestrator sink and a per-request sink into one
// nil-safe, panic-safe emit function. A sink failure never aborts the turn.
func (o *Orchestrator) emitter(extra events.Sink, runID, sessionID string) func(typ string, payload any) {
	return func(typ string, payload any) {
		ev := events.Event{
			Type:      typ,
			RunID:     runID,
			SessionID: sessionID,
			Timestamp: time.Now(),
			Payload:   payload,
		}
		for _, sink := range []events.Sink{o.sink, extra} {
			if sink == nil {
				continue
			}
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						logging.Warnf("[Agent] event sink panicked: %v", rec)
					}
				}()
				sink.Emit(ev)
			}()
		}
	}
}

func policyOf(sec *tools.SecurityContext) *tools.Policy {
	if sec == nil {
		return nil
	}
	return sec.Policy
}
