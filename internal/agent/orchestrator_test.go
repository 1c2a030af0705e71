package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlabs/lumen/internal/ai"
	"github.com/lumenlabs/lumen/internal/db"
	"github.com/lumenlabs/lumen/internal/events"
	"github.com/lumenlabs/lumen/internal/session"
	"github.com/lumenlabs/lumen/internal/tools"
)

type fixture struct {
	mock     *ai.Mock
	registry *tools.Registry
	sessions *session.Store
	sess     *session.Session
}

func newFixture(t *testing.T, opts Options) (*Orchestrator, *fixture) {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	sessions := session.NewStore(database)
	sess, err := sessions.GetOrCreate("nova", session.KindMain, "")
	require.NoError(t, err)

	mock := ai.NewMock()
	registry := tools.NewRegistry(tools.DefaultTruncateOptions())
	registry.Register(&echoTool{})

	return New(mock, registry, sessions, opts), &fixture{
		mock:     mock,
		registry: registry,
		sessions: sessions,
		sess:     sess,
	}
}

// echoTool repeats its input back
type echoTool struct{}

func (echoTool) Name() string            { return "echo" }
func (echoTool) Description() string     { return "repeats input" }
func (echoTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (echoTool) Execute(_ context.Context, input json.RawMessage, _ *tools.ExecContext) (*tools.ToolResult, error) {
	return &tools.ToolResult{Content: "echo " + string(input)}, nil
}

func fullSecurity(sess *session.Session) *tools.SecurityContext {
	return &tools.SecurityContext{AgentID: "nova", SessionID: sess.ID, Policy: &tools.Policy{}}
}

func TestPlainResponseTurn(t *testing.T) {
	o, f := newFixture(t, Options{})
	f.mock.Queue(&ai.ChatResponse{Content: "hello there", Usage: ai.Usage{InputTokens: 10, OutputTokens: 5}})

	result, err := o.Run(context.Background(), TurnRequest{
		ConversationID: f.sess.ID,
		Message:        "hi",
		Security:       fullSecurity(f.sess),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "hello there", result.Response)
	assert.Equal(t, 15, result.TokensUsed)

	msgs, err := f.sessions.Messages(f.sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, result.RunID, msgs[1].RunID)
}

func TestEveryToolCallGetsExactlyOneResult(t *testing.T) {
	o, f := newFixture(t, Options{})

	// two calls, one naming an unregistered tool
	f.mock.Queue(&ai.ChatResponse{ToolCalls: []ai.ToolCall{
		{ID: "c1", Name: "echo", Input: json.RawMessage(`{"x":1}`)},
		{ID: "c2", Name: "nonesuch", Input: json.RawMessage(`{}`)},
	}})
	f.mock.Queue(&ai.ChatResponse{Content: "done"})

	result, err := o.Run(context.Background(), TurnRequest{
		ConversationID: f.sess.ID,
		Message:        "go",
		Security:       fullSecurity(f.sess),
	})
	require.NoError(t, err)
	assert.Equal(t, "done", result.Response)

	// history: user, assistant(tool_calls), tool(results), assistant
	msgs, err := f.sessions.Messages(f.sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "tool", msgs[2].Role)

	var results []session.ToolResult
	require.NoError(t, json.Unmarshal(msgs[2].ToolResults, &results))
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].ToolCallID)
	assert.False(t, results[0].IsError)
	assert.Equal(t, "c2", results[1].ToolCallID)
	assert.True(t, results[1].IsError)
	assert.Contains(t, results[1].Content, "nonesuch")

	// the second model call saw the tool results
	calls := f.mock.Calls()
	require.Len(t, calls, 2)
	last := calls[1].Messages[len(calls[1].Messages)-1]
	assert.Equal(t, "tool", last.Role)
}

func TestRoundLimit(t *testing.T) {
	o, f := newFixture(t, Options{MaxRounds: 2})

	loop := &ai.ChatResponse{ToolCalls: []ai.ToolCall{{ID: "c", Name: "echo", Input: json.RawMessage(`{}`)}}}
	f.mock.Queue(loop).Queue(loop).Queue(loop)

	_, err := o.Run(context.Background(), TurnRequest{
		ConversationID: f.sess.ID,
		Message:        "loop forever",
		Security:       fullSecurity(f.sess),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRoundLimit)
	require.Len(t, f.mock.Calls(), 2)
}

func TestModelFailureIsFatal(t *testing.T) {
	o, f := newFixture(t, Options{})
	f.mock.QueueError(errors.New("upstream down"))

	var mu sync.Mutex
	var seen []string
	sink := events.SinkFunc(func(e events.Event) {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
	})

	_, err := o.Run(context.Background(), TurnRequest{
		ConversationID: f.sess.ID,
		Message:        "hi",
		Security:       fullSecurity(f.sess),
		Sink:           sink,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, events.TypeRunStarted)
	assert.Contains(t, seen, events.TypeRunError)

	// the user message is still durable
	msgs, err := f.sessions.Messages(f.sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
}

func TestSinkFailureDoesNotAbortTurn(t *testing.T) {
	o, f := newFixture(t, Options{})
	f.mock.Queue(&ai.ChatResponse{Content: "fine"})

	sink := events.SinkFunc(func(events.Event) { panic("broken sink") })
	result, err := o.Run(context.Background(), TurnRequest{
		ConversationID: f.sess.ID,
		Message:        "hi",
		Security:       fullSecurity(f.sess),
		Sink:           sink,
	})
	require.NoError(t, err)
	assert.Equal(t, "fine", result.Response)
}

func TestEventOrdering(t *testing.T) {
	o, f := newFixture(t, Options{})
	f.mock.Queue(&ai.ChatResponse{ToolCalls: []ai.ToolCall{{ID: "c1", Name: "echo", Input: json.RawMessage(`{}`)}}})
	f.mock.Queue(&ai.ChatResponse{Content: "done"})

	var mu sync.Mutex
	var seen []string
	sink := events.SinkFunc(func(e events.Event) {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
	})

	_, err := o.Run(context.Background(), TurnRequest{
		ConversationID: f.sess.ID,
		Message:        "go",
		Security:       fullSecurity(f.sess),
		Sink:           sink,
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, events.TypeRunStarted, seen[0])
	assert.Equal(t, events.TypeRunCompleted, seen[len(seen)-1])
	assert.Contains(t, seen, events.TypeToolCall)
	assert.Contains(t, seen, events.TypeToolResult)
}

func TestUnknownConversation(t *testing.T) {
	o, _ := newFixture(t, Options{})
	_, err := o.Run(context.Background(), TurnRequest{ConversationID: "ghost", Message: "hi"})
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestConversationKeyAccepted(t *testing.T) {
	o, f := newFixture(t, Options{})
	f.mock.Queue(&ai.ChatResponse{Content: "via key"})

	result, err := o.Run(context.Background(), TurnRequest{
		ConversationID: f.sess.SessionKey,
		Message:        "hi",
		Security:       fullSecurity(f.sess),
	})
	require.NoError(t, err)
	assert.Equal(t, "via key", result.Response)
}
