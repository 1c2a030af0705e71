package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlabs/lumen/internal/agent"
	"github.com/lumenlabs/lumen/internal/ai"
	"github.com/lumenlabs/lumen/internal/db"
	"github.com/lumenlabs/lumen/internal/events"
	"github.com/lumenlabs/lumen/internal/schedule"
	"github.com/lumenlabs/lumen/internal/session"
	"github.com/lumenlabs/lumen/internal/tools"
)

func newTestServer(t *testing.T) (*httptest.Server, *ai.Mock) {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	sessions := session.NewStore(database)
	mock := ai.NewMock()
	registry := tools.NewRegistry(tools.DefaultTruncateOptions())
	bus := events.NewBus()

	orchestrator := agent.New(mock, registry, sessions, agent.Options{Sink: bus})
	scheduler := schedule.New(database, schedule.Options{})

	srv := New(orchestrator, scheduler, sessions, bus, Options{
		Addr:    "127.0.0.1:0",
		AgentID: "nova",
		Policy:  &tools.Policy{},
	})

	ts := httptest.NewServer(srv.http.Handler)
	t.Cleanup(ts.Close)
	return ts, mock
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func TestChatCreatesConversationAndResponds(t *testing.T) {
	ts, mock := newTestServer(t)
	mock.Queue(&ai.ChatResponse{Content: "hi from the agent"})

	resp := postJSON(t, ts.URL+"/api/chat", map[string]any{"message": "hello"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ConversationID string `json:"conversation_id"`
		RunID          string `json:"run_id"`
		Response       string `json:"response"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "hi from the agent", body.Response)
	assert.NotEmpty(t, body.ConversationID)
	assert.NotEmpty(t, body.RunID)
}

func TestChatRequiresMessage(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/chat", map[string]any{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatUnknownConversation(t *testing.T) {
	ts, mock := newTestServer(t)
	mock.Queue(&ai.ChatResponse{Content: "unused"})

	resp := postJSON(t, ts.URL+"/api/chat", map[string]any{
		"conversation_id": "ghost", "message": "hi",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEventCRUD(t *testing.T) {
	ts, _ := newTestServer(t)

	create := postJSON(t, ts.URL+"/api/events", map[string]any{
		"title":      "standup",
		"start_at":   time.Now().Add(time.Hour).Format(time.RFC3339),
		"recurrence": map[string]any{"kind": "daily", "interval": 1},
		"action":     map[string]any{"kind": "system", "message": "standup time"},
	})
	defer create.Body.Close()
	require.Equal(t, http.StatusCreated, create.StatusCode)

	var created schedule.Event
	require.NoError(t, json.NewDecoder(create.Body).Decode(&created))
	require.NotEmpty(t, created.ID)

	get, err := http.Get(ts.URL + "/api/events/" + created.ID)
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusOK, get.StatusCode)

	list, err := http.Get(ts.URL + "/api/events")
	require.NoError(t, err)
	defer list.Body.Close()
	var all []schedule.Event
	require.NoError(t, json.NewDecoder(list.Body).Decode(&all))
	assert.Len(t, all, 1)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/events/"+created.ID, nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)

	missing, err := http.Get(ts.URL + "/api/events/" + created.ID)
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestSessionEndpoints(t *testing.T) {
	ts, mock := newTestServer(t)
	mock.Queue(&ai.ChatResponse{Content: "noted"})

	chat := postJSON(t, ts.URL+"/api/chat", map[string]any{"message": "remember this"})
	chat.Body.Close()

	resp, err := http.Get(ts.URL + "/api/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()

	var sessions []session.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessions))
	require.Len(t, sessions, 1)

	msgs, err := http.Get(ts.URL + "/api/sessions/" + sessions[0].ID + "/messages")
	require.NoError(t, err)
	defer msgs.Body.Close()

	var history []session.Message
	require.NoError(t, json.NewDecoder(msgs.Body).Decode(&history))
	assert.Len(t, history, 2)
}
