// Package server exposes the engine over HTTP: a chat endpoint, session and
// calendar management, and a websocket event feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lumenlabs/lumen/internal/agent"
	"github.com/lumenlabs/lumen/internal/events"
	"github.com/lumenlabs/lumen/internal/logging"
	"github.com/lumenlabs/lumen/internal/schedule"
	"github.com/lumenlabs/lumen/internal/session"
	"github.com/lumenlabs/lumen/internal/tools"
)

// Server hosts the HTTP API
type Server struct {
	orchestrator *agent.Orchestrator
	scheduler    *schedule.Scheduler
	sessions     *session.Store
	bus          *events.Bus
	agentID      string
	policy       *tools.Policy

	http *http.Server
}

// Options configures a Server
type Options struct {
	Addr    string
	AgentID string

	// Policy gates tool use for interactive turns. Nil means the full
	// profile.
	Policy *tools.Policy
}

// New builds the server and its routes
func New(o *agent.Orchestrator, s *schedule.Scheduler, sessions *session.Store, bus *events.Bus, opts Options) *Server {
	srv := &Server{
		orchestrator: o,
		scheduler:    s,
		sessions:     sessions,
		bus:          bus,
		agentID:      opts.AgentID,
		policy:       opts.Policy,
	}
	if srv.policy == nil {
		srv.policy = tools.FullPolicy()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Post("/api/chat", srv.handleChat)
	r.Get("/api/sessions", srv.handleListSessions)
	r.Get("/api/sessions/{id}/messages", srv.handleSessionMessages)
	r.Delete("/api/sessions/{id}", srv.handleDeleteSession)

	r.Route("/api/events", func(r chi.Router) {
		r.Get("/", srv.handleListEvents)
		r.Post("/", srv.handleCreateEvent)
		r.Get("/{id}", srv.handleGetEvent)
		r.Put("/{id}", srv.handleUpdateEvent)
		r.Delete("/{id}", srv.handleDeleteEvent)
		r.Post("/{id}/trigger", srv.handleTriggerEvent)
	})

	r.Get("/ws", srv.handleWS)

	srv.http = &http.Server{Addr: opts.Addr, Handler: r}
	return srv
}

// ListenAndServe blocks until the listener fails or Shutdown is called
func (s *Server) ListenAndServe() error {
	logging.Infof("[Server] listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type chatRequest struct {
	ConversationID string  `json:"conversation_id,omitempty"`
	AgentID        string  `json:"agent_id,omitempty"`
	Message        string  `json:"message"`
	Temperature    float64 `json:"temperature,omitempty"`
	Channel        string  `json:"channel,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	agentID := req.AgentID
	if agentID == "" {
		agentID = s.agentID
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		sess, err := s.sessions.GetOrCreate(agentID, session.KindMain, "")
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		conversationID = sess.ID
	}

	result, err := s.orchestrator.Run(r.Context(), agent.TurnRequest{
		ConversationID: conversationID,
		Message:        req.Message,
		Temperature:    req.Temperature,
		Channel:        req.Channel,
		Security: &tools.SecurityContext{
			AgentID:   agentID,
			SessionID: conversationID,
			Policy:    s.policy,
		},
	})
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"run_id":          result.RunID,
		"response":        result.Response,
		"tokens_used":     result.TokensUsed,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	messages, err := s.sessions.Messages(sess.ID, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	err := s.sessions.Delete(chi.URLParam(r, "id"))
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filter := schedule.ListFilter{UpcomingOnly: r.URL.Query().Get("upcoming") == "true"}
	eventsList, err := s.scheduler.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, eventsList)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var e schedule.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event body")
		return
	}
	e.Enabled = true
	if err := s.scheduler.Create(&e); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.scheduler.Get(chi.URLParam(r, "id"))
	if errors.Is(err, schedule.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.scheduler.Get(chi.URLParam(r, "id"))
	if errors.Is(err, schedule.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := json.NewDecoder(r.Body).Decode(e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event body")
		return
	}
	if err := s.scheduler.Update(e); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	err := s.scheduler.Delete(chi.URLParam(r, "id"))
	if errors.Is(err, schedule.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTriggerEvent(w http.ResponseWriter, r *http.Request) {
	err := s.scheduler.Trigger(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, schedule.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Errorf("[Server] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
