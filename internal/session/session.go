// Package session owns conversation identity, message history, and delivery
// context. The SQLite store is the durable source of truth: every mutation
// writes through immediately, nothing is cached write-behind.
package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no session matches the given id or key.
var ErrNotFound = errors.New("session not found")

// ErrRecipientRequired is returned by delivery resolution when the stored
// delivery context does not match the requesting channel.
var ErrRecipientRequired = errors.New("recipient required: no delivery context for this channel")

// Session is a durable conversation thread
type Session struct {
	ID         string    `json:"id"`
	SessionKey string    `json:"session_key"`
	AgentID    string    `json:"agent_id"`
	Kind       string    `json:"kind"`
	Label      string    `json:"label,omitempty"`
	Delivery   Delivery  `json:"delivery"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Delivery records which external channel/address a conversation last used,
// so autonomous replies can be routed without the model knowing raw addresses.
type Delivery struct {
	LastChannel   string `json:"last_channel,omitempty"`
	LastTo        string `json:"last_to,omitempty"`
	OriginChannel string `json:"origin_channel,omitempty"`
	OriginAccount string `json:"origin_account,omitempty"`
}

// Message is one entry in a conversation's ordered message sequence
type Message struct {
	ID          int64           `json:"id,omitempty"`
	SessionID   string          `json:"session_id"`
	RunID       string          `json:"run_id,omitempty"`
	Role        string          `json:"role"` // user, assistant, tool, system
	Content     string          `json:"content,omitempty"`
	ToolCalls   json.RawMessage `json:"tool_calls,omitempty"`
	ToolResults json.RawMessage `json:"tool_results,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ToolCall is an assistant-requested tool invocation recorded on a message
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult correlates one tool execution back to its originating call
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Store handles session persistence
type Store struct {
	db *sql.DB
	// mu serializes getOrCreate read-modify-write cycles; plain reads and
	// single-statement writes rely on the pinned SQLite connection.
	mu sync.Mutex
}

// NewStore creates a session store over an open database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetOrCreate returns the session for (agentID, kind, label), creating it on
// first use. Exactly one session exists per derived key.
func (s *Store) GetOrCreate(agentID, kind, label string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(agentID, kind, label)
	if sess, err := s.getByKey(key); err == nil {
		return sess, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	sess := &Session{
		ID:         uuid.New().String(),
		SessionKey: key,
		AgentID:    agentID,
		Kind:       kind,
		Label:      label,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, session_key, agent_id, kind, label, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.SessionKey, sess.AgentID, sess.Kind, sess.Label,
		now.Unix(), now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// GetByID looks a session up by its generated id. When no id matches, it
// falls back to treating the argument as a session key, since scheduler and
// channel-adapter callers sometimes hold only the key.
func (s *Store) GetByID(id string) (*Session, error) {
	sess, err := s.get(`SELECT `+sessionCols+` FROM sessions WHERE id = ?`, id)
	if errors.Is(err, ErrNotFound) {
		return s.getByKey(id)
	}
	return sess, err
}

// GetByKey looks a session up by its derived session key
func (s *Store) GetByKey(key string) (*Session, error) {
	return s.getByKey(key)
}

const sessionCols = `id, session_key, agent_id, kind, label,
	last_channel, last_to, origin_channel, origin_account, created_at, updated_at`

func (s *Store) getByKey(key string) (*Session, error) {
	return s.get(`SELECT `+sessionCols+` FROM sessions WHERE session_key = ?`, key)
}

func (s *Store) get(query string, arg any) (*Session, error) {
	row := s.db.QueryRow(query, arg)

	var sess Session
	var created, updated int64
	err := row.Scan(&sess.ID, &sess.SessionKey, &sess.AgentID, &sess.Kind, &sess.Label,
		&sess.Delivery.LastChannel, &sess.Delivery.LastTo,
		&sess.Delivery.OriginChannel, &sess.Delivery.OriginAccount,
		&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sess.CreatedAt = time.Unix(created, 0)
	sess.UpdatedAt = time.Unix(updated, 0)
	return &sess, nil
}

// List returns all sessions ordered by most recent activity
func (s *Store) List() ([]Session, error) {
	rows, err := s.db.Query(`SELECT ` + sessionCols + ` FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var created, updated int64
		if err := rows.Scan(&sess.ID, &sess.SessionKey, &sess.AgentID, &sess.Kind, &sess.Label,
			&sess.Delivery.LastChannel, &sess.Delivery.LastTo,
			&sess.Delivery.OriginChannel, &sess.Delivery.OriginAccount,
			&created, &updated); err != nil {
			return nil, err
		}
		sess.CreatedAt = time.Unix(created, 0)
		sess.UpdatedAt = time.Unix(updated, 0)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Delete removes a session and (via cascade) its messages
func (s *Store) Delete(sessionID string) error {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage persists one message at the end of a session's sequence
func (s *Store) AppendMessage(sessionID string, msg Message) error {
	var toolCalls, toolResults any
	if len(msg.ToolCalls) > 0 {
		toolCalls = string(msg.ToolCalls)
	}
	if len(msg.ToolResults) > 0 {
		toolResults = string(msg.ToolResults)
	}

	_, err := s.db.Exec(
		`INSERT INTO session_messages (session_id, run_id, role, content, tool_calls, tool_results)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, msg.RunID, msg.Role, msg.Content, toolCalls, toolResults,
	)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	_, err = s.db.Exec(`UPDATE sessions SET updated_at = ? WHERE id = ?`,
		time.Now().Unix(), sessionID)
	return err
}

// Messages returns up to limit recent messages in chronological order.
// limit <= 0 returns the full history.
func (s *Store) Messages(sessionID string, limit int) ([]Message, error) {
	query := `SELECT id, session_id, run_id, role, content, tool_calls, tool_results, created_at
		FROM session_messages WHERE session_id = ? ORDER BY id DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var toolCalls, toolResults sql.NullString
		var created int64
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.RunID, &msg.Role, &msg.Content,
			&toolCalls, &toolResults, &created); err != nil {
			return nil, err
		}
		if toolCalls.Valid {
			msg.ToolCalls = json.RawMessage(toolCalls.String)
		}
		if toolResults.Valid {
			msg.ToolResults = json.RawMessage(toolResults.String)
		}
		msg.CreatedAt = time.Unix(created, 0)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// UpdateDeliveryContext records the channel/address a conversation last used.
// Last write wins; empty origin fields leave the stored origin untouched.
func (s *Store) UpdateDeliveryContext(sessionID string, d Delivery) error {
	result, err := s.db.Exec(
		`UPDATE sessions SET
			last_channel = ?,
			last_to = ?,
			origin_channel = CASE WHEN ? != '' THEN ? ELSE origin_channel END,
			origin_account = CASE WHEN ? != '' THEN ? ELSE origin_account END,
			updated_at = ?
		 WHERE id = ?`,
		d.LastChannel, d.LastTo,
		d.OriginChannel, d.OriginChannel,
		d.OriginAccount, d.OriginAccount,
		time.Now().Unix(), sessionID,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ResolveDeliveryTarget resolves "reply to the current chat" for a channel
// send tool that was given no explicit recipient. The stored delivery channel
// must match the requesting channel, otherwise the caller has to supply a
// recipient itself.
func (s *Store) ResolveDeliveryTarget(sessionID, channel string) (string, error) {
	sess, err := s.GetByID(sessionID)
	if err != nil {
		return "", err
	}
	if sess.Delivery.LastChannel == channel && sess.Delivery.LastTo != "" {
		return sess.Delivery.LastTo, nil
	}
	return "", ErrRecipientRequired
}
