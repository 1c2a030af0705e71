// Package memory stores durable facts the agent accumulates across
// conversations and formats them into the system prompt.
package memory

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned for unknown memory keys
var ErrNotFound = errors.New("memory not found")

// Entry is one remembered fact
type Entry struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Store persists memories in SQLite
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Set upserts a memory
func (s *Store) Set(key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("memory requires a key")
	}
	now := time.Now().Unix()
	_, err := s.db.Exec(`INSERT INTO memories (key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now, now)
	if err != nil {
		return fmt.Errorf("set memory: %w", err)
	}
	return nil
}

// Get returns one memory value
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM memories WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get memory: %w", err)
	}
	return value, nil
}

// Delete forgets a memory
func (s *Store) Delete(key string) error {
	res, err := s.db.Exec(`DELETE FROM memories WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all memories sorted by key
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query(`SELECT key, value, updated_at FROM memories`)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var updated int64
		if err := rows.Scan(&e.Key, &e.Value, &updated); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		e.UpdatedAt = time.Unix(updated, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// PromptSection renders all memories as a system-prompt block, or "" when
// nothing is stored
func (s *Store) PromptSection() string {
	entries, err := s.List()
	if err != nil || len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Things you remember about the user and past work:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s: %s\n", e.Key, e.Value)
	}
	return b.String()
}
