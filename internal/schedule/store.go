package schedule

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an event id does not exist
var ErrNotFound = errors.New("event not found")

// Store persists calendar events in SQLite. Every mutation writes through,
// so restarts resume from stored state.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const eventColumns = `id, title, start_at, end_at,
	recurrence_kind, recurrence_interval, recurrence_until, cron_expr, cron_tz,
	action_kind, action_message, action_target, action_agent_id,
	enabled, created_at, last_triggered_at, next_occurrence_at`

// Create validates, assigns an id, computes the first occurrence, and
// persists the event
func (s *Store) Create(e *Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now()
	e.CreatedAt = now
	e.NextOccurrenceAt = nextOrNil(e, now)

	_, err := s.db.Exec(`INSERT INTO calendar_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.StartAt.Unix(), unixOrNil(e.EndAt),
		e.Recurrence.Kind, intervalOf(e), unixOrNil(e.Recurrence.Until), e.Recurrence.CronExpr, e.Recurrence.CronTZ,
		e.Action.Kind, e.Action.Message, e.Action.Target, e.Action.AgentID,
		boolToInt(e.Enabled), e.CreatedAt.Unix(), unixOrNil(e.LastTriggeredAt), unixOrNil(e.NextOccurrenceAt))
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// Get returns one event by id
func (s *Store) Get(id string) (*Event, error) {
	row := s.db.QueryRow(`SELECT `+eventColumns+` FROM calendar_events WHERE id = ?`, id)
	return scanEvent(row)
}

// ListFilter narrows List results
type ListFilter struct {
	// UpcomingOnly keeps enabled events with a future occurrence
	UpcomingOnly bool

	// From/To bound StartAt when non-zero
	From time.Time
	To   time.Time
}

// List returns events matching the filter, soonest first
func (s *Store) List(filter ListFilter) ([]*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM calendar_events WHERE 1=1`
	var args []any
	if filter.UpcomingOnly {
		query += ` AND enabled = 1 AND next_occurrence_at IS NOT NULL AND next_occurrence_at > ?`
		args = append(args, time.Now().Unix())
	}
	if !filter.From.IsZero() {
		query += ` AND start_at >= ?`
		args = append(args, filter.From.Unix())
	}
	if !filter.To.IsZero() {
		query += ` AND start_at <= ?`
		args = append(args, filter.To.Unix())
	}
	query += ` ORDER BY COALESCE(next_occurrence_at, start_at) ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Update validates and rewrites an existing event, recomputing its next
// occurrence
func (s *Store) Update(e *Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	e.NextOccurrenceAt = nextOrNil(e, time.Now())

	res, err := s.db.Exec(`UPDATE calendar_events SET
		title = ?, start_at = ?, end_at = ?,
		recurrence_kind = ?, recurrence_interval = ?, recurrence_until = ?, cron_expr = ?, cron_tz = ?,
		action_kind = ?, action_message = ?, action_target = ?, action_agent_id = ?,
		enabled = ?, last_triggered_at = ?, next_occurrence_at = ?
		WHERE id = ?`,
		e.Title, e.StartAt.Unix(), unixOrNil(e.EndAt),
		e.Recurrence.Kind, intervalOf(e), unixOrNil(e.Recurrence.Until), e.Recurrence.CronExpr, e.Recurrence.CronTZ,
		e.Action.Kind, e.Action.Message, e.Action.Target, e.Action.AgentID,
		boolToInt(e.Enabled), unixOrNil(e.LastTriggeredAt), unixOrNil(e.NextOccurrenceAt),
		e.ID)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an event
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM calendar_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// markFired stamps the trigger time and the recomputed next occurrence
func (s *Store) markFired(e *Event, firedAt time.Time) error {
	e.LastTriggeredAt = &firedAt
	if e.Recurrence.Kind == RecurNone || e.Recurrence.Kind == "" {
		// one-shots are done after firing
		e.NextOccurrenceAt = nil
		e.Enabled = false
	} else {
		e.NextOccurrenceAt = nextOrNil(e, firedAt)
	}
	_, err := s.db.Exec(`UPDATE calendar_events SET
		enabled = ?, last_triggered_at = ?, next_occurrence_at = ? WHERE id = ?`,
		boolToInt(e.Enabled), unixOrNil(e.LastTriggeredAt), unixOrNil(e.NextOccurrenceAt), e.ID)
	if err != nil {
		return fmt.Errorf("mark fired: %w", err)
	}
	return nil
}

// due returns enabled events whose next occurrence is at or before now
func (s *Store) due(now time.Time) ([]*Event, error) {
	rows, err := s.db.Query(`SELECT `+eventColumns+` FROM calendar_events
		WHERE enabled = 1 AND next_occurrence_at IS NOT NULL AND next_occurrence_at <= ?
		ORDER BY next_occurrence_at ASC`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("due events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// soonest returns the earliest pending occurrence across enabled events, or
// the zero time when nothing is armed
func (s *Store) soonest() (time.Time, error) {
	var at sql.NullInt64
	err := s.db.QueryRow(`SELECT MIN(next_occurrence_at) FROM calendar_events
		WHERE enabled = 1 AND next_occurrence_at IS NOT NULL`).Scan(&at)
	if err != nil {
		return time.Time{}, fmt.Errorf("soonest event: %w", err)
	}
	if !at.Valid {
		return time.Time{}, nil
	}
	return time.Unix(at.Int64, 0), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		e                       Event
		startAt, createdAt      int64
		endAt, until, fired, at sql.NullInt64
		enabled                 int
	)
	err := row.Scan(&e.ID, &e.Title, &startAt, &endAt,
		&e.Recurrence.Kind, &e.Recurrence.Interval, &until, &e.Recurrence.CronExpr, &e.Recurrence.CronTZ,
		&e.Action.Kind, &e.Action.Message, &e.Action.Target, &e.Action.AgentID,
		&enabled, &createdAt, &fired, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	e.StartAt = time.Unix(startAt, 0)
	e.CreatedAt = time.Unix(createdAt, 0)
	e.EndAt = timeOrNil(endAt)
	e.Recurrence.Until = timeOrNil(until)
	e.LastTriggeredAt = timeOrNil(fired)
	e.NextOccurrenceAt = timeOrNil(at)
	e.Enabled = enabled != 0
	return &e, nil
}

func nextOrNil(e *Event, now time.Time) *time.Time {
	next := e.NextOccurrence(now)
	if next.IsZero() {
		return nil
	}
	return &next
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timeOrNil(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0)
	return &t
}

func intervalOf(e *Event) int {
	if e.Recurrence.Interval < 1 {
		return 1
	}
	return e.Recurrence.Interval
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
