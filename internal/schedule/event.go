// Package schedule owns calendar events with recurrence rules, computes
// next-fire times, and drives firing through a pluggable turn runner.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Recurrence kinds
const (
	RecurNone    = "none"
	RecurDaily   = "daily"
	RecurWeekly  = "weekly"
	RecurMonthly = "monthly"
	RecurYearly  = "yearly"
	RecurCron    = "cron"
)

// Action kinds
const (
	ActionSystem = "system"
	ActionAgent  = "agent"
)

// Targets for agent actions
const (
	TargetMain     = "main"
	TargetIsolated = "isolated"
)

// RecurrenceRule declares when an event repeats. Kind "none" is a one-shot.
// Interval scales the period for daily/weekly/monthly/yearly; cron kinds use
// CronExpr and an optional CronTZ instead.
type RecurrenceRule struct {
	Kind     string     `json:"kind"`
	Interval int        `json:"interval,omitempty"`
	Until    *time.Time `json:"until,omitempty"`
	CronExpr string     `json:"cron_expr,omitempty"`
	CronTZ   string     `json:"cron_tz,omitempty"`
}

// Action is what an event does when it fires. System actions just notify;
// agent actions run a turn with Message on the target conversation.
type Action struct {
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
	Target  string `json:"target,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
}

// Event is a calendar entry
type Event struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	StartAt          time.Time      `json:"start_at"`
	EndAt            *time.Time     `json:"end_at,omitempty"`
	Recurrence       RecurrenceRule `json:"recurrence"`
	Action           Action         `json:"action"`
	Enabled          bool           `json:"enabled"`
	CreatedAt        time.Time      `json:"created_at"`
	LastTriggeredAt  *time.Time     `json:"last_triggered_at,omitempty"`
	NextOccurrenceAt *time.Time     `json:"next_occurrence_at,omitempty"`
}

// Validate checks the parts of an event that cannot be defaulted
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("event requires a title")
	}
	if e.StartAt.IsZero() && e.Recurrence.Kind != RecurCron {
		return fmt.Errorf("event requires a start time")
	}
	switch e.Recurrence.Kind {
	case RecurNone, RecurDaily, RecurWeekly, RecurMonthly, RecurYearly:
	case RecurCron:
		if _, err := parseCron(e.Recurrence.CronExpr, e.Recurrence.CronTZ); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", e.Recurrence.CronExpr, err)
		}
	default:
		return fmt.Errorf("unknown recurrence kind %q", e.Recurrence.Kind)
	}
	switch e.Action.Kind {
	case ActionSystem:
	case ActionAgent:
		if strings.TrimSpace(e.Action.Message) == "" {
			return fmt.Errorf("agent action requires a message")
		}
	default:
		return fmt.Errorf("unknown action kind %q", e.Action.Kind)
	}
	return nil
}

// NextOccurrence computes the first fire time strictly after now, or the
// zero time when the event will never fire again. Recurring events catch up
// after downtime by skipping to the next upcoming slot rather than replaying
// every missed period.
func (e *Event) NextOccurrence(now time.Time) time.Time {
	switch e.Recurrence.Kind {
	case RecurNone, "":
		if e.StartAt.After(now) {
			return e.StartAt
		}
		return time.Time{}

	case RecurDaily, RecurWeekly, RecurMonthly, RecurYearly:
		next := e.StartAt
		for !next.After(now) {
			next = addPeriod(next, e.Recurrence.Kind, e.Recurrence.Interval)
		}
		if until := e.Recurrence.Until; until != nil && next.After(*until) {
			return time.Time{}
		}
		return next

	case RecurCron:
		sched, err := parseCron(e.Recurrence.CronExpr, e.Recurrence.CronTZ)
		if err != nil {
			return time.Time{}
		}
		next := sched.Next(now)
		if until := e.Recurrence.Until; until != nil && next.After(*until) {
			return time.Time{}
		}
		return next
	}
	return time.Time{}
}

// addPeriod advances t by one interval-scaled period using calendar
// arithmetic, so monthly and yearly steps land on the same day-of-month and
// date rather than drifting by fixed-day approximations.
func addPeriod(t time.Time, kind string, interval int) time.Time {
	if interval < 1 {
		interval = 1
	}
	switch kind {
	case RecurDaily:
		return t.AddDate(0, 0, interval)
	case RecurWeekly:
		return t.AddDate(0, 0, 7*interval)
	case RecurMonthly:
		return t.AddDate(0, interval, 0)
	case RecurYearly:
		return t.AddDate(interval, 0, 0)
	}
	return t
}

// parseCron parses a standard five-field cron expression, honoring an
// optional IANA timezone
func parseCron(expr, tz string) (cron.Schedule, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	if tz != "" {
		expr = "CRON_TZ=" + tz + " " + expr
	}
	return cron.ParseStandard(expr)
}
