package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyYesterdayFiresTomorrow(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	e := &Event{
		StartAt:    now.AddDate(0, 0, -1).Add(-time.Hour), // yesterday 14:00
		Recurrence: RecurrenceRule{Kind: RecurDaily, Interval: 1},
	}

	next := e.NextOccurrence(now)
	assert.Equal(t, now.AddDate(0, 0, 1).Add(-time.Hour), next)
}

func TestNextOccurrenceIsStrictlyFuture(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	cases := []RecurrenceRule{
		{Kind: RecurDaily, Interval: 1},
		{Kind: RecurDaily, Interval: 3},
		{Kind: RecurWeekly, Interval: 2},
		{Kind: RecurMonthly, Interval: 1},
		{Kind: RecurYearly, Interval: 1},
	}
	for _, rule := range cases {
		e := &Event{StartAt: now.AddDate(-1, 0, 0), Recurrence: rule}
		next := e.NextOccurrence(now)
		assert.True(t, next.After(now), "kind %s interval %d: %s", rule.Kind, rule.Interval, next)
	}
}

func TestCatchUpSkipsMissedPeriods(t *testing.T) {
	// ten days of downtime on a daily event yields one upcoming slot, not
	// ten back-fires
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	e := &Event{
		StartAt:    now.AddDate(0, 0, -10),
		Recurrence: RecurrenceRule{Kind: RecurDaily, Interval: 1},
	}
	next := e.NextOccurrence(now)
	assert.Equal(t, now.AddDate(0, 0, 1), next)
}

func TestMonthlyUsesCalendarArithmetic(t *testing.T) {
	start := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	now := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	e := &Event{StartAt: start, Recurrence: RecurrenceRule{Kind: RecurMonthly, Interval: 1}}

	next := e.NextOccurrence(now)
	assert.Equal(t, time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC), next)
}

func TestUntilEndsRecurrence(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	until := now.Add(12 * time.Hour)
	e := &Event{
		StartAt:    now.AddDate(0, 0, -5),
		Recurrence: RecurrenceRule{Kind: RecurDaily, Interval: 3, Until: &until},
	}
	assert.True(t, e.NextOccurrence(now).IsZero())
}

func TestOneShotPastNeverFires(t *testing.T) {
	now := time.Now()
	e := &Event{StartAt: now.Add(-time.Hour), Recurrence: RecurrenceRule{Kind: RecurNone}}
	assert.True(t, e.NextOccurrence(now).IsZero())

	e.StartAt = now.Add(time.Hour)
	assert.Equal(t, e.StartAt, e.NextOccurrence(now))
}

func TestCronNextOccurrence(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)
	e := &Event{Recurrence: RecurrenceRule{Kind: RecurCron, CronExpr: "0 9 * * *"}}

	next := e.NextOccurrence(now)
	require.False(t, next.IsZero())
	assert.Equal(t, 9, next.Hour())
	assert.True(t, next.After(now))
}

func TestValidateRejectsBadEvents(t *testing.T) {
	cases := []Event{
		{Title: "", StartAt: time.Now(), Recurrence: RecurrenceRule{Kind: RecurNone}, Action: Action{Kind: ActionSystem}},
		{Title: "x", StartAt: time.Now(), Recurrence: RecurrenceRule{Kind: "hourly"}, Action: Action{Kind: ActionSystem}},
		{Title: "x", Recurrence: RecurrenceRule{Kind: RecurCron, CronExpr: "not a cron"}, Action: Action{Kind: ActionSystem}},
		{Title: "x", StartAt: time.Now(), Recurrence: RecurrenceRule{Kind: RecurNone}, Action: Action{Kind: ActionAgent}},
	}
	for i, e := range cases {
		assert.Error(t, e.Validate(), "case %d", i)
	}

	good := Event{
		Title:      "standup",
		StartAt:    time.Now(),
		Recurrence: RecurrenceRule{Kind: RecurDaily, Interval: 1},
		Action:     Action{Kind: ActionAgent, Message: "post the standup summary"},
	}
	assert.NoError(t, good.Validate())
}
