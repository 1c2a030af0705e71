package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lumenlabs/lumen/internal/schedule"
)

// CalendarTool lets the model manage calendar events and reminders
type CalendarTool struct {
	scheduler *schedule.Scheduler
}

// NewCalendarTool wraps the scheduler
func NewCalendarTool(s *schedule.Scheduler) *CalendarTool {
	return &CalendarTool{scheduler: s}
}

func (t *CalendarTool) Name() string { return "calendar" }

func (t *CalendarTool) Description() string {
	return "Create, list, update, delete, and trigger calendar events and reminders. " +
		"Recurrence kinds: none, daily, weekly, monthly, yearly, cron. " +
		"Times are RFC 3339."
}

func (t *CalendarTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {"type": "string", "enum": ["create", "get", "update", "delete", "list", "trigger"]},
			"id": {"type": "string", "description": "Event id for get, update, delete, trigger"},
			"title": {"type": "string"},
			"start_at": {"type": "string", "description": "RFC 3339 start time"},
			"recurrence": {"type": "string", "description": "none, daily, weekly, monthly, yearly, or cron"},
			"interval": {"type": "integer", "description": "Period multiplier for daily/weekly/monthly/yearly"},
			"cron_expr": {"type": "string", "description": "Five-field cron expression when recurrence is cron"},
			"cron_tz": {"type": "string", "description": "IANA timezone for the cron expression"},
			"message": {"type": "string", "description": "What the agent should do when the event fires"},
			"enabled": {"type": "boolean"},
			"upcoming_only": {"type": "boolean", "description": "List only events that will still fire"}
		},
		"required": ["action"]
	}`)
}

type calendarArgs struct {
	Action       string `json:"action"`
	ID           string `json:"id"`
	Title        string `json:"title"`
	StartAt      string `json:"start_at"`
	Recurrence   string `json:"recurrence"`
	Interval     int    `json:"interval"`
	CronExpr     string `json:"cron_expr"`
	CronTZ       string `json:"cron_tz"`
	Message      string `json:"message"`
	Enabled      *bool  `json:"enabled"`
	UpcomingOnly bool   `json:"upcoming_only"`
}

func (t *CalendarTool) Execute(ctx context.Context, input json.RawMessage, ec *ExecContext) (*ToolResult, error) {
	var args calendarArgs
	if err := json.Unmarshal(input, &args); err != nil {
		return Errorf("invalid calendar input: %v", err), nil
	}

	switch args.Action {
	case "create":
		return t.create(args, ec)
	case "get":
		e, err := t.scheduler.Get(args.ID)
		if err != nil {
			return Errorf("get event: %v", err), nil
		}
		return &ToolResult{Content: describeEvent(e)}, nil
	case "update":
		return t.update(args)
	case "delete":
		if err := t.scheduler.Delete(args.ID); err != nil {
			return Errorf("delete event: %v", err), nil
		}
		return &ToolResult{Content: "deleted event " + args.ID}, nil
	case "list":
		events, err := t.scheduler.List(schedule.ListFilter{UpcomingOnly: args.UpcomingOnly})
		if err != nil {
			return Errorf("list events: %v", err), nil
		}
		if len(events) == 0 {
			return &ToolResult{Content: "no events"}, nil
		}
		var b strings.Builder
		for _, e := range events {
			b.WriteString(describeEvent(e))
			b.WriteString("\n")
		}
		return &ToolResult{Content: strings.TrimRight(b.String(), "\n")}, nil
	case "trigger":
		if err := t.scheduler.Trigger(ctx, args.ID); err != nil {
			return Errorf("trigger event: %v", err), nil
		}
		return &ToolResult{Content: "triggered event " + args.ID}, nil
	default:
		return Errorf("unknown calendar action %q", args.Action), nil
	}
}

func (t *CalendarTool) create(args calendarArgs, ec *ExecContext) (*ToolResult, error) {
	e := &schedule.Event{
		Title:   args.Title,
		Enabled: args.Enabled == nil || *args.Enabled,
		Recurrence: schedule.RecurrenceRule{
			Kind:     defaultString(args.Recurrence, schedule.RecurNone),
			Interval: args.Interval,
			CronExpr: args.CronExpr,
			CronTZ:   args.CronTZ,
		},
	}
	if args.StartAt != "" {
		at, err := time.Parse(time.RFC3339, args.StartAt)
		if err != nil {
			return Errorf("invalid start_at %q: %v", args.StartAt, err), nil
		}
		e.StartAt = at
	}
	if args.Message != "" {
		agentID := ""
		if ec != nil && ec.Security != nil {
			agentID = ec.Security.AgentID
		}
		e.Action = schedule.Action{
			Kind:    schedule.ActionAgent,
			Message: args.Message,
			Target:  schedule.TargetMain,
			AgentID: agentID,
		}
	} else {
		e.Action = schedule.Action{Kind: schedule.ActionSystem, Message: args.Title}
	}
	if err := t.scheduler.Create(e); err != nil {
		return Errorf("create event: %v", err), nil
	}
	return &ToolResult{Content: "created event " + e.ID + "\n" + describeEvent(e)}, nil
}

func (t *CalendarTool) update(args calendarArgs) (*ToolResult, error) {
	e, err := t.scheduler.Get(args.ID)
	if err != nil {
		return Errorf("update event: %v", err), nil
	}
	if args.Title != "" {
		e.Title = args.Title
	}
	if args.StartAt != "" {
		at, err := time.Parse(time.RFC3339, args.StartAt)
		if err != nil {
			return Errorf("invalid start_at %q: %v", args.StartAt, err), nil
		}
		e.StartAt = at
	}
	if args.Recurrence != "" {
		e.Recurrence.Kind = args.Recurrence
	}
	if args.Interval > 0 {
		e.Recurrence.Interval = args.Interval
	}
	if args.CronExpr != "" {
		e.Recurrence.CronExpr = args.CronExpr
	}
	if args.CronTZ != "" {
		e.Recurrence.CronTZ = args.CronTZ
	}
	if args.Message != "" {
		e.Action.Message = args.Message
	}
	if args.Enabled != nil {
		e.Enabled = *args.Enabled
	}
	if err := t.scheduler.Update(e); err != nil {
		return Errorf("update event: %v", err), nil
	}
	return &ToolResult{Content: "updated event " + e.ID + "\n" + describeEvent(e)}, nil
}

func describeEvent(e *schedule.Event) string {
	status := "enabled"
	if !e.Enabled {
		status = "disabled"
	}
	rec := e.Recurrence.Kind
	switch rec {
	case schedule.RecurCron:
		rec = "cron " + e.Recurrence.CronExpr
	case schedule.RecurNone, "":
		rec = "one-shot"
	default:
		if e.Recurrence.Interval > 1 {
			rec = fmt.Sprintf("%s x%d", rec, e.Recurrence.Interval)
		}
	}
	next := "never"
	if e.NextOccurrenceAt != nil {
		next = e.NextOccurrenceAt.Format(time.RFC3339)
	}
	return fmt.Sprintf("%s  %q  %s, %s, next: %s", e.ID, e.Title, status, rec, next)
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
