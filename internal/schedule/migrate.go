package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlabs/lumen/internal/logging"
)

// legacyJob is the old flat-schedule record: a fixed timestamp, a fixed
// repeat interval in minutes, or a raw cron string
type legacyJob struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"` // at | interval | cron
	At      string `json:"at,omitempty"`
	Minutes int    `json:"minutes,omitempty"`
	Expr    string `json:"expr,omitempty"`
	TZ      string `json:"tz,omitempty"`
	Message string `json:"message,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

type legacyFile struct {
	Jobs []legacyJob `json:"jobs"`
}

// MigrateLegacy converts an old flat-schedule file into calendar events and
// renames the file so the conversion runs exactly once. A missing file is
// not an error.
func MigrateLegacy(store *Store, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read legacy schedule: %w", err)
	}

	var file legacyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse legacy schedule: %w", err)
	}

	migrated := 0
	for _, job := range file.Jobs {
		e, err := convertLegacy(job)
		if err != nil {
			logging.Warnf("[Schedule] skipping legacy job %q: %v", job.Name, err)
			continue
		}
		if err := store.Create(e); err != nil {
			logging.Warnf("[Schedule] migrating legacy job %q: %v", job.Name, err)
			continue
		}
		migrated++
	}

	if err := os.Rename(path, path+".migrated"); err != nil {
		return fmt.Errorf("retire legacy schedule: %w", err)
	}
	logging.Infof("[Schedule] migrated %d legacy jobs from %s", migrated, path)
	return nil
}

// convertLegacy maps one flat job onto an Event with a recurrence rule
func convertLegacy(job legacyJob) (*Event, error) {
	e := &Event{
		ID:      job.ID,
		Title:   job.Name,
		Enabled: job.Enabled == nil || *job.Enabled,
		Action: Action{
			Kind:    ActionAgent,
			Message: job.Message,
			Target:  TargetMain,
			AgentID: job.AgentID,
		},
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Title == "" {
		e.Title = "migrated job"
	}
	if job.Message == "" {
		e.Action = Action{Kind: ActionSystem, Message: job.Name}
	}

	switch job.Type {
	case "at":
		at, err := time.Parse(time.RFC3339, job.At)
		if err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %w", job.At, err)
		}
		e.StartAt = at
		e.Recurrence = RecurrenceRule{Kind: RecurNone}

	case "interval":
		if job.Minutes <= 0 {
			return nil, fmt.Errorf("interval job without minutes")
		}
		e.StartAt = time.Now()
		switch {
		case job.Minutes%(24*60) == 0:
			e.Recurrence = RecurrenceRule{Kind: RecurDaily, Interval: job.Minutes / (24 * 60)}
		case job.Minutes%60 == 0 && 24%(job.Minutes/60) == 0:
			e.Recurrence = RecurrenceRule{Kind: RecurCron, CronExpr: fmt.Sprintf("0 */%d * * *", job.Minutes/60), CronTZ: job.TZ}
		case 60%job.Minutes == 0:
			e.Recurrence = RecurrenceRule{Kind: RecurCron, CronExpr: fmt.Sprintf("*/%d * * * *", job.Minutes), CronTZ: job.TZ}
		default:
			return nil, fmt.Errorf("interval of %d minutes does not map onto a calendar rule", job.Minutes)
		}

	case "cron":
		e.StartAt = time.Now()
		e.Recurrence = RecurrenceRule{Kind: RecurCron, CronExpr: job.Expr, CronTZ: job.TZ}

	default:
		return nil, fmt.Errorf("unknown legacy job type %q", job.Type)
	}
	return e, nil
}
