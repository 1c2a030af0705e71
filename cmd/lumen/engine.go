package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/lumenlabs/lumen/internal/agent"
	"github.com/lumenlabs/lumen/internal/config"
	"github.com/lumenlabs/lumen/internal/db"
	"github.com/lumenlabs/lumen/internal/events"
	"github.com/lumenlabs/lumen/internal/logging"
	"github.com/lumenlabs/lumen/internal/memory"
	"github.com/lumenlabs/lumen/internal/schedule"
	"github.com/lumenlabs/lumen/internal/session"
	"github.com/lumenlabs/lumen/internal/tools"
)

// engine is the fully wired core shared by serve and chat
type engine struct {
	cfg          *config.Config
	db           *sql.DB
	sessions     *session.Store
	memories     *memory.Store
	registry     *tools.Registry
	orchestrator *agent.Orchestrator
	scheduler    *schedule.Scheduler
	bus          *events.Bus
}

// buildEngine wires every component from config. The caller owns Close.
func buildEngine(cfg *config.Config) (*engine, error) {
	for _, dir := range []string{cfg.DataDir, cfg.Workspace} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	database, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	provider, err := defaultProviders().Open(cfg.Model.Provider, cfg.Model.Options)
	if err != nil {
		database.Close()
		return nil, err
	}

	sessions := session.NewStore(database)
	memories := memory.NewStore(database)
	bus := events.NewBus()

	registry := tools.NewRegistry(tools.TruncateOptions{
		MaxLines: cfg.Truncation.MaxLines,
		MaxBytes: cfg.Truncation.MaxBytes,
	})

	orchestrator := agent.New(provider, registry, sessions, agent.Options{
		Identity:   cfg.Identity,
		MaxRounds:  cfg.MaxRounds,
		MaxHistory: cfg.MaxHistory,
		Memories:   memories,
		Sink:       bus,
	})

	scheduler := schedule.New(database, schedule.Options{
		Runner:      agent.NewScheduledRunner(orchestrator, sessions, cfg.AgentID),
		TurnTimeout: cfg.Scheduler.TurnTimeout,
		Notify: func(e *schedule.Event) {
			logging.Infof("[Schedule] %s: %s", e.Title, e.Action.Message)
			bus.Emit(events.Event{
				Type:    events.TypeSystemNotice,
				Payload: map[string]string{"event_id": e.ID, "title": e.Title, "message": e.Action.Message},
			})
		},
	})

	if err := schedule.MigrateLegacy(scheduler.Store(), cfg.LegacySchedulePath()); err != nil {
		logging.Warnf("[Main] legacy schedule migration: %v", err)
	}

	registry.Register(tools.NewTerminalTool(cfg.Workspace))
	registry.Register(tools.NewFileTool(cfg.Workspace))
	registry.Register(tools.NewWebTool())
	registry.Register(tools.NewCalendarTool(scheduler))
	registry.Register(tools.NewMemoryTool(memories))
	// no channel adapters are wired here; the message tool reports that
	// until a ChannelSender is registered by an adapter build
	registry.Register(tools.NewMessageTool(sessions, nil))
	registry.Register(tools.NewBatchTool(registry))

	return &engine{
		cfg:          cfg,
		db:           database,
		sessions:     sessions,
		memories:     memories,
		registry:     registry,
		orchestrator: orchestrator,
		scheduler:    scheduler,
		bus:          bus,
	}, nil
}

// policy builds the default tool policy from config
func (e *engine) policy() *tools.Policy {
	return &tools.Policy{
		Profile: e.cfg.Security.Profile,
		Allow:   e.cfg.Security.Allow,
		Deny:    e.cfg.Security.Deny,
	}
}

func (e *engine) Close() error {
	return e.db.Close()
}
