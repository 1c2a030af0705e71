package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/lumenlabs/lumen/internal/logging"
)

// maxIdle caps how long the loop sleeps with nothing armed, so events
// created by other writers are still picked up
const maxIdle = time.Minute

// TurnRequest asks the runner to execute an agent turn on behalf of a fired
// event. Target selects the conversation: "main" reuses the agent's main
// conversation, "isolated" creates a fresh one per fire.
type TurnRequest struct {
	EventID string
	AgentID string
	Target  string
	Message string
}

// Runner executes agent turns for fired events. The orchestrator side of
// the wiring implements this; the scheduler never imports it directly.
type Runner interface {
	RunScheduled(ctx context.Context, req TurnRequest) error
}

// Scheduler arms a timer for the earliest pending occurrence and fires due
// events. All event state lives in the store; the scheduler itself is
// stateless across restarts.
type Scheduler struct {
	store   *Store
	runner  Runner
	notify  func(e *Event)
	timeout time.Duration

	mu      sync.Mutex
	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
}

// Options configures a Scheduler
type Options struct {
	// Runner handles agent actions. Nil logs and drops them.
	Runner Runner

	// Notify receives system-action fires. Nil falls back to logging.
	Notify func(e *Event)

	// TurnTimeout bounds one fired agent turn. Zero means five minutes.
	TurnTimeout time.Duration
}

// New creates a scheduler over an open database
func New(db *sql.DB, opts Options) *Scheduler {
	timeout := opts.TurnTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		store:   NewStore(db),
		runner:  opts.Runner,
		notify:  opts.Notify,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Store exposes the underlying event store for read paths
func (s *Scheduler) Store() *Store { return s.store }

// Create persists a new event and re-arms the timer
func (s *Scheduler) Create(e *Event) error {
	if err := s.store.Create(e); err != nil {
		return err
	}
	s.poke()
	return nil
}

// Get returns one event
func (s *Scheduler) Get(id string) (*Event, error) {
	return s.store.Get(id)
}

// Update rewrites an event and re-arms the timer
func (s *Scheduler) Update(e *Event) error {
	if err := s.store.Update(e); err != nil {
		return err
	}
	s.poke()
	return nil
}

// Delete removes an event and re-arms the timer
func (s *Scheduler) Delete(id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.poke()
	return nil
}

// List returns events matching the filter
func (s *Scheduler) List(filter ListFilter) ([]*Event, error) {
	return s.store.List(filter)
}

// Trigger force-fires an event right now, outside its schedule. The regular
// cadence is untouched apart from the lastTriggeredAt stamp.
func (s *Scheduler) Trigger(ctx context.Context, id string) error {
	e, err := s.store.Get(id)
	if err != nil {
		return err
	}
	now := time.Now()
	e.LastTriggeredAt = &now
	if err := s.store.Update(e); err != nil {
		return err
	}
	return s.runAction(ctx, e)
}

// Run drives the timer loop until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.stopped)
	logging.Info("[Schedule] scheduler started")
	for {
		wait := s.nextWait()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logging.Info("[Schedule] scheduler stopped")
			return
		case <-s.stop:
			timer.Stop()
			logging.Info("[Schedule] scheduler stopped")
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
		s.fireDue(ctx)
	}
}

// Close stops the loop started by Run
func (s *Scheduler) Close() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.stopped
}

// poke re-arms the timer after a mutation
func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// nextWait computes how long to sleep before the earliest occurrence
func (s *Scheduler) nextWait() time.Duration {
	at, err := s.store.soonest()
	if err != nil {
		logging.Errorf("[Schedule] next wait: %v", err)
		return maxIdle
	}
	if at.IsZero() {
		return maxIdle
	}
	wait := time.Until(at)
	if wait < 0 {
		return 0
	}
	if wait > maxIdle {
		return maxIdle
	}
	return wait
}

// fireDue fires every event whose occurrence has arrived. Each event is
// stamped and rescheduled before its action runs, so a slow or failing
// action never blocks the cadence.
func (s *Scheduler) fireDue(ctx context.Context) {
	now := time.Now()
	events, err := s.store.due(now)
	if err != nil {
		logging.Errorf("[Schedule] load due events: %v", err)
		return
	}
	for _, e := range events {
		logging.Infof("[Schedule] firing %q (%s)", e.Title, e.ID)
		if err := s.store.markFired(e, now); err != nil {
			logging.Errorf("[Schedule] %s: %v", e.ID, err)
			continue
		}
		go func(e *Event) {
			if err := s.runAction(ctx, e); err != nil {
				logging.Errorf("[Schedule] action for %q failed: %v", e.Title, err)
			}
		}(e)
	}
}

// runAction executes an event's action under the turn timeout. Failures are
// returned for logging but never crash the scheduler.
func (s *Scheduler) runAction(ctx context.Context, e *Event) error {
	switch e.Action.Kind {
	case ActionSystem:
		if s.notify != nil {
			s.notify(e)
		} else {
			logging.Infof("[Schedule] %s: %s", e.Title, e.Action.Message)
		}
		return nil

	case ActionAgent:
		if s.runner == nil {
			return fmt.Errorf("no turn runner configured")
		}
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		target := e.Action.Target
		if target == "" {
			target = TargetMain
		}
		err := s.runner.RunScheduled(ctx, TurnRequest{
			EventID: e.ID,
			AgentID: e.Action.AgentID,
			Target:  target,
			Message: e.Action.Message,
		})
		if err != nil {
			return fmt.Errorf("scheduled turn: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown action kind %q", e.Action.Kind)
}
