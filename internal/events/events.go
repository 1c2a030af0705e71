// Package events carries the best-effort lifecycle stream emitted while a
// turn runs. Delivery is ordered per subscriber and never blocks the
// producer.
package events

import (
	"sync"
	"time"
)

// Event types
const (
	TypeRunStarted   = "run_started"
	TypeToolCall     = "tool_call"
	TypeToolResult   = "tool_result"
	TypeRunError     = "run_error"
	TypeRunCompleted = "run_completed"
	TypeSystemNotice = "system_notice"
)

// Event is one entry in the lifecycle stream
type Event struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// Sink receives events. Implementations must not block; a failing sink is
// the sink's problem, never the producer's.
type Sink interface {
	Emit(e Event)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(e Event)

// Emit calls the function
func (f SinkFunc) Emit(e Event) { f(e) }

// subscriberBuffer bounds each subscriber's queue; slow consumers drop
const subscriberBuffer = 64

// Bus fans events out to subscribers. Emit never blocks: a subscriber whose
// buffer is full loses the event.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]chan Event
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Emit delivers e to every subscriber
func (b *Bus) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel of events and a cancel function
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
