package orchestrator

import (
	"sync/atomic"
	"time"
)

// EventType identifies an orchestrator event.
type EventType string

const (
	// EventMessageProcessed fires once per completed pipeline run.
	EventMessageProcessed EventType = "message_processed"
	// EventSkillExecuted fires per skill execution.
	EventSkillExecuted EventType = "skill_executed"
	// EventBreakerChanged fires on circuit breaker transitions.
	EventBreakerChanged EventType = "breaker_changed"
	// EventStreamFinished fires when a stream completes or is cancelled.
	EventStreamFinished EventType = "stream_finished"
)

// Event is a structured pipeline event pushed to observers (metrics,
// logging). Observers consume Events(); emission never blocks the
// pipeline: events are dropped under backpressure and counted.
type Event struct {
	Type       EventType     `json:"type"`
	SessionID  string        `json:"session_id,omitempty"`
	SkillID    string        `json:"skill_id,omitempty"`
	Dependency string        `json:"dependency,omitempty"`
	FromState  string        `json:"from_state,omitempty"`
	ToState    string        `json:"to_state,omitempty"`
	Success    bool          `json:"success"`
	Degraded   bool          `json:"degraded,omitempty"`
	Cancelled  bool          `json:"cancelled,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

const eventBufferSize = 256

type eventBus struct {
	ch      chan Event
	dropped atomic.Int64
}

func newEventBus() *eventBus {
	return &eventBus{ch: make(chan Event, eventBufferSize)}
}

func (b *eventBus) emit(ev Event) {
	ev.Timestamp = time.Now()
	select {
	case b.ch <- ev:
	default:
		b.dropped.Add(1)
	}
}

// Events returns the observer channel.
func (r *Runtime) Events() <-chan Event { return r.events.ch }

// DroppedEvents reports how many events observers were too slow for.
func (r *Runtime) DroppedEvents() int64 { return r.events.dropped.Load() }
