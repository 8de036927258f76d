package engine

import (
	"sync"
	"time"

	"github.com/martinemde/orchestra"
)

// EventKind identifies the type of engine event.
type EventKind string

const (
	EventExecutionCreated EventKind = "execution_created"
	EventStateTransition  EventKind = "state_transition"
	EventPlanningStart    EventKind = "planning_start"
	EventPlanningEnd      EventKind = "planning_end"
	EventToolCallStart    EventKind = "tool_call_start"
	EventToolCallEnd      EventKind = "tool_call_end"
	EventExecutionEnded   EventKind = "execution_ended"
)

// Event is a typed observation emitted by the engine.
type Event struct {
	Kind        EventKind             `json:"kind"`
	Timestamp   time.Time             `json:"timestamp"`
	ExecutionID orchestra.ExecutionID `json:"execution_id"`
	Data        map[string]any        `json:"data,omitempty"`
}

// EventEmitter delivers typed events to the host application via a buffered
// channel. Emission never blocks the execution loop: when the buffer is
// full, events are dropped.
type EventEmitter struct {
	ch     chan Event
	closed bool
	mu     sync.Mutex
}

// NewEventEmitter creates an emitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{ch: make(chan Event, bufferSize)}
}

// Emit sends an event. Events are silently dropped after Close or when the
// buffer is full.
func (e *EventEmitter) Emit(kind EventKind, id orchestra.ExecutionID, data map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	event := Event{
		Kind:        kind,
		Timestamp:   time.Now().UTC(),
		ExecutionID: id,
		Data:        data,
	}
	select {
	case e.ch <- event:
	default:
	}
}

// Events returns the read-only event channel.
func (e *EventEmitter) Events() <-chan Event {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
