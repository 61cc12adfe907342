package ingest

import (
	"context"
	"time"
)

// EventKind distinguishes the session events delivered to observers.
type EventKind string

const (
	// EventTransition follows every status change.
	EventTransition EventKind = "transition"
	// EventTick follows every non-terminal poll fetch, failed or pending.
	EventTick EventKind = "tick"
	// EventTrigger follows every downstream trigger attempt.
	EventTrigger EventKind = "trigger"
	// EventAbandon follows a cancellation that left the session non-terminal.
	EventAbandon EventKind = "abandon"
)

// TriggerResult is the outcome of a downstream trigger attempt.
type TriggerResult string

const (
	TriggerCreated    TriggerResult = "created"
	TriggerSuppressed TriggerResult = "suppressed"
	TriggerFailed     TriggerResult = "failed"
)

// Event is a session change delivered to observers.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
	// From is the previous status for EventTransition.
	From Status
	// Trigger holds the trigger result for EventTrigger.
	Trigger TriggerResult
	At      time.Time
}

// Observer receives session events. Observe is called synchronously from the
// session's goroutine and must not block for long.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) {
	f(ctx, ev)
}
