package services

import (
	"context"
	"time"
)

// EventKind names a lifecycle transition that may be announced to a participant.
type EventKind string

const (
	EventRequestCreated      EventKind = "request.created"
	EventRequestAccepted     EventKind = "request.accepted"
	EventRequestRejected     EventKind = "request.rejected"
	EventConnectionCompleted EventKind = "connection.completed"
	EventConnectionDetached  EventKind = "connection.detached"
)

// LifecycleEvent describes a committed transition. Events are only emitted after the
// owning transaction commits.
type LifecycleEvent struct {
	Kind         EventKind
	RequestID    string
	ConnectionID string
	MentorID     string
	MenteeID     string
	ActorUserID  string
	Message      string
	Reason       string
	OccurredAt   time.Time
}

// EventDispatcher receives lifecycle events. Implementations must not block the caller
// and must swallow their own delivery failures.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event LifecycleEvent)
}

// EventDispatcherFunc adapts a function to EventDispatcher.
type EventDispatcherFunc func(ctx context.Context, event LifecycleEvent)

// Dispatch implements EventDispatcher.
func (f EventDispatcherFunc) Dispatch(ctx context.Context, event LifecycleEvent) {
	f(ctx, event)
}
