package usersync

import (
	"context"
	"time"
)

// EventType enumerates the domain events emitted by publisher and receiver.
type EventType string

const (
	EventUserSynced          EventType = "user.synced"
	EventUserCreatedFromSync EventType = "user.created_from_sync"
	EventTeamCreatedFromSync EventType = "team.created_from_sync"
	EventPasswordSynced      EventType = "user.password_synced"
	EventUserActiveToggled   EventType = "user.active_toggled"
	EventSyncFailed          EventType = "sync.failed"
)

// Event is a sync domain event. AppName is set on the publisher side and
// empty for events raised by an inbound request.
type Event struct {
	Type       EventType
	Action     SyncAction
	Direction  Direction
	Email      string
	AppName    string
	Payload    map[string]any
	ErrorBody  string
	HTTPStatus int
	OccurredAt time.Time
}

// EventSink consumes sync events for external listeners.
type EventSink interface {
	Emit(ctx context.Context, event Event) error
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ctx context.Context, event Event) error

// Emit implements EventSink.
func (f EventSinkFunc) Emit(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopEventSink struct{}

func (noopEventSink) Emit(context.Context, Event) error {
	return nil
}

func normalizeEventSink(s EventSink) EventSink {
	if s == nil {
		return noopEventSink{}
	}
	return s
}

// EmitEvent stamps OccurredAt and emits, logging sink errors instead of
// returning them.
func EmitEvent(ctx context.Context, sink EventSink, logger Logger, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := normalizeEventSink(sink).Emit(ctx, event); err != nil && logger != nil {
		logger.Warn("event sink failed", "event", string(event.Type), "email", event.Email, "error", err)
	}
}
