package activitymap

import (
	"context"
	"strings"
	"time"

	usersync "github.com/goliatone/go-user-sync"
)

const (
	// MetadataKeyAction stores the sync action that raised the event.
	MetadataKeyAction = "action"
	// MetadataKeyDirection stores inbound or outbound.
	MetadataKeyDirection = "direction"
	// MetadataKeyApp stores the target app for outbound events.
	MetadataKeyApp = "app"
	// MetadataKeyHTTPStatus stores the remote status of a failed delivery.
	MetadataKeyHTTPStatus = "http_status"
	// MetadataKeyError stores the remote error body of a failed delivery.
	MetadataKeyError = "error"
)

const (
	defaultChannel = "usersync"
	defaultActorID = "system"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(usersync.Event) string
}

// Normalize converts a sync event into a generic normalized shape. The
// target app is the actor of outbound events, inbound events fall back
// to the configured actor.
func Normalize(event usersync.Event, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := firstNonEmpty(
		strings.TrimSpace(event.AppName),
		strings.TrimSpace(options.actorFallback),
	)

	objectType := strings.TrimSpace(options.objectType)
	if objectType == "" {
		objectType = objectTypeFor(event.Action)
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.Type),
		ObjectType: objectType,
		ObjectID:   resolveObjectID(event, options.objectIDResolver),
		Channel:    strings.TrimSpace(options.channel),
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// Sink adapts record into a usersync.EventSink that normalizes every
// event before handing it over.
func Sink(record func(ctx context.Context, activity Normalized) error, opts ...Option) usersync.EventSink {
	return usersync.EventSinkFunc(func(ctx context.Context, event usersync.Event) error {
		if record == nil {
			return nil
		}
		return record(ctx, Normalize(event, opts...))
	})
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType forces the object type, otherwise it is derived
// from the action.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from the event.
func WithObjectIDResolver(resolver func(usersync.Event) string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the actor id used when the event names no app.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		actorFallback: defaultActorID,
	}
}

func objectTypeFor(action usersync.SyncAction) string {
	if action == usersync.ActionCreateTeam {
		return "team"
	}
	return "user"
}

func resolveObjectID(event usersync.Event, resolver func(usersync.Event) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	return strings.TrimSpace(event.Email)
}

func normalizeMetadata(event usersync.Event) map[string]any {
	metadata := usersync.AuditPayload(event.Payload)
	if metadata == nil {
		metadata = map[string]any{}
	}

	if event.Action != "" {
		metadata[MetadataKeyAction] = event.Action.String()
	}
	if event.Direction != "" {
		metadata[MetadataKeyDirection] = string(event.Direction)
	}
	if event.AppName != "" {
		metadata[MetadataKeyApp] = event.AppName
	}
	if event.HTTPStatus != 0 {
		metadata[MetadataKeyHTTPStatus] = event.HTTPStatus
	}
	if event.ErrorBody != "" {
		metadata[MetadataKeyError] = event.ErrorBody
	}

	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
