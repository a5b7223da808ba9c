package usersync

import (
	"context"
	"strings"
)

// DefaultSyncFields is the allow-list used when none is configured
var DefaultSyncFields = []string{"email", "role"}

// ObservableFields lists the user fields the observer can diff. Activation
// changes travel through ToggleUserActive instead.
var ObservableFields = []string{"email", "role", "name", "password_hash"}

// ChangeObserver publishes local user edits. Edits made while handling an
// inbound sync request are ignored so they are not echoed back.
type ChangeObserver struct {
	publisher Publisher
	fields    []string
	logger    Logger
}

// ObserverOption configures a ChangeObserver
type ObserverOption func(*ChangeObserver)

// WithSyncFields replaces the field allow-list
func WithSyncFields(fields ...string) ObserverOption {
	return func(o *ChangeObserver) {
		clean := make([]string, 0, len(fields))
		for _, f := range fields {
			if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
				clean = append(clean, f)
			}
		}
		o.fields = clean
	}
}

// WithObserverLogger sets the logger
func WithObserverLogger(logger Logger) ObserverOption {
	return func(o *ChangeObserver) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewChangeObserver returns an observer publishing through publisher
func NewChangeObserver(publisher Publisher, opts ...ObserverOption) *ChangeObserver {
	o := &ChangeObserver{
		publisher: publisher,
		fields:    DefaultSyncFields,
		logger:    ResolveLogger("observer", nil, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Fields returns the active allow-list
func (o *ChangeObserver) Fields() []string {
	return o.fields
}

// UserUpdated is the users store update hook. before is the record as it
// was loaded, after is what was written.
func (o *ChangeObserver) UserUpdated(ctx context.Context, before, after *User) error {
	if IsReceiving(ctx) {
		return nil
	}
	if before == nil || after == nil {
		return nil
	}

	diff := o.Diff(before, after)
	if len(diff) == 0 {
		return nil
	}

	o.logger.Debug("publishing user changes", "email", before.Email, "fields", len(diff))
	return o.publisher.SyncUser(ctx, before.Email, diff)
}

// Diff returns the allow-listed fields that differ between before and
// after. A changed email is reported as new_email.
func (o *ChangeObserver) Diff(before, after *User) map[string]any {
	diff := map[string]any{}
	for _, field := range o.fields {
		switch field {
		case "email":
			if before.Email != after.Email {
				diff["new_email"] = after.Email
			}
		case "role":
			if before.Role != after.Role {
				diff["role"] = after.Role
			}
		case "name":
			if before.Name != after.Name {
				diff["name"] = after.Name
			}
		case "password_hash":
			if before.PasswordHash != after.PasswordHash {
				diff["password_hash"] = after.PasswordHash
			}
		default:
			o.logger.Debug("ignoring unsupported sync field", "field", field)
		}
	}
	return diff
}
