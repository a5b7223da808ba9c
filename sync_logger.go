package usersync

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// SyncLogs is the append-only audit store
type SyncLogs interface {
	Append(ctx context.Context, entry *SyncLog) error
	List(ctx context.Context, filter SyncLogFilter) ([]*SyncLog, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SyncLogFilter narrows List results. Zero fields match everything.
type SyncLogFilter struct {
	Action    SyncAction
	Direction Direction
	Status    SyncStatus
	Email     string
	TargetApp string
	Limit     int
}

type syncLogs struct {
	db *bun.DB
}

// NewSyncLogsRepository returns the sync_logs store
func NewSyncLogsRepository(db *bun.DB) SyncLogs {
	return &syncLogs{db: db}
}

func (r *syncLogs) Append(ctx context.Context, entry *SyncLog) error {
	if entry == nil {
		return nil
	}
	now := time.Now().UTC()
	if entry.CreatedAt == nil {
		entry.CreatedAt = &now
	}
	entry.UpdatedAt = entry.CreatedAt
	if entry.Attempt < 1 {
		entry.Attempt = 1
	}

	_, err := r.db.NewInsert().Model(entry).Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to append sync log").
			WithMetadata(map[string]any{
				"action": entry.Action.String(),
				"email":  entry.Email,
			})
	}
	return nil
}

func (r *syncLogs) List(ctx context.Context, filter SyncLogFilter) ([]*SyncLog, error) {
	records := []*SyncLog{}
	q := r.db.NewSelect().Model(&records)

	if filter.Action != "" {
		q = q.Where("?TableAlias.action = ?", filter.Action)
	}
	if filter.Direction != "" {
		q = q.Where("?TableAlias.direction = ?", filter.Direction)
	}
	if filter.Status != "" {
		q = q.Where("?TableAlias.status = ?", filter.Status)
	}
	if filter.Email != "" {
		q = q.Where("?TableAlias.email = ?", filter.Email)
	}
	if filter.TargetApp != "" {
		q = q.Where("?TableAlias.target_app = ?", filter.TargetApp)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	err := q.OrderExpr("?TableAlias.id ASC").Scan(ctx)
	return records, err
}

// Prune deletes entries created before the cutoff. Retention is the only
// path that removes audit rows.
func (r *syncLogs) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*SyncLog)(nil)).
		Where("created_at < ?", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SyncLogger writes audit rows for inbound and outbound traffic
type SyncLogger struct {
	store   SyncLogs
	enabled bool
	logger  Logger
}

// SyncLoggerOption configures a SyncLogger
type SyncLoggerOption func(*SyncLogger)

// WithSyncLoggingEnabled toggles audit writes
func WithSyncLoggingEnabled(enabled bool) SyncLoggerOption {
	return func(l *SyncLogger) {
		l.enabled = enabled
	}
}

// WithSyncLoggerLogger sets the logger used to report store failures
func WithSyncLoggerLogger(logger Logger) SyncLoggerOption {
	return func(l *SyncLogger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewSyncLogger returns an enabled audit logger. A nil store disables it.
func NewSyncLogger(store SyncLogs, opts ...SyncLoggerOption) *SyncLogger {
	l := &SyncLogger{
		store:   store,
		enabled: true,
		logger:  ResolveLogger("sync_logger", nil, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Enabled reports whether entries are written
func (l *SyncLogger) Enabled() bool {
	return l != nil && l.enabled && l.store != nil
}

// OutboundEntry describes one delivery attempt to one app
type OutboundEntry struct {
	Action     SyncAction
	TargetApp  string
	Email      string
	Payload    map[string]any
	Status     SyncStatus
	HTTPStatus int
	Error      string
	Attempt    int
}

// LogOutbound records one delivery attempt
func (l *SyncLogger) LogOutbound(ctx context.Context, entry OutboundEntry) error {
	if !l.Enabled() {
		return nil
	}
	return l.append(ctx, &SyncLog{
		Action:       entry.Action,
		Direction:    DirectionOutbound,
		TargetApp:    entry.TargetApp,
		Email:        entry.Email,
		Payload:      AuditPayload(entry.Payload),
		Status:       entry.Status,
		ErrorMessage: entry.Error,
		HTTPStatus:   entry.HTTPStatus,
		Attempt:      entry.Attempt,
	})
}

// LogInbound records one accepted inbound request
func (l *SyncLogger) LogInbound(ctx context.Context, action SyncAction, email string, payload map[string]any) error {
	if !l.Enabled() {
		return nil
	}
	return l.append(ctx, &SyncLog{
		Action:    action,
		Direction: DirectionInbound,
		Email:     email,
		Payload:   AuditPayload(payload),
		Status:    StatusSuccess,
		Attempt:   1,
	})
}

func (l *SyncLogger) append(ctx context.Context, entry *SyncLog) error {
	if err := l.store.Append(ctx, entry); err != nil {
		l.logger.Error("failed to write sync log",
			"action", entry.Action.String(),
			"direction", string(entry.Direction),
			"email", entry.Email,
			"error", err,
		)
		return err
	}
	return nil
}

// AuditPayload copies payload without credential fields
func AuditPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == "password_hash" || k == "password" {
			continue
		}
		out[k] = v
	}
	return out
}
