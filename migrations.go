package usersync

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// SchemaModels lists every table the package owns, in creation order
func SchemaModels() []any {
	return []any{
		(*User)(nil),
		(*Team)(nil),
		(*TeamMember)(nil),
		(*SyncApp)(nil),
		(*SyncLog)(nil),
	}
}

// Migrate creates the tables and indexes when they are missing
func Migrate(ctx context.Context, db bun.IDB) error {
	for _, model := range SchemaModels() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create table")
		}
	}

	indexes := []struct {
		name    string
		model   any
		columns []string
	}{
		{"idx_sync_logs_email", (*SyncLog)(nil), []string{"email"}},
		{"idx_sync_logs_created_at", (*SyncLog)(nil), []string{"created_at"}},
		{"idx_sync_logs_action_direction", (*SyncLog)(nil), []string{"action", "direction"}},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create index").
				WithMetadata(map[string]any{"index": idx.name})
		}
	}
	return nil
}
