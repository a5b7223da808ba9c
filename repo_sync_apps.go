package usersync

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SyncApps stores the target apps used when the app source is the database
type SyncApps interface {
	repository.Repository[*SyncApp]

	All(ctx context.Context) ([]*SyncApp, error)
	Active(ctx context.Context) ([]*SyncApp, error)
	ByName(ctx context.Context, name string) (*SyncApp, error)
	Save(ctx context.Context, app *SyncApp) (*SyncApp, error)
	SaveTx(ctx context.Context, tx bun.IDB, app *SyncApp) (*SyncApp, error)
}

type syncApps struct {
	repository.Repository[*SyncApp]
	db *bun.DB
}

var _ SyncApps = (*syncApps)(nil)

// NewSyncAppsRepository returns the sync_apps store
func NewSyncAppsRepository(db *bun.DB) SyncApps {
	repo := repository.NewRepository[*SyncApp](db, repository.ModelHandlers[*SyncApp]{
		NewRecord: func() *SyncApp { return &SyncApp{} },
		GetID: func(record *SyncApp) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *SyncApp, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &syncApps{
		Repository: repo,
		db:         db,
	}
}

func (s *syncApps) All(ctx context.Context) ([]*SyncApp, error) {
	records := []*SyncApp{}
	err := s.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.name ASC").
		Scan(ctx)
	return records, err
}

func (s *syncApps) Active(ctx context.Context) ([]*SyncApp, error) {
	records := []*SyncApp{}
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.is_active = ?", true).
		OrderExpr("?TableAlias.name ASC").
		Scan(ctx)
	return records, err
}

func (s *syncApps) ByName(ctx context.Context, name string) (*SyncApp, error) {
	record, err := s.Repository.GetByIdentifier(ctx, strings.TrimSpace(name))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAppNotFound
		}
		return nil, err
	}
	return record, nil
}

func (s *syncApps) Save(ctx context.Context, app *SyncApp) (*SyncApp, error) {
	return s.SaveTx(ctx, s.db, app)
}

// SaveTx creates the app or replaces the stored record with the same name
func (s *syncApps) SaveTx(ctx context.Context, tx bun.IDB, app *SyncApp) (*SyncApp, error) {
	app.Name = strings.TrimSpace(app.Name)
	app.URL = strings.TrimRight(strings.TrimSpace(app.URL), "/")

	existing, err := s.Repository.GetByIdentifierTx(ctx, tx, app.Name)
	if err == nil {
		app.ID = existing.ID
		app.CreatedAt = existing.CreatedAt
		return s.Repository.UpdateTx(ctx, tx, app, repository.UpdateByID(existing.ID.String()))
	}

	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	return s.Repository.CreateTx(ctx, tx, app)
}
