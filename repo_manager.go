package usersync

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all stores
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Teams() Teams
	SyncApps() SyncApps
	SyncLogs() SyncLogs
}

type mngr struct {
	db       *bun.DB
	users    Users
	teams    Teams
	syncApps SyncApps
	syncLogs SyncLogs
}

// NewRepositoryManager wires every store on db
func NewRepositoryManager(db *bun.DB, opts ...UsersOption) RepositoryManager {
	return &mngr{
		db:       db,
		users:    NewUsersRepository(db, opts...),
		teams:    NewTeamsRepository(db),
		syncApps: NewSyncAppsRepository(db),
		syncLogs: NewSyncLogsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.teams == nil {
		return errors.New("repository teams should be initialized")
	}

	if m.syncApps == nil {
		return errors.New("repository syncApps should be initialized")
	}

	if m.syncLogs == nil {
		return errors.New("repository syncLogs should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Teams() Teams {
	return m.teams
}

func (m mngr) SyncApps() SyncApps {
	return m.syncApps
}

func (m mngr) SyncLogs() SyncLogs {
	return m.syncLogs
}
