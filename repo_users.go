package usersync

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserUpdateHook runs after a user record was updated
type UserUpdateHook func(ctx context.Context, before, after *User) error

// Users is the local user store. Updates made through Save run the
// registered update hooks with the record as it was before the write.
type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	EmailExistsTx(ctx context.Context, tx bun.IDB, email string) (bool, error)
	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)
	Save(ctx context.Context, record *User) (*User, error)
	SaveTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	OnUpdate(hook UserUpdateHook)
}

type users struct {
	repository.Repository[*User]
	db     *bun.DB
	logger Logger

	mu    sync.RWMutex
	hooks []UserUpdateHook
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// UsersOption configures the users store
type UsersOption func(*users)

// WithUsersLogger sets the logger used to report hook failures
func WithUsersLogger(logger Logger) UsersOption {
	return func(u *users) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// WithUserUpdateHook registers hook at construction
func WithUserUpdateHook(hook UserUpdateHook) UsersOption {
	return func(u *users) {
		if hook != nil {
			u.hooks = append(u.hooks, hook)
		}
	}
}

// NewUsersRepository returns the users store
func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		logger:     ResolveLogger("users", nil, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) OnUpdate(hook UserUpdateHook) {
	if hook == nil {
		return
	}
	a.mu.Lock()
	a.hooks = append(a.hooks, hook)
	a.mu.Unlock()
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return record, nil
}

func (a *users) EmailExists(ctx context.Context, email string) (bool, error) {
	return a.EmailExistsTx(ctx, a.db, email)
}

func (a *users) EmailExistsTx(ctx context.Context, tx bun.IDB, email string) (bool, error) {
	return tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Exists(ctx)
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) Save(ctx context.Context, record *User) (*User, error) {
	return a.SaveTx(ctx, a.db, record)
}

// SaveTx writes every column of record. The password hash is stored as
// given, callers hash before saving.
func (a *users) SaveTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	before := &User{}
	err := tx.NewSelect().
		Model(before).
		Where("?TableAlias.id = ?", record.ID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	record.CreatedAt = before.CreatedAt
	record.UpdatedAt = &now

	updated, err := a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(record.ID.String()))
	if err != nil {
		return nil, err
	}

	a.runHooks(ctx, before, updated)
	return updated, nil
}

func (a *users) runHooks(ctx context.Context, before, after *User) {
	a.mu.RLock()
	hooks := append([]UserUpdateHook(nil), a.hooks...)
	a.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, before, after); err != nil {
			a.logger.Error("user update hook failed", "email", before.Email, "error", err)
		}
	}
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Email = strings.TrimSpace(record.Email)

	if record.Role == "" {
		record.Role = RoleSubscriber
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
