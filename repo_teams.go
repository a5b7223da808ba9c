package usersync

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Teams is the local team store
type Teams interface {
	GetBySlug(ctx context.Context, slug string) (*Team, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	SlugExistsTx(ctx context.Context, tx bun.IDB, slug string) (bool, error)
	ExistingIDs(ctx context.Context, ids []int64) ([]int64, error)
	Create(ctx context.Context, team *Team) (*Team, error)
	CreateTx(ctx context.Context, tx bun.IDB, team *Team) (*Team, error)
	AddMemberTx(ctx context.Context, tx bun.IDB, teamID int64, userID uuid.UUID) error
	ForUser(ctx context.Context, userID uuid.UUID) ([]*Team, error)
}

type teams struct {
	db *bun.DB
}

// NewTeamsRepository returns the teams store. Teams use integer keys so
// they are queried with bun directly.
func NewTeamsRepository(db *bun.DB) Teams {
	return &teams{db: db}
}

func (t *teams) GetBySlug(ctx context.Context, slug string) (*Team, error) {
	record := &Team{}
	err := t.db.NewSelect().
		Model(record).
		Where("?TableAlias.slug = ?", strings.TrimSpace(slug)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return record, nil
}

func (t *teams) SlugExists(ctx context.Context, slug string) (bool, error) {
	return t.SlugExistsTx(ctx, t.db, slug)
}

func (t *teams) SlugExistsTx(ctx context.Context, tx bun.IDB, slug string) (bool, error) {
	return tx.NewSelect().
		Model((*Team)(nil)).
		Where("?TableAlias.slug = ?", strings.TrimSpace(slug)).
		Exists(ctx)
}

// ExistingIDs returns the subset of ids that name stored teams
func (t *teams) ExistingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	found := []int64{}
	if len(ids) == 0 {
		return found, nil
	}
	err := t.db.NewSelect().
		Model((*Team)(nil)).
		Column("id").
		Where("?TableAlias.id IN (?)", bun.In(ids)).
		Scan(ctx, &found)
	return found, err
}

func (t *teams) Create(ctx context.Context, team *Team) (*Team, error) {
	return t.CreateTx(ctx, t.db, team)
}

func (t *teams) CreateTx(ctx context.Context, tx bun.IDB, team *Team) (*Team, error) {
	now := time.Now().UTC()
	team.Slug = strings.TrimSpace(team.Slug)
	team.CreatedAt = &now
	team.UpdatedAt = &now

	if _, err := tx.NewInsert().Model(team).Exec(ctx); err != nil {
		return nil, err
	}
	return team, nil
}

// AddMemberTx links a user to a team, existing links are left alone
func (t *teams) AddMemberTx(ctx context.Context, tx bun.IDB, teamID int64, userID uuid.UUID) error {
	now := time.Now().UTC()
	_, err := tx.NewInsert().
		Model(&TeamMember{TeamID: teamID, UserID: userID, CreatedAt: &now}).
		On("CONFLICT (team_id, user_id) DO NOTHING").
		Exec(ctx)
	return err
}

func (t *teams) ForUser(ctx context.Context, userID uuid.UUID) ([]*Team, error) {
	records := []*Team{}
	err := t.db.NewSelect().
		Model(&records).
		Join("JOIN team_members AS tmm ON tmm.team_id = ?TableAlias.id").
		Where("tmm.user_id = ?", userID).
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx)
	return records, err
}
