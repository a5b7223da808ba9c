package receiver

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	usersync "github.com/goliatone/go-user-sync"
)

var (
	errTaken      = validation.NewError("validation_unique", "has already been taken")
	errNotFound   = validation.NewError("validation_exists", "does not exist")
	errUnknownIDs = validation.NewError("validation_exists", "contains unknown team ids")
)

// CreateUserRequest is the body of POST /create-user
type CreateUserRequest struct {
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	PasswordHash string  `json:"password_hash"`
	Role         *string `json:"role"`
	TeamIDs      []int64 `json:"team_ids"`
}

// Validate will run validation rules, uniqueness checks hit the store
func (r CreateUserRequest) Validate(ctx context.Context, repo usersync.RepositoryManager) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat, validation.By(uniqueEmail(ctx, repo.Users(), ""))),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.PasswordHash, validation.Required, validation.Length(usersync.MinPasswordHashLength, 0)),
		validation.Field(&r.Role, validation.Length(0, 255)),
		validation.Field(&r.TeamIDs, validation.By(existingTeams(ctx, repo.Teams()))),
	)
}

// SyncUserRequest is the body of POST /sync-user
type SyncUserRequest struct {
	Email        string  `json:"email"`
	NewEmail     *string `json:"new_email"`
	Name         *string `json:"name"`
	PasswordHash *string `json:"password_hash"`
	Role         *string `json:"role"`
}

func (r SyncUserRequest) Validate(ctx context.Context, repo usersync.RepositoryManager) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat, validation.By(existingEmail(ctx, repo.Users()))),
		validation.Field(&r.NewEmail, validation.NilOrNotEmpty, is.EmailFormat, validation.By(uniqueEmail(ctx, repo.Users(), r.Email))),
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.PasswordHash, validation.NilOrNotEmpty, validation.Length(usersync.MinPasswordHashLength, 0)),
		validation.Field(&r.Role, validation.NilOrNotEmpty, validation.Length(1, 255)),
	)
}

// ToggleActiveRequest is the body of POST /toggle-user-active
type ToggleActiveRequest struct {
	Email    string `json:"email"`
	IsActive *bool  `json:"is_active"`
}

func (r ToggleActiveRequest) Validate(ctx context.Context, repo usersync.RepositoryManager) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat, validation.By(existingEmail(ctx, repo.Users()))),
		validation.Field(&r.IsActive, validation.NotNil),
	)
}

// CreateTeamRequest is the body of POST /create-team
type CreateTeamRequest struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	UserEmail string `json:"user_email"`
	UserName  string `json:"user_name"`
}

func (r CreateTeamRequest) Validate(ctx context.Context, repo usersync.RepositoryManager) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Slug, validation.Required, validation.Length(1, 255), validation.By(uniqueSlug(ctx, repo.Teams()))),
		validation.Field(&r.UserEmail, is.EmailFormat),
		validation.Field(&r.UserName, validation.Length(0, 255)),
	)
}

// UserTeamsRequest is the query of GET /user-teams
type UserTeamsRequest struct {
	UserEmail string `json:"user_email"`
}

func (r UserTeamsRequest) Validate(ctx context.Context, repo usersync.RepositoryManager) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserEmail, validation.Required, is.EmailFormat, validation.By(existingEmail(ctx, repo.Users()))),
	)
}

// SyncPasswordRequest is the body of POST /sync-password
type SyncPasswordRequest struct {
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
}

func (r SyncPasswordRequest) Validate(ctx context.Context, repo usersync.RepositoryManager) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat, validation.By(existingEmail(ctx, repo.Users()))),
		validation.Field(&r.PasswordHash, validation.Required, validation.Length(usersync.MinPasswordHashLength, 0)),
	)
}

func uniqueEmail(ctx context.Context, users usersync.Users, current string) validation.RuleFunc {
	return func(value any) error {
		email, ok := stringValue(value)
		if !ok || email == "" || strings.EqualFold(email, current) {
			return nil
		}
		exists, err := users.EmailExists(ctx, email)
		if err != nil {
			return validation.NewInternalError(err)
		}
		if exists {
			return errTaken
		}
		return nil
	}
}

func existingEmail(ctx context.Context, users usersync.Users) validation.RuleFunc {
	return func(value any) error {
		email, ok := stringValue(value)
		if !ok || email == "" {
			return nil
		}
		exists, err := users.EmailExists(ctx, email)
		if err != nil {
			return validation.NewInternalError(err)
		}
		if !exists {
			return errNotFound
		}
		return nil
	}
}

func uniqueSlug(ctx context.Context, teams usersync.Teams) validation.RuleFunc {
	return func(value any) error {
		slug, ok := stringValue(value)
		if !ok || slug == "" {
			return nil
		}
		exists, err := teams.SlugExists(ctx, slug)
		if err != nil {
			return validation.NewInternalError(err)
		}
		if exists {
			return errTaken
		}
		return nil
	}
}

func existingTeams(ctx context.Context, teams usersync.Teams) validation.RuleFunc {
	return func(value any) error {
		ids, _ := value.([]int64)
		if len(ids) == 0 {
			return nil
		}
		found, err := teams.ExistingIDs(ctx, ids)
		if err != nil {
			return validation.NewInternalError(err)
		}
		known := make(map[int64]bool, len(found))
		for _, id := range found {
			known[id] = true
		}
		for _, id := range ids {
			if !known[id] {
				return errUnknownIDs
			}
		}
		return nil
	}
}

func stringValue(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v), true
	case *string:
		if v == nil {
			return "", false
		}
		return strings.TrimSpace(*v), true
	}
	return "", false
}
