package usersync

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role as known to the synced apps
type UserRole = string

const (
	// RoleSubscriber is the receiver default for synced users
	RoleSubscriber UserRole = "subscriber"
	// RoleEditor can edit content
	RoleEditor UserRole = "editor"
	// RoleAdmin manages the app
	RoleAdmin UserRole = "admin"
)

// User is the user model shared by publisher and receiver
type User struct {
	bun.BaseModel   `bun:"table:users,alias:usr"`
	ID              uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name            string     `bun:"name,notnull" json:"name,omitempty"`
	Email           string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash    string     `bun:"password_hash" json:"-"`
	Role            UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	IsActive        bool       `bun:"is_active,notnull" json:"is_active"`
	EmailVerifiedAt *time.Time `bun:"email_verified_at,nullzero" json:"email_verified_at,omitempty"`
	CreatedAt       *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Clone returns a shallow copy, used to keep the pre-update original
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Team groups users
type Team struct {
	bun.BaseModel `bun:"table:teams,alias:tm"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id"`
	Name          string     `bun:"name,notnull" json:"name"`
	Slug          string     `bun:"slug,notnull,unique" json:"slug"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// TeamMember links a user to a team
type TeamMember struct {
	bun.BaseModel `bun:"table:team_members,alias:tmm"`
	TeamID        int64      `bun:"team_id,pk" json:"team_id"`
	UserID        uuid.UUID  `bun:"user_id,pk,type:uuid" json:"user_id"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// SyncApp is a target application stored in the database
type SyncApp struct {
	bun.BaseModel `bun:"table:sync_apps,alias:sa"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name"`
	URL           string     `bun:"url,notnull" json:"url"`
	APIKey        string     `bun:"api_key,nullzero" json:"-"`
	IsActive      bool       `bun:"is_active,notnull" json:"is_active"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// TargetApp converts the stored record into the registry shape
func (a *SyncApp) TargetApp() TargetApp {
	return TargetApp{
		Name:   a.Name,
		URL:    a.URL,
		APIKey: a.APIKey,
		Active: a.IsActive,
	}
}

// SyncLog is one audit record. Rows are only ever appended.
type SyncLog struct {
	bun.BaseModel `bun:"table:sync_logs,alias:sl"`
	ID            int64          `bun:"id,pk,autoincrement" json:"id"`
	Action        SyncAction     `bun:"action,notnull" json:"action"`
	Direction     Direction      `bun:"direction,notnull" json:"direction"`
	TargetApp     string         `bun:"target_app,nullzero" json:"target_app,omitempty"`
	Email         string         `bun:"email,notnull" json:"email"`
	Payload       map[string]any `bun:"payload,type:json" json:"payload,omitempty"`
	Status        SyncStatus     `bun:"status,notnull" json:"status"`
	ErrorMessage  string         `bun:"error_message,nullzero" json:"error_message,omitempty"`
	HTTPStatus    int            `bun:"http_status,nullzero" json:"http_status,omitempty"`
	Attempt       int            `bun:"attempt,notnull" json:"attempt"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
