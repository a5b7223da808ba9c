package usersync

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// SyncAction identifies one kind of sync event. Publisher and receiver must
// agree on the wire value, path and payload shape of every action.
type SyncAction string

const (
	ActionCreateUser   SyncAction = "create_user"
	ActionSyncUser     SyncAction = "sync_user"
	ActionCreateTeam   SyncAction = "create_team"
	ActionToggleActive SyncAction = "toggle_active"
	ActionSyncPassword SyncAction = "sync_password"
)

// Receiver paths, relative to the receiver route prefix
const (
	PathCreateUser   = "/create-user"
	PathSyncUser     = "/sync-user"
	PathToggleActive = "/toggle-user-active"
	PathCreateTeam   = "/create-team"
	PathUserTeams    = "/user-teams"
	PathSyncPassword = "/sync-password"
)

// Actions lists every action in a stable order
var Actions = []SyncAction{
	ActionCreateUser,
	ActionSyncUser,
	ActionCreateTeam,
	ActionToggleActive,
	ActionSyncPassword,
}

func (a SyncAction) String() string { return string(a) }

// Path returns the receiver path the action is delivered to
func (a SyncAction) Path() string {
	switch a {
	case ActionCreateUser:
		return PathCreateUser
	case ActionSyncUser:
		return PathSyncUser
	case ActionCreateTeam:
		return PathCreateTeam
	case ActionToggleActive:
		return PathToggleActive
	case ActionSyncPassword:
		return PathSyncPassword
	}
	return ""
}

// Method is the HTTP method used for the action
func (a SyncAction) Method() string {
	return http.MethodPost
}

// Broadcast reports whether the action goes to every active app.
// Activation state is per app, so ToggleActive is single target.
func (a SyncAction) Broadcast() bool {
	return a != ActionToggleActive
}

// Valid reports whether a is one of the known actions
func (a SyncAction) Valid() bool {
	return a.Path() != ""
}

// ParseSyncAction maps a wire value to a SyncAction
func ParseSyncAction(value string) (SyncAction, error) {
	action := SyncAction(strings.ToLower(strings.TrimSpace(value)))
	if !action.Valid() {
		return "", goerrors.New("unknown sync action", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"action": value})
	}
	return action, nil
}

// Direction tells whether a sync log entry was sent or received
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// SyncStatus is the outcome recorded in the audit log
type SyncStatus string

const (
	StatusSuccess SyncStatus = "success"
	StatusFailed  SyncStatus = "failed"
)
