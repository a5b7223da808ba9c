package usersync

import (
	"context"
	"encoding/json"
	"net/url"

	goerrors "github.com/goliatone/go-errors"
)

// SyncJob is one outbound action with its parameters captured at enqueue
// time. Variants only describe what to send; delivery, auditing and
// retries live in Dispatcher.Execute.
type SyncJob interface {
	Action() SyncAction
	// SubjectEmail is the email recorded in the audit log and events
	SubjectEmail() string
	// TargetAppName names the single target, empty for broadcast actions
	TargetAppName() string
	// Body builds the request body for one app
	Body(ctx context.Context, call *Call, logger Logger) map[string]any
	// SuccessEvent is the event emitted for each app that accepted the call
	SuccessEvent() EventType
}

// CreateUserJob creates the user on every active app. PasswordHash is
// already hashed.
type CreateUserJob struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"password_hash"`
	Role         string `json:"role,omitempty"`
	OwnerEmail   string `json:"owner_email,omitempty"`
}

func (j CreateUserJob) Action() SyncAction      { return ActionCreateUser }
func (j CreateUserJob) SubjectEmail() string    { return j.Email }
func (j CreateUserJob) TargetAppName() string   { return "" }
func (j CreateUserJob) SuccessEvent() EventType { return EventUserSynced }

// Body prefetches the owner's team ids from the app. A failed prefetch is
// logged and the user is created without teams.
func (j CreateUserJob) Body(ctx context.Context, call *Call, logger Logger) map[string]any {
	return map[string]any{
		"email":         j.Email,
		"name":          j.Name,
		"password_hash": j.PasswordHash,
		"role":          j.Role,
		"team_ids":      j.ownerTeamIDs(ctx, call, logger),
	}
}

func (j CreateUserJob) ownerTeamIDs(ctx context.Context, call *Call, logger Logger) []int64 {
	ids := []int64{}
	if j.OwnerEmail == "" || call == nil {
		return ids
	}

	res, err := call.GetJSON(ctx, PathUserTeams, url.Values{"user_email": {j.OwnerEmail}})
	if err != nil {
		logger.Warn("failed to fetch owner teams, continuing without teams",
			"app", call.App().Name,
			"owner_email", j.OwnerEmail,
			"error", err,
		)
		return ids
	}
	if !res.OK() {
		logger.Warn("failed to fetch owner teams, continuing without teams",
			"app", call.App().Name,
			"owner_email", j.OwnerEmail,
			"status", res.StatusCode,
		)
		return ids
	}

	var payload UserTeamsResponse
	if err := res.Decode(&payload); err != nil {
		logger.Warn("invalid owner teams response", "app", call.App().Name, "error", err)
		return ids
	}
	for _, team := range payload.Teams {
		ids = append(ids, team.ID)
	}
	return ids
}

// SyncUserJob pushes changed fields. Email identifies the user as the
// remote knows it, a new address travels as new_email inside Changes.
type SyncUserJob struct {
	Email   string         `json:"email"`
	Changes map[string]any `json:"changes"`
}

func (j SyncUserJob) Action() SyncAction      { return ActionSyncUser }
func (j SyncUserJob) SubjectEmail() string    { return j.Email }
func (j SyncUserJob) TargetAppName() string   { return "" }
func (j SyncUserJob) SuccessEvent() EventType { return EventUserSynced }

func (j SyncUserJob) Body(context.Context, *Call, Logger) map[string]any {
	body := make(map[string]any, len(j.Changes)+1)
	for k, v := range j.Changes {
		body[k] = v
	}
	body["email"] = j.Email
	return body
}

// SyncPasswordJob sets the password hash on every active app
type SyncPasswordJob struct {
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
}

func (j SyncPasswordJob) Action() SyncAction      { return ActionSyncPassword }
func (j SyncPasswordJob) SubjectEmail() string    { return j.Email }
func (j SyncPasswordJob) TargetAppName() string   { return "" }
func (j SyncPasswordJob) SuccessEvent() EventType { return EventPasswordSynced }

func (j SyncPasswordJob) Body(context.Context, *Call, Logger) map[string]any {
	return map[string]any{
		"email":         j.Email,
		"password_hash": j.PasswordHash,
	}
}

// CreateTeamJob creates a team on every active app
type CreateTeamJob struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	UserEmail string `json:"user_email,omitempty"`
	UserName  string `json:"user_name,omitempty"`
}

func (j CreateTeamJob) Action() SyncAction      { return ActionCreateTeam }
func (j CreateTeamJob) SubjectEmail() string    { return j.UserEmail }
func (j CreateTeamJob) TargetAppName() string   { return "" }
func (j CreateTeamJob) SuccessEvent() EventType { return EventTeamCreatedFromSync }

func (j CreateTeamJob) Body(context.Context, *Call, Logger) map[string]any {
	return map[string]any{
		"name":       j.Name,
		"slug":       j.Slug,
		"user_email": j.UserEmail,
		"user_name":  j.UserName,
	}
}

// ToggleActiveJob flips the active flag on one named app
type ToggleActiveJob struct {
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
	AppKey   string `json:"app_key"`
}

func (j ToggleActiveJob) Action() SyncAction      { return ActionToggleActive }
func (j ToggleActiveJob) SubjectEmail() string    { return j.Email }
func (j ToggleActiveJob) TargetAppName() string   { return j.AppKey }
func (j ToggleActiveJob) SuccessEvent() EventType { return EventUserActiveToggled }

func (j ToggleActiveJob) Body(context.Context, *Call, Logger) map[string]any {
	return map[string]any{
		"email":     j.Email,
		"is_active": j.IsActive,
	}
}

// UserTeamsResponse is the body of GET /user-teams
type UserTeamsResponse struct {
	Teams []TeamRef `json:"teams"`
}

// TeamRef identifies a team by id
type TeamRef struct {
	ID int64 `json:"id"`
}

// DecodeJob rebuilds a job from its action and JSON parameters, for queues
// that persist jobs outside the process.
func DecodeJob(action SyncAction, data []byte) (SyncJob, error) {
	var (
		job SyncJob
		err error
	)
	switch action {
	case ActionCreateUser:
		var j CreateUserJob
		err = json.Unmarshal(data, &j)
		job = j
	case ActionSyncUser:
		var j SyncUserJob
		err = json.Unmarshal(data, &j)
		job = j
	case ActionSyncPassword:
		var j SyncPasswordJob
		err = json.Unmarshal(data, &j)
		job = j
	case ActionCreateTeam:
		var j CreateTeamJob
		err = json.Unmarshal(data, &j)
		job = j
	case ActionToggleActive:
		var j ToggleActiveJob
		err = json.Unmarshal(data, &j)
		job = j
	default:
		return nil, goerrors.New("unknown sync action", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"action": action.String()})
	}
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode sync job")
	}
	return job, nil
}
