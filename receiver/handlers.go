package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/goliatone/go-router"
	usersync "github.com/goliatone/go-user-sync"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// opUserTeams labels log lines for the read endpoint, it is not a sync action
const opUserTeams usersync.SyncAction = "user_teams"

// CreateUser handles POST /create-user. The password hash is stored as sent.
func (h *Controller) CreateUser(c router.Context) error {
	const action = usersync.ActionCreateUser
	ctx := c.Context()

	req := CreateUserRequest{}
	if err := decodeBody(c, &req); err != nil {
		return h.badPayload(c, action, err)
	}
	req.Email = strings.TrimSpace(req.Email)

	if err := req.Validate(ctx, h.repo); err != nil {
		return h.invalid(c, action, err)
	}

	now := h.now().UTC()
	user := &usersync.User{
		Name:            strings.TrimSpace(req.Name),
		Email:           req.Email,
		PasswordHash:    req.PasswordHash,
		Role:            h.defaultRole,
		IsActive:        h.defaultActive,
		EmailVerifiedAt: &now,
	}
	if req.Role != nil && strings.TrimSpace(*req.Role) != "" {
		user.Role = strings.TrimSpace(*req.Role)
	}

	if h.useHashID {
		if id, err := hashid.NewUUID(user.Email); err == nil {
			user.ID = id
		} else {
			h.logger.Warn("failed to derive user id from email", "email", user.Email, "error", err)
		}
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := h.repo.Users().CreateTx(ctx, tx, user)
		if err != nil {
			return err
		}
		for _, teamID := range uniqueIDs(req.TeamIDs) {
			if err := h.repo.Teams().AddMemberTx(ctx, tx, teamID, created.ID); err != nil {
				return err
			}
		}
		user = created
		return nil
	})
	if err != nil {
		return h.failure(c, action, err)
	}

	h.accepted(ctx, c, action, usersync.EventUserCreatedFromSync, user.Email)

	return c.JSON(http.StatusCreated, CreatedUserResponse{
		Message: "User created successfully.",
		UserID:  user.ID,
	})
}

// SyncUser handles POST /sync-user, overwriting the fields present in the body
func (h *Controller) SyncUser(c router.Context) error {
	const action = usersync.ActionSyncUser
	ctx := c.Context()

	req := SyncUserRequest{}
	if err := decodeBody(c, &req); err != nil {
		return h.badPayload(c, action, err)
	}
	req.Email = strings.TrimSpace(req.Email)

	if err := req.Validate(ctx, h.repo); err != nil {
		return h.invalid(c, action, err)
	}

	user, err := h.repo.Users().GetByEmail(ctx, req.Email)
	if err != nil {
		return h.failure(c, action, err)
	}

	if v := trimmed(req.NewEmail); v != "" {
		user.Email = v
	}
	if v := trimmed(req.Name); v != "" {
		user.Name = v
	}
	if v := trimmed(req.Role); v != "" {
		user.Role = v
	}
	if req.PasswordHash != nil && *req.PasswordHash != "" {
		user.PasswordHash = *req.PasswordHash
	}

	if _, err := h.repo.Users().Save(ctx, user); err != nil {
		return h.failure(c, action, err)
	}

	h.accepted(ctx, c, action, usersync.EventUserSynced, req.Email)

	return c.JSON(http.StatusOK, MessageResponse{Message: "User synced successfully."})
}

// ToggleActive handles POST /toggle-user-active
func (h *Controller) ToggleActive(c router.Context) error {
	const action = usersync.ActionToggleActive
	ctx := c.Context()

	req := ToggleActiveRequest{}
	if err := decodeBody(c, &req); err != nil {
		return h.badPayload(c, action, err)
	}
	req.Email = strings.TrimSpace(req.Email)

	if err := req.Validate(ctx, h.repo); err != nil {
		return h.invalid(c, action, err)
	}

	user, err := h.repo.Users().GetByEmail(ctx, req.Email)
	if err != nil {
		return h.failure(c, action, err)
	}

	user.IsActive = *req.IsActive
	if _, err := h.repo.Users().Save(ctx, user); err != nil {
		return h.failure(c, action, err)
	}

	h.accepted(ctx, c, action, usersync.EventUserActiveToggled, req.Email)

	return c.JSON(http.StatusOK, MessageResponse{Message: "User active status updated."})
}

// CreateTeam handles POST /create-team. The named user joins the team when
// it exists locally.
func (h *Controller) CreateTeam(c router.Context) error {
	const action = usersync.ActionCreateTeam
	ctx := c.Context()

	req := CreateTeamRequest{}
	if err := decodeBody(c, &req); err != nil {
		return h.badPayload(c, action, err)
	}
	req.Slug = strings.TrimSpace(req.Slug)
	req.UserEmail = strings.TrimSpace(req.UserEmail)

	if err := req.Validate(ctx, h.repo); err != nil {
		return h.invalid(c, action, err)
	}

	team := &usersync.Team{
		Name: strings.TrimSpace(req.Name),
		Slug: req.Slug,
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := h.repo.Teams().CreateTx(ctx, tx, team)
		if err != nil {
			return err
		}
		team = created

		if req.UserEmail == "" {
			return nil
		}

		owner, err := h.repo.Users().GetByEmailTx(ctx, tx, req.UserEmail)
		if errors.Is(err, usersync.ErrUserNotFound) {
			h.logger.Warn("team owner not found, team created without members",
				"team", team.Slug,
				"email", req.UserEmail,
			)
			return nil
		}
		if err != nil {
			return err
		}
		return h.repo.Teams().AddMemberTx(ctx, tx, team.ID, owner.ID)
	})
	if err != nil {
		return h.failure(c, action, err)
	}

	h.accepted(ctx, c, action, usersync.EventTeamCreatedFromSync, req.UserEmail)

	return c.JSON(http.StatusCreated, CreatedTeamResponse{
		Message: "Team created successfully.",
		TeamID:  team.ID,
	})
}

// UserTeams handles GET /user-teams. Reads are not audited.
func (h *Controller) UserTeams(c router.Context) error {
	const action = opUserTeams
	ctx := c.Context()

	req := UserTeamsRequest{
		UserEmail: strings.TrimSpace(c.Query("user_email", "")),
	}

	if err := req.Validate(ctx, h.repo); err != nil {
		return h.invalid(c, action, err)
	}

	user, err := h.repo.Users().GetByEmail(ctx, req.UserEmail)
	if err != nil {
		return h.failure(c, action, err)
	}

	teams, err := h.repo.Teams().ForUser(ctx, user.ID)
	if err != nil {
		return h.failure(c, action, err)
	}

	res := usersync.UserTeamsResponse{Teams: make([]usersync.TeamRef, 0, len(teams))}
	for _, team := range teams {
		res.Teams = append(res.Teams, usersync.TeamRef{ID: team.ID})
	}
	return c.JSON(http.StatusOK, res)
}

// SyncPassword handles POST /sync-password
func (h *Controller) SyncPassword(c router.Context) error {
	const action = usersync.ActionSyncPassword
	ctx := c.Context()

	req := SyncPasswordRequest{}
	if err := decodeBody(c, &req); err != nil {
		return h.badPayload(c, action, err)
	}
	req.Email = strings.TrimSpace(req.Email)

	if err := req.Validate(ctx, h.repo); err != nil {
		return h.invalid(c, action, err)
	}

	user, err := h.repo.Users().GetByEmail(ctx, req.Email)
	if err != nil {
		return h.failure(c, action, err)
	}

	user.PasswordHash = req.PasswordHash
	if _, err := h.repo.Users().Save(ctx, user); err != nil {
		return h.failure(c, action, err)
	}

	h.accepted(ctx, c, action, usersync.EventPasswordSynced, req.Email)

	return c.JSON(http.StatusOK, MessageResponse{Message: "Password synced successfully."})
}

// accepted writes the inbound audit row and emits the domain event. Audit
// failures are logged by the sync logger and do not fail the request.
func (h *Controller) accepted(ctx context.Context, c router.Context, action usersync.SyncAction, event usersync.EventType, email string) {
	payload := usersync.AuditPayload(h.bodyMap(c))

	_ = h.audit.LogInbound(ctx, action, email, payload)

	usersync.EmitEvent(ctx, h.events, h.logger, usersync.Event{
		Type:       event,
		Action:     action,
		Direction:  usersync.DirectionInbound,
		Email:      email,
		Payload:    payload,
		OccurredAt: h.now().UTC(),
	})
}

func (h *Controller) bodyMap(c router.Context) map[string]any {
	out := map[string]any{}
	body := c.Body()
	if len(body) == 0 {
		return out
	}
	if err := json.Unmarshal(body, &out); err != nil {
		h.logger.Debug("failed to decode payload for audit", "error", err)
		return map[string]any{}
	}
	return out
}

func decodeBody(c router.Context, v any) error {
	return json.Unmarshal(c.Body(), v)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}
