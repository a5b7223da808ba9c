package receiver

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	usersync "github.com/goliatone/go-user-sync"
	"github.com/google/uuid"
)

const invalidDataMessage = "The given data was invalid."

// ValidationResponse is the 422 body
type ValidationResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// MessageResponse is the body of every other non-read endpoint
type MessageResponse struct {
	Message string `json:"message"`
}

// CreatedUserResponse is the 201 body of create-user
type CreatedUserResponse struct {
	Message string    `json:"message"`
	UserID  uuid.UUID `json:"user_id"`
}

// CreatedTeamResponse is the 201 body of create-team
type CreatedTeamResponse struct {
	Message string `json:"message"`
	TeamID  int64  `json:"team_id"`
}

func (h *Controller) invalid(c router.Context, action usersync.SyncAction, err error) error {
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return h.failure(c, action, internal.InternalError())
	}

	res := ValidationResponse{
		Message: invalidDataMessage,
		Errors:  map[string][]string{},
	}

	verr := goerrors.FromOzzoValidation(err, invalidDataMessage)
	for _, fe := range verr.ValidationErrors {
		res.Errors[fe.Field] = append(res.Errors[fe.Field], fe.Message)
	}
	if len(res.Errors) == 0 {
		res.Errors["payload"] = []string{err.Error()}
	}

	h.logger.Debug("rejected inbound sync request", "action", action.String(), "errors", res.Errors)
	return c.JSON(http.StatusUnprocessableEntity, res)
}

func (h *Controller) badPayload(c router.Context, action usersync.SyncAction, err error) error {
	h.logger.Debug("unreadable inbound sync payload", "action", action.String(), "error", err)
	return c.JSON(http.StatusUnprocessableEntity, ValidationResponse{
		Message: invalidDataMessage,
		Errors:  map[string][]string{"payload": {"must be a valid JSON object"}},
	})
}

func (h *Controller) failure(c router.Context, action usersync.SyncAction, err error) error {
	rich := goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply inbound sync").
		WithMetadata(map[string]any{"action": action.String()})
	h.logger.Error("inbound sync failed", "action", action.String(), "error", rich)
	return c.JSON(http.StatusInternalServerError, MessageResponse{
		Message: "Failed to apply sync request.",
	})
}
