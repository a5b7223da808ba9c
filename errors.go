package usersync

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUnauthorized    = "SYNC_UNAUTHORIZED"
	TextCodeAppNotFound     = "SYNC_APP_NOT_FOUND"
	TextCodeUserNotFound    = "SYNC_USER_NOT_FOUND"
	TextCodeTeamNotFound    = "SYNC_TEAM_NOT_FOUND"
	TextCodeTransport       = "SYNC_TRANSPORT_FAILURE"
	TextCodeRemoteRejection = "SYNC_REMOTE_REJECTION"
	TextCodeQueue           = "SYNC_QUEUE_FAILURE"
)

// ErrUnauthorized is returned when the bearer token is missing or wrong
var ErrUnauthorized = goerrors.New("unauthorized", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrAppNotFound is returned when a single target app is not registered
var ErrAppNotFound = goerrors.New("sync app not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAppNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUserNotFound is returned by the receiver stores
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrTeamNotFound is returned by the receiver stores
var ErrTeamNotFound = goerrors.New("team not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeTeamNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password can not be empty")

// ErrMismatchedHashAndPassword is returned when a password does not match its hash
var ErrMismatchedHashAndPassword = errors.New("password does not match hash")

// IsRetryable reports whether err asks the queue for another attempt.
// Plain errors are retryable, rich retryable errors decide for themselves.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var retryable *goerrors.RetryableError
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return true
}

// IsTransportError reports whether err came from the delivery transport
func IsTransportError(err error) bool {
	var retryable *goerrors.RetryableError
	if errors.As(err, &retryable) && retryable.BaseError != nil {
		return retryable.TextCode == TextCodeTransport
	}
	var richErr *goerrors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeTransport
	}
	return false
}
