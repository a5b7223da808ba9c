package usersync_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	usersync "github.com/goliatone/go-user-sync"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	transport := goerrors.WrapRetryable(errors.New("connection refused"), goerrors.CategoryExternal, "request failed").
		WithTextCode(usersync.TextCodeTransport)

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			expected: true,
		},
		{
			name:     "transport failure",
			err:      transport,
			expected: true,
		},
		{
			name:     "wrapped transport failure",
			err:      fmt.Errorf("job: %w", transport),
			expected: true,
		},
		{
			name:     "non retryable rich error",
			err:      goerrors.NewNonRetryable("rejected", goerrors.CategoryExternal),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, usersync.IsRetryable(tt.err))
		})
	}
}

func TestIsTransportError(t *testing.T) {
	transport := goerrors.WrapRetryable(context.DeadlineExceeded, goerrors.CategoryExternal, "request failed").
		WithTextCode(usersync.TextCodeTransport)

	assert.True(t, usersync.IsTransportError(transport))
	assert.True(t, usersync.IsTransportError(fmt.Errorf("wrapped: %w", transport)))
	assert.False(t, usersync.IsTransportError(errors.New("plain")))
	assert.False(t, usersync.IsTransportError(usersync.ErrUserNotFound))
}

func TestSentinelErrors(t *testing.T) {
	assert.True(t, goerrors.IsNotFound(usersync.ErrUserNotFound))
	assert.True(t, goerrors.IsNotFound(usersync.ErrAppNotFound))
	assert.True(t, goerrors.IsAuth(usersync.ErrUnauthorized))
	assert.Equal(t, usersync.TextCodeTeamNotFound, usersync.ErrTeamNotFound.TextCode)
}
