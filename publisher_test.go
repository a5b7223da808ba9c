package usersync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	usersync "github.com/goliatone/go-user-sync"
	"github.com/goliatone/go-user-sync/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Enqueue(ctx context.Context, job queue.Job, opts ...queue.Option) error {
	args := m.Called(ctx, job, queue.ResolveOptions(opts...))
	return args.Error(0)
}

func TestCreateTeamDerivesSlug(t *testing.T) {
	h := newHarness(t, app("crm", true))
	pub, _ := h.publisher(t, 1)

	require.NoError(t, pub.CreateTeam(context.Background(), "Eng", "u@x.com"))

	requests := h.transport.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "https://crm.test/api/create-team", requests[0].URL)
	assert.Equal(t, "eng", requests[0].Body["slug"])
	assert.Equal(t, "Eng", requests[0].Body["name"])
	assert.Equal(t, "u@x.com", requests[0].Body["user_email"])

	created := h.events.OfType(usersync.EventTeamCreatedFromSync)
	require.Len(t, created, 1)
	assert.Equal(t, "u@x.com", created[0].Email)
}

func TestCreateTeamOptions(t *testing.T) {
	h := newHarness(t, app("crm", true))
	pub, _ := h.publisher(t, 1)

	err := pub.CreateTeam(context.Background(), "Platform Ops", "u@x.com",
		usersync.WithTeamSlug("ops"),
		usersync.WithTeamUserName("Una"),
	)
	require.NoError(t, err)

	body := h.transport.Requests()[0].Body
	assert.Equal(t, "ops", body["slug"])
	assert.Equal(t, "Una", body["user_name"])
}

func TestSyncUserHashesPlainPassword(t *testing.T) {
	h := newHarness(t, app("crm", true))
	pub, _ := h.publisher(t, 1)

	changes := map[string]any{"password": "plain"}
	require.NoError(t, pub.SyncUser(context.Background(), "a@x.com", changes))

	body := h.transport.Requests()[0].Body
	assert.NotContains(t, body, "password")
	hash, _ := body["password_hash"].(string)
	assert.NoError(t, usersync.ComparePasswordAndHash("plain", hash))
	assert.Contains(t, changes, "password", "caller map must not be modified")
}

func TestPublishedHashIsNotRehashed(t *testing.T) {
	hash, err := usersync.HashPassword("secret")
	require.NoError(t, err)

	h := newHarness(t, app("crm", true))
	pub, _ := h.publisher(t, 1)

	require.NoError(t, pub.SyncPassword(context.Background(), "a@x.com", hash))
	assert.Equal(t, hash, h.transport.Requests()[0].Body["password_hash"])
}

func TestPublishUsesQueueOptions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	q := new(MockQueue)

	expected := queue.Options{Queue: "sync", Connection: "redis", Tries: 5, Backoff: 30 * time.Second}
	q.On("Enqueue", ctx, mock.MatchedBy(func(job queue.Job) bool {
		return job.Type() == "usersync.sync_password"
	}), expected).Return(nil).Once()

	pub := usersync.NewPublishService(q, h.dispatcher,
		usersync.WithQueueName("sync"),
		usersync.WithQueueConnection("redis"),
		usersync.WithTries(5),
		usersync.WithBackoff(expected.Backoff),
	)

	require.NoError(t, pub.SyncPassword(ctx, "a@x.com", "secret"))
	q.AssertExpectations(t)
}

func TestPublishWrapsEnqueueErrors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	q := new(MockQueue)
	q.On("Enqueue", ctx, mock.Anything, mock.Anything).Return(errors.New("queue full"))

	pub := usersync.NewPublishService(q, h.dispatcher)
	err := pub.ToggleUserActive(ctx, "a@x.com", true, "crm")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, usersync.TextCodeQueue, richErr.TextCode)
	assert.Equal(t, "toggle_active", richErr.Metadata["action"])
}

func TestCreateUserRejectsEmptyPassword(t *testing.T) {
	h := newHarness(t, app("crm", true))
	pub, _ := h.publisher(t, 1)

	err := pub.CreateUser(context.Background(), "a@x.com", "A", "", "", "")
	require.ErrorIs(t, err, usersync.ErrNoEmptyString)
	assert.Empty(t, h.transport.Requests())
}
