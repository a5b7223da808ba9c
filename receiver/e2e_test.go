package receiver_test

import (
	"context"
	"net"
	"testing"
	"time"

	usersync "github.com/goliatone/go-user-sync"
	"github.com/goliatone/go-user-sync/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serve starts the receiver app on a loopback port and returns its base URL
func (tr *testReceiver) serve(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = tr.app.Listener(ln)
	}()
	t.Cleanup(func() {
		_ = tr.app.ShutdownWithTimeout(time.Second)
	})

	return "http://" + ln.Addr().String()
}

func newPeerPublisher(t *testing.T, url string) (*usersync.PublishService, usersync.SyncLogs) {
	t.Helper()

	tr := setupReceiver(t)
	registry := usersync.NewAppRegistry(usersync.StaticAppSource{
		{Name: "peer", URL: url, Active: true},
	}, testAPIKey, usersync.WithRegistryLogger(usersync.NoopLogger()))

	client := usersync.NewDeliveryClient(registry,
		usersync.WithTimeout(5*time.Second),
		usersync.WithDeliveryLogger(usersync.NoopLogger()),
	)
	audit := usersync.NewSyncLogger(tr.repo.SyncLogs(), usersync.WithSyncLoggerLogger(usersync.NoopLogger()))
	dispatcher := usersync.NewDispatcher(registry, client,
		usersync.WithDispatcherAudit(audit),
		usersync.WithDispatcherLogger(usersync.NoopLogger()),
	)

	q := queue.NewInline(queue.WithInlineSleep(func(context.Context, time.Duration) error { return nil }))
	return usersync.NewPublishService(q, dispatcher,
		usersync.WithTries(1),
		usersync.WithPublishLogger(usersync.NoopLogger()),
	), tr.repo.SyncLogs()
}

func TestPublisherToReceiverRoundTrip(t *testing.T) {
	ctx := context.Background()
	remote := setupReceiver(t)
	owner := remote.seedUser(t, "owner@x.com")

	pub, outbound := newPeerPublisher(t, remote.serve(t))

	require.NoError(t, pub.CreateTeam(ctx, "Platform Team", "owner@x.com"))

	team, err := remote.repo.Teams().GetBySlug(ctx, "platform-team")
	require.NoError(t, err)
	ownerTeams, err := remote.repo.Teams().ForUser(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, ownerTeams, 1)

	require.NoError(t, pub.CreateUser(ctx, "new@x.com", "New", "secret", "editor", "owner@x.com"))

	created, err := remote.repo.Users().GetByEmail(ctx, "new@x.com")
	require.NoError(t, err)
	assert.Equal(t, usersync.RoleEditor, created.Role)
	assert.NoError(t, usersync.ComparePasswordAndHash("secret", created.PasswordHash))

	teams, err := remote.repo.Teams().ForUser(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, team.ID, teams[0].ID)

	require.NoError(t, pub.SyncPassword(ctx, "new@x.com", "rotated"))
	require.NoError(t, pub.SyncUser(ctx, "new@x.com", map[string]any{"new_email": "renamed@x.com"}))
	require.NoError(t, pub.ToggleUserActive(ctx, "renamed@x.com", true, "peer"))

	renamed, err := remote.repo.Users().GetByEmail(ctx, "renamed@x.com")
	require.NoError(t, err)
	assert.True(t, renamed.IsActive)
	assert.NoError(t, usersync.ComparePasswordAndHash("rotated", renamed.PasswordHash))

	rows, err := outbound.List(ctx, usersync.SyncLogFilter{Direction: usersync.DirectionOutbound})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for _, row := range rows {
		assert.Equal(t, usersync.StatusSuccess, row.Status, row.Action)
		assert.Equal(t, "peer", row.TargetApp)
	}

	inbound := remote.auditRows(t)
	assert.Len(t, inbound, 5)
}

func TestPublisherRecordsRejectedDelivery(t *testing.T) {
	ctx := context.Background()
	remote := setupReceiver(t)
	pub, outbound := newPeerPublisher(t, remote.serve(t))

	// the remote has no such user, validation answers 422
	require.NoError(t, pub.SyncPassword(ctx, "ghost@x.com", "secret"))

	rows, err := outbound.List(ctx, usersync.SyncLogFilter{Direction: usersync.DirectionOutbound})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, usersync.StatusFailed, rows[0].Status)
	assert.Equal(t, 422, rows[0].HTTPStatus)
	assert.Empty(t, remote.auditRows(t))
}
