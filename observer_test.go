package usersync_test

import (
	"context"
	"testing"

	usersync "github.com/goliatone/go-user-sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) CreateUser(ctx context.Context, email, name, password, role, ownerEmail string) error {
	return m.Called(ctx, email, name, password, role, ownerEmail).Error(0)
}

func (m *MockPublisher) SyncUser(ctx context.Context, email string, changes map[string]any) error {
	return m.Called(ctx, email, changes).Error(0)
}

func (m *MockPublisher) SyncPassword(ctx context.Context, email, password string) error {
	return m.Called(ctx, email, password).Error(0)
}

func (m *MockPublisher) CreateTeam(ctx context.Context, name, userEmail string, opts ...usersync.TeamOption) error {
	return m.Called(ctx, name, userEmail).Error(0)
}

func (m *MockPublisher) ToggleUserActive(ctx context.Context, email string, active bool, appKey string) error {
	return m.Called(ctx, email, active, appKey).Error(0)
}

func TestObserverIgnoresFieldsOutsideAllowList(t *testing.T) {
	pub := new(MockPublisher)
	observer := usersync.NewChangeObserver(pub)

	before := &usersync.User{Email: "a@x.com", Name: "Ann", Role: usersync.RoleSubscriber}
	after := before.Clone()
	after.Name = "Annie"
	after.IsActive = true

	require.NoError(t, observer.UserUpdated(context.Background(), before, after))
	pub.AssertNotCalled(t, "SyncUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestObserverReportsEmailAsNewEmail(t *testing.T) {
	ctx := context.Background()
	pub := new(MockPublisher)
	pub.On("SyncUser", ctx, "old@x.com", map[string]any{"new_email": "new@x.com", "role": "editor"}).
		Return(nil).Once()

	observer := usersync.NewChangeObserver(pub)

	before := &usersync.User{Email: "old@x.com", Role: usersync.RoleSubscriber}
	after := before.Clone()
	after.Email = "new@x.com"
	after.Role = usersync.RoleEditor

	require.NoError(t, observer.UserUpdated(ctx, before, after))
	pub.AssertExpectations(t)
}

func TestObserverCustomFields(t *testing.T) {
	observer := usersync.NewChangeObserver(new(MockPublisher), usersync.WithSyncFields(" Name ", "is_active", ""))
	assert.Equal(t, []string{"name", "is_active"}, observer.Fields())

	before := &usersync.User{Email: "a@x.com", Name: "Ann", Role: usersync.RoleSubscriber}
	after := before.Clone()
	after.Name = "Annie"
	after.Role = usersync.RoleAdmin
	after.IsActive = true

	assert.Equal(t, map[string]any{"name": "Annie"}, observer.Diff(before, after))
}

func TestObserverSkipsWhileReceiving(t *testing.T) {
	pub := new(MockPublisher)
	observer := usersync.NewChangeObserver(pub)

	before := &usersync.User{Email: "a@x.com", Role: usersync.RoleSubscriber}
	after := before.Clone()
	after.Role = usersync.RoleAdmin

	err := usersync.Receiving(context.Background(), func(ctx context.Context) error {
		return observer.UserUpdated(ctx, before, after)
	})
	require.NoError(t, err)
	pub.AssertNotCalled(t, "SyncUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestUsersSaveRunsObserverEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, app("crm", true))
	pub, _ := h.publisher(t, 1)

	observer := usersync.NewChangeObserver(pub)
	h.repo.Users().OnUpdate(observer.UserUpdated)

	user, err := h.repo.Users().Create(ctx, &usersync.User{Name: "Ann", Email: "old@x.com"})
	require.NoError(t, err)
	assert.Equal(t, usersync.RoleSubscriber, user.Role)

	user.Email = "new@x.com"
	_, err = h.repo.Users().Save(ctx, user)
	require.NoError(t, err)

	requests := h.transport.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "https://crm.test/api/sync-user", requests[0].URL)
	assert.Equal(t, map[string]any{"email": "old@x.com", "new_email": "new@x.com"}, requests[0].Body)

	// writes made for an inbound request are not echoed back
	inbound := usersync.WithReceiving(ctx)
	user.Role = usersync.RoleAdmin
	_, err = h.repo.Users().Save(inbound, user)
	require.NoError(t, err)
	assert.Len(t, h.transport.Requests(), 1)
}
