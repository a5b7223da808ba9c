package usersync_test

import (
	"context"
	"errors"
	"testing"

	usersync "github.com/goliatone/go-user-sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSource struct{}

func (failingSource) LoadApps(context.Context) ([]usersync.TargetApp, error) {
	return nil, errors.New("database is locked")
}

func TestRegistryStaticSource(t *testing.T) {
	ctx := context.Background()
	crm := app("crm", true)
	crm.APIKey = "crm-key"

	registry := usersync.NewAppRegistry(usersync.StaticAppSource{
		crm,
		app("shop", false),
		{Name: "  ", URL: "https://blank.test"},
	}, "fallback", usersync.WithRegistryLogger(usersync.NoopLogger()))

	all := registry.ListApps(ctx)
	assert.Len(t, all, 2)

	active := registry.ListActiveApps(ctx)
	require.Len(t, active, 1)
	assert.Contains(t, active, "crm")

	shop, ok := registry.GetApp(ctx, "shop")
	require.True(t, ok)
	assert.False(t, shop.Active)

	assert.Equal(t, "crm-key", registry.GetAPIKey(ctx, "crm"))
	assert.Equal(t, "fallback", registry.GetAPIKey(ctx, "shop"))
	assert.Equal(t, "", registry.GetAPIKey(ctx, "ghost"))
	assert.Equal(t, "fallback", registry.DefaultAPIKey())
}

func TestRegistryKeepsFirstDuplicate(t *testing.T) {
	logger := &spyLogger{}
	first := app("crm", true)
	second := app("crm", false)
	second.URL = "https://other.test"

	registry := usersync.NewAppRegistry(usersync.StaticAppSource{first, second}, "",
		usersync.WithRegistryLogger(logger),
	)

	got, ok := registry.GetApp(context.Background(), "crm")
	require.True(t, ok)
	assert.Equal(t, "https://crm.test", got.URL)
	assert.Equal(t, 1, logger.Count("warn"))
}

func TestRegistryFailingSourceIsEmpty(t *testing.T) {
	logger := &spyLogger{}
	registry := usersync.NewAppRegistry(failingSource{}, "key", usersync.WithRegistryLogger(logger))

	assert.Empty(t, registry.ListActiveApps(context.Background()))
	assert.Equal(t, 1, logger.Count("error"))
}

func TestRegistryStoreSourceReadsFreshSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := usersync.NewRepositoryManager(setupTestDB(t))
	registry := usersync.NewAppRegistry(usersync.StoreAppSource{Store: repo.SyncApps()}, "key")

	assert.Empty(t, registry.ListApps(ctx))

	saved, err := repo.SyncApps().Save(ctx, &usersync.SyncApp{
		Name:     "crm",
		URL:      "https://crm.test",
		APIKey:   "crm-key",
		IsActive: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	apps := registry.ListActiveApps(ctx)
	require.Len(t, apps, 1)
	assert.Equal(t, "crm-key", apps["crm"].APIKey)

	saved.IsActive = false
	_, err = repo.SyncApps().Save(ctx, saved)
	require.NoError(t, err)

	assert.Empty(t, registry.ListActiveApps(ctx))
	assert.Len(t, registry.ListApps(ctx), 1)

	_, err = repo.SyncApps().ByName(ctx, "ghost")
	assert.ErrorIs(t, err, usersync.ErrAppNotFound)
}

func TestSortedNames(t *testing.T) {
	apps := map[string]usersync.TargetApp{"shop": {}, "crm": {}, "blog": {}}
	assert.Equal(t, []string{"blog", "crm", "shop"}, usersync.SortedNames(apps))
}
