package cli

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	usersync "github.com/goliatone/go-user-sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func tempDSN(t *testing.T) string {
	t.Helper()
	return "file:" + filepath.Join(t.TempDir(), "usersync.db") + "?cache=shared"
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp(&stdout, &stderr, "test")
	err := app.Run(context.Background(), append([]string{"usersync"}, args...))
	return stdout.String(), err
}

func TestAppsAddAndList(t *testing.T) {
	dsn := tempDSN(t)

	_, err := run(t, "--database-dsn", dsn, "migrate")
	require.NoError(t, err)

	out, err := run(t, "--database-dsn", dsn, "apps", "add", "--name", "crm", "--url", "https://crm.test/", "--app-key", "crm-secret")
	require.NoError(t, err)
	assert.Contains(t, out, "saved app crm (https://crm.test) active=true")

	_, err = run(t, "--database-dsn", dsn, "apps", "add", "--name", "shop", "--url", "https://shop.test", "--inactive")
	require.NoError(t, err)

	out, err = run(t, "--database-dsn", dsn, "apps", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "crm")
	assert.Contains(t, out, "shop")
	assert.NotContains(t, out, "crm-secret")

	_, err = run(t, "--database-dsn", dsn, "apps", "add", "--name", "bad", "--url", "not a url")
	assert.Error(t, err)
}

func TestLogsPrune(t *testing.T) {
	ctx := context.Background()
	dsn := tempDSN(t)

	_, err := run(t, "--database-dsn", dsn, "migrate")
	require.NoError(t, err)

	db, err := openDB(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	logs := usersync.NewSyncLogsRepository(db)
	old := time.Now().UTC().Add(-72 * time.Hour)
	require.NoError(t, logs.Append(ctx, &usersync.SyncLog{
		Action:    usersync.ActionSyncUser,
		Direction: usersync.DirectionInbound,
		Email:     "old@x.com",
		Status:    usersync.StatusSuccess,
		CreatedAt: &old,
	}))
	require.NoError(t, logs.Append(ctx, &usersync.SyncLog{
		Action:    usersync.ActionSyncUser,
		Direction: usersync.DirectionInbound,
		Email:     "new@x.com",
		Status:    usersync.StatusSuccess,
	}))

	out, err := run(t, "--database-dsn", dsn, "logs", "prune", "--days", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "pruned 1 rows")

	out, err = run(t, "--database-dsn", dsn, "logs", "list", "--action", "sync_user")
	require.NoError(t, err)
	assert.Contains(t, out, "new@x.com")
	assert.NotContains(t, out, "old@x.com")

	_, err = run(t, "--database-dsn", dsn, "logs", "list", "--action", "explode")
	assert.Error(t, err)
}

func TestSettingsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usersync.toml")
	require.NoError(t, os.WriteFile(path, []byte("mode = \"receiver\"\n[receiver]\naddr = \":9000\"\n"), 0o600))

	t.Setenv("USER_SYNC_API_KEY", "env-key")

	var global settings
	var loaded *usersync.Config
	cmd := &cli.Command{
		Name:  "usersync-test",
		Flags: global.Flags(),
		Action: func(_ context.Context, c *cli.Command) error {
			cfg, err := global.Load(c)
			loaded = cfg
			return err
		},
	}

	require.NoError(t, cmd.Run(context.Background(), []string{"usersync-test", "--config", path, "--addr", ":9100"}))
	require.NotNil(t, loaded)
	assert.Equal(t, usersync.ModeReceiver, loaded.Mode)
	assert.Equal(t, "env-key", loaded.ReceiverAPIKey())
	assert.Equal(t, ":9100", loaded.Receiver.Addr)
	assert.Equal(t, usersync.DefaultConfig().Database.DSN, loaded.Database.DSN)
}

func TestSettingsLoadRejectsMissingReceiverKey(t *testing.T) {
	var global settings
	cmd := &cli.Command{
		Name:  "usersync-test",
		Flags: global.Flags(),
		Action: func(_ context.Context, c *cli.Command) error {
			_, err := global.Load(c)
			return err
		},
	}
	assert.Error(t, cmd.Run(context.Background(), []string{"usersync-test", "--mode", "receiver"}))
}

func TestLoggerMasksCredentials(t *testing.T) {
	var buf bytes.Buffer
	cfg := loggerConfig{level: "debug", format: "json"}
	logger, err := cfg.New(&buf)
	require.NoError(t, err)

	logger.Info("delivering",
		"email", "a@x.com",
		"password_hash", "$2a$10$abcdef",
		"api_key", "top-secret",
		"header", "Bearer top-secret",
	)

	out := buf.String()
	assert.Contains(t, out, "a@x.com")
	assert.NotContains(t, out, "$2a$10$abcdef")
	assert.NotContains(t, out, "top-secret")

	_, err = (&loggerConfig{level: "loud"}).New(&buf)
	assert.Error(t, err)
	_, err = (&loggerConfig{format: "xml"}).New(&buf)
	assert.Error(t, err)
}

func TestNodeWiring(t *testing.T) {
	ctx := context.Background()
	db, err := openDB(ctx, tempDSN(t))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, usersync.Migrate(ctx, db))

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	cfg := usersync.DefaultConfig()
	cfg.APIKey = "node-key"
	cfg.Publisher.Apps = []usersync.AppConfig{{Name: "crm", URL: "https://crm.test", Active: true}}

	n := newNode(&cfg, db, logger)
	require.NotNil(t, n.publisher)
	require.NotNil(t, n.observer)
	require.NotNil(t, n.srv)
	assert.Contains(t, n.registry.ListActiveApps(ctx), "crm")

	req := httptest.NewRequest(http.MethodGet, "/api/user-teams?user_email=a@x.com", nil)
	res, err := n.srv.WrappedRouter().Test(req, -1)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	receiverOnly := cfg
	receiverOnly.Mode = usersync.ModeReceiver
	n = newNode(&receiverOnly, db, logger)
	assert.Nil(t, n.publisher)
	assert.Nil(t, n.pool)
	assert.NotNil(t, n.srv)

	publisherOnly := cfg
	publisherOnly.Mode = usersync.ModePublisher
	publisherOnly.Publisher.AppSource = usersync.AppSourceDatabase
	publisherOnly.Publisher.AutoObserve = false
	n = newNode(&publisherOnly, db, logger)
	assert.NotNil(t, n.publisher)
	assert.Nil(t, n.observer)
	assert.Nil(t, n.srv)
	assert.Empty(t, n.registry.ListApps(ctx))
}

func TestNodeRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	db, err := openDB(ctx, tempDSN(t))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, usersync.Migrate(ctx, db))

	cfg := usersync.DefaultConfig()
	cfg.Mode = usersync.ModePublisher
	n := newNode(&cfg, db, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("node did not stop")
	}
}
