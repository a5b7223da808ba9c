package receiver_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	usersync "github.com/goliatone/go-user-sync"
	"github.com/goliatone/go-user-sync/receiver"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

const testAPIKey = "receiver-secret"

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type eventRecorder struct {
	mu     sync.Mutex
	events []usersync.Event
}

func (r *eventRecorder) Emit(_ context.Context, event usersync.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) All() []usersync.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]usersync.Event(nil), r.events...)
}

type testReceiver struct {
	app    *fiber.App
	db     *bun.DB
	repo   usersync.RepositoryManager
	events *eventRecorder
}

func setupReceiver(t *testing.T, opts ...receiver.Option) *testReceiver {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	require.NoError(t, usersync.Migrate(context.Background(), bunDB))
	t.Cleanup(func() {
		_ = bunDB.Close()
	})

	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		return fiber.New(fiber.Config{
			DisableStartupMessage: true,
			ErrorHandler:          receiver.ErrorHandler(usersync.NoopLogger()),
		})
	})

	tr := &testReceiver{
		db:     bunDB,
		repo:   usersync.NewRepositoryManager(bunDB, usersync.WithUsersLogger(usersync.NoopLogger())),
		events: &eventRecorder{},
	}

	base := []receiver.Option{
		receiver.WithAPIKey(testAPIKey),
		receiver.WithAudit(usersync.NewSyncLogger(tr.repo.SyncLogs(), usersync.WithSyncLoggerLogger(usersync.NoopLogger()))),
		receiver.WithEvents(tr.events),
		receiver.WithLogger(usersync.NoopLogger()),
		receiver.WithClock(func() time.Time { return fixedNow }),
	}
	receiver.RegisterRoutes(srv.Router(), receiver.NewController(tr.repo, append(base, opts...)...))
	tr.app = srv.WrappedRouter()

	return tr
}

func (tr *testReceiver) do(t *testing.T, method, path string, body any, key string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	res, err := tr.app.Test(req, -1)
	require.NoError(t, err)
	defer res.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return res.StatusCode, out
}

func (tr *testReceiver) post(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	return tr.do(t, http.MethodPost, "/api"+path, body, testAPIKey)
}

func (tr *testReceiver) auditRows(t *testing.T) []*usersync.SyncLog {
	t.Helper()
	rows, err := tr.repo.SyncLogs().List(context.Background(), usersync.SyncLogFilter{})
	require.NoError(t, err)
	return rows
}

func (tr *testReceiver) seedUser(t *testing.T, email string) *usersync.User {
	t.Helper()
	user, err := tr.repo.Users().Create(context.Background(), &usersync.User{Name: "Seed", Email: email})
	require.NoError(t, err)
	return user
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := usersync.HashPassword(password)
	require.NoError(t, err)
	return hash
}
