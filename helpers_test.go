package usersync_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"

	usersync "github.com/goliatone/go-user-sync"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	require.NoError(t, usersync.Migrate(context.Background(), bunDB))

	t.Cleanup(func() {
		_ = bunDB.Close()
	})
	return bunDB
}

type logEntry struct {
	Level string
	Msg   string
	Args  []any
}

type spyLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (s *spyLogger) Debug(msg string, args ...any) { s.add("debug", msg, args) }
func (s *spyLogger) Info(msg string, args ...any)  { s.add("info", msg, args) }
func (s *spyLogger) Warn(msg string, args ...any)  { s.add("warn", msg, args) }
func (s *spyLogger) Error(msg string, args ...any) { s.add("error", msg, args) }

func (s *spyLogger) add(level, msg string, args []any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, logEntry{Level: level, Msg: msg, Args: args})
}

func (s *spyLogger) Count(level string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

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

func (r *eventRecorder) OfType(t usersync.EventType) []usersync.Event {
	out := []usersync.Event{}
	for _, e := range r.All() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type recordedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   map[string]any
}

// fakeTransport answers every request without touching the network
type fakeTransport struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(req *http.Request) (*http.Response, error)
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := recordedRequest{Method: req.Method, URL: req.URL.String(), Header: req.Header.Clone()}
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.Body)
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()

	if f.respond == nil {
		return jsonResponse(http.StatusOK, `{"message":"ok"}`), nil
	}
	return f.respond(req)
}

func (f *fakeTransport) Requests() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

type harness struct {
	db         *bun.DB
	repo       usersync.RepositoryManager
	transport  *fakeTransport
	events     *eventRecorder
	logger     *spyLogger
	registry   *usersync.AppRegistry
	dispatcher *usersync.Dispatcher
}

// newHarness wires a dispatcher against a fake transport and a sqlite audit
// store. Apps are served by a static source.
func newHarness(t *testing.T, apps ...usersync.TargetApp) *harness {
	t.Helper()

	h := &harness{
		db:        setupTestDB(t),
		transport: &fakeTransport{},
		events:    &eventRecorder{},
		logger:    &spyLogger{},
	}
	h.repo = usersync.NewRepositoryManager(h.db, usersync.WithUsersLogger(h.logger))
	h.registry = usersync.NewAppRegistry(usersync.StaticAppSource(apps), "default-key",
		usersync.WithRegistryLogger(h.logger),
	)

	client := usersync.NewDeliveryClient(h.registry,
		usersync.WithHTTPClient(&http.Client{Transport: h.transport}),
		usersync.WithDeliveryLogger(h.logger),
	)

	audit := usersync.NewSyncLogger(h.repo.SyncLogs(), usersync.WithSyncLoggerLogger(h.logger))
	h.dispatcher = usersync.NewDispatcher(h.registry, client,
		usersync.WithDispatcherEvents(h.events),
		usersync.WithDispatcherAudit(audit),
		usersync.WithDispatcherLogger(h.logger),
	)
	return h
}

func (h *harness) logs(t *testing.T, filter usersync.SyncLogFilter) []*usersync.SyncLog {
	t.Helper()
	rows, err := h.repo.SyncLogs().List(context.Background(), filter)
	require.NoError(t, err)
	return rows
}

func app(name string, active bool) usersync.TargetApp {
	return usersync.TargetApp{
		Name:   name,
		URL:    fmt.Sprintf("https://%s.test", name),
		Active: active,
	}
}
