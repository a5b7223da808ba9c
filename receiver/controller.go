package receiver

import (
	"strings"
	"time"

	"github.com/goliatone/go-router"
	usersync "github.com/goliatone/go-user-sync"
)

// DefaultRoutePrefix is where the endpoints are mounted unless configured
const DefaultRoutePrefix = "api"

// Controller serves the inbound sync endpoints
type Controller struct {
	repo          usersync.RepositoryManager
	apiKey        string
	prefix        string
	defaultRole   usersync.UserRole
	defaultActive bool
	useHashID     bool
	audit         *usersync.SyncLogger
	events        usersync.EventSink
	logger        usersync.Logger
	now           func() time.Time
}

// Option configures a Controller
type Option func(*Controller)

// WithAPIKey sets the bearer key inbound requests must present
func WithAPIKey(key string) Option {
	return func(c *Controller) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithRoutePrefix sets the group prefix, "api" by default
func WithRoutePrefix(prefix string) Option {
	return func(c *Controller) {
		c.prefix = prefix
	}
}

// WithDefaultRole is the role given to created users that carry none
func WithDefaultRole(role usersync.UserRole) Option {
	return func(c *Controller) {
		if role != "" {
			c.defaultRole = role
		}
	}
}

// WithDefaultActive is the active flag given to created users
func WithDefaultActive(active bool) Option {
	return func(c *Controller) {
		c.defaultActive = active
	}
}

// WithHashID derives user ids from the email so every app stores the same id
func WithHashID(enabled bool) Option {
	return func(c *Controller) {
		c.useHashID = enabled
	}
}

// WithAudit sets the sync logger for inbound rows
func WithAudit(audit *usersync.SyncLogger) Option {
	return func(c *Controller) {
		c.audit = audit
	}
}

// WithEvents sets the domain event sink
func WithEvents(sink usersync.EventSink) Option {
	return func(c *Controller) {
		c.events = sink
	}
}

// WithLogger sets the controller logger
func WithLogger(logger usersync.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides time.Now, used by tests
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController returns a controller writing to repo
func NewController(repo usersync.RepositoryManager, opts ...Option) *Controller {
	c := &Controller{
		repo:        repo,
		prefix:      DefaultRoutePrefix,
		defaultRole: usersync.RoleSubscriber,
		logger:      usersync.ResolveLogger("receiver", nil, nil),
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Prefix is the normalized route prefix, empty when mounted at the root
func (h *Controller) Prefix() string {
	p := strings.Trim(strings.TrimSpace(h.prefix), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

func (h *Controller) route(path string) string {
	return h.Prefix() + path
}

// RegisterRoutes mounts the controller endpoints under its prefix, each
// behind the API key check
func RegisterRoutes[T any](app router.Router[T], h *Controller) {
	auth := APIKeyMiddleware(h.apiKey)

	app.Post(h.route(usersync.PathCreateUser), h.CreateUser, auth).
		SetName("usersync.create-user")

	app.Post(h.route(usersync.PathSyncUser), h.SyncUser, auth).
		SetName("usersync.sync-user")

	app.Post(h.route(usersync.PathToggleActive), h.ToggleActive, auth).
		SetName("usersync.toggle-user-active")

	app.Post(h.route(usersync.PathCreateTeam), h.CreateTeam, auth).
		SetName("usersync.create-team")

	app.Get(h.route(usersync.PathUserTeams), h.UserTeams, auth).
		SetName("usersync.user-teams")

	app.Post(h.route(usersync.PathSyncPassword), h.SyncPassword, auth).
		SetName("usersync.sync-password")
}
