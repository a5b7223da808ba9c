package usersync

import (
	"context"
	"sort"
	"strings"
)

// TargetApp is a receiver application the publisher delivers to
type TargetApp struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	APIKey string `json:"-"`
	Active bool   `json:"active"`
}

// AppSource loads the configured target apps
type AppSource interface {
	LoadApps(ctx context.Context) ([]TargetApp, error)
}

// StaticAppSource serves a fixed list, usually read from configuration
type StaticAppSource []TargetApp

// LoadApps implements AppSource
func (s StaticAppSource) LoadApps(context.Context) ([]TargetApp, error) {
	out := make([]TargetApp, len(s))
	copy(out, s)
	return out, nil
}

// StoreAppSource reads apps from the sync_apps table
type StoreAppSource struct {
	Store SyncApps
}

// LoadApps implements AppSource
func (s StoreAppSource) LoadApps(ctx context.Context) ([]TargetApp, error) {
	records, err := s.Store.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TargetApp, 0, len(records))
	for _, record := range records {
		out = append(out, record.TargetApp())
	}
	return out, nil
}

// AppRegistry resolves target apps and their API keys. Every call reads a
// fresh snapshot from the source.
type AppRegistry struct {
	source        AppSource
	defaultAPIKey string
	logger        Logger
}

// RegistryOption configures an AppRegistry
type RegistryOption func(*AppRegistry)

// WithRegistryLogger sets the registry logger
func WithRegistryLogger(logger Logger) RegistryOption {
	return func(r *AppRegistry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewAppRegistry returns a registry reading from source. defaultAPIKey is
// used for apps that do not carry their own key.
func NewAppRegistry(source AppSource, defaultAPIKey string, opts ...RegistryOption) *AppRegistry {
	if source == nil {
		source = StaticAppSource(nil)
	}
	r := &AppRegistry{
		source:        source,
		defaultAPIKey: defaultAPIKey,
		logger:        ResolveLogger("registry", nil, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// ListApps returns every app keyed by name regardless of the active flag.
// A failing source is logged and yields an empty map.
func (r *AppRegistry) ListApps(ctx context.Context) map[string]TargetApp {
	apps, err := r.source.LoadApps(ctx)
	if err != nil {
		r.logger.Error("failed to load sync apps", "error", err)
		return map[string]TargetApp{}
	}

	out := make(map[string]TargetApp, len(apps))
	for _, app := range apps {
		name := strings.TrimSpace(app.Name)
		if name == "" {
			continue
		}
		if _, dup := out[name]; dup {
			r.logger.Warn("duplicate sync app name, keeping first", "app", name)
			continue
		}
		app.Name = name
		out[name] = app
	}
	return out
}

// ListActiveApps returns the apps flagged active
func (r *AppRegistry) ListActiveApps(ctx context.Context) map[string]TargetApp {
	out := map[string]TargetApp{}
	for name, app := range r.ListApps(ctx) {
		if app.Active {
			out[name] = app
		}
	}
	return out
}

// GetApp looks up a single app by name
func (r *AppRegistry) GetApp(ctx context.Context, name string) (TargetApp, bool) {
	app, ok := r.ListApps(ctx)[strings.TrimSpace(name)]
	return app, ok
}

// GetAPIKey returns the app's own key, falling back to the default key.
// Unknown apps get an empty string.
func (r *AppRegistry) GetAPIKey(ctx context.Context, name string) string {
	app, ok := r.GetApp(ctx, name)
	if !ok {
		return ""
	}
	return r.APIKeyFor(app)
}

// APIKeyFor resolves the bearer key for an app already in hand
func (r *AppRegistry) APIKeyFor(app TargetApp) string {
	if app.APIKey != "" {
		return app.APIKey
	}
	return r.defaultAPIKey
}

// DefaultAPIKey is the registry wide key
func (r *AppRegistry) DefaultAPIKey() string {
	return r.defaultAPIKey
}

// SortedNames returns the map keys in lexical order so per job audit rows
// come out in a stable order.
func SortedNames(apps map[string]TargetApp) []string {
	names := make([]string, 0, len(apps))
	for name := range apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
