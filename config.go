package usersync

import (
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/pelletier/go-toml/v2"
)

const (
	AppSourceConfig   = "config"
	AppSourceDatabase = "database"
)

// Config holds every setting for publisher and receiver
type Config struct {
	Mode      Mode            `toml:"mode" json:"mode"`
	APIKey    string          `toml:"api_key" json:"api_key"`
	Publisher PublisherConfig `toml:"publisher" json:"publisher"`
	Receiver  ReceiverConfig  `toml:"receiver" json:"receiver"`
	Logging   LoggingConfig   `toml:"logging" json:"logging"`
	Database  DatabaseConfig  `toml:"database" json:"database"`
}

// PublisherConfig holds outbound settings
type PublisherConfig struct {
	APIKey                string      `toml:"api_key" json:"api_key"`
	AppSource             string      `toml:"app_source" json:"app_source"`
	Apps                  []AppConfig `toml:"apps" json:"apps"`
	Queue                 string      `toml:"queue" json:"queue"`
	Connection            string      `toml:"connection" json:"connection"`
	Tries                 int         `toml:"tries" json:"tries"`
	BackoffSeconds        int         `toml:"backoff_seconds" json:"backoff_seconds"`
	TimeoutSeconds        int         `toml:"timeout_seconds" json:"timeout_seconds"`
	Workers               int         `toml:"workers" json:"workers"`
	SyncFields            []string    `toml:"sync_fields" json:"sync_fields"`
	SkipTLSForTestDomains bool        `toml:"skip_tls_for_test_domains" json:"skip_tls_for_test_domains"`
	TestDomainSuffixes    []string    `toml:"test_domain_suffixes" json:"test_domain_suffixes"`
	RemotePrefix          string      `toml:"remote_prefix" json:"remote_prefix"`
	AutoObserve           bool        `toml:"auto_observe" json:"auto_observe"`
}

// AppConfig is a statically configured target app. Apps that omit
// active are not synced to.
type AppConfig struct {
	Name   string `toml:"name" json:"name"`
	URL    string `toml:"url" json:"url"`
	APIKey string `toml:"api_key" json:"api_key"`
	Active bool   `toml:"active" json:"active"`
}

// ReceiverConfig holds inbound settings
type ReceiverConfig struct {
	Addr          string `toml:"addr" json:"addr"`
	APIKey        string `toml:"api_key" json:"api_key"`
	RoutePrefix   string `toml:"route_prefix" json:"route_prefix"`
	DefaultRole   string `toml:"default_role" json:"default_role"`
	DefaultActive bool   `toml:"default_active" json:"default_active"`
	UseHashID     bool   `toml:"use_hashid" json:"use_hashid"`
}

// LoggingConfig controls the audit log
type LoggingConfig struct {
	Enabled       bool `toml:"enabled" json:"enabled"`
	RetentionDays int  `toml:"retention_days" json:"retention_days"`
}

// DatabaseConfig holds the storage DSN
type DatabaseConfig struct {
	DSN string `toml:"dsn" json:"dsn"`
}

// DefaultConfig returns the defaults applied before a file is read
func DefaultConfig() Config {
	return Config{
		Mode: ModeBoth,
		Publisher: PublisherConfig{
			AppSource:             AppSourceConfig,
			Queue:                 "default",
			Connection:            "default",
			Tries:                 3,
			BackoffSeconds:        60,
			TimeoutSeconds:        10,
			Workers:               4,
			SyncFields:            append([]string(nil), DefaultSyncFields...),
			SkipTLSForTestDomains: true,
			TestDomainSuffixes:    append([]string(nil), DefaultTestDomainSuffixes...),
			RemotePrefix:          DefaultRemotePrefix,
			AutoObserve:           true,
		},
		Receiver: ReceiverConfig{
			Addr:          ":8080",
			RoutePrefix:   "api",
			DefaultRole:   RoleSubscriber,
			DefaultActive: false,
		},
		Logging: LoggingConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
		Database: DatabaseConfig{
			DSN: "file:usersync.db?cache=shared",
		},
	}
}

// ReadConfig reads a TOML file over the defaults without validating, so
// callers can apply overrides first. An empty path returns the defaults.
func ReadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	// #nosec G304 - path is provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read config file").
			WithMetadata(map[string]any{"path": path})
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse TOML config").
			WithMetadata(map[string]any{"path": path})
	}

	return cfg, nil
}

// LoadConfig reads a TOML file over the defaults and validates the result
func LoadConfig(path string) (*Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for the selected mode
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Mode, validation.Required, validation.In(ModePublisher, ModeReceiver, ModeBoth)),
		validation.Field(&c.Publisher, validation.Skip.When(!c.Mode.Publishes())),
		validation.Field(&c.Receiver, validation.Skip.When(!c.Mode.Receives())),
		validation.Field(&c.Logging),
		validation.Field(&c.Database),
	)
	if err == nil && c.Mode.Receives() && c.ReceiverAPIKey() == "" {
		err = validation.Errors{"receiver": validation.Errors{"api_key": validation.NewError("validation_required", "cannot be blank")}}
	}
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid configuration")
	}
	return nil
}

func (p PublisherConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.AppSource, validation.Required, validation.In(AppSourceConfig, AppSourceDatabase)),
		validation.Field(&p.Apps),
		validation.Field(&p.Tries, validation.Min(1)),
		validation.Field(&p.BackoffSeconds, validation.Min(0)),
		validation.Field(&p.TimeoutSeconds, validation.Min(1)),
		validation.Field(&p.Workers, validation.Min(1)),
		validation.Field(&p.SyncFields, validation.Each(validation.In(toAny(ObservableFields)...))),
	)
}

func (a AppConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&a.URL, validation.Required, is.URL),
	)
}

func (r ReceiverConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DefaultRole, validation.Required),
	)
}

func (l LoggingConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.RetentionDays, validation.Min(0)),
	)
}

func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.DSN, validation.Required),
	)
}

// PublisherAPIKey is the default outbound bearer key
func (c Config) PublisherAPIKey() string {
	if c.Publisher.APIKey != "" {
		return c.Publisher.APIKey
	}
	return c.APIKey
}

// ReceiverAPIKey is the key inbound requests must present
func (c Config) ReceiverAPIKey() string {
	if c.Receiver.APIKey != "" {
		return c.Receiver.APIKey
	}
	return c.APIKey
}

// TargetApps converts the static app list
func (p PublisherConfig) TargetApps() []TargetApp {
	out := make([]TargetApp, 0, len(p.Apps))
	for _, app := range p.Apps {
		out = append(out, TargetApp{
			Name:   strings.TrimSpace(app.Name),
			URL:    strings.TrimRight(strings.TrimSpace(app.URL), "/"),
			APIKey: app.APIKey,
			Active: app.Active,
		})
	}
	return out
}

// Backoff is the delay between job attempts
func (p PublisherConfig) Backoff() time.Duration {
	return time.Duration(p.BackoffSeconds) * time.Second
}

// Timeout is the per request timeout
func (p PublisherConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// Retention is how long audit rows are kept, zero keeps them forever
func (l LoggingConfig) Retention() time.Duration {
	return time.Duration(l.RetentionDays) * 24 * time.Hour
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
