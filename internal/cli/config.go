package cli

import (
	"context"
	"database/sql"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	usersync "github.com/goliatone/go-user-sync"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/urfave/cli/v3"
)

// settings are the flags shared by every command. A flag given on the
// command line or through its env var wins over the config file.
type settings struct {
	path        string
	mode        string
	apiKey      string
	dsn         string
	addr        string
	appSource   string
	autoObserve bool
}

func (x *settings) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to the TOML config file",
			Sources:     cli.EnvVars("USER_SYNC_CONFIG"),
			Destination: &x.path,
		},
		&cli.StringFlag{
			Name:        "mode",
			Usage:       "Sync role [publisher|receiver|both]",
			Sources:     cli.EnvVars("USER_SYNC_MODE"),
			Destination: &x.mode,
		},
		&cli.StringFlag{
			Name:        "api-key",
			Usage:       "Shared bearer key for both directions",
			Sources:     cli.EnvVars("USER_SYNC_API_KEY"),
			Destination: &x.apiKey,
		},
		&cli.StringFlag{
			Name:        "database-dsn",
			Usage:       "SQLite DSN",
			Sources:     cli.EnvVars("USER_SYNC_DATABASE_DSN"),
			Destination: &x.dsn,
		},
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Receiver listen address",
			Sources:     cli.EnvVars("USER_SYNC_ADDR"),
			Destination: &x.addr,
		},
		&cli.StringFlag{
			Name:        "app-source",
			Usage:       "Where target apps come from [config|database]",
			Sources:     cli.EnvVars("USER_SYNC_APP_SOURCE"),
			Destination: &x.appSource,
		},
		&cli.BoolFlag{
			Name:        "auto-observe",
			Usage:       "Publish local user edits automatically",
			Sources:     cli.EnvVars("USER_SYNC_AUTO_OBSERVE"),
			Destination: &x.autoObserve,
		},
	}
}

// Load reads the config file, applies the flags that were set and
// validates the result.
func (x *settings) Load(c *cli.Command) (*usersync.Config, error) {
	cfg, err := usersync.ReadConfig(x.path)
	if err != nil {
		return nil, err
	}

	x.apply(c, &cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadStorage is Load for commands that only touch the database, the
// sync settings are not validated.
func (x *settings) LoadStorage(c *cli.Command) (*usersync.Config, error) {
	cfg, err := usersync.ReadConfig(x.path)
	if err != nil {
		return nil, err
	}

	x.apply(c, &cfg)

	if err := cfg.Database.Validate(); err != nil {
		return nil, goerrors.FromOzzoValidation(err, "invalid database configuration")
	}
	return &cfg, nil
}

func (x *settings) apply(c *cli.Command, cfg *usersync.Config) {
	if c.IsSet("mode") {
		cfg.Mode = usersync.Mode(strings.ToLower(strings.TrimSpace(x.mode)))
	}
	if c.IsSet("api-key") {
		cfg.APIKey = x.apiKey
	}
	if c.IsSet("database-dsn") {
		cfg.Database.DSN = x.dsn
	}
	if c.IsSet("addr") {
		cfg.Receiver.Addr = x.addr
	}
	if c.IsSet("app-source") {
		cfg.Publisher.AppSource = x.appSource
	}
	if c.IsSet("auto-observe") {
		cfg.Publisher.AutoObserve = x.autoObserve
	}
}

// openDB opens the SQLite database. The caller closes it.
func openDB(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to open database").
			WithMetadata(map[string]any{"dsn": dsn})
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to connect to database").
			WithMetadata(map[string]any{"dsn": dsn})
	}
	return db, nil
}
