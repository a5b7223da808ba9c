package cli

import (
	"context"
	"log/slog"

	usersync "github.com/goliatone/go-user-sync"
	"github.com/urfave/cli/v3"
)

func cmdMigrate(global *settings, logger func() *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Create the sync tables and indexes",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := global.LoadStorage(c)
			if err != nil {
				return err
			}

			db, err := openDB(ctx, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := usersync.Migrate(ctx, db); err != nil {
				return err
			}

			logger().Info("migration completed", "tables", len(usersync.SchemaModels()))
			return nil
		},
	}
}
