package cli

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	usersync "github.com/goliatone/go-user-sync"
	"github.com/urfave/cli/v3"
)

func cmdApps(global *settings) *cli.Command {
	return &cli.Command{
		Name:  "apps",
		Usage: "Manage target apps stored in the database",
		Commands: []*cli.Command{
			cmdAppsList(global),
			cmdAppsAdd(global),
		},
	}
}

func cmdAppsList(global *settings) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Print the stored target apps",
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

			apps, err := usersync.NewSyncAppsRepository(db).All(ctx)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(c.Root().Writer, print.MaybePrettyJSON(apps))
			return err
		},
	}
}

func cmdAppsAdd(global *settings) *cli.Command {
	var app usersync.SyncApp
	var inactive bool

	return &cli.Command{
		Name:  "add",
		Usage: "Create or replace a target app by name",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "name",
				Usage:       "Unique app name (required)",
				Required:    true,
				Destination: &app.Name,
			},
			&cli.StringFlag{
				Name:        "url",
				Usage:       "Base URL of the app (required)",
				Required:    true,
				Destination: &app.URL,
			},
			&cli.StringFlag{
				Name:        "app-key",
				Usage:       "Bearer key for this app, the publisher key when empty",
				Destination: &app.APIKey,
			},
			&cli.BoolFlag{
				Name:        "inactive",
				Usage:       "Store the app without sending to it",
				Destination: &inactive,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := global.LoadStorage(c)
			if err != nil {
				return err
			}

			target := usersync.AppConfig{Name: app.Name, URL: app.URL}
			if err := target.Validate(); err != nil {
				return goerrors.FromOzzoValidation(err, "invalid app")
			}

			db, err := openDB(ctx, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer db.Close()

			app.IsActive = !inactive
			saved, err := usersync.NewSyncAppsRepository(db).Save(ctx, &app)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(c.Root().Writer, "saved app %s (%s) active=%t\n", saved.Name, saved.URL, saved.IsActive)
			return err
		},
	}
}
