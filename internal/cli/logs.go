package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goliatone/go-print"
	usersync "github.com/goliatone/go-user-sync"
	"github.com/urfave/cli/v3"
)

func cmdLogs(global *settings, logger func() *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "logs",
		Usage: "Inspect and prune the sync audit log",
		Commands: []*cli.Command{
			cmdLogsList(global),
			cmdLogsPrune(global, logger),
		},
	}
}

func cmdLogsList(global *settings) *cli.Command {
	var filter struct {
		email     string
		action    string
		direction string
		status    string
		app       string
		limit     int
	}

	return &cli.Command{
		Name:  "list",
		Usage: "Print audit rows, oldest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Destination: &filter.email},
			&cli.StringFlag{Name: "action", Destination: &filter.action},
			&cli.StringFlag{Name: "direction", Usage: "inbound or outbound", Destination: &filter.direction},
			&cli.StringFlag{Name: "status", Usage: "success or failed", Destination: &filter.status},
			&cli.StringFlag{Name: "app", Destination: &filter.app},
			&cli.IntFlag{Name: "limit", Value: 100, Destination: &filter.limit},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := global.LoadStorage(c)
			if err != nil {
				return err
			}

			f := usersync.SyncLogFilter{
				Direction: usersync.Direction(filter.direction),
				Status:    usersync.SyncStatus(filter.status),
				Email:     filter.email,
				TargetApp: filter.app,
				Limit:     filter.limit,
			}
			if filter.action != "" {
				if f.Action, err = usersync.ParseSyncAction(filter.action); err != nil {
					return err
				}
			}

			db, err := openDB(ctx, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer db.Close()

			rows, err := usersync.NewSyncLogsRepository(db).List(ctx, f)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(c.Root().Writer, print.MaybePrettyJSON(rows))
			return err
		},
	}
}

func cmdLogsPrune(global *settings, logger func() *slog.Logger) *cli.Command {
	var days int

	return &cli.Command{
		Name:  "prune",
		Usage: "Delete audit rows older than the retention window",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "days",
				Usage:       "Retention in days, logging.retention_days when unset",
				Destination: &days,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := global.LoadStorage(c)
			if err != nil {
				return err
			}

			retention := cfg.Logging.Retention()
			if c.IsSet("days") {
				retention = time.Duration(days) * 24 * time.Hour
			}
			if retention <= 0 {
				logger().Info("retention disabled, nothing to prune")
				return nil
			}

			db, err := openDB(ctx, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer db.Close()

			removed, err := usersync.NewSyncLogsRepository(db).Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(c.Root().Writer, "pruned %d rows\n", removed)
			return err
		},
	}
}
