package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

// Run executes the usersync command line
func Run(ctx context.Context, args []string, version string) error {
	app := newApp(os.Stdout, os.Stderr, version)
	if err := app.Run(ctx, args); err != nil {
		slog.Default().Error("failed to run usersync", "error", err.Error())
		return err
	}
	return nil
}

func newApp(stdout, stderr io.Writer, version string) *cli.Command {
	var global settings
	var loggerCfg loggerConfig
	logger := slog.Default()

	flags := append(global.Flags(), loggerCfg.Flags()...)
	getLogger := func() *slog.Logger { return logger }

	return &cli.Command{
		Name:      "usersync",
		Usage:     "Keep users and teams in sync across applications",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			l, err := loggerCfg.New(stderr)
			if err != nil {
				return ctx, err
			}
			logger = l
			slog.SetDefault(l)
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdServe(&global, getLogger),
			cmdMigrate(&global, getLogger),
			cmdApps(&global),
			cmdLogs(&global, getLogger),
		},
	}
}
