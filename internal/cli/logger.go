package cli

import (
	"context"
	"io"
	"log/slog"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/m-mizutani/masq"
	"github.com/urfave/cli/v3"
)

// redactedFields never reach the log output
var redactedFields = []string{
	"password", "password_hash", "PasswordHash",
	"api_key", "APIKey", "Authorization",
}

type loggerConfig struct {
	level  string
	format string
}

func (x *loggerConfig) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level [debug|info|warn|error]",
			Value:       "info",
			Sources:     cli.EnvVars("USER_SYNC_LOG_LEVEL"),
			Destination: &x.level,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format [json|text]",
			Value:       "json",
			Sources:     cli.EnvVars("USER_SYNC_LOG_FORMAT"),
			Destination: &x.format,
		},
	}
}

// New builds the process logger. Credential fields are masked.
func (x *loggerConfig) New(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(x.level)
	if err != nil {
		return nil, err
	}

	opts := make([]masq.Option, 0, len(redactedFields)+1)
	for _, field := range redactedFields {
		opts = append(opts, masq.WithFieldName(field))
	}
	opts = append(opts, masq.WithContain("Bearer "))

	handlerOpts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: masq.New(opts...),
	}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(x.format)) {
	case "", "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	case "text":
		handler = slog.NewTextHandler(w, handlerOpts)
	default:
		return nil, goerrors.New("unknown log format", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"format": x.format})
	}

	return slog.New(handler), nil
}

func parseLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, goerrors.New("unknown log level", goerrors.CategoryBadInput).
		WithMetadata(map[string]any{"level": value})
}

// logError writes err with the rich error attributes when it carries any
func logError(ctx context.Context, logger *slog.Logger, msg string, err error) {
	attrs := append([]slog.Attr{slog.String("error", err.Error())}, goerrors.ToSlogAttributes(err)...)
	logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}
