package usersync

import (
	"context"
	"fmt"
	"strings"
)

// Logger is the structured logger used across the package. Messages are
// followed by alternating key/value pairs, the same shape *slog.Logger takes.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerProvider hands out named loggers
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// Mode is the role this process plays in the sync topology
type Mode string

const (
	ModePublisher Mode = "publisher"
	ModeReceiver  Mode = "receiver"
	ModeBoth      Mode = "both"
)

// Publishes reports whether the mode sends outbound sync jobs
func (m Mode) Publishes() bool {
	return m == ModePublisher || m == ModeBoth
}

// Receives reports whether the mode serves the inbound protocol
func (m Mode) Receives() bool {
	return m == ModeReceiver || m == ModeBoth
}

// Publisher is the outbound façade consumed by the observer and by callers
// that trigger sync explicitly.
type Publisher interface {
	CreateUser(ctx context.Context, email, name, password, role, ownerEmail string) error
	SyncUser(ctx context.Context, email string, changes map[string]any) error
	SyncPassword(ctx context.Context, email, password string) error
	CreateTeam(ctx context.Context, name, userEmail string, opts ...TeamOption) error
	ToggleUserActive(ctx context.Context, email string, active bool, appKey string) error
}

type defLogger struct {
	name string
}

func (d defLogger) Debug(msg string, args ...any) { d.print("DBG", msg, args...) }
func (d defLogger) Info(msg string, args ...any)  { d.print("INF", msg, args...) }
func (d defLogger) Warn(msg string, args ...any)  { d.print("WRN", msg, args...) }
func (d defLogger) Error(msg string, args ...any) { d.print("ERR", msg, args...) }

func (d defLogger) print(level, msg string, args ...any) {
	var b strings.Builder
	b.WriteString("[" + level + "] USERSYNC ")
	if d.name != "" {
		b.WriteString(d.name + ": ")
	}
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	fmt.Println(b.String())
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NoopLogger discards everything, handy for tests
func NoopLogger() Logger {
	return noopLogger{}
}

// ResolveLogger picks the explicit logger, then the provider's named logger,
// and finally the stdout fallback.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) Logger {
	if logger != nil {
		return logger
	}
	if provider != nil {
		if l := provider.GetLogger(name); l != nil {
			return l
		}
	}
	return defLogger{name: name}
}
