// Package queue runs sync jobs with bounded retries.
//
// Two implementations are provided: Inline runs a job to completion in the
// caller's goroutine, WorkerPool hands jobs to a fixed set of workers and
// reschedules failed attempts after the configured backoff. Jobs that
// exhaust their tries are passed to a FailureHandler.
package queue

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	DefaultQueue      = "default"
	DefaultConnection = "default"
	DefaultTries      = 3
	DefaultBackoff    = 60 * time.Second
)

// Job is a unit of work. Handle may be called more than once.
type Job interface {
	Type() string
	Handle(ctx context.Context) error
}

// Queue accepts jobs for execution
type Queue interface {
	Enqueue(ctx context.Context, job Job, opts ...Option) error
}

// FailureHandler receives jobs that exhausted their tries or failed with a
// non retryable error.
type FailureHandler func(ctx context.Context, job Job, attempts int, err error)

// Logger is the subset of structured logging the queue needs
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options holds per job delivery settings
type Options struct {
	Queue      string
	Connection string
	Tries      int
	Backoff    time.Duration
}

// Option mutates Options
type Option func(*Options)

// OnQueue names the queue the job is placed on
func OnQueue(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.Queue = name
		}
	}
}

// OnConnection names the queue connection
func OnConnection(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.Connection = name
		}
	}
}

// WithTries sets the maximum number of attempts
func WithTries(tries int) Option {
	return func(o *Options) {
		if tries > 0 {
			o.Tries = tries
		}
	}
}

// WithBackoff sets the delay between attempts
func WithBackoff(backoff time.Duration) Option {
	return func(o *Options) {
		if backoff >= 0 {
			o.Backoff = backoff
		}
	}
}

// ResolveOptions applies opts over the defaults
func ResolveOptions(opts ...Option) Options {
	o := Options{
		Queue:      DefaultQueue,
		Connection: DefaultConnection,
		Tries:      DefaultTries,
		Backoff:    DefaultBackoff,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

type attemptKey struct{}

// WithAttempt stores the current attempt number on ctx
func WithAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, attemptKey{}, attempt)
}

// Attempt returns the 1 based attempt number for the running job. Outside
// a queue it is 1.
func Attempt(ctx context.Context) int {
	if ctx == nil {
		return 1
	}
	if n, ok := ctx.Value(attemptKey{}).(int); ok && n > 0 {
		return n
	}
	return 1
}

// ShouldRetry reports whether a failed attempt may be tried again. Rich
// retryable errors decide for themselves, context cancellation never
// retries, anything else does.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var retryable *goerrors.RetryableError
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return true
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
