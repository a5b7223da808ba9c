package queue

import (
	"context"
	"time"
)

// Inline runs jobs synchronously inside Enqueue, retrying in place
type Inline struct {
	logger    Logger
	onFailure FailureHandler
	sleep     func(ctx context.Context, d time.Duration) error
}

var _ Queue = (*Inline)(nil)

// InlineOption configures an Inline queue
type InlineOption func(*Inline)

// WithInlineLogger sets the logger
func WithInlineLogger(logger Logger) InlineOption {
	return func(q *Inline) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithInlineFailureHandler sets the handler for exhausted jobs
func WithInlineFailureHandler(fn FailureHandler) InlineOption {
	return func(q *Inline) {
		q.onFailure = fn
	}
}

// WithInlineSleep replaces the backoff wait, tests use it to skip delays
func WithInlineSleep(fn func(ctx context.Context, d time.Duration) error) InlineOption {
	return func(q *Inline) {
		if fn != nil {
			q.sleep = fn
		}
	}
}

// NewInline returns a synchronous queue
func NewInline(opts ...InlineOption) *Inline {
	q := &Inline{
		logger: noopLogger{},
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	return q
}

// Enqueue runs job until it succeeds or its tries are spent. Job failures
// go to the failure handler, only context cancellation is returned.
func (q *Inline) Enqueue(ctx context.Context, job Job, opts ...Option) error {
	o := ResolveOptions(opts...)

	var err error
	attempt := 0
	for attempt < o.Tries {
		attempt++
		err = job.Handle(WithAttempt(ctx, attempt))
		if err == nil {
			return nil
		}
		if !ShouldRetry(err) || attempt >= o.Tries {
			break
		}

		q.logger.Warn("job attempt failed, retrying",
			"job", job.Type(),
			"queue", o.Queue,
			"attempt", attempt,
			"backoff", o.Backoff.String(),
			"error", err,
		)

		if serr := q.sleep(ctx, o.Backoff); serr != nil {
			q.fail(ctx, job, attempt, err)
			return serr
		}
	}

	q.fail(ctx, job, attempt, err)
	return nil
}

func (q *Inline) fail(ctx context.Context, job Job, attempts int, err error) {
	q.logger.Error("job failed",
		"job", job.Type(),
		"attempts", attempts,
		"error", err,
	)
	if q.onFailure != nil {
		q.onFailure(ctx, job, attempts, err)
	}
}
