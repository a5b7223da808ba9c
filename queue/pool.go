package queue

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers = 4
	DefaultBuffer  = 256
)

// ErrPoolClosed is returned when enqueueing on a stopped pool
var ErrPoolClosed = goerrors.New("worker pool is closed", goerrors.CategoryOperation).
	WithTextCode("QUEUE_CLOSED")

// ErrPoolNotRunning is returned when enqueueing before Run
var ErrPoolNotRunning = goerrors.New("worker pool is not running", goerrors.CategoryOperation).
	WithTextCode("QUEUE_NOT_RUNNING")

type envelope struct {
	job     Job
	opts    Options
	attempt int
}

type pendingRetry struct {
	timer *time.Timer
	env   envelope
}

// WorkerPool runs jobs on a fixed number of goroutines. Failed attempts are
// rescheduled after the job's backoff. Pending retries are dropped when the
// pool stops, with a log line per dropped job.
type WorkerPool struct {
	workers   int
	buffer    int
	logger    Logger
	onFailure FailureHandler

	mu      sync.Mutex
	jobs    chan envelope
	done    chan struct{}
	running bool
	closed  bool
	seq     uint64
	pending map[uint64]pendingRetry
	wg      sync.WaitGroup
}

var _ Queue = (*WorkerPool)(nil)

// PoolOption configures a WorkerPool
type PoolOption func(*WorkerPool)

// WithWorkers sets the number of concurrent workers
func WithWorkers(n int) PoolOption {
	return func(p *WorkerPool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithBuffer sets the job channel capacity
func WithBuffer(n int) PoolOption {
	return func(p *WorkerPool) {
		if n >= 0 {
			p.buffer = n
		}
	}
}

// WithPoolLogger sets the logger
func WithPoolLogger(logger Logger) PoolOption {
	return func(p *WorkerPool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPoolFailureHandler sets the dead letter handler
func WithPoolFailureHandler(fn FailureHandler) PoolOption {
	return func(p *WorkerPool) {
		p.onFailure = fn
	}
}

// NewWorkerPool returns a stopped pool, call Run to start it
func NewWorkerPool(opts ...PoolOption) *WorkerPool {
	p := &WorkerPool{
		workers: DefaultWorkers,
		buffer:  DefaultBuffer,
		logger:  noopLogger{},
		pending: map[uint64]pendingRetry{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.jobs = make(chan envelope, p.buffer)
	p.done = make(chan struct{})
	return p
}

// Run starts the workers and blocks until ctx is cancelled. Jobs already in
// the channel are drained before Run returns.
func (p *WorkerPool) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.running = true
	p.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		worker := i + 1
		g.Go(func() error {
			p.work(gctx, worker)
			return nil
		})
	}

	<-gctx.Done()
	p.shutdown()

	err := g.Wait()

	// drain with a fresh context so in flight jobs can finish their writes
	drainCtx := context.WithoutCancel(ctx)
	for env := range p.jobs {
		p.run(drainCtx, env)
	}
	p.wg.Wait()
	return err
}

// Enqueue places job on the pool. It blocks while the buffer is full.
func (p *WorkerPool) Enqueue(ctx context.Context, job Job, opts ...Option) error {
	return p.push(ctx, envelope{
		job:     job,
		opts:    ResolveOptions(opts...),
		attempt: 1,
	})
}

func (p *WorkerPool) push(ctx context.Context, env envelope) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if !p.running {
		p.mu.Unlock()
		return ErrPoolNotRunning
	}
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()

	select {
	case p.jobs <- env:
		return nil
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WorkerPool) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-p.jobs:
			if !ok {
				return
			}
			p.run(ctx, env)
		}
	}
}

func (p *WorkerPool) run(ctx context.Context, env envelope) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic in job handler", "job", env.job.Type(), "panic", r)
			p.fail(ctx, env, goerrors.New("job panicked", goerrors.CategoryInternal).
				WithMetadata(map[string]any{"panic": r}))
		}
	}()

	err := env.job.Handle(WithAttempt(ctx, env.attempt))
	if err == nil {
		p.logger.Debug("job completed", "job", env.job.Type(), "attempt", env.attempt)
		return
	}

	if !ShouldRetry(err) || env.attempt >= env.opts.Tries {
		p.fail(ctx, env, err)
		return
	}

	p.logger.Warn("job attempt failed, retrying",
		"job", env.job.Type(),
		"queue", env.opts.Queue,
		"attempt", env.attempt,
		"backoff", env.opts.Backoff.String(),
		"error", err,
	)
	p.schedule(env)
}

func (p *WorkerPool) schedule(env envelope) {
	next := env
	next.attempt++

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.logger.Warn("dropping retry, pool stopped", "job", env.job.Type(), "attempt", next.attempt)
		return
	}

	// the callback blocks on mu until the entry below is stored
	p.seq++
	id := p.seq
	p.pending[id] = pendingRetry{
		timer: time.AfterFunc(env.opts.Backoff, func() { p.requeue(id) }),
		env:   next,
	}
}

func (p *WorkerPool) requeue(id uint64) {
	p.mu.Lock()
	retry, ok := p.pending[id]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.pending, id)
	env := retry.env
	if p.closed {
		p.mu.Unlock()
		p.logger.Warn("dropping retry, pool stopped", "job", env.job.Type(), "attempt", env.attempt)
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()

	select {
	case p.jobs <- env:
	case <-p.done:
		p.logger.Warn("dropping retry, pool stopped", "job", env.job.Type(), "attempt", env.attempt)
	}
}

func (p *WorkerPool) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.done)

	for id, retry := range p.pending {
		if retry.timer.Stop() {
			p.logger.Warn("dropping retry, pool stopped", "job", retry.env.job.Type(), "attempt", retry.env.attempt)
		}
		delete(p.pending, id)
	}
	p.wg.Wait()
	close(p.jobs)
}

func (p *WorkerPool) fail(ctx context.Context, env envelope, err error) {
	p.logger.Error("job failed",
		"job", env.job.Type(),
		"queue", env.opts.Queue,
		"attempts", env.attempt,
		"error", err,
	)
	if p.onFailure != nil {
		p.onFailure(ctx, env.job, env.attempt, err)
	}
}
