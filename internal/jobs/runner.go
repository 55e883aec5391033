package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/rosterd/internal/auditctx"
	apperrors "github.com/charlesng35/rosterd/pkg/errors"
	"github.com/charlesng35/rosterd/pkg/logger"
	"github.com/charlesng35/rosterd/pkg/metrics"
)

// Kind names a class of background job.
type Kind string

const (
	KindBulkLoad   Kind = "bulk_load"
	KindBulkDelete Kind = "bulk_delete"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 64
	DefaultTimeout   = 5 * time.Minute
)

// Handler executes the payload of one job.
type Handler func(ctx context.Context, payload any) error

// Job is a unit of queued work. It carries no identifier and no status.
type Job struct {
	Kind    Kind
	Payload any

	ctx context.Context
}

// Config controls the worker pool.
type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

func (c Config) normalised() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Option customises a Runner.
type Option func(*Runner)

// WithHandler registers the handler that executes jobs of kind.
func WithHandler(kind Kind, handler Handler) Option {
	return func(r *Runner) {
		if handler != nil {
			r.handlers[kind] = handler
		}
	}
}

// WithLogger overrides the runner logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// Runner executes submitted jobs on a fixed pool of workers, off the request path.
type Runner struct {
	cfg      Config
	handlers map[Kind]Handler
	queue    chan Job
	log      *zap.Logger

	mu      sync.Mutex
	stopped bool
	pending int
	idle    chan struct{}

	workers sync.WaitGroup
}

// NewRunner constructs a Runner and starts its workers.
func NewRunner(cfg Config, opts ...Option) *Runner {
	cfg = cfg.normalised()

	r := &Runner{
		cfg:      cfg,
		handlers: make(map[Kind]Handler),
		queue:    make(chan Job, cfg.QueueSize),
		log:      logger.WithModule("jobs"),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.workers.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go r.work()
	}
	return r
}

// Submit enqueues a job and returns immediately. The job runs under a context
// detached from ctx that keeps only the audit actor.
func (r *Runner) Submit(ctx context.Context, kind Kind, payload any) error {
	if _, ok := r.handlers[kind]; !ok {
		return apperrors.NewBadRequest(fmt.Sprintf("unknown job kind %q", kind))
	}

	job := Job{Kind: kind, Payload: payload, ctx: auditctx.Detach(ctx)}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return apperrors.ErrJobsStopped
	}

	select {
	case r.queue <- job:
	default:
		return apperrors.ErrQueueFull
	}

	if r.pending == 0 {
		r.idle = make(chan struct{})
	}
	r.pending++
	metrics.QueuedJobs.Inc()

	r.log.Debug("job queued", zap.String("kind", string(kind)))
	return nil
}

// WaitIdle blocks until no job is queued or running.
func (r *Runner) WaitIdle(ctx context.Context) error {
	r.mu.Lock()
	if r.pending == 0 {
		r.mu.Unlock()
		return nil
	}
	idle := r.idle
	r.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop rejects further submissions and waits for queued jobs to finish.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("jobs: stop: %w", ctx.Err())
	}
}

func (r *Runner) work() {
	defer r.workers.Done()
	for job := range r.queue {
		metrics.QueuedJobs.Dec()
		r.run(job)
		r.finish()
	}
}

func (r *Runner) run(job Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(job.ctx, r.cfg.Timeout)
	defer cancel()

	result := "success"
	defer func() {
		if recovered := recover(); recovered != nil {
			result = "failure"
			r.log.Error("job panicked",
				zap.String("kind", string(job.Kind)),
				zap.Any("panic", recovered),
				zap.Stack("stack"),
			)
		}
		metrics.BackgroundJobs.WithLabelValues(string(job.Kind), result).Inc()
	}()

	err := r.handlers[job.Kind](ctx, job.Payload)
	if err != nil {
		result = "failure"
		level := r.log.Warn
		if errors.Is(err, context.DeadlineExceeded) {
			level = r.log.Error
		}
		level("job failed",
			zap.String("kind", string(job.Kind)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}

	r.log.Info("job finished",
		zap.String("kind", string(job.Kind)),
		zap.Duration("duration", time.Since(start)),
	)
}

func (r *Runner) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending--
	if r.pending == 0 && r.idle != nil {
		close(r.idle)
		r.idle = nil
	}
}
