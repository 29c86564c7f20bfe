// Package worker runs blocking work (message persistence) off the connection goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrPoolStopped  = errors.New("worker pool is not running")
	ErrPoolRunning  = errors.New("worker pool is already running")
	ErrTaskPanicked = errors.New("worker task panicked")
)

type PoolConfig struct {
	NumWorkers int
	QueueSize  int
	// TaskTimeout bounds a single task; zero means no bound.
	TaskTimeout time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		NumWorkers:  4,
		QueueSize:   256,
		TaskTimeout: 5 * time.Second,
	}
}

type task func(ctx context.Context)

type Pool struct {
	config PoolConfig

	mu      sync.RWMutex
	running bool
	jobs    chan task
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewPool(cfg PoolConfig) *Pool {
	def := DefaultPoolConfig()
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = def.NumWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}

	return &Pool{config: cfg}
}

// Start launches the workers. Tasks run on a context derived from ctx, not from the submitter's.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrPoolRunning
	}

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	p.jobs = make(chan task, p.config.QueueSize)
	p.running = true

	for i := 0; i < p.config.NumWorkers; i++ {
		p.wg.Add(1)
		go p.run(workerCtx, p.jobs)
	}
	slog.Info("worker.pool started", "workers", p.config.NumWorkers, "queue", p.config.QueueSize)

	return nil
}

// Stop closes the queue and waits for queued tasks to drain or ctx to expire.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		slog.Info("worker.pool stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		slog.Warn("worker.pool stop timed out, cancelling in-flight tasks")
		return ctx.Err()
	}
}

func (p *Pool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.running
}

// submit enqueues t, blocking while the queue is full until ctx is done.
func (p *Pool) submit(ctx context.Context, t task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return ErrPoolStopped
	}

	select {
	case p.jobs <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) run(ctx context.Context, jobs <-chan task) {
	defer p.wg.Done()

	for t := range jobs {
		p.exec(ctx, t)
	}
}

func (p *Pool) exec(ctx context.Context, t task) {
	if p.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.TaskTimeout)
		defer cancel()
	}

	t(ctx)
}

type result[T any] struct {
	val T
	err error
}

// Do runs fn on the pool and waits for its result. If ctx ends first Do returns
// ctx.Err(), but fn keeps running to completion on the worker.
func Do[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	out := make(chan result[T], 1)

	err := p.submit(ctx, func(taskCtx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("worker.task panic", "panic", r)
				out <- result[T]{err: fmt.Errorf("%w: %v", ErrTaskPanicked, r)}
			}
		}()
		v, err := fn(taskCtx)
		out <- result[T]{val: v, err: err}
	})
	if err != nil {
		return zero, err
	}

	select {
	case res := <-out:
		return res.val, res.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
