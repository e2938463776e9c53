package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrPoolShutdown is returned when submitting to a pool that has stopped
	ErrPoolShutdown = errors.New("worker pool shut down")

	// ErrPoolFull is returned by TrySubmit when the queue has no room
	ErrPoolFull = errors.New("worker pool queue full")
)

var (
	logMu  sync.RWMutex
	logger logrus.FieldLogger = logrus.StandardLogger()
)

// SetLogger replaces the logger used to report task errors and panics
func SetLogger(l logrus.FieldLogger) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = l
}

func log() logrus.FieldLogger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

// SafeGo executes a function in a goroutine with panic recovery and a timeout.
// Errors are logged, never propagated.
//
// Example:
//
//	SafeGo(r.Context(), 5*time.Second, "audit delivery", func(ctx context.Context) error {
//	    return sink.LogSecurityEvent(ctx, event)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				log().WithFields(logrus.Fields{
					"task":  taskName,
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			log().WithField("task", taskName).WithError(err).Warn("background task failed")
		}
	}()
}

// SafeGoNoError is like SafeGo but for functions that don't return errors.
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context)) {
	SafeGo(parentCtx, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// WorkerPool manages a pool of workers that process tasks from a bounded queue
type WorkerPool struct {
	workers      int
	taskName     string
	timeout      time.Duration
	workCh       chan func(context.Context) error
	doneCh       chan struct{}
	errCh        chan error
	ctx          context.Context
	cancel       context.CancelFunc
	mu           sync.RWMutex
	closed       bool
	shutdownOnce sync.Once
}

// NewWorkerPool creates a worker pool whose queue holds workers*2 tasks
func NewWorkerPool(ctx context.Context, workers int, taskName string, timeout time.Duration) *WorkerPool {
	return NewWorkerPoolWithQueue(ctx, workers, workers*2, taskName, timeout)
}

// NewWorkerPoolWithQueue creates a worker pool with an explicit queue size
func NewWorkerPoolWithQueue(ctx context.Context, workers, queue int, taskName string, timeout time.Duration) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		workers:  workers,
		taskName: taskName,
		timeout:  timeout,
		workCh:   make(chan func(context.Context) error, queue),
		doneCh:   make(chan struct{}),
		errCh:    make(chan error, workers*10),
		ctx:      ctx,
		cancel:   cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				pool.worker(id)
			}(i)
		}
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// Submit adds a task to the pool, blocking while the queue is full
func (p *WorkerPool) Submit(fn func(context.Context) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolShutdown
	}

	select {
	case p.workCh <- fn:
		return nil
	case <-p.ctx.Done():
		return ErrPoolShutdown
	}
}

// TrySubmit adds a task without blocking. ErrPoolFull means the task was dropped.
func (p *WorkerPool) TrySubmit(fn func(context.Context) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolShutdown
	}

	select {
	case p.workCh <- fn:
		return nil
	default:
		return ErrPoolFull
	}
}

// Shutdown stops accepting work and waits up to timeout for queued tasks to drain
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var shutdownErr error

	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.workCh)
		p.mu.Unlock()

		select {
		case <-p.doneCh:
			p.cancel()
		case <-time.After(timeout):
			p.cancel()
			shutdownErr = fmt.Errorf("worker pool shutdown timed out after %v", timeout)
		}
	})

	return shutdownErr
}

// Errors returns a channel that receives worker errors
func (p *WorkerPool) Errors() <-chan error {
	return p.errCh
}

func (p *WorkerPool) report(err error) {
	select {
	case p.errCh <- err:
	default:
		log().WithField("task", p.taskName).WithError(err).Warn("worker pool error channel full, dropping error")
	}
}

func (p *WorkerPool) worker(id int) {
	for {
		select {
		case <-p.ctx.Done():
			return

		case fn, ok := <-p.workCh:
			if !ok {
				return
			}

			ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
			func() {
				defer cancel()
				defer func() {
					if r := recover(); r != nil {
						log().WithFields(logrus.Fields{
							"task":   p.taskName,
							"worker": id,
							"stack":  string(debug.Stack()),
						}).Errorf("panic in worker: %v", r)
						p.report(fmt.Errorf("panic: %v", r))
					}
				}()

				if err := fn(ctx); err != nil {
					p.report(err)
				}
			}()
		}
	}
}

// Batch processes items concurrently and returns every error encountered
func Batch[T any](ctx context.Context, items []T, workers int, taskName string, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	pool := NewWorkerPoolWithQueue(ctx, workers, len(items), taskName, timeout)

	var (
		mu   sync.Mutex
		errs []error
	)
	for _, item := range items {
		if err := pool.Submit(func(ctx context.Context) error {
			if err := fn(ctx, item); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		}); err != nil {
			pool.Shutdown(timeout)
			return []error{err}
		}
	}

	if err := pool.Shutdown(timeout * time.Duration(len(items)+1)); err != nil {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	mu.Lock()
	defer mu.Unlock()
	return errs
}
