package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

type namedShutdown struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager runs registered cleanup functions in reverse registration
// order, so components registered later (and depending on earlier ones) stop
// first
type ShutdownManager struct {
	logger  logrus.FieldLogger
	timeout time.Duration
	mu      sync.Mutex
	funcs   []namedShutdown
	once    sync.Once
	err     error
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger logrus.FieldLogger, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a named function to call during shutdown
func (sm *ShutdownManager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.funcs = append(sm.funcs, namedShutdown{name: name, fn: fn})
}

// Shutdown runs every registered function once, bounded by the manager's
// timeout. Later calls return the first result.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	sm.once.Do(func() {
		sm.err = sm.run(ctx)
	})
	return sm.err
}

func (sm *ShutdownManager) run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sm.timeout)
	defer cancel()

	sm.mu.Lock()
	funcs := append([]namedShutdown(nil), sm.funcs...)
	sm.mu.Unlock()

	var errs []error
	for i := len(funcs) - 1; i >= 0; i-- {
		f := funcs[i]
		if ctx.Err() != nil {
			sm.logger.WithField("component", f.name).Warn("Shutdown timeout reached, skipping")
			errs = append(errs, fmt.Errorf("%s: %w", f.name, ctx.Err()))
			continue
		}
		if err := f.fn(ctx); err != nil {
			sm.logger.WithField("component", f.name).WithError(err).Error("Shutdown function failed")
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
			continue
		}
		sm.logger.WithField("component", f.name).Debug("Shutdown complete")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with %d errors: %w", len(errs), errors.Join(errs...))
	}
	sm.logger.Info("Graceful shutdown complete")
	return nil
}
