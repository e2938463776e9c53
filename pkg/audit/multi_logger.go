package audit

import (
	"context"
	"fmt"
	"sync"
)

// MultiLogger logs to multiple audit loggers simultaneously
type MultiLogger struct {
	loggers []Logger
	async   bool // If true, log asynchronously
	wg      sync.WaitGroup
	errChan chan error
}

// NewMultiLogger creates a new multi-logger that writes to multiple destinations
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{
		loggers: loggers,
		async:   true,
		errChan: make(chan error, len(loggers)*16),
	}
}

// SetAsync sets whether logging should be asynchronous
func (m *MultiLogger) SetAsync(async bool) {
	m.async = async
}

// Log logs an access event to all configured loggers
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	prepare(event)
	return m.dispatch(ctx, func(l Logger) error { return l.Log(ctx, event) })
}

// LogSecurityEvent logs a security event to all configured loggers
func (m *MultiLogger) LogSecurityEvent(ctx context.Context, event *Event) error {
	prepare(event)
	return m.dispatch(ctx, func(l Logger) error { return l.LogSecurityEvent(ctx, event) })
}

func (m *MultiLogger) dispatch(ctx context.Context, fn func(Logger) error) error {
	if len(m.loggers) == 0 {
		return nil
	}
	if m.async {
		m.logAsync(fn)
		return nil
	}
	return m.logSync(fn)
}

// logSync logs to every logger, continuing past failures
func (m *MultiLogger) logSync(fn func(Logger) error) error {
	var firstErr error
	for _, logger := range m.loggers {
		if err := fn(logger); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiLogger) logAsync(fn func(Logger) error) {
	for _, logger := range m.loggers {
		m.wg.Add(1)
		go func(l Logger) {
			defer m.wg.Done()
			if err := fn(l); err != nil {
				select {
				case m.errChan <- err:
				default:
					// Channel full, drop error
				}
			}
		}(logger)
	}
}

// Wait waits for all async logging operations to complete
func (m *MultiLogger) Wait() {
	m.wg.Wait()
}

// GetErrors returns any errors that occurred during async logging
func (m *MultiLogger) GetErrors() []error {
	var errs []error
	for {
		select {
		case err := <-m.errChan:
			errs = append(errs, err)
		default:
			return errs
		}
	}
}

// Close waits for pending writes and closes all loggers
func (m *MultiLogger) Close() error {
	m.wg.Wait()

	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close logger: %w", err)
		}
	}
	return firstErr
}
