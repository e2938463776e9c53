package audit

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/Aniket2927/Renx-sub004/pkg/async"
	"github.com/sirupsen/logrus"
)

const (
	defaultEmitTimeout = 2 * time.Second
	defaultEmitWorkers = 4
	defaultEmitQueue   = 1024
)

// FailureFunc is told about events that did not reach the sink. reason is
// either "dropped" or "error".
type FailureFunc func(eventType EventType, reason string)

// Emitter delivers events to a Logger without letting sink latency or
// failures reach the request path
type Emitter struct {
	sink    Logger
	logger  logrus.FieldLogger
	timeout time.Duration
	pool    *async.WorkerPool
	failed  atomic.Int64
	onFail  atomic.Value // FailureFunc
}

// NewEmitter starts an emitter in front of sink. A nil sink discards
// everything; a zero timeout means two seconds.
func NewEmitter(sink Logger, logger logrus.FieldLogger, timeout time.Duration) *Emitter {
	if sink == nil {
		sink = NewNoOpLogger()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if timeout <= 0 {
		timeout = defaultEmitTimeout
	}
	return &Emitter{
		sink:    sink,
		logger:  logger.WithField("component", "audit_emitter"),
		timeout: timeout,
		pool:    async.NewWorkerPoolWithQueue(context.Background(), defaultEmitWorkers, defaultEmitQueue, "audit emit", timeout),
	}
}

// OnFailure registers a callback for undelivered events
func (e *Emitter) OnFailure(fn FailureFunc) {
	e.onFail.Store(fn)
}

// Failures returns how many events were dropped or failed
func (e *Emitter) Failures() int64 {
	return e.failed.Load()
}

func (e *Emitter) deliver(ctx context.Context, event *Event) error {
	if event.Type.IsSecurity() {
		return e.sink.LogSecurityEvent(ctx, event)
	}
	return e.sink.Log(ctx, event)
}

func (e *Emitter) fail(event *Event, reason string, err error) {
	e.failed.Add(1)
	entry := e.logger.WithFields(logrus.Fields{
		"event_type": string(event.Type),
		"reason":     reason,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn("audit event not recorded")

	if fn, ok := e.onFail.Load().(FailureFunc); ok && fn != nil {
		fn(event.Type, reason)
	}
}

// Emit queues event for delivery and returns immediately. When the queue is
// full the event is dropped and counted as a failure.
func (e *Emitter) Emit(ctx context.Context, event *Event) {
	prepare(event)
	err := e.pool.TrySubmit(func(taskCtx context.Context) error {
		if err := e.deliver(taskCtx, event); err != nil {
			e.fail(event, "error", err)
		}
		return nil
	})
	if err != nil {
		e.fail(event, "dropped", err)
	}
}

// EmitSync delivers event before returning, waiting at most the emitter's
// timeout. The sink error is returned for callers that care, but request
// handling should not depend on it.
func (e *Emitter) EmitSync(ctx context.Context, event *Event) error {
	prepare(event)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- e.deliver(ctx, event)
	}()

	select {
	case err := <-done:
		if err != nil {
			e.fail(event, "error", err)
		}
		return err
	case <-ctx.Done():
		err := errors.New("audit sink timed out")
		e.fail(event, "error", err)
		return err
	}
}

// Close drains queued events and closes the sink
func (e *Emitter) Close() error {
	drainErr := e.pool.Shutdown(e.timeout * 2)
	if err := e.sink.Close(); err != nil {
		return err
	}
	return drainErr
}
