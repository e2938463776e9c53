// Package sweeper runs the periodic cleanup of expired security state: CSRF
// tokens, failed-attempt records, rate-limit windows and sessions.
//
// Jobs are scheduled with robfig/cron and share the store's synchronization,
// so a sweep never observes a half-written record:
//
//	s := sweeper.New(logger, metrics, time.Minute)
//	s.Add(sweeper.Job{Name: "csrf", Schedule: sweeper.CSRFSchedule, Sweep: csrfManager.Sweep})
//	s.Start()
//	defer s.Stop(ctx)
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Aniket2927/Renx-sub004/pkg/async"
	"github.com/Aniket2927/Renx-sub004/pkg/observability"
)

// Default schedules
const (
	CSRFSchedule      = "@every 5m"
	LockoutSchedule   = "@every 1h"
	RateLimitSchedule = "@every 15m"
	SessionSchedule   = "@every 10m"
)

const defaultJobTimeout = time.Minute

// SweepFunc removes expired records and reports how many it removed
type SweepFunc func(ctx context.Context) (int, error)

// Job is a named sweep on a cron schedule
type Job struct {
	Name     string
	Schedule string
	Sweep    SweepFunc
}

// Scheduler owns the sweep jobs and their lifecycle
type Scheduler struct {
	cron    *cron.Cron
	logger  logrus.FieldLogger
	metrics *observability.Metrics
	timeout time.Duration

	mu      sync.Mutex
	jobs    []Job
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// New creates a scheduler. Each sweep runs with at most timeout; zero means
// one minute.
func New(logger logrus.FieldLogger, metrics *observability.Metrics, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	logger = logger.WithField("component", "sweeper")
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		metrics: metrics,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add schedules job
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Sweep == nil {
		return errors.New("sweeper: job needs a name and a sweep function")
	}

	if _, err := s.cron.AddFunc(job.Schedule, func() { s.run(s.ctx, job) }); err != nil {
		return fmt.Errorf("failed to schedule %s sweep: %w", job.Name, err)
	}

	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()
	return nil
}

// Jobs returns the scheduled jobs
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Job(nil), s.jobs...)
}

// Start begins running jobs on their schedules
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()

	for _, job := range s.jobs {
		s.logger.WithFields(logrus.Fields{
			"job":      job.Name,
			"schedule": job.Schedule,
		}).Info("Sweep scheduled")
	}
}

// Stop halts scheduling, cancels running sweeps and waits for them to return
// or for ctx to end
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	s.cancel()

	select {
	case <-stopped.Done():
		s.logger.Info("Sweeper stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sweeper did not stop in time: %w", ctx.Err())
	}
}

// RunAll runs every job once, concurrently, and returns their joined errors
func (s *Scheduler) RunAll(ctx context.Context) error {
	jobs := s.Jobs()
	if len(jobs) == 0 {
		return nil
	}

	errs := async.Batch(ctx, jobs, len(jobs), "sweep", s.timeout, func(ctx context.Context, job Job) error {
		_, err := s.run(ctx, job)
		return err
	})
	return errors.Join(errs...)
}

// run executes one sweep with the job timeout and records the outcome
func (s *Scheduler) run(ctx context.Context, job Job) (deleted int, err error) {
	log := s.logger.WithField("job", job.Name)
	defer observability.RecoverPanic(log, "sweep "+job.Name)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	deleted, err = job.Sweep(ctx)
	s.metrics.Sweep(job.Name, deleted, err)

	if err != nil {
		log.WithError(err).Warn("Sweep failed")
		return deleted, fmt.Errorf("%s sweep: %w", job.Name, err)
	}

	log.WithFields(logrus.Fields{
		"deleted":  deleted,
		"duration": time.Since(start).String(),
	}).Debug("Sweep completed")
	return deleted, nil
}

// cronLogger adapts logrus to cron.Logger
type cronLogger struct {
	logger logrus.FieldLogger
}

func (l cronLogger) fields(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if k, ok := keysAndValues[i].(string); ok {
			fields[k] = keysAndValues[i+1]
		}
	}
	return fields
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(l.fields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(l.fields(keysAndValues)).WithError(err).Error("cron: " + msg)
}
