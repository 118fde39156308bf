// Package scheduler runs the periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/pkg/metrics"
)

// Job is a named unit of periodic work.
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler wraps cron with logging, timeouts and job metrics.
type Scheduler struct {
	cron    *cron.Cron
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu   sync.Mutex
	jobs map[string]Job
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ log zerolog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// New creates a scheduler. m may be nil.
func New(logger zerolog.Logger, m *metrics.Metrics) *Scheduler {
	cl := cronLogger{log: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		metrics: m,
		logger:  logger,
		jobs:    make(map[string]Job),
	}
}

// Add registers job. A job with an empty spec is disabled and skipped.
func (s *Scheduler) Add(job Job) error {
	if job.Spec == "" {
		s.logger.Info().Str("job", job.Name).Msg("Job disabled")
		return nil
	}
	if job.Timeout <= 0 {
		job.Timeout = 5 * time.Minute
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { _ = s.execute(context.Background(), job) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name, job.Spec, err)
	}

	s.mu.Lock()
	s.jobs[job.Name] = job
	s.mu.Unlock()
	s.logger.Info().Str("job", job.Name).Str("spec", job.Spec).Msg("Job scheduled")
	return nil
}

// RunNow executes a registered job immediately.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.execute(ctx, job)
}

// Jobs returns the names of registered jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.ObserveJob(job.Name, elapsed, err)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("job", job.Name).Dur("took", elapsed).Msg("Job failed")
		return err
	}
	s.logger.Debug().Str("job", job.Name).Dur("took", elapsed).Msg("Job finished")
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("Scheduler stopped before running jobs finished")
	}
}
