// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJobTimeout bounds a single run of a job.
const DefaultJobTimeout = 30 * time.Minute

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

type namedJob struct {
	name string
	job  Job
}

// Scheduler manages background scheduled jobs using robfig/cron. A run that is still
// going when its next tick fires is skipped.
type Scheduler struct {
	cron    *cron.Cron
	jobs    []namedJob
	base    context.Context
	timeout time.Duration
	logger  *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		cron:    c,
		base:    context.Background(),
		timeout: DefaultJobTimeout,
		logger:  logger,
	}
}

// Add registers job under a standard 5-field spec or a descriptor such as "@every 5m".
func (s *Scheduler) Add(spec, name string, job Job) error {
	nj := namedJob{name: name, job: job}
	if _, err := s.cron.AddFunc(spec, func() { s.run(s.base, nj) }); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	s.jobs = append(s.jobs, nj)
	return nil
}

// Start begins scheduled jobs. Runs are canceled when ctx is. Call it once.
func (s *Scheduler) Start(ctx context.Context) {
	s.base = ctx
	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
}

// Stop gracefully stops all scheduled jobs. The returned context is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow runs every registered job once, in order, on the caller's goroutine.
func (s *Scheduler) RunNow(ctx context.Context) {
	for _, nj := range s.jobs {
		s.run(ctx, nj)
	}
}

func (s *Scheduler) run(parent context.Context, nj namedJob) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.Debug("job started", slog.String("job", nj.name))

	if err := nj.job(ctx); err != nil {
		s.logger.Error("job failed",
			slog.String("job", nj.name),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err),
		)
		return
	}

	s.logger.Info("job completed",
		slog.String("job", nj.name),
		slog.Duration("elapsed", time.Since(start)),
	)
}
