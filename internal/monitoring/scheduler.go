// Package monitoring reports on the pipeline: the weekly dashboard, health
// alerts and the cron schedule that drives recurring jobs.
package monitoring

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/robfig/cron"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/config"
)

// Job is a scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs named jobs on cron specs in a fixed timezone. A job whose
// previous run is still going is skipped rather than stacked.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	timeout time.Duration
	log     *zap.Logger
}

// NewScheduler creates a scheduler in cfg.Timezone. Jobs receive ctx, so
// cancelling it aborts in-flight runs.
func NewScheduler(ctx context.Context, cfg config.ScheduleConfig) (*Scheduler, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, eris.Wrapf(err, "monitoring: load timezone %q", tz)
	}
	return &Scheduler{
		cron:    cron.NewWithLocation(loc),
		ctx:     ctx,
		timeout: 30 * time.Minute,
		log:     zap.L().With(zap.String("component", "monitoring.scheduler")),
	}, nil
}

// Add registers job under name on spec (six fields, seconds first).
func (s *Scheduler) Add(name, spec string, job Job) error {
	var running atomic.Bool
	err := s.cron.AddFunc(spec, func() {
		if !running.CompareAndSwap(false, true) {
			s.log.Warn("scheduler: previous run still active, skipping", zap.String("job", name))
			return
		}
		defer running.Store(false)
		s.run(name, job)
	})
	if err != nil {
		return eris.Wrapf(err, "monitoring: schedule %s %q", name, spec)
	}
	s.log.Info("scheduler: job registered", zap.String("job", name), zap.String("spec", spec))
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler: job panicked", zap.String("job", name), zap.Any("panic", r))
		}
	}()

	start := time.Now()
	if err := job(ctx); err != nil {
		s.log.Error("scheduler: job failed", zap.String("job", name), zap.Error(err))
		return
	}
	s.log.Info("scheduler: job done", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler. Runs already in progress are not waited for.
func (s *Scheduler) Stop() { s.cron.Stop() }

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }
