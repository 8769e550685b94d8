// Package scheduler implements the time-based trigger layer (C7): one
// cron entry per sync job, with overlap suppression delegated to the
// sync service's own per-job lock and market-hour gating for the quote
// job via internal/calendar.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/sermady/stockdata-core/internal/config"
)

// Job is one schedulable unit. Run is called with force=false on every
// cron tick; RunNow lets an operator trigger it immediately with
// force=true.
type Job interface {
	Name() string
	Run(ctx context.Context, force bool) error
}

// Scheduler wraps a robfig/cron instance, registering one entry per
// configured sync job.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
	jobs map[string]Job
}

// New builds a Scheduler. cron.WithSeconds mirrors the teacher's
// six-field schedule format so SYNC_JOBS_JSON entries can express
// sub-minute ticks (the quote job runs every few minutes during market
// hours).
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
		jobs: make(map[string]Job),
	}
}

// Register wires one job against its cron schedule string.
func (s *Scheduler) Register(schedule string, job Job) error {
	s.jobs[job.Name()] = job
	_, err := s.cron.AddFunc(schedule, func() {
		ctx := context.Background()
		if err := job.Run(ctx, false); err != nil {
			s.log.Warn().Err(err).Str("job", job.Name()).Msg("scheduled sync run returned an error")
		}
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("job", job.Name()).Str("schedule", schedule).Msg("sync job registered")
	return nil
}

// RunNow triggers jobName immediately with the given force flag,
// bypassing the cron tick. An unregistered jobName is a no-op.
func (s *Scheduler) RunNow(ctx context.Context, jobName string, force bool) error {
	job, ok := s.jobs[jobName]
	if !ok {
		return nil
	}
	return job.Run(ctx, force)
}

// Start begins dispatching cron ticks.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop drains in-flight tick callbacks before returning.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

// ForEachJobConfig runs fn once per configured sync job, the shape main.go
// uses to register every job in cfg.SyncJobs without this package needing
// to import the sync package's concrete service types.
func ForEachJobConfig(jobs []config.SyncJobConfig, fn func(config.SyncJobConfig)) {
	for _, j := range jobs {
		fn(j)
	}
}
