package scheduler

import "context"

// MarketHours is the narrow slice of internal/calendar.Calendar the quote
// job depends on, to gate quote-sync ticks outside trading hours.
type MarketHours interface {
	IsOpen(market string) bool
}

// RunFunc is one sync class's runnable entry point (e.g. Service.SyncBasicInfo
// adapted to this shape by the caller).
type RunFunc func(ctx context.Context, force bool) error

// simpleJob wraps a RunFunc with a name, for sync classes that run
// regardless of market hours (basic info, historical, financial).
type simpleJob struct {
	name string
	run  RunFunc
}

// NewJob builds an always-eligible scheduled job.
func NewJob(name string, run RunFunc) Job {
	return &simpleJob{name: name, run: run}
}

func (j *simpleJob) Name() string { return j.name }
func (j *simpleJob) Run(ctx context.Context, force bool) error { return j.run(ctx, force) }

// marketHourGatedJob additionally skips its run outside trading hours
// unless force is set, per spec.md §4.7.
type marketHourGatedJob struct {
	name    string
	market  string
	hours   MarketHours
	run     RunFunc
}

// NewMarketHourGatedJob builds a job that only runs during market's
// trading hours, unless invoked with force=true (an operator override).
func NewMarketHourGatedJob(name, market string, hours MarketHours, run RunFunc) Job {
	return &marketHourGatedJob{name: name, market: market, hours: hours, run: run}
}

func (j *marketHourGatedJob) Name() string { return j.name }

func (j *marketHourGatedJob) Run(ctx context.Context, force bool) error {
	if !force && !j.hours.IsOpen(j.market) {
		return nil
	}
	return j.run(ctx, force)
}
