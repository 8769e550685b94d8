// Package sync implements the sync service (C6): one concrete service per
// data class, sharing the try-lock -> provider-order -> chunked
// fallback-and-persist protocol of spec.md §4.6.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/consistency"
	"github.com/sermady/stockdata-core/internal/domain"
	"github.com/sermady/stockdata-core/internal/providers"
	"github.com/sermady/stockdata-core/internal/router"
	"github.com/sermady/stockdata-core/internal/store"
)

// systemUserID is the notification recipient for operational alerts
// that are not attributable to a particular end user, such as a
// consistency-checker investigate directive.
const systemUserID = "system"

// Notifier is the narrow slice of the notification bus (C9) sync jobs
// use to announce terminal status, decoupling this package from C9's
// transport concerns.
type Notifier interface {
	Publish(ctx context.Context, userID string, n domain.Notification) error
}

// Service wires the shared sync protocol over the providers, router and
// store every concrete sync job needs.
type Service struct {
	adapters map[string]providers.Adapter
	router   *router.Router
	store    *store.Store
	checker  *consistency.Checker
	notifier Notifier
	log      zerolog.Logger
	locks    *jobLocks
}

// New builds a Service. notifier may be nil, in which case terminal
// status is logged but not published. checker may also be nil, in
// which case reconciliation always falls back to the provider-order
// primary (§4.6 step 5's "optionally reconcile" is then skipped).
func New(adapters map[string]providers.Adapter, r *router.Router, st *store.Store, checker *consistency.Checker, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		adapters: adapters,
		router:   r,
		store:    st,
		checker:  checker,
		notifier: notifier,
		log:      log.With().Str("component", "sync").Logger(),
		locks:    newJobLocks(),
	}
}

// run is the shared skeleton of §4.6 steps 1-8. body performs steps 4-6
// (enumerate + chunk + persist), accumulating the run's counters and the
// sources it actually used in rec; it returns an error only when the run
// as a whole fails.
func (s *Service) run(ctx context.Context, job string, dataType domain.DataClass, force bool,
	body func(ctx context.Context, rec *runRecord) error) (*domain.SyncStatus, error) {

	if !force {
		if !s.locks.TryAcquire(job) {
			current, err := s.store.GetSyncStatus(ctx, job, dataType)
			if apperr.CodeOf(err) == apperr.NotFound {
				// Nothing persisted yet for this job: report an empty status.
				return &domain.SyncStatus{Job: job, DataType: dataType}, nil
			}
			return current, err
		}
	} else {
		s.locks.Release(job) // clear any stale lock before forcing a fresh run
		s.locks.TryAcquire(job)
	}
	defer s.locks.Release(job)

	started := time.Now().UTC()
	status := domain.SyncStatus{
		Job: job, DataType: dataType, Status: domain.SyncRunning, StartedAt: started,
	}
	if err := s.store.UpsertSyncStatus(ctx, status); err != nil {
		return nil, err
	}

	rec := &runRecord{}
	runErr := body(ctx, rec)

	finished := time.Now().UTC()
	status.FinishedAt = &finished
	status.Total = rec.total
	status.Inserted = rec.inserted
	status.Updated = rec.updated
	status.Errors = rec.errors
	status.DataSourcesUsed = rec.sourcesUsed()

	switch {
	case apperr.CodeOf(runErr) == apperr.Cancelled:
		status.Status = domain.SyncFailed
		status.Message = "cancelled"
	case runErr != nil:
		status.Status = domain.SyncFailed
		status.Message = runErr.Error()
	case rec.errors > 0:
		status.Status = domain.SyncSuccessWithErrors
	default:
		status.Status = domain.SyncSuccess
	}

	if err := s.store.UpsertSyncStatus(ctx, status); err != nil {
		s.log.Error().Err(err).Str("job", job).Msg("failed to persist final sync status")
	}
	s.log.Info().Str("job", job).Str("status", string(status.Status)).
		Int("total", status.Total).Int("errors", status.Errors).Msg("sync run finished")

	if runErr != nil && apperr.CodeOf(runErr) != apperr.Cancelled {
		return &status, runErr
	}
	return &status, nil
}

// runRecord accumulates the counters and source set for one run.
type runRecord struct {
	total, inserted, updated, errors int
	sources                          map[string]bool
}

func (r *runRecord) addOutcome(source string, o store.BatchOutcome) {
	r.total += o.Inserted + o.Updated + o.Errors
	r.inserted += o.Inserted
	r.updated += o.Updated
	r.errors += o.Errors
	if source == "" {
		return
	}
	if r.sources == nil {
		r.sources = make(map[string]bool)
	}
	r.sources[source] = true
}

func (r *runRecord) sourcesUsed() []string {
	out := make([]string, 0, len(r.sources))
	for s := range r.sources {
		out = append(out, s)
	}
	return out
}

// checkCancel is polled between batches per §5's "cancel observed between
// batches" contract.
func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return apperr.New(apperr.Cancelled, "sync cancelled")
	default:
		return nil
	}
}

// providerOrder asks C3 for the provider order and resolves it to the
// concrete adapters this Service has available, in priority order.
func (s *Service) providerOrder(ptype domain.ProviderType) []providers.Adapter {
	var out []providers.Adapter
	for _, name := range s.router.Resolve(ptype) {
		if a, ok := s.adapters[name]; ok {
			out = append(out, a)
		}
	}
	return out
}

func (s *Service) publish(ctx context.Context, userID string, n domain.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, userID, n); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish sync notification")
	}
}

var errNoProvider = fmt.Errorf("no healthy provider available for this sync")
