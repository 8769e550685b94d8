// Package tasks implements the analysis task service (C8): a bounded
// worker pool dispatching queued AnalysisTasks, enforcing per-user
// concurrency and daily quotas at enqueue time, and persisting every
// lifecycle transition through internal/store.
package tasks

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/config"
	"github.com/sermady/stockdata-core/internal/domain"
	"github.com/sermady/stockdata-core/internal/store"
)

// Analyst runs the actual LLM-driven analysis for one task. progress
// should be called at most as often as the caller likes; the worker
// loop throttles writes to the store on its own.
type Analyst interface {
	Analyze(ctx context.Context, task *domain.AnalysisTask, progress func(percent int)) (map[string]interface{}, error)
}

// Notifier delivers one notification to a user. internal/notify.Service
// satisfies this, as does internal/sync.Notifier's identical shape.
type Notifier interface {
	Publish(ctx context.Context, userID string, n domain.Notification) error
}

// Service is the analysis task queue: enqueue, quota enforcement, and
// (via Start) the worker pool that drains it.
type Service struct {
	store    *store.Store
	analyst  Analyst
	notifier Notifier
	log      zerolog.Logger

	workers    int
	maxRetries int
	dailyQuota int
	concurrent int

	cancel   context.CancelFunc
	stopped  chan struct{}
	inflight *inflightRegistry
}

// New builds a Service. workerCfg/quotaCfg come from config.Config so an
// operator can retune pool size and quota limits without a code change.
func New(st *store.Store, analyst Analyst, notifier Notifier, workerCfg config.WorkerPoolConfig, quotaCfg config.QuotaConfig, log zerolog.Logger) *Service {
	workers := workerCfg.Workers
	if workers <= 0 {
		workers = 4
	}
	maxRetries := workerCfg.DefaultMaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Service{
		store:      st,
		analyst:    analyst,
		notifier:   notifier,
		log:        log.With().Str("component", "tasks").Logger(),
		workers:    workers,
		maxRetries: maxRetries,
		dailyQuota: quotaCfg.DailyQuota,
		concurrent: quotaCfg.ConcurrentLimit,
		inflight:   newInflightRegistry(),
	}
}

// Enqueue creates one AnalysisTask for symbol, rejecting it with
// apperr.QuotaExceededConcurrent / apperr.QuotaExceededDaily if userID
// is already at either limit. No row is written on a quota rejection.
func (s *Service) Enqueue(ctx context.Context, userID, symbol string, parameters map[string]interface{}) (*domain.AnalysisTask, error) {
	if err := s.checkQuota(ctx, userID, 1); err != nil {
		return nil, err
	}

	t := domain.AnalysisTask{
		TaskID:     uuid.NewString(),
		UserID:     userID,
		Symbol:     symbol,
		Status:     domain.TaskPending,
		Parameters: parameters,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: s.maxRetries,
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	s.notify(ctx, userID, "analysis", "Analysis task queued", "task "+t.TaskID+" for "+symbol+" is queued")
	return &t, nil
}

// EnqueueBatch atomically creates up to 10 child tasks under one batch,
// after confirming the whole batch fits within userID's remaining quota
// (§4.8: a batch that would push the user over quota is rejected in
// full, not partially admitted).
func (s *Service) EnqueueBatch(ctx context.Context, userID string, symbols []string, parameters map[string]interface{}) (*domain.AnalysisBatch, error) {
	if len(symbols) == 0 {
		return nil, apperr.New(apperr.BadRequest, "batch requires at least one symbol")
	}
	if len(symbols) > 10 {
		return nil, apperr.New(apperr.BadRequest, "batch accepts at most 10 symbols")
	}
	if err := s.checkQuota(ctx, userID, len(symbols)); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	batch := domain.AnalysisBatch{
		BatchID:   uuid.NewString(),
		UserID:    userID,
		Status:    domain.BatchPending,
		CreatedAt: now,
	}
	tasks := make([]domain.AnalysisTask, 0, len(symbols))
	for _, sym := range symbols {
		t := domain.AnalysisTask{
			TaskID:     uuid.NewString(),
			BatchID:    batch.BatchID,
			UserID:     userID,
			Symbol:     sym,
			Status:     domain.TaskPending,
			Parameters: parameters,
			CreatedAt:  now,
			MaxRetries: s.maxRetries,
		}
		batch.TaskIDs = append(batch.TaskIDs, t.TaskID)
		tasks = append(tasks, t)
	}

	if err := s.store.CreateBatch(ctx, batch, tasks); err != nil {
		return nil, err
	}
	s.notify(ctx, userID, "analysis", "Analysis batch queued", "batch "+batch.BatchID+" with "+strconv.Itoa(len(tasks))+" tasks is queued")
	return &batch, nil
}

// checkQuota verifies that admitting n more tasks for userID would not
// exceed either the concurrency or the daily limit.
func (s *Service) checkQuota(ctx context.Context, userID string, n int) error {
	if s.concurrent > 0 {
		active, err := s.store.CountActiveTasksForUser(ctx, userID)
		if err != nil {
			return err
		}
		if active+n > s.concurrent {
			return apperr.New(apperr.QuotaExceededConcurrent, "user has reached the concurrent analysis task limit")
		}
	}
	if s.dailyQuota > 0 {
		since := time.Now().UTC().Truncate(24 * time.Hour).Format(time.RFC3339Nano)
		today, err := s.store.CountTasksCreatedSince(ctx, userID, since)
		if err != nil {
			return err
		}
		if today+n > s.dailyQuota {
			return apperr.New(apperr.QuotaExceededDaily, "user has reached the daily analysis task quota")
		}
	}
	return nil
}

// GetTask is a thin passthrough to the store, exposed so the HTTP layer
// doesn't need its own store handle.
func (s *Service) GetTask(ctx context.Context, taskID string) (*domain.AnalysisTask, error) {
	return s.store.GetTask(ctx, taskID)
}

// GetBatch returns a batch and its current children.
func (s *Service) GetBatch(ctx context.Context, batchID string) (*domain.AnalysisBatch, []domain.AnalysisTask, error) {
	b, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	children, err := s.store.ListTasksByBatch(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	return b, children, nil
}

// Cancel cancels taskID. A pending task is cancelled immediately in the
// store; a processing task is flagged in-memory for its worker to
// notice between analyst phases and finalize itself (§4.8).
func (s *Service) Cancel(ctx context.Context, taskID string) error {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	switch t.Status {
	case domain.TaskPending:
		return s.store.CancelTask(ctx, taskID, time.Now().UTC().Format(time.RFC3339Nano))
	case domain.TaskProcessing:
		s.inflight.requestCancel(taskID)
		return nil
	default:
		return nil
	}
}

func (s *Service) notify(ctx context.Context, userID, typ, title, content string) {
	if s.notifier == nil {
		return
	}
	n := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      domain.NotificationType(typ),
		Title:     title,
		Content:   content,
		Severity:  domain.SeverityInfo,
		Status:    domain.StatusUnread,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.notifier.Publish(ctx, userID, n); err != nil {
		s.log.Warn().Err(err).Str("task_user", userID).Msg("failed to publish task notification")
	}
}
