package tasks

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/sermady/stockdata-core/internal/domain"
)

const pollInterval = 500 * time.Millisecond

// Start launches the worker pool. It returns immediately; Stop cancels
// in-flight analyses and waits for the workers to return.
func (s *Service) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stopped = make(chan struct{})

	done := make(chan struct{}, s.workers)
	go func() {
		for i := 0; i < s.workers; i++ {
			go s.workerLoop(ctx, "worker-"+strconv.Itoa(i), done)
		}
		for i := 0; i < s.workers; i++ {
			<-done
		}
		close(s.stopped)
	}()
}

// Stop cancels the pool context, which also cancels each worker's
// current task (it is then recorded as cancelled), and waits for every
// worker to return.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.stopped
}

func (s *Service) workerLoop(ctx context.Context, workerID string, done chan<- struct{}) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	defer func() { done <- struct{}{} }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.claimAndRun(ctx, workerID)
		}
	}
}

// claimAndRun pulls the oldest pending task (if any) and runs it to
// completion. Claiming is CAS-protected at the store layer, so multiple
// workers racing on the same candidate row only ever have one winner.
func (s *Service) claimAndRun(ctx context.Context, workerID string) {
	candidates, err := s.store.ListPendingTasks(ctx, 1)
	if err != nil || len(candidates) == 0 {
		return
	}
	t := candidates[0]

	startedAt := time.Now().UTC().Format(time.RFC3339Nano)
	claimed, err := s.store.ClaimNextPending(ctx, t.TaskID, workerID, startedAt)
	if err != nil || !claimed {
		return
	}
	t.Status = domain.TaskProcessing
	t.WorkerID = workerID

	s.runTask(ctx, workerID, &t)
}

func (s *Service) runTask(ctx context.Context, workerID string, t *domain.AnalysisTask) {
	taskCtx, taskCancel := context.WithCancel(ctx)
	s.inflight.add(t.TaskID, t, taskCancel)
	defer func() {
		taskCancel()
		s.inflight.remove(t.TaskID)
	}()

	lastProgress := time.Time{}
	progress := func(percent int) {
		if time.Since(lastProgress) < time.Second {
			return
		}
		lastProgress = time.Now()
		if err := s.store.UpdateProgress(context.Background(), t.TaskID, percent); err != nil {
			s.log.Warn().Err(err).Str("task_id", t.TaskID).Msg("failed to write progress update")
		}
	}

	result, err := s.analyst.Analyze(taskCtx, t, progress)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if t.CancelRequested() || errors.Is(taskCtx.Err(), context.Canceled) {
		if cancelErr := s.store.MarkCancelled(context.Background(), t.TaskID, now); cancelErr != nil {
			s.log.Warn().Err(cancelErr).Str("task_id", t.TaskID).Msg("failed to finalize cancelled task")
		}
		s.notify(context.Background(), t.UserID, "analysis", "Analysis task cancelled", "task "+t.TaskID+" for "+t.Symbol+" was cancelled")
		s.recomputeBatch(context.Background(), t.BatchID)
		return
	}

	if err != nil {
		s.handleFailure(t, err, now)
		s.recomputeBatch(context.Background(), t.BatchID)
		return
	}

	if completeErr := s.store.CompleteTask(context.Background(), t.TaskID, result, now); completeErr != nil {
		s.log.Error().Err(completeErr).Str("task_id", t.TaskID).Msg("failed to persist completed task")
		return
	}
	s.notify(context.Background(), t.UserID, "analysis", "Analysis complete", "task "+t.TaskID+" for "+t.Symbol+" finished")
	s.recomputeBatch(context.Background(), t.BatchID)
}

// handleFailure retries t with bounded exponential backoff
// (min(60s * 2^retry_count, 300s)) while retries remain, otherwise
// finalizes it as failed.
func (s *Service) handleFailure(t *domain.AnalysisTask, taskErr error, completedAt string) {
	log := s.log.With().Str("task_id", t.TaskID).Err(taskErr).Logger()

	if t.RetryCount+1 > t.MaxRetries {
		if err := s.store.FailTask(context.Background(), t.TaskID, taskErr.Error(), false, completedAt); err != nil {
			log.Error().Err(err).Msg("failed to persist terminal task failure")
			return
		}
		s.notify(context.Background(), t.UserID, "alert", "Analysis task failed", "task "+t.TaskID+" for "+t.Symbol+" failed: "+taskErr.Error())
		return
	}

	backoff := retryBackoff(t.RetryCount)
	log.Warn().Dur("backoff", backoff).Msg("analysis task failed, scheduling retry")

	go func() {
		timer := time.NewTimer(backoff)
		defer timer.Stop()
		<-timer.C
		if err := s.store.FailTask(context.Background(), t.TaskID, taskErr.Error(), true, ""); err != nil {
			log.Error().Err(err).Msg("failed to requeue task for retry")
		}
	}()
}

func retryBackoff(retryCount int) time.Duration {
	d := 60 * time.Second
	for i := 0; i < retryCount; i++ {
		d *= 2
		if d >= 300*time.Second {
			return 300 * time.Second
		}
	}
	return d
}

// recomputeBatch rewrites a batch's derived progress/status from its
// children (§3: batch fields are never set directly). No-op if taskID
// is not part of a batch.
func (s *Service) recomputeBatch(ctx context.Context, batchID string) {
	if batchID == "" {
		return
	}
	children, err := s.store.ListTasksByBatch(ctx, batchID)
	if err != nil || len(children) == 0 {
		return
	}

	total, anyFailed, anyOpen := 0, false, false
	for _, c := range children {
		total += c.Progress
		switch c.Status {
		case domain.TaskFailed:
			anyFailed = true
		case domain.TaskPending, domain.TaskProcessing:
			anyOpen = true
		}
	}
	progress := total / len(children)

	status := domain.BatchCompleted
	switch {
	case anyOpen:
		status = domain.BatchRunning
	case anyFailed:
		status = domain.BatchFailed
	}

	if err := s.store.UpdateBatchDerived(ctx, batchID, progress, status); err != nil {
		s.log.Warn().Err(err).Str("batch_id", batchID).Msg("failed to update batch derived status")
	}
}
