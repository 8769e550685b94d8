package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/domain"
)

// CreateTask inserts a new AnalysisTask in TaskPending status.
func (s *Store) CreateTask(ctx context.Context, t domain.AnalysisTask) error {
	params, err := json.Marshal(t.Parameters)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "marshal task parameters", err)
	}
	_, err = s.db.Conn().ExecContext(ctx, `
		INSERT INTO analysis_tasks
			(task_id, batch_id, user_id, symbol, status, progress, created_at, parameters, retry_count, max_retries)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.TaskID, t.BatchID, t.UserID, t.Symbol, string(t.Status), t.Progress,
		t.CreatedAt.UTC().Format(timeLayout), params, t.RetryCount, t.MaxRetries)
	if err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "create task", err)
	}
	return nil
}

// GetTask returns one task by id, or apperr.NotFound.
func (s *Store) GetTask(ctx context.Context, taskID string) (*domain.AnalysisTask, error) {
	row := s.db.Conn().QueryRowContext(ctx, `
		SELECT task_id, batch_id, user_id, symbol, status, progress, created_at, started_at, completed_at,
		       worker_id, parameters, result, retry_count, max_retries, last_error
		FROM analysis_tasks WHERE task_id = ?
	`, taskID)
	return scanTask(row)
}

func scanTask(row rowScanner) (*domain.AnalysisTask, error) {
	var t domain.AnalysisTask
	var status, createdAt string
	var startedAt, completedAt, params, result sql.NullString

	if err := row.Scan(&t.TaskID, &t.BatchID, &t.UserID, &t.Symbol, &status, &t.Progress, &createdAt,
		&startedAt, &completedAt, &t.WorkerID, &params, &result, &t.RetryCount, &t.MaxRetries, &t.LastError); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "task not found")
		}
		return nil, apperr.Wrap(apperr.StoreUnavailable, "scan task", err)
	}

	t.Status = domain.TaskStatus(status)
	t.CreatedAt = parseTime(createdAt)
	if startedAt.Valid {
		v := parseTime(startedAt.String)
		t.StartedAt = &v
	}
	if completedAt.Valid {
		v := parseTime(completedAt.String)
		t.CompletedAt = &v
	}
	if params.Valid && params.String != "" {
		_ = json.Unmarshal([]byte(params.String), &t.Parameters)
	}
	if result.Valid && result.String != "" {
		_ = json.Unmarshal([]byte(result.String), &t.Result)
	}
	return &t, nil
}

// ClaimNextPending atomically claims the task taskID for workerID,
// transitioning pending -> processing. The caller picks taskID (the
// worker takes the oldest from ListPendingTasks). Returns false with a
// nil error when the task is no longer pending, e.g. another worker
// claimed it first.
func (s *Store) ClaimNextPending(ctx context.Context, taskID, workerID string, startedAt string) (bool, error) {
	res, err := s.db.Conn().ExecContext(ctx, `
		UPDATE analysis_tasks SET status = ?, worker_id = ?, started_at = ?
		WHERE task_id = ? AND status = ?
	`, string(domain.TaskProcessing), workerID, startedAt, taskID, string(domain.TaskPending))
	if err != nil {
		return false, apperr.Wrap(apperr.StoreUnavailable, "claim task", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(apperr.StoreUnavailable, "claim task rows affected", err)
	}
	return n == 1, nil
}

// ListPendingTasks returns pending task ids ordered by created_at
// ascending (FIFO), the candidate set a dispatcher claims from.
func (s *Store) ListPendingTasks(ctx context.Context, limit int) ([]domain.AnalysisTask, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT task_id, batch_id, user_id, symbol, status, progress, created_at, started_at, completed_at,
		       worker_id, parameters, result, retry_count, max_retries, last_error
		FROM analysis_tasks WHERE status = ? ORDER BY created_at ASC LIMIT ?
	`, string(domain.TaskPending), limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "list pending tasks", err)
	}
	defer rows.Close()

	var out []domain.AnalysisTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// UpdateProgress writes a throttled progress update; callers are
// responsible for rate-limiting calls to at most once per second per §4.8.
func (s *Store) UpdateProgress(ctx context.Context, taskID string, progress int) error {
	_, err := s.db.Conn().ExecContext(ctx, `UPDATE analysis_tasks SET progress = ? WHERE task_id = ?`, progress, taskID)
	if err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "update task progress", err)
	}
	return nil
}

// CompleteTask marks a processing task completed with its result payload.
func (s *Store) CompleteTask(ctx context.Context, taskID string, result map[string]interface{}, completedAt string) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "marshal task result", err)
	}
	_, err = s.db.Conn().ExecContext(ctx, `
		UPDATE analysis_tasks SET status = ?, progress = 100, result = ?, completed_at = ? WHERE task_id = ?
	`, string(domain.TaskCompleted), raw, completedAt, taskID)
	if err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "complete task", err)
	}
	return nil
}

// FailTask records a failed attempt. If retrying is true the task returns
// to pending with retry_count incremented (bounded exponential backoff is
// the caller's concern); otherwise it is marked terminally failed.
func (s *Store) FailTask(ctx context.Context, taskID, lastError string, retrying bool, completedAt string) error {
	status := domain.TaskFailed
	if retrying {
		status = domain.TaskPending
	}
	var err error
	if retrying {
		_, err = s.db.Conn().ExecContext(ctx, `
			UPDATE analysis_tasks SET status = ?, last_error = ?, retry_count = retry_count + 1,
			       worker_id = '', started_at = NULL
			WHERE task_id = ?
		`, string(status), lastError, taskID)
	} else {
		_, err = s.db.Conn().ExecContext(ctx, `
			UPDATE analysis_tasks SET status = ?, last_error = ?, completed_at = ? WHERE task_id = ?
		`, string(status), lastError, completedAt, taskID)
	}
	if err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "fail task", err)
	}
	return nil
}

// CancelTask marks a task cancelled. Pending tasks are cancelled
// unconditionally; processing tasks are left for the worker to notice
// via the in-memory cancel flag and transition themselves (§4.8).
func (s *Store) CancelTask(ctx context.Context, taskID string, completedAt string) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		UPDATE analysis_tasks SET status = ?, completed_at = ?
		WHERE task_id = ? AND status = ?
	`, string(domain.TaskCancelled), completedAt, taskID, string(domain.TaskPending))
	if err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "cancel task", err)
	}
	return nil
}

// MarkCancelled finalizes a processing task as cancelled once its worker
// has observed the in-memory cancel flag and unwound (§4.8).
func (s *Store) MarkCancelled(ctx context.Context, taskID string, completedAt string) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		UPDATE analysis_tasks SET status = ?, completed_at = ?
		WHERE task_id = ? AND status = ?
	`, string(domain.TaskCancelled), completedAt, taskID, string(domain.TaskProcessing))
	if err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "mark task cancelled", err)
	}
	return nil
}

// CountActiveTasksForUser counts a user's pending+processing tasks, for
// the per-user concurrency quota check (§4.8).
func (s *Store) CountActiveTasksForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM analysis_tasks WHERE user_id = ? AND status IN (?, ?)
	`, userID, string(domain.TaskPending), string(domain.TaskProcessing)).Scan(&n)
	if err != nil {
		return 0, apperr.Wrap(apperr.StoreUnavailable, "count active tasks", err)
	}
	return n, nil
}

// CountTasksCreatedSince counts a user's tasks created at or after since
// (RFC3339), for the per-user daily quota check (§4.8).
func (s *Store) CountTasksCreatedSince(ctx context.Context, userID, since string) (int, error) {
	var n int
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM analysis_tasks WHERE user_id = ? AND created_at >= ?
	`, userID, since).Scan(&n)
	if err != nil {
		return 0, apperr.Wrap(apperr.StoreUnavailable, "count tasks since", err)
	}
	return n, nil
}

// CreateBatch atomically inserts an AnalysisBatch alongside its up-to-10
// child tasks. All rows are written in a single transaction: either every
// task is created or none are (§4.8 batch atomicity).
func (s *Store) CreateBatch(ctx context.Context, batch domain.AnalysisBatch, tasks []domain.AnalysisTask) error {
	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "begin batch tx", err)
	}
	defer tx.Rollback()

	taskIDs, err := json.Marshal(batch.TaskIDs)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "marshal batch task ids", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO analysis_batches (batch_id, user_id, task_ids, status, progress, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, batch.BatchID, batch.UserID, taskIDs, string(batch.Status), batch.Progress, batch.CreatedAt.UTC().Format(timeLayout)); err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "insert batch", err)
	}

	for _, t := range tasks {
		params, err := json.Marshal(t.Parameters)
		if err != nil {
			return apperr.Wrap(apperr.Internal, "marshal task parameters", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO analysis_tasks
				(task_id, batch_id, user_id, symbol, status, progress, created_at, parameters, retry_count, max_retries)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.TaskID, t.BatchID, t.UserID, t.Symbol, string(t.Status), t.Progress,
			t.CreatedAt.UTC().Format(timeLayout), params, t.RetryCount, t.MaxRetries); err != nil {
			return apperr.Wrap(apperr.StoreUnavailable, "insert batch task", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "commit batch tx", err)
	}
	return nil
}

// GetBatch returns one batch by id, or apperr.NotFound.
func (s *Store) GetBatch(ctx context.Context, batchID string) (*domain.AnalysisBatch, error) {
	var b domain.AnalysisBatch
	var status, createdAt, taskIDs string
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT batch_id, user_id, task_ids, status, progress, created_at FROM analysis_batches WHERE batch_id = ?
	`, batchID).Scan(&b.BatchID, &b.UserID, &taskIDs, &status, &b.Progress, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "batch not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "get batch", err)
	}
	b.Status = domain.BatchStatus(status)
	b.CreatedAt = parseTime(createdAt)
	_ = json.Unmarshal([]byte(taskIDs), &b.TaskIDs)
	return &b, nil
}

// UpdateBatchDerived rewrites a batch's progress and status fields,
// recomputed by the caller from its children (§3 invariant: never set
// directly).
func (s *Store) UpdateBatchDerived(ctx context.Context, batchID string, progress int, status domain.BatchStatus) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		UPDATE analysis_batches SET progress = ?, status = ? WHERE batch_id = ?
	`, progress, string(status), batchID)
	if err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "update batch derived", err)
	}
	return nil
}

// ListTasksByBatch returns every task belonging to batchID.
func (s *Store) ListTasksByBatch(ctx context.Context, batchID string) ([]domain.AnalysisTask, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT task_id, batch_id, user_id, symbol, status, progress, created_at, started_at, completed_at,
		       worker_id, parameters, result, retry_count, max_retries, last_error
		FROM analysis_tasks WHERE batch_id = ? ORDER BY created_at ASC
	`, batchID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "list tasks by batch", err)
	}
	defer rows.Close()

	var out []domain.AnalysisTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
