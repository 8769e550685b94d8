package domain

import "time"

// TaskStatus is a node in the analysis task lifecycle DAG:
// pending -> processing -> {completed, failed, cancelled}, with the one
// permitted back-edge processing -> pending on retry.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// AnalysisTask is one unit of LLM-driven analysis work for one symbol.
type AnalysisTask struct {
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	TaskID      string                 `json:"task_id"`
	BatchID     string                 `json:"batch_id,omitempty"`
	UserID      string                 `json:"user_id"`
	Symbol      string                 `json:"symbol"`
	Status      TaskStatus             `json:"status"`
	WorkerID    string                 `json:"worker_id,omitempty"`
	LastError   string                 `json:"last_error,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Result      map[string]interface{} `json:"result,omitempty"`
	Progress    int                    `json:"progress"` // 0-100
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
	cancelled   bool
}

// RequestCancel marks the task's in-memory cancel flag. A processing
// worker observes this between analyst phases; it does not itself mutate
// Status — the worker does that once it notices.
func (t *AnalysisTask) RequestCancel() { t.cancelled = true }

// CancelRequested reports whether RequestCancel was called for this task.
func (t *AnalysisTask) CancelRequested() bool { return t.cancelled }

// BatchStatus mirrors TaskStatus but is derived from the batch's children,
// never set directly.
type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
	BatchFailed    BatchStatus = "failed"
)

// AnalysisBatch aggregates up to 10 AnalysisTasks submitted atomically.
// Progress and terminal status are recomputed from children, never
// written directly.
type AnalysisBatch struct {
	CreatedAt time.Time   `json:"created_at"`
	BatchID   string      `json:"batch_id"`
	UserID    string      `json:"user_id"`
	TaskIDs   []string    `json:"task_ids"`
	Status    BatchStatus `json:"status"`
	Progress  int         `json:"progress"`
}
