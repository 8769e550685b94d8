package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/config"
	"github.com/sermady/stockdata-core/internal/database"
	"github.com/sermady/stockdata-core/internal/domain"
	"github.com/sermady/stockdata-core/internal/store"
)

type fakeAnalyst struct {
	mu        sync.Mutex
	calls     int
	failUntil int // fail the first N calls, succeed afterward
	block     chan struct{}
}

func (f *fakeAnalyst) Analyze(ctx context.Context, t *domain.AnalysisTask, progress func(int)) (map[string]interface{}, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	progress(50)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, apperr.New(apperr.Cancelled, "cancelled")
		}
	}
	if n <= f.failUntil {
		return nil, apperr.New(apperr.Internal, "transient analysis failure")
	}
	return map[string]interface{}{"summary": "ok"}, nil
}

type fakeNotifier struct {
	mu  sync.Mutex
	all []domain.Notification
}

func (f *fakeNotifier) Publish(ctx context.Context, userID string, n domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.all = append(f.all, n)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.all)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := database.New(database.Config{Path: ":memory:", Profile: database.ProfileStandard, Name: "stockdata"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := store.New(db, zerolog.Nop())
	require.NoError(t, s.Migrate())
	return s
}

func TestEnqueue_RejectsOverConcurrentQuota(t *testing.T) {
	st := newTestStore(t)
	svc := New(st, &fakeAnalyst{}, &fakeNotifier{},
		config.WorkerPoolConfig{Workers: 1, DefaultMaxRetries: 1},
		config.QuotaConfig{DailyQuota: 100, ConcurrentLimit: 1}, zerolog.Nop())

	_, err := svc.Enqueue(context.Background(), "u1", "600000", nil)
	require.NoError(t, err)

	_, err = svc.Enqueue(context.Background(), "u1", "600001", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.QuotaExceededConcurrent, apperr.CodeOf(err))
}

func TestEnqueue_RejectsOverDailyQuota(t *testing.T) {
	st := newTestStore(t)
	svc := New(st, &fakeAnalyst{}, &fakeNotifier{},
		config.WorkerPoolConfig{Workers: 1, DefaultMaxRetries: 1},
		config.QuotaConfig{DailyQuota: 1, ConcurrentLimit: 100}, zerolog.Nop())

	_, err := svc.Enqueue(context.Background(), "u1", "600000", nil)
	require.NoError(t, err)

	_, err = svc.Enqueue(context.Background(), "u1", "600001", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.QuotaExceededDaily, apperr.CodeOf(err))
}

func TestEnqueueBatch_RejectsOverTenSymbols(t *testing.T) {
	st := newTestStore(t)
	svc := New(st, &fakeAnalyst{}, &fakeNotifier{},
		config.WorkerPoolConfig{Workers: 1, DefaultMaxRetries: 1},
		config.QuotaConfig{DailyQuota: 100, ConcurrentLimit: 100}, zerolog.Nop())

	symbols := make([]string, 11)
	for i := range symbols {
		symbols[i] = "600000"
	}
	_, err := svc.EnqueueBatch(context.Background(), "u1", symbols, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.BadRequest, apperr.CodeOf(err))
}

func TestEnqueueBatch_QuotaCheckedAcrossAllChildren(t *testing.T) {
	st := newTestStore(t)
	svc := New(st, &fakeAnalyst{}, &fakeNotifier{},
		config.WorkerPoolConfig{Workers: 1, DefaultMaxRetries: 1},
		config.QuotaConfig{DailyQuota: 100, ConcurrentLimit: 3}, zerolog.Nop())

	_, err := svc.EnqueueBatch(context.Background(), "u1", []string{"600000", "600001", "600002", "600003"}, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.QuotaExceededConcurrent, apperr.CodeOf(err))

	b, children, err := svc.GetBatch(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.Nil(t, b)
	assert.Nil(t, children)
}

func TestWorkerPool_CompletesQueuedTask(t *testing.T) {
	st := newTestStore(t)
	notifier := &fakeNotifier{}
	svc := New(st, &fakeAnalyst{}, notifier,
		config.WorkerPoolConfig{Workers: 2, DefaultMaxRetries: 1},
		config.QuotaConfig{DailyQuota: 100, ConcurrentLimit: 100}, zerolog.Nop())

	task, err := svc.Enqueue(context.Background(), "u1", "600000", nil)
	require.NoError(t, err)

	svc.Start()
	defer svc.Stop()

	require.Eventually(t, func() bool {
		got, err := svc.GetTask(context.Background(), task.TaskID)
		return err == nil && got.Status == domain.TaskCompleted
	}, 3*time.Second, 20*time.Millisecond)

	assert.GreaterOrEqual(t, notifier.count(), 2) // queued + completed
}

func TestHandleFailure_TerminalAfterMaxRetries(t *testing.T) {
	st := newTestStore(t)
	svc := New(st, &fakeAnalyst{}, &fakeNotifier{},
		config.WorkerPoolConfig{Workers: 1, DefaultMaxRetries: 1}, config.QuotaConfig{DailyQuota: 100, ConcurrentLimit: 100}, zerolog.Nop())

	task, err := svc.Enqueue(context.Background(), "u1", "600000", nil)
	require.NoError(t, err)

	got, err := st.GetTask(context.Background(), task.TaskID)
	require.NoError(t, err)
	got.MaxRetries = 1
	got.RetryCount = 1 // already exhausted its one retry

	svc.handleFailure(got, apperr.New(apperr.Internal, "boom"), time.Now().UTC().Format(time.RFC3339Nano))

	final, err := svc.GetTask(context.Background(), task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskFailed, final.Status)
	assert.Equal(t, "internal: boom", final.LastError)
}

func TestCancel_PendingTaskCancelledImmediately(t *testing.T) {
	st := newTestStore(t)
	svc := New(st, &fakeAnalyst{}, &fakeNotifier{},
		config.WorkerPoolConfig{Workers: 0, DefaultMaxRetries: 1}, config.QuotaConfig{DailyQuota: 100, ConcurrentLimit: 100}, zerolog.Nop())

	task, err := svc.Enqueue(context.Background(), "u1", "600000", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), task.TaskID))

	got, err := svc.GetTask(context.Background(), task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCancelled, got.Status)
}

func TestCancel_ProcessingTaskObservesFlagAndFinishesCancelled(t *testing.T) {
	st := newTestStore(t)
	block := make(chan struct{})
	analyst := &fakeAnalyst{block: block}
	svc := New(st, analyst, &fakeNotifier{},
		config.WorkerPoolConfig{Workers: 1, DefaultMaxRetries: 1}, config.QuotaConfig{DailyQuota: 100, ConcurrentLimit: 100}, zerolog.Nop())

	task, err := svc.Enqueue(context.Background(), "u1", "600000", nil)
	require.NoError(t, err)

	svc.Start()
	defer svc.Stop()

	require.Eventually(t, func() bool {
		got, err := svc.GetTask(context.Background(), task.TaskID)
		return err == nil && got.Status == domain.TaskProcessing
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, svc.Cancel(context.Background(), task.TaskID))
	close(block)

	require.Eventually(t, func() bool {
		got, err := svc.GetTask(context.Background(), task.TaskID)
		return err == nil && got.Status == domain.TaskCancelled
	}, 3*time.Second, 20*time.Millisecond)
}

func TestRetryBackoff_CapsAt300Seconds(t *testing.T) {
	assert.Equal(t, 60*time.Second, retryBackoff(0))
	assert.Equal(t, 120*time.Second, retryBackoff(1))
	assert.Equal(t, 300*time.Second, retryBackoff(5))
}
