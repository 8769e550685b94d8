package store

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/database"
	"github.com/sermady/stockdata-core/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    ":memory:",
		Profile: database.ProfileStandard,
		Name:    "stockdata",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := New(db, zerolog.Nop())
	require.NoError(t, s.Migrate())
	return s
}

func TestUpsertBasicInfo_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	info := domain.StockBasicInfo{
		Code:       "600000",
		Source:     "tushare",
		FullSymbol: "600000.SS",
		Name:       "Pudong Bank",
		Industry:   "Banking",
		Market:     "SSE",
		UpdatedAt:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.UpsertBasicInfo(ctx, info))

	got, err := s.GetBasicInfo(ctx, "600000", "tushare")
	require.NoError(t, err)
	assert.Equal(t, info.Name, got.Name)
	assert.Equal(t, info.FullSymbol, got.FullSymbol)

	info.Name = "Pudong Development Bank"
	require.NoError(t, s.UpsertBasicInfo(ctx, info))
	got, err = s.GetBasicInfo(ctx, "600000", "tushare")
	require.NoError(t, err)
	assert.Equal(t, "Pudong Development Bank", got.Name)
}

func TestGetBasicInfo_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetBasicInfo(context.Background(), "000001", "akshare")
	assert.Equal(t, apperr.NotFound, apperr.CodeOf(err))
}

func TestUpsertQuote_RejectsStaleTradeDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	q := domain.Quote{Code: "600519", Source: "akshare", TradeDate: "2026-07-30", Price: 1700, UpdatedAt: time.Now()}
	applied, err := s.UpsertQuote(ctx, q)
	require.NoError(t, err)
	assert.True(t, applied)

	stale := q
	stale.TradeDate = "2026-07-30"
	stale.Price = 1701
	applied, err = s.UpsertQuote(ctx, stale)
	assert.Equal(t, apperr.StoreConflict, apperr.CodeOf(err))
	assert.False(t, applied)

	got, err := s.GetQuote(ctx, "600519")
	require.NoError(t, err)
	assert.Equal(t, 1700.0, got.Price)

	fresh := q
	fresh.TradeDate = "2026-07-31"
	fresh.Price = 1720
	applied, err = s.UpsertQuote(ctx, fresh)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err = s.GetQuote(ctx, "600519")
	require.NoError(t, err)
	assert.Equal(t, 1720.0, got.Price)
}

func TestUpsertDailyBar_IdempotentOnSameKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bar := domain.DailyBar{Code: "600000", Source: "tushare", TradeDate: "2026-07-30", Period: domain.PeriodDaily, Close: 10.5}
	require.NoError(t, s.UpsertDailyBar(ctx, bar))
	bar.Close = 10.8
	require.NoError(t, s.UpsertDailyBar(ctx, bar))

	bars, err := s.ListDailyBars(ctx, "600000", "tushare", domain.PeriodDaily, "2026-07-01", "2026-07-31")
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 10.8, bars[0].Close)

	max, err := s.MaxStoredTradeDate(ctx, "600000", "tushare", domain.PeriodDaily)
	require.NoError(t, err)
	assert.Equal(t, "2026-07-30", max)
}

func TestUpsertFinancial_PreservesHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec1 := domain.FinancialRecord{Symbol: "600000", ReportPeriod: "20250630", Source: "tushare", ReportType: domain.ReportQuarterly}
	rec2 := domain.FinancialRecord{Symbol: "600000", ReportPeriod: "20251231", Source: "tushare", ReportType: domain.ReportAnnual}
	require.NoError(t, s.UpsertFinancial(ctx, rec1))
	require.NoError(t, s.UpsertFinancial(ctx, rec2))

	list, err := s.ListFinancials(ctx, "600000", "tushare")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "20251231", list[0].ReportPeriod)
}

func TestSyncStatus_UpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st := domain.SyncStatus{
		Job: "daily-sync", DataType: domain.DataClassHistorical, Status: domain.SyncRunning,
		StartedAt: time.Now(), Total: 100,
	}
	require.NoError(t, s.UpsertSyncStatus(ctx, st))

	got, err := s.GetSyncStatus(ctx, "daily-sync", domain.DataClassHistorical)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncRunning, got.Status)

	finishedAt := time.Now()
	st.Status = domain.SyncSuccess
	st.FinishedAt = &finishedAt
	st.Inserted = 100
	require.NoError(t, s.UpsertSyncStatus(ctx, st))

	got, err = s.GetSyncStatus(ctx, "daily-sync", domain.DataClassHistorical)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncSuccess, got.Status)
	assert.Equal(t, 100, got.Inserted)
}

func TestClaimNextPending_CASPreventsDoubleClaim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := domain.AnalysisTask{TaskID: "t1", UserID: "u1", Symbol: "600000", Status: domain.TaskPending, CreatedAt: time.Now()}
	require.NoError(t, s.CreateTask(ctx, task))

	ok, err := s.ClaimNextPending(ctx, "t1", "worker-a", time.Now().UTC().Format(timeLayout))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ClaimNextPending(ctx, "t1", "worker-b", time.Now().UTC().Format(timeLayout))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskProcessing, got.Status)
	assert.Equal(t, "worker-a", got.WorkerID)
}

func TestCreateBatch_AtomicAllOrNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := domain.AnalysisBatch{BatchID: "b1", UserID: "u1", TaskIDs: []string{"t1", "t2"}, Status: domain.BatchPending, CreatedAt: time.Now()}
	tasks := []domain.AnalysisTask{
		{TaskID: "t1", BatchID: "b1", UserID: "u1", Symbol: "600000", Status: domain.TaskPending, CreatedAt: time.Now()},
		{TaskID: "t2", BatchID: "b1", UserID: "u1", Symbol: "000001", Status: domain.TaskPending, CreatedAt: time.Now()},
	}
	require.NoError(t, s.CreateBatch(ctx, batch, tasks))

	got, err := s.ListTasksByBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestNotifications_RetentionAndMarkRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		n := domain.Notification{
			ID: "n" + time.Now().Add(time.Duration(i)*time.Millisecond).Format("150405.000000000"),
			UserID: "u1", Type: domain.NotificationSystem, Title: "hello", Severity: domain.SeverityInfo,
			Status: domain.StatusUnread, CreatedAt: time.Now(),
		}
		require.NoError(t, s.PutNotification(ctx, n))
	}

	list, err := s.ListNotifications(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 5)

	unread, err := s.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, unread)

	require.NoError(t, s.MarkRead(ctx, "u1", list[0].ID))
	unread, err = s.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, unread)

	n, err := s.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestWithBatchRetry_RetriesOnlyStoreUnavailable(t *testing.T) {
	s := newTestStore(t)
	attempts := 0
	err := s.WithBatchRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return apperr.New(apperr.StoreUnavailable, "transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	attempts = 0
	err = s.WithBatchRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return apperr.New(apperr.BadRequest, "not retryable")
	})
	assert.Equal(t, apperr.BadRequest, apperr.CodeOf(err))
	assert.Equal(t, 1, attempts)
}

func TestListSearchMarkets_BasicInfo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, s.UpsertBasicInfo(ctx, domain.StockBasicInfo{
		Code: "600000", Source: "tushare", Name: "Pudong Bank", Market: "SSE", UpdatedAt: now,
	}))
	require.NoError(t, s.UpsertBasicInfo(ctx, domain.StockBasicInfo{
		Code: "000001", Source: "tushare", Name: "Ping An Bank", Market: "SZSE", UpdatedAt: now,
	}))

	page, err := s.ListBasicInfo(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	found, err := s.SearchBasicInfo(ctx, "Pudong", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "600000", found[0].Code)

	markets, err := s.ListMarkets(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"SSE", "SZSE"}, markets)
}

func TestChunk(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	chunks := Chunk(items, 3)
	require.Len(t, chunks, 3)
	assert.Equal(t, []int{1, 2, 3}, chunks[0])
	assert.Equal(t, []int{7}, chunks[2])
}
