package sync

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/config"
	"github.com/sermady/stockdata-core/internal/consistency"
	"github.com/sermady/stockdata-core/internal/database"
	"github.com/sermady/stockdata-core/internal/domain"
	"github.com/sermady/stockdata-core/internal/providers"
	"github.com/sermady/stockdata-core/internal/router"
	"github.com/sermady/stockdata-core/internal/store"
)

// fakeAdapter implements providers.Adapter with canned, in-memory data so
// these tests exercise the sync protocol without any network access.
type fakeAdapter struct {
	name    string
	symbols []domain.StockBasicInfo
	bars    map[string][]domain.DailyBar
	fin     map[string]*domain.FinancialRecord
	quotes  map[string]domain.Quote
	failAll bool
}

func (f *fakeAdapter) Name() string { return f.name }
func (f *fakeAdapter) ListAllSymbols(ctx context.Context) ([]domain.StockBasicInfo, error) {
	if f.failAll {
		return nil, apperr.New(apperr.ProviderTransient, "down")
	}
	return f.symbols, nil
}
func (f *fakeAdapter) GetBasicInfo(ctx context.Context, code string) (*domain.StockBasicInfo, error) {
	for _, s := range f.symbols {
		if s.Code == code {
			return &s, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "no such symbol")
}
func (f *fakeAdapter) GetQuote(ctx context.Context, code string) (*domain.Quote, error) {
	q, ok := f.quotes[code]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "no quote")
	}
	return &q, nil
}
func (f *fakeAdapter) GetQuoteBatch(ctx context.Context, codes []string) (map[string]domain.Quote, error) {
	out := make(map[string]domain.Quote)
	for _, c := range codes {
		if q, ok := f.quotes[c]; ok {
			out[c] = q
		}
	}
	return out, nil
}
func (f *fakeAdapter) GetHistoricalBars(ctx context.Context, code string, start, end time.Time, period domain.BarPeriod) ([]domain.DailyBar, error) {
	return f.bars[code], nil
}
func (f *fakeAdapter) GetFinancials(ctx context.Context, code string) (*domain.FinancialRecord, error) {
	r, ok := f.fin[code]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "no financials")
	}
	return r, nil
}
func (f *fakeAdapter) GetNews(ctx context.Context, code string, limit int) ([]domain.NewsItem, error) {
	return nil, apperr.New(apperr.ProviderUnsupported, "news not supported")
}
func (f *fakeAdapter) LatestTradeDate(ctx context.Context) (string, error) { return "2026-07-31", nil }
func (f *fakeAdapter) DailyBasicSnapshot(ctx context.Context, tradeDate string) (map[string]providers.ValuationSnapshot, error) {
	return map[string]providers.ValuationSnapshot{}, nil
}
func (f *fakeAdapter) HealthProbe(ctx context.Context) (time.Duration, error) { return 0, nil }

func newTestService(t *testing.T, adapters map[string]providers.Adapter) *Service {
	t.Helper()
	db, err := database.New(database.Config{Path: ":memory:", Profile: database.ProfileStandard, Name: "stockdata"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st := store.New(db, zerolog.Nop())
	require.NoError(t, st.Migrate())

	var all []domain.Provider
	priority := 1
	for name := range adapters {
		all = append(all, domain.Provider{Name: name, Type: domain.ProviderTypeCNEquity, Enabled: true, Priority: priority})
		priority++
	}
	r := router.New(all, nil)
	return New(adapters, r, st, consistency.New(config.DefaultConsistencyPolicy()), nil, zerolog.Nop())
}

func TestSyncBasicInfo_PersistsAllSymbols(t *testing.T) {
	fa := &fakeAdapter{name: "tushare", symbols: []domain.StockBasicInfo{
		{Code: "600000", Name: "Pudong Bank"},
		{Code: "000001", Name: "Ping An Bank"},
	}}
	svc := newTestService(t, map[string]providers.Adapter{"tushare": fa})

	status, err := svc.SyncBasicInfo(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncSuccess, status.Status)
	assert.Equal(t, 2, status.Updated)

	got, err := svc.store.GetBasicInfo(context.Background(), "600000", "tushare")
	require.NoError(t, err)
	assert.Equal(t, "Pudong Bank", got.Name)
}

func TestSyncBasicInfo_SecondConcurrentRunReturnsExistingStatus(t *testing.T) {
	fa := &fakeAdapter{name: "tushare", symbols: []domain.StockBasicInfo{{Code: "600000", Name: "Pudong Bank"}}}
	svc := newTestService(t, map[string]providers.Adapter{"tushare": fa})

	svc.locks.TryAcquire("basic_info_sync")
	defer svc.locks.Release("basic_info_sync")

	status, err := svc.SyncBasicInfo(context.Background(), false)
	require.NoError(t, err)
	assert.NotEqual(t, domain.SyncRunning, status.Status) // no prior persisted status -> fresh zero value, but lock prevented a new run
}

func TestSyncHistorical_AllHistoryPersistsEveryBar(t *testing.T) {
	fa := &fakeAdapter{
		name: "tushare",
		bars: map[string][]domain.DailyBar{
			"600000": {
				{Code: "600000", Source: "tushare", TradeDate: "2026-07-29", Period: domain.PeriodDaily, Close: 10},
				{Code: "600000", Source: "tushare", TradeDate: "2026-07-30", Period: domain.PeriodDaily, Close: 11},
			},
		},
	}
	svc := newTestService(t, map[string]providers.Adapter{"tushare": fa})

	req := HistoricalSyncRequest{Symbols: []string{"600000"}, Periods: []domain.BarPeriod{domain.PeriodDaily}, AllHistory: true}
	status, err := svc.SyncHistorical(context.Background(), req, false)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncSuccess, status.Status)

	bars, err := svc.store.ListDailyBars(context.Background(), "600000", "tushare", domain.PeriodDaily, "1990-01-01", "2026-12-31")
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}

func TestSyncFinancial_PreservesMultiplePeriods(t *testing.T) {
	fa := &fakeAdapter{
		name: "tushare",
		fin: map[string]*domain.FinancialRecord{
			"600000": {Symbol: "600000", ReportPeriod: "20251231", ReportType: domain.ReportAnnual},
		},
	}
	svc := newTestService(t, map[string]providers.Adapter{"tushare": fa})

	status, err := svc.SyncFinancial(context.Background(), []string{"600000"}, false)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncSuccess, status.Status)

	list, err := svc.store.ListFinancials(context.Background(), "600000", "tushare")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestSyncQuotes_BatchMode(t *testing.T) {
	fa := &fakeAdapter{
		name: "tushare",
		quotes: map[string]domain.Quote{
			"600000": {Code: "600000", Source: "tushare", TradeDate: "2026-07-31", Price: 10.5},
		},
	}
	svc := newTestService(t, map[string]providers.Adapter{"tushare": fa})

	status, err := svc.SyncQuotes(context.Background(), []string{"600000"}, false)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncSuccess, status.Status)

	q, err := svc.store.GetQuote(context.Background(), "600000")
	require.NoError(t, err)
	assert.Equal(t, 10.5, q.Price)
}

func TestSyncQuotes_DisagreeingSourcesKeepPrimaryAndAlert(t *testing.T) {
	primary := &fakeAdapter{name: "tushare", quotes: map[string]domain.Quote{
		"600000": {Code: "600000", Source: "tushare", TradeDate: "2026-07-31", Price: 10.0, Volume: 1000},
	}}
	secondary := &fakeAdapter{name: "akshare", quotes: map[string]domain.Quote{
		"600000": {Code: "600000", Source: "akshare", TradeDate: "2026-07-31", Price: 20.0, Volume: 9000},
	}}

	db, err := database.New(database.Config{Path: ":memory:", Profile: database.ProfileStandard, Name: "stockdata"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st := store.New(db, zerolog.Nop())
	require.NoError(t, st.Migrate())

	all := []domain.Provider{
		{Name: "tushare", Type: domain.ProviderTypeCNEquity, Enabled: true, Priority: 1},
		{Name: "akshare", Type: domain.ProviderTypeCNEquity, Enabled: true, Priority: 2},
	}
	r := router.New(all, nil)
	notifier := &capturingNotifier{}
	svc := New(map[string]providers.Adapter{"tushare": primary, "akshare": secondary}, r, st, consistency.New(config.DefaultConsistencyPolicy()), notifier, zerolog.Nop())

	status, err := svc.SyncQuotes(context.Background(), []string{"600000"}, false)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncSuccess, status.Status)

	q, err := st.GetQuote(context.Background(), "600000")
	require.NoError(t, err)
	assert.Equal(t, 10.0, q.Price)
	assert.Equal(t, "tushare", q.Source)
	require.Len(t, notifier.published, 1)
	assert.Equal(t, domain.NotificationAlert, notifier.published[0].Type)
}

type capturingNotifier struct {
	published []domain.Notification
}

func (c *capturingNotifier) Publish(ctx context.Context, userID string, n domain.Notification) error {
	c.published = append(c.published, n)
	return nil
}

func TestSyncBasicInfo_NoProviderReturnsFailed(t *testing.T) {
	svc := newTestService(t, map[string]providers.Adapter{})
	status, err := svc.SyncBasicInfo(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, domain.SyncFailed, status.Status)
}

func TestSyncHistorical_CancelledBetweenSymbols(t *testing.T) {
	fa := &fakeAdapter{name: "tushare", bars: map[string][]domain.DailyBar{
		"600000": {{Code: "600000", Source: "tushare", TradeDate: "2026-07-30", Period: domain.PeriodDaily}},
	}}
	svc := newTestService(t, map[string]providers.Adapter{"tushare": fa})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := HistoricalSyncRequest{Symbols: []string{"600000"}, AllHistory: true}
	status, err := svc.SyncHistorical(ctx, req, false)
	require.Error(t, err)
	assert.Equal(t, domain.SyncFailed, status.Status)
	assert.Equal(t, "cancelled", status.Message)
}
