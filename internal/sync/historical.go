package sync

import (
	"context"
	"time"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/domain"
	"github.com/sermady/stockdata-core/internal/providers"
)

// epoch is the earliest trade date walked by an all_history historical
// sync, per §4.6.
var epoch = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

// HistoricalSyncRequest parameterizes one historical-sync run.
type HistoricalSyncRequest struct {
	Symbols     []string
	Start       time.Time // zero means AllHistory
	End         time.Time // zero means time.Now()
	Periods     []domain.BarPeriod
	AllHistory  bool
	Incremental bool
}

// SyncHistorical walks every (symbol, period) pair against the provider
// order for CN equities, inserting with the natural composite key. When
// Incremental is set, only rows newer than the max already-stored
// trade_date for that (code, source, period) are written, making repeated
// runs over the same window a no-op for unchanged history.
func (s *Service) SyncHistorical(ctx context.Context, req HistoricalSyncRequest, force bool) (*domain.SyncStatus, error) {
	return s.run(ctx, "historical_sync", domain.DataClassHistorical, force, func(ctx context.Context, rec *runRecord) error {
		adapters := s.providerOrder(domain.ProviderTypeCNEquity)
		if len(adapters) == 0 {
			return errNoProvider
		}

		start := req.Start
		if req.AllHistory || start.IsZero() {
			start = epoch
		}
		end := req.End
		if end.IsZero() {
			end = time.Now().UTC()
		}
		periods := req.Periods
		if len(periods) == 0 {
			periods = []domain.BarPeriod{domain.PeriodDaily, domain.PeriodWeekly, domain.PeriodMonthly}
		}

		for _, code := range req.Symbols {
			if err := checkCancel(ctx); err != nil {
				return err
			}
			for _, period := range periods {
				outcome, source, _ := s.syncOneHistory(ctx, adapters, code, period, start, end, req.Incremental)
				rec.addOutcome(source, outcome)
			}
		}
		return nil
	})
}

func (s *Service) syncOneHistory(ctx context.Context, adapters []providers.Adapter, code string, period domain.BarPeriod,
	start, end time.Time, incremental bool) (outcomeResult, string, error) {

	for _, a := range adapters {
		windowStart := start
		if incremental {
			if max, err := s.store.MaxStoredTradeDate(ctx, code, a.Name(), period); err == nil && max != "" {
				if t, perr := time.Parse("2006-01-02", max); perr == nil && t.After(windowStart) {
					windowStart = t.AddDate(0, 0, 1)
				}
			}
		}
		if !windowStart.Before(end) {
			return outcomeResult{}, a.Name(), nil
		}

		bars, err := a.GetHistoricalBars(ctx, code, windowStart, end, period)
		if err != nil {
			if apperr.CodeOf(err) == apperr.ProviderUnsupported {
				continue
			}
			continue // fall through to next provider on any adapter failure
		}

		var o outcomeResult
		for _, bar := range bars {
			writeErr := s.store.WithBatchRetry(ctx, func(ctx context.Context) error {
				return s.store.UpsertDailyBar(ctx, bar)
			})
			if writeErr != nil {
				o.Errors++
				continue
			}
			o.Updated++
		}
		if len(bars) > 0 {
			s.projectLatestIntoQuote(ctx, bars[len(bars)-1])
		}
		return o, a.Name(), nil
	}
	return outcomeResult{Errors: 1}, "", errNoProvider
}

// projectLatestIntoQuote writes the newest historical bar into the Quote
// store, but only if it is strictly newer than whatever quote is already
// there (§4.6: never overwrite a newer real-time quote with a stale close).
func (s *Service) projectLatestIntoQuote(ctx context.Context, bar domain.DailyBar) {
	q := domain.Quote{
		Code: bar.Code, Source: bar.Source, TradeDate: bar.TradeDate,
		Price: bar.Close, Open: bar.Open, High: bar.High, Low: bar.Low,
		ChangePercent: bar.ChangePercent, Volume: bar.Volume, Amount: bar.Amount,
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := s.store.UpsertQuote(ctx, q); err != nil && apperr.CodeOf(err) != apperr.StoreConflict {
		s.log.Warn().Err(err).Str("code", bar.Code).Msg("failed to project historical bar into quote store")
	}
}

// outcomeResult is a local alias of store.BatchOutcome kept distinct so
// this file reads naturally; field shapes match 1:1.
type outcomeResult = struct{ Inserted, Updated, Errors int }
