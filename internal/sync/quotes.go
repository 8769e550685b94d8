package sync

import (
	"context"
	"time"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/consistency"
	"github.com/sermady/stockdata-core/internal/domain"
	"github.com/sermady/stockdata-core/internal/providers"
	"github.com/sermady/stockdata-core/internal/store"
)

// SyncQuotes refreshes the latest-tick store. When symbols is empty it
// prefers a single full-market snapshot call (cheaper than one call per
// symbol, §4.6); otherwise it falls back to per-symbol batch calls.
func (s *Service) SyncQuotes(ctx context.Context, symbols []string, force bool) (*domain.SyncStatus, error) {
	return s.run(ctx, "quote_sync", domain.DataClassQuotes, force, func(ctx context.Context, rec *runRecord) error {
		adapters := s.providerOrder(domain.ProviderTypeCNEquity)
		if len(adapters) == 0 {
			return errNoProvider
		}

		if len(symbols) == 0 {
			return s.syncFullMarketSnapshot(ctx, adapters, rec)
		}
		return s.syncQuoteBatch(ctx, adapters, symbols, rec)
	})
}

func (s *Service) syncFullMarketSnapshot(ctx context.Context, adapters []providers.Adapter, rec *runRecord) error {
	for _, a := range adapters {
		tradeDate, err := a.LatestTradeDate(ctx)
		if err != nil {
			continue
		}
		snapshot, err := a.DailyBasicSnapshot(ctx, tradeDate)
		if err != nil || len(snapshot) == 0 {
			continue
		}
		var outcome store.BatchOutcome
		for code, v := range snapshot {
			if err := checkCancel(ctx); err != nil {
				return err
			}
			q := domain.Quote{Code: code, Source: a.Name(), TradeDate: tradeDate, UpdatedAt: time.Now().UTC()}
			if v.TotalMV != nil {
				q.Amount = *v.TotalMV
			}
			applied, writeErr := s.store.UpsertQuote(ctx, q)
			switch {
			case writeErr != nil && apperr.CodeOf(writeErr) == apperr.StoreConflict:
				// older snapshot than what's stored: not an error, simply skipped.
			case writeErr != nil:
				outcome.Errors++
			case applied:
				outcome.Updated++
			}
		}
		rec.addOutcome(a.Name(), outcome)
		return nil
	}
	return errNoProvider
}

func (s *Service) syncQuoteBatch(ctx context.Context, adapters []providers.Adapter, symbols []string, rec *runRecord) error {
	for _, chunk := range store.Chunk(symbols, 500) {
		if err := checkCancel(ctx); err != nil {
			return err
		}

		byCode := make(map[string][]domain.Quote)
		for _, a := range adapters {
			quotes, err := a.GetQuoteBatch(ctx, chunk)
			if err != nil || len(quotes) == 0 {
				continue
			}
			for _, q := range quotes {
				q.Source = a.Name()
				byCode[q.Code] = append(byCode[q.Code], q)
			}
		}

		outcomes := make(map[string]store.BatchOutcome)
		for code, candidates := range byCode {
			q := s.reconcileQuote(ctx, code, candidates)
			applied, writeErr := s.store.UpsertQuote(ctx, *q)
			o := outcomes[q.Source]
			switch {
			case writeErr != nil && apperr.CodeOf(writeErr) == apperr.StoreConflict:
			case writeErr != nil:
				o.Errors++
			case applied:
				o.Updated++
			}
			outcomes[q.Source] = o
		}
		for src, o := range outcomes {
			rec.addOutcome(src, o)
		}
	}
	return nil
}

// reconcileQuote picks the quote to persist for one symbol out of the
// candidates reported this chunk, in provider-order. With a single
// candidate it is used as-is. With two or more, the consistency
// checker (C4) scores the provider-order primary against the next
// candidate on price and volume, per §4.6 step 5; the primary is
// always the one persisted, but an investigate directive is
// surfaced as an operational alert rather than silently swallowed.
func (s *Service) reconcileQuote(ctx context.Context, code string, candidates []domain.Quote) *domain.Quote {
	primary := candidates[0]
	if len(candidates) < 2 || s.checker == nil {
		return &primary
	}

	result := s.checker.Compare([]consistency.FieldValue{
		{Field: "price", Primary: primary.Price, Other: candidates[1].Price},
		{Field: "volume", Primary: float64(primary.Volume), Other: float64(candidates[1].Volume)},
	})

	switch result.Directive {
	case consistency.Investigate:
		s.log.Warn().Str("code", code).Float64("score", result.Score).
			Strs("fields", result.Significant).Msg("quote sources disagree beyond tolerance")
		s.publish(ctx, systemUserID, domain.Notification{
			Type: domain.NotificationAlert, Title: "quote sources disagree",
			Content:  code + ": " + primary.Source + " vs " + candidates[1].Source,
			Source:   "consistency-checker",
			Severity: domain.SeverityWarn, Status: domain.StatusUnread,
			CreatedAt: time.Now().UTC(),
			Metadata:  map[string]interface{}{"score": result.Score, "fields": result.Significant},
		})
	case consistency.UsePrimaryWarn:
		s.log.Debug().Str("code", code).Float64("score", result.Score).Msg("quote sources diverge within acceptable range")
	}
	return &primary
}

