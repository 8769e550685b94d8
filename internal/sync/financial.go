package sync

import (
	"context"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/domain"
	"github.com/sermady/stockdata-core/internal/store"
)

// SyncFinancial fetches and persists one fiscal-period statement per
// symbol. Each report period is its own document (§3); re-running never
// loses earlier periods, only adds or refreshes the current one.
func (s *Service) SyncFinancial(ctx context.Context, symbols []string, force bool) (*domain.SyncStatus, error) {
	return s.run(ctx, "financial_sync", domain.DataClassFinancial, force, func(ctx context.Context, rec *runRecord) error {
		adapters := s.providerOrder(domain.ProviderTypeFinancial)
		if len(adapters) == 0 {
			adapters = s.providerOrder(domain.ProviderTypeCNEquity)
		}
		if len(adapters) == 0 {
			return errNoProvider
		}

		for _, chunk := range store.Chunk(symbols, 50) {
			if err := checkCancel(ctx); err != nil {
				return err
			}
			for _, code := range chunk {
				var outcome store.BatchOutcome
				var usedSource string
				for _, a := range adapters {
					rec2, err := a.GetFinancials(ctx, code)
					if err != nil || rec2 == nil {
						if apperr.CodeOf(err) == apperr.ProviderUnsupported {
							continue
						}
						continue
					}
					rec2.Source = a.Name()
					writeErr := s.store.WithBatchRetry(ctx, func(ctx context.Context) error {
						return s.store.UpsertFinancial(ctx, *rec2)
					})
					if writeErr != nil {
						outcome.Errors = 1
					} else {
						outcome.Updated = 1
					}
					usedSource = a.Name()
					break
				}
				if usedSource == "" {
					outcome.Errors = 1
				}
				rec.addOutcome(usedSource, outcome)
			}
		}
		return nil
	})
}
