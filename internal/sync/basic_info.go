package sync

import (
	"context"
	"sync"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/domain"
	"github.com/sermady/stockdata-core/internal/store"
)

// maxBasicInfoConcurrency bounds per-symbol enrichment calls, per §4.6.
const maxBasicInfoConcurrency = 8

// SyncBasicInfo lists every symbol from the primary CN-equity provider,
// then enriches each with up to maxBasicInfoConcurrency concurrent
// adapter calls, persisting as it goes.
func (s *Service) SyncBasicInfo(ctx context.Context, force bool) (*domain.SyncStatus, error) {
	return s.run(ctx, "basic_info_sync", domain.DataClassBasicInfo, force, func(ctx context.Context, rec *runRecord) error {
		adapters := s.providerOrder(domain.ProviderTypeCNEquity)
		if len(adapters) == 0 {
			return errNoProvider
		}
		primary := adapters[0]

		symbols, err := primary.ListAllSymbols(ctx)
		if err != nil {
			return apperr.Wrap(apperr.ProviderTransient, "list all symbols", err)
		}

		sem := make(chan struct{}, maxBasicInfoConcurrency)
		var wg sync.WaitGroup
		var mu sync.Mutex

		for _, chunk := range store.Chunk(symbols, 200) {
			if err := checkCancel(ctx); err != nil {
				return err
			}
			for _, sym := range chunk {
				sym := sym
				sem <- struct{}{}
				wg.Add(1)
				go func() {
					defer func() { <-sem; wg.Done() }()
					outcome := s.enrichOne(ctx, primary, sym)
					mu.Lock()
					rec.addOutcome(primary.Name(), outcome)
					mu.Unlock()
				}()
			}
			wg.Wait()
		}
		return nil
	})
}

type basicInfoProvider interface {
	Name() string
	GetBasicInfo(ctx context.Context, code string) (*domain.StockBasicInfo, error)
}

func (s *Service) enrichOne(ctx context.Context, primary basicInfoProvider, listed domain.StockBasicInfo) store.BatchOutcome {
	info, err := primary.GetBasicInfo(ctx, listed.Code)
	if err != nil || info == nil {
		info = &listed
	}
	info.Source = primary.Name()

	var outcome store.BatchOutcome
	writeErr := s.store.WithBatchRetry(ctx, func(ctx context.Context) error {
		return s.store.UpsertBasicInfo(ctx, *info)
	})
	if writeErr != nil {
		outcome.Errors = 1
	} else {
		outcome.Updated = 1
	}
	return outcome
}
