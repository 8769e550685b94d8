package di

import (
	"context"

	"github.com/sermady/stockdata-core/internal/config"
	"github.com/sermady/stockdata-core/internal/domain"
	"github.com/sermady/stockdata-core/internal/scheduler"
	"github.com/sermady/stockdata-core/internal/sync"
)

// runFuncFor adapts one configured sync job to the scheduler.RunFunc
// shape, and reports whether it should be market-hour gated (only the
// quotes class is, per spec.md §4.7). Historical and financial runs
// enumerate their symbol universe from the already-synced basic-info
// table, since neither sync.Service method does that enumeration itself
// (basic-info sync is the one job that lists the full market).
func runFuncFor(c *Container, job config.SyncJobConfig) (run scheduler.RunFunc, market string, gated bool) {
	switch job.DataClass {
	case domain.DataClassBasicInfo:
		return func(ctx context.Context, force bool) error {
			_, err := c.Sync.SyncBasicInfo(ctx, force)
			return err
		}, "", false

	case domain.DataClassHistorical:
		return func(ctx context.Context, force bool) error {
			symbols, err := universeSymbols(ctx, c)
			if err != nil {
				return err
			}
			_, err = c.Sync.SyncHistorical(ctx, sync.HistoricalSyncRequest{
				Symbols:     symbols,
				Incremental: true,
			}, force)
			return err
		}, "", false

	case domain.DataClassFinancial:
		return func(ctx context.Context, force bool) error {
			symbols, err := universeSymbols(ctx, c)
			if err != nil {
				return err
			}
			_, err = c.Sync.SyncFinancial(ctx, symbols, force)
			return err
		}, "", false

	case domain.DataClassQuotes:
		return func(ctx context.Context, force bool) error {
			_, err := c.Sync.SyncQuotes(ctx, nil, force)
			return err
		}, "cn-equity", true

	default:
		return func(ctx context.Context, force bool) error { return nil }, "", false
	}
}

// universeSymbols reads the distinct set of codes the basic-info sync has
// already populated, capped generously so a misconfigured scheduler tick
// cannot enumerate an unbounded symbol list against the store.
func universeSymbols(ctx context.Context, c *Container) ([]string, error) {
	const universeCap = 10000
	rows, err := c.Store.ListBasicInfo(ctx, universeCap, 0)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.Code]; ok {
			continue
		}
		seen[r.Code] = struct{}{}
		out = append(out, r.Code)
	}
	return out, nil
}
