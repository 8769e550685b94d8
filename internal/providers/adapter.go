// Package providers implements one adapter per upstream market-data
// vendor behind a single capability interface (C1).
package providers

import (
	"context"
	"time"

	"github.com/sermady/stockdata-core/internal/domain"
)

// ValuationSnapshot is the per-symbol row returned by DailyBasicSnapshot.
type ValuationSnapshot struct {
	PE      *float64
	PB      *float64
	TotalMV *float64
}

// Adapter is the uniform capability surface every provider must expose.
// Capabilities a provider does not have must report apperr.ProviderUnsupported
// rather than fabricating data.
type Adapter interface {
	// Name is the stable provider identifier (matches domain.Provider.Name).
	Name() string

	ListAllSymbols(ctx context.Context) ([]domain.StockBasicInfo, error)
	GetBasicInfo(ctx context.Context, code string) (*domain.StockBasicInfo, error)
	GetQuote(ctx context.Context, code string) (*domain.Quote, error)
	GetQuoteBatch(ctx context.Context, codes []string) (map[string]domain.Quote, error)
	GetHistoricalBars(ctx context.Context, code string, start, end time.Time, period domain.BarPeriod) ([]domain.DailyBar, error)
	GetFinancials(ctx context.Context, code string) (*domain.FinancialRecord, error)
	GetNews(ctx context.Context, code string, limit int) ([]domain.NewsItem, error)
	LatestTradeDate(ctx context.Context) (string, error)
	DailyBasicSnapshot(ctx context.Context, tradeDate string) (map[string]ValuationSnapshot, error)

	// HealthProbe performs one lightweight, cheap call suitable for C2's
	// periodic liveness check, returning the elapsed duration and error
	// (if any) so the caller can apply the response-time threshold.
	HealthProbe(ctx context.Context) (time.Duration, error)
}

// DefaultTimeout is the per-operation timeout applied by the rate-limited
// HTTP client unless overridden, per spec.md §4.1.
const DefaultTimeout = 60 * time.Second
