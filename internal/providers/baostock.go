package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/sermady/stockdata-core/internal/domain"
)

// BaostockAdapter is the CN tertiary fallback. It is an end-of-day-only
// source: it has no live quote feed, financial statements, or news, and
// exists purely to serve ListAllSymbols/GetBasicInfo/GetHistoricalBars
// when both higher-priority CN providers are unavailable.
type BaostockAdapter struct {
	httpAdapter
}

func NewBaostockAdapter(baseURL string, log zerolog.Logger) *BaostockAdapter {
	return &BaostockAdapter{httpAdapter: newHTTPAdapter("baostock", baseURL, "", 1 * time.Second, log)}
}

func (a *BaostockAdapter) Name() string { return "baostock" }

type baostockRow struct {
	Code     string `json:"code"`
	Name     string `json:"code_name"`
	IPODate  string `json:"ipoDate"`
	Industry string `json:"industry"`
}

func (a *BaostockAdapter) ListAllSymbols(ctx context.Context) ([]domain.StockBasicInfo, error) {
	var rows []baostockRow
	if err := a.getJSON(ctx, "/query_all_stock", &rows); err != nil {
		return nil, err
	}
	out := make([]domain.StockBasicInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, a.toBasicInfo(r))
	}
	return out, nil
}

func (a *BaostockAdapter) toBasicInfo(r baostockRow) domain.StockBasicInfo {
	code := padCode(r.Code)
	return domain.StockBasicInfo{
		UpdatedAt:  time.Now().UTC(),
		Code:       code,
		FullSymbol: code + exchangeSuffix(code),
		Name:       r.Name,
		Industry:   r.Industry,
		ListDate:   r.IPODate,
		Source:     a.name,
	}
}

func (a *BaostockAdapter) GetBasicInfo(ctx context.Context, code string) (*domain.StockBasicInfo, error) {
	var rows []baostockRow
	path := fmt.Sprintf("/query_stock_basic?code=%s", url.QueryEscape(padCode(code)))
	if err := a.getJSON(ctx, path, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, a.unsupported("basic info for unknown symbol")
	}
	info := a.toBasicInfo(rows[0])
	return &info, nil
}

func (a *BaostockAdapter) GetQuote(ctx context.Context, code string) (*domain.Quote, error) {
	return nil, a.unsupported("real-time quotes")
}

func (a *BaostockAdapter) GetQuoteBatch(ctx context.Context, codes []string) (map[string]domain.Quote, error) {
	return nil, a.unsupported("real-time quotes")
}

func (a *BaostockAdapter) GetHistoricalBars(ctx context.Context, code string, start, end time.Time, period domain.BarPeriod) ([]domain.DailyBar, error) {
	var rows []struct {
		Date   string `json:"date"`
		Open   string `json:"open"`
		High   string `json:"high"`
		Low    string `json:"low"`
		Close  string `json:"close"`
		Volume string `json:"volume"`
		Amount string `json:"amount"`
		PctChg string `json:"pctChg"`
	}
	path := fmt.Sprintf("/query_history_k_data?code=%s&start_date=%s&end_date=%s&frequency=%s",
		url.QueryEscape(padCode(code)), start.Format("2006-01-02"), end.Format("2006-01-02"), baostockFrequency(period))
	if err := a.getJSON(ctx, path, &rows); err != nil {
		return nil, err
	}
	bars := make([]domain.DailyBar, 0, len(rows))
	for _, r := range rows {
		bars = append(bars, domain.DailyBar{
			Code: padCode(code), Source: a.name, TradeDate: r.Date, Period: period,
			Open: parseFloatOrZero(r.Open), High: parseFloatOrZero(r.High),
			Low: parseFloatOrZero(r.Low), Close: parseFloatOrZero(r.Close),
			Volume: parseFloatOrZero(r.Volume), Amount: parseFloatOrZero(r.Amount),
			ChangePercent: pctToFraction(parseFloatOrZero(r.PctChg)),
		})
	}
	return bars, nil
}

func baostockFrequency(period domain.BarPeriod) string {
	switch period {
	case domain.PeriodWeekly:
		return "w"
	case domain.PeriodMonthly:
		return "m"
	default:
		return "d"
	}
}

func (a *BaostockAdapter) GetFinancials(ctx context.Context, code string) (*domain.FinancialRecord, error) {
	return nil, a.unsupported("financial statements")
}

func (a *BaostockAdapter) GetNews(ctx context.Context, code string, limit int) ([]domain.NewsItem, error) {
	return nil, a.unsupported("news")
}

func (a *BaostockAdapter) LatestTradeDate(ctx context.Context) (string, error) {
	var row struct {
		Date string `json:"trade_date"`
	}
	if err := a.getJSON(ctx, "/query_trade_dates/latest", &row); err != nil {
		return "", err
	}
	return row.Date, nil
}

func (a *BaostockAdapter) DailyBasicSnapshot(ctx context.Context, tradeDate string) (map[string]ValuationSnapshot, error) {
	return nil, a.unsupported("daily valuation snapshot")
}

func (a *BaostockAdapter) HealthProbe(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	var row struct {
		Date string `json:"trade_date"`
	}
	err := a.getJSON(ctx, "/query_trade_dates/latest", &row)
	return time.Since(start), err
}

func parseFloatOrZero(s string) float64 {
	var f float64
	_, err := fmt.Sscanf(s, "%f", &f)
	if err != nil {
		return 0
	}
	return f
}
