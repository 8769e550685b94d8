package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/domain"
)

// AkshareAdapter is the CN secondary provider (cross-check source for C4).
// It does not expose a news feed or per-period financial statements, only
// profile, quote, bar and valuation data.
type AkshareAdapter struct {
	httpAdapter
}

func NewAkshareAdapter(baseURL string, log zerolog.Logger) *AkshareAdapter {
	return &AkshareAdapter{httpAdapter: newHTTPAdapter("akshare", baseURL, "", 500*time.Millisecond, log)}
}

func (a *AkshareAdapter) Name() string { return "akshare" }

type akshareRow struct {
	Code          string  `json:"代码"`
	Name          string  `json:"名称"`
	Industry      string  `json:"所处行业"`
	Price         float64 `json:"最新价"`
	PctChange     float64 `json:"涨跌幅"`
	Change        float64 `json:"涨跌额"`
	Volume        float64 `json:"成交量"`
	Amount        float64 `json:"成交额"`
	High          float64 `json:"最高"`
	Low           float64 `json:"最低"`
	Open          float64 `json:"今开"`
	PreClose      float64 `json:"昨收"`
	PE            *float64 `json:"市盈率"`
	PB            *float64 `json:"市净率"`
	TotalMV       *float64 `json:"总市值"`
	TurnoverRate  *float64 `json:"换手率"`
}

func (a *AkshareAdapter) ListAllSymbols(ctx context.Context) ([]domain.StockBasicInfo, error) {
	var rows []akshareRow
	if err := a.getJSON(ctx, "/stock_zh_a_spot", &rows); err != nil {
		return nil, err
	}
	out := make([]domain.StockBasicInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, a.toBasicInfo(r))
	}
	return out, nil
}

func (a *AkshareAdapter) toBasicInfo(r akshareRow) domain.StockBasicInfo {
	code := padCode(r.Code)
	snap := &domain.FinancialSnapshot{PE: r.PE, PB: r.PB, TurnoverRate: r.TurnoverRate}
	if r.TotalMV != nil {
		snap.TotalMV = r.TotalMV
	}
	return domain.StockBasicInfo{
		UpdatedAt:         time.Now().UTC(),
		Code:              code,
		FullSymbol:        code + exchangeSuffix(code),
		Name:              r.Name,
		Industry:          r.Industry,
		Source:            a.name,
		FinancialSnapshot: snap,
	}
}

func (a *AkshareAdapter) GetBasicInfo(ctx context.Context, code string) (*domain.StockBasicInfo, error) {
	var row akshareRow
	path := fmt.Sprintf("/stock_individual_info?symbol=%s", url.QueryEscape(padCode(code)))
	if err := a.getJSON(ctx, path, &row); err != nil {
		return nil, err
	}
	info := a.toBasicInfo(row)
	return &info, nil
}

func (a *AkshareAdapter) toQuote(code string, r akshareRow) domain.Quote {
	return domain.Quote{
		UpdatedAt:     time.Now().UTC(),
		Code:          padCode(code),
		Source:        a.name,
		TradeDate:     time.Now().UTC().Format("2006-01-02"),
		Price:         r.Price,
		Open:          r.Open,
		High:          r.High,
		Low:           r.Low,
		PreClose:      r.PreClose,
		Change:        r.Change,
		ChangePercent: pctToFraction(r.PctChange),
		Volume:        r.Volume,
		Amount:        r.Amount,
	}
}

func (a *AkshareAdapter) GetQuote(ctx context.Context, code string) (*domain.Quote, error) {
	var row akshareRow
	path := fmt.Sprintf("/stock_zh_a_spot_em?symbol=%s", url.QueryEscape(padCode(code)))
	if err := a.getJSON(ctx, path, &row); err != nil {
		return nil, err
	}
	q := a.toQuote(code, row)
	return &q, nil
}

func (a *AkshareAdapter) GetQuoteBatch(ctx context.Context, codes []string) (map[string]domain.Quote, error) {
	out := make(map[string]domain.Quote, len(codes))
	for _, c := range codes {
		q, err := a.GetQuote(ctx, c)
		if err != nil {
			if apperr.Is(err, apperr.NotFound) {
				continue
			}
			return nil, err
		}
		out[q.Code] = *q
	}
	return out, nil
}

func (a *AkshareAdapter) GetHistoricalBars(ctx context.Context, code string, start, end time.Time, period domain.BarPeriod) ([]domain.DailyBar, error) {
	var rows []struct {
		Date   string  `json:"日期"`
		Open   float64 `json:"开盘"`
		Close  float64 `json:"收盘"`
		High   float64 `json:"最高"`
		Low    float64 `json:"最低"`
		Volume float64 `json:"成交量"`
		Amount float64 `json:"成交额"`
		PctChg float64 `json:"涨跌幅"`
	}
	path := fmt.Sprintf("/stock_zh_a_hist?symbol=%s&start_date=%s&end_date=%s&period=%s",
		url.QueryEscape(padCode(code)), start.Format("20060102"), end.Format("20060102"), period)
	if err := a.getJSON(ctx, path, &rows); err != nil {
		return nil, err
	}
	bars := make([]domain.DailyBar, 0, len(rows))
	for _, r := range rows {
		bars = append(bars, domain.DailyBar{
			Code: padCode(code), Source: a.name, TradeDate: r.Date, Period: period,
			Open: r.Open, High: r.High, Low: r.Low, Close: r.Close,
			Volume: r.Volume, Amount: r.Amount, ChangePercent: pctToFraction(r.PctChg),
		})
	}
	return bars, nil
}

func (a *AkshareAdapter) GetFinancials(ctx context.Context, code string) (*domain.FinancialRecord, error) {
	return nil, a.unsupported("financial statements")
}

func (a *AkshareAdapter) GetNews(ctx context.Context, code string, limit int) ([]domain.NewsItem, error) {
	return nil, a.unsupported("news")
}

func (a *AkshareAdapter) LatestTradeDate(ctx context.Context) (string, error) {
	var row struct {
		Date string `json:"trade_date"`
	}
	if err := a.getJSON(ctx, "/tool_trade_date_hist/latest", &row); err != nil {
		return "", err
	}
	return row.Date, nil
}

func (a *AkshareAdapter) DailyBasicSnapshot(ctx context.Context, tradeDate string) (map[string]ValuationSnapshot, error) {
	var rows []akshareRow
	if err := a.getJSON(ctx, "/stock_zh_a_spot", &rows); err != nil {
		return nil, err
	}
	out := make(map[string]ValuationSnapshot, len(rows))
	for _, r := range rows {
		out[padCode(r.Code)] = ValuationSnapshot{PE: r.PE, PB: r.PB, TotalMV: r.TotalMV}
	}
	return out, nil
}

func (a *AkshareAdapter) HealthProbe(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	var row struct {
		Date string `json:"trade_date"`
	}
	err := a.getJSON(ctx, "/tool_trade_date_hist/latest", &row)
	return time.Since(start), err
}
