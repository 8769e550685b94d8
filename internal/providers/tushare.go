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

// TushareAdapter is the CN primary provider, offering the full capability
// surface (basic info, quotes, bars, financials, news, daily valuation
// snapshot).
type TushareAdapter struct {
	httpAdapter
}

func NewTushareAdapter(baseURL, apiKey string, log zerolog.Logger) *TushareAdapter {
	return &TushareAdapter{httpAdapter: newHTTPAdapter("tushare", baseURL, apiKey, 200*time.Millisecond, log)}
}

func (a *TushareAdapter) Name() string { return "tushare" }

type tushareStockRow struct {
	Code     string  `json:"ts_code"`
	Name     string  `json:"name"`
	Industry string  `json:"industry"`
	Area     string  `json:"area"`
	Market   string  `json:"market"`
	ListDate string  `json:"list_date"`
	PE       *float64 `json:"pe"`
	PB       *float64 `json:"pb"`
	TotalMV  *float64 `json:"total_mv"`
}

func (a *TushareAdapter) ListAllSymbols(ctx context.Context) ([]domain.StockBasicInfo, error) {
	var rows []tushareStockRow
	err := withRetryNoop(ctx, func(ctx context.Context) error {
		return a.getJSON(ctx, "/stock_basic", &rows)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.StockBasicInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, a.toBasicInfo(r))
	}
	return out, nil
}

func (a *TushareAdapter) toBasicInfo(r tushareStockRow) domain.StockBasicInfo {
	code := padCode(r.Code)
	info := domain.StockBasicInfo{
		UpdatedAt:  time.Now().UTC(),
		Code:       code,
		FullSymbol: code + exchangeSuffix(code),
		Name:       r.Name,
		Industry:   r.Industry,
		Area:       r.Area,
		Market:     r.Market,
		ListDate:   r.ListDate,
		Source:     a.name,
	}
	if r.PE != nil || r.PB != nil || r.TotalMV != nil {
		snap := &domain.FinancialSnapshot{PE: r.PE, PB: r.PB}
		if r.TotalMV != nil {
			v := *r.TotalMV / 1e4 // tushare total_mv is in 10k-yuan; TotalMV is 100M-yuan
			snap.TotalMV = &v
		}
		info.FinancialSnapshot = snap
	}
	return info
}

func (a *TushareAdapter) GetBasicInfo(ctx context.Context, code string) (*domain.StockBasicInfo, error) {
	var rows []tushareStockRow
	path := fmt.Sprintf("/stock_basic?ts_code=%s", url.QueryEscape(padCode(code)))
	if err := a.getJSON(ctx, path, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.New(apperr.NotFound, fmt.Sprintf("tushare: no basic info for %s", code))
	}
	info := a.toBasicInfo(rows[0])
	return &info, nil
}

type tushareQuoteRow struct {
	TradeDate string  `json:"trade_date"`
	Price     float64 `json:"close"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	PreClose  float64 `json:"pre_close"`
	PctChg    float64 `json:"pct_chg"`
	Vol       float64 `json:"vol"`
	Amount    float64 `json:"amount"`
}

func (a *TushareAdapter) toQuote(code string, r tushareQuoteRow) domain.Quote {
	return domain.Quote{
		UpdatedAt:     time.Now().UTC(),
		Code:          padCode(code),
		Source:        a.name,
		TradeDate:     r.TradeDate,
		Price:         r.Price,
		Open:          r.Open,
		High:          r.High,
		Low:           r.Low,
		PreClose:      r.PreClose,
		Change:        r.Price - r.PreClose,
		ChangePercent: pctToFraction(r.PctChg),
		Volume:        r.Vol * 100, // tushare reports vol in lots of 100 shares
		Amount:        r.Amount * 1000,
	}
}

func (a *TushareAdapter) GetQuote(ctx context.Context, code string) (*domain.Quote, error) {
	var rows []tushareQuoteRow
	path := fmt.Sprintf("/daily?ts_code=%s&limit=1", url.QueryEscape(padCode(code)))
	if err := a.getJSON(ctx, path, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.New(apperr.NotFound, fmt.Sprintf("tushare: no quote for %s", code))
	}
	q := a.toQuote(code, rows[0])
	return &q, nil
}

func (a *TushareAdapter) GetQuoteBatch(ctx context.Context, codes []string) (map[string]domain.Quote, error) {
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

func (a *TushareAdapter) GetHistoricalBars(ctx context.Context, code string, start, end time.Time, period domain.BarPeriod) ([]domain.DailyBar, error) {
	endpoint := "/daily"
	switch period {
	case domain.PeriodWeekly:
		endpoint = "/weekly"
	case domain.PeriodMonthly:
		endpoint = "/monthly"
	}
	var rows []tushareQuoteRow
	path := fmt.Sprintf("%s?ts_code=%s&start_date=%s&end_date=%s",
		endpoint, url.QueryEscape(padCode(code)), start.Format("20060102"), end.Format("20060102"))
	if err := a.getJSON(ctx, path, &rows); err != nil {
		return nil, err
	}
	bars := make([]domain.DailyBar, 0, len(rows))
	for _, r := range rows {
		bars = append(bars, domain.DailyBar{
			Code:          padCode(code),
			Source:        a.name,
			TradeDate:     r.TradeDate,
			Period:        period,
			Open:          r.Open,
			High:          r.High,
			Low:           r.Low,
			Close:         r.Price,
			Volume:        r.Vol * 100,
			Amount:        r.Amount * 1000,
			ChangePercent: pctToFraction(r.PctChg),
		})
	}
	return bars, nil
}

type tushareFinancialRow struct {
	EndDate      string                 `json:"end_date"`
	Revenue      *float64               `json:"revenue"`
	NetIncome    *float64               `json:"n_income"`
	ROE          *float64               `json:"roe"`
	DebtToAssets *float64               `json:"debt_to_assets"`
	Raw          map[string]interface{} `json:"-"`
}

func (a *TushareAdapter) GetFinancials(ctx context.Context, code string) (*domain.FinancialRecord, error) {
	var rows []tushareFinancialRow
	path := fmt.Sprintf("/fina_indicator?ts_code=%s&limit=1", url.QueryEscape(padCode(code)))
	if err := a.getJSON(ctx, path, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.New(apperr.NotFound, fmt.Sprintf("tushare: no financials for %s", code))
	}
	r := rows[0]
	return &domain.FinancialRecord{
		Symbol:       padCode(code),
		ReportPeriod: r.EndDate,
		Source:       a.name,
		ReportType:   domain.ReportQuarterly,
		Revenue:      r.Revenue,
		NetIncome:    r.NetIncome,
		ROE:          r.ROE,
		DebtToAssets: r.DebtToAssets,
	}, nil
}

func (a *TushareAdapter) GetNews(ctx context.Context, code string, limit int) ([]domain.NewsItem, error) {
	type newsRow struct {
		Title     string    `json:"title"`
		URL       string    `json:"url"`
		Datetime  time.Time `json:"datetime"`
	}
	var rows []newsRow
	path := fmt.Sprintf("/news?ts_code=%s&limit=%d", url.QueryEscape(padCode(code)), limit)
	if err := a.getJSON(ctx, path, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.NewsItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.NewsItem{Symbol: padCode(code), Title: r.Title, Source: a.name, URL: r.URL, PublishedAt: r.Datetime})
	}
	return out, nil
}

func (a *TushareAdapter) LatestTradeDate(ctx context.Context) (string, error) {
	var row struct {
		TradeDate string `json:"cal_date"`
	}
	if err := a.getJSON(ctx, "/trade_cal/latest", &row); err != nil {
		return "", err
	}
	return row.TradeDate, nil
}

func (a *TushareAdapter) DailyBasicSnapshot(ctx context.Context, tradeDate string) (map[string]ValuationSnapshot, error) {
	var rows []struct {
		Code    string   `json:"ts_code"`
		PE      *float64 `json:"pe"`
		PB      *float64 `json:"pb"`
		TotalMV *float64 `json:"total_mv"`
	}
	path := fmt.Sprintf("/daily_basic?trade_date=%s", url.QueryEscape(tradeDate))
	if err := a.getJSON(ctx, path, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]ValuationSnapshot, len(rows))
	for _, r := range rows {
		snap := ValuationSnapshot{PE: r.PE, PB: r.PB}
		if r.TotalMV != nil {
			v := *r.TotalMV / 1e4 // tushare total_mv is in 10k-yuan; TotalMV is 100M-yuan
			snap.TotalMV = &v
		}
		out[padCode(r.Code)] = snap
	}
	return out, nil
}

func (a *TushareAdapter) HealthProbe(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	var row struct {
		CalDate string `json:"cal_date"`
	}
	err := a.getJSON(ctx, "/trade_cal/latest", &row)
	return time.Since(start), err
}

// withRetryNoop adapts withRetry's generic signature to the common case of
// a function that returns no value, only an error.
func withRetryNoop(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := withRetry(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
