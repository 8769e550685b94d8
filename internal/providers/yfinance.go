package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/sermady/stockdata-core/internal/domain"
)

// YFinanceAdapter serves US and HK equities. It has full quote/bar/news/
// financial coverage but no CN-specific daily valuation snapshot.
type YFinanceAdapter struct {
	httpAdapter
}

func NewYFinanceAdapter(baseURL string, log zerolog.Logger) *YFinanceAdapter {
	return &YFinanceAdapter{httpAdapter: newHTTPAdapter("yfinance", baseURL, "", 300*time.Millisecond, log)}
}

func (a *YFinanceAdapter) Name() string { return "yfinance" }

type yfQuoteRow struct {
	Symbol            string  `json:"symbol"`
	ShortName         string  `json:"shortName"`
	Sector            string  `json:"sector"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	RegularMarketOpen  float64 `json:"regularMarketOpen"`
	RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
	RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
	RegularMarketChange float64 `json:"regularMarketChange"`
	RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
	RegularMarketVolume float64 `json:"regularMarketVolume"`
	TrailingPE        *float64 `json:"trailingPE"`
	PriceToBook       *float64 `json:"priceToBook"`
	MarketCap         *float64 `json:"marketCap"`
}

func (a *YFinanceAdapter) ListAllSymbols(ctx context.Context) ([]domain.StockBasicInfo, error) {
	return nil, a.unsupported("full symbol universe listing")
}

func (a *YFinanceAdapter) GetBasicInfo(ctx context.Context, code string) (*domain.StockBasicInfo, error) {
	var row yfQuoteRow
	path := fmt.Sprintf("/quote?symbol=%s", url.QueryEscape(code))
	if err := a.getJSON(ctx, path, &row); err != nil {
		return nil, err
	}
	return &domain.StockBasicInfo{
		UpdatedAt:  time.Now().UTC(),
		Code:       row.Symbol,
		FullSymbol: row.Symbol,
		Name:       row.ShortName,
		Industry:   row.Sector,
		Source:     a.name,
		FinancialSnapshot: &domain.FinancialSnapshot{
			PE: row.TrailingPE, PB: row.PriceToBook, TotalMV: row.MarketCap,
		},
	}, nil
}

func (a *YFinanceAdapter) toQuote(r yfQuoteRow) domain.Quote {
	return domain.Quote{
		UpdatedAt:     time.Now().UTC(),
		Code:          r.Symbol,
		Source:        a.name,
		TradeDate:     time.Now().UTC().Format("2006-01-02"),
		Price:         r.RegularMarketPrice,
		Open:          r.RegularMarketOpen,
		High:          r.RegularMarketDayHigh,
		Low:           r.RegularMarketDayLow,
		PreClose:      r.RegularMarketPreviousClose,
		Change:        r.RegularMarketChange,
		ChangePercent: pctToFraction(r.RegularMarketChangePercent),
		Volume:        r.RegularMarketVolume,
		Amount:        r.RegularMarketVolume * r.RegularMarketPrice,
	}
}

func (a *YFinanceAdapter) GetQuote(ctx context.Context, code string) (*domain.Quote, error) {
	var row yfQuoteRow
	path := fmt.Sprintf("/quote?symbol=%s", url.QueryEscape(code))
	if err := a.getJSON(ctx, path, &row); err != nil {
		return nil, err
	}
	q := a.toQuote(row)
	return &q, nil
}

func (a *YFinanceAdapter) GetQuoteBatch(ctx context.Context, codes []string) (map[string]domain.Quote, error) {
	var rows []yfQuoteRow
	qs := ""
	for i, c := range codes {
		if i > 0 {
			qs += ","
		}
		qs += url.QueryEscape(c)
	}
	path := fmt.Sprintf("/quote-batch?symbols=%s", qs)
	if err := a.getJSON(ctx, path, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]domain.Quote, len(rows))
	for _, r := range rows {
		out[r.Symbol] = a.toQuote(r)
	}
	return out, nil
}

func (a *YFinanceAdapter) GetHistoricalBars(ctx context.Context, code string, start, end time.Time, period domain.BarPeriod) ([]domain.DailyBar, error) {
	var rows []struct {
		Date   string  `json:"date"`
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume float64 `json:"volume"`
	}
	interval := "1d"
	switch period {
	case domain.PeriodWeekly:
		interval = "1wk"
	case domain.PeriodMonthly:
		interval = "1mo"
	}
	path := fmt.Sprintf("/history?symbol=%s&start=%s&end=%s&interval=%s",
		url.QueryEscape(code), start.Format("2006-01-02"), end.Format("2006-01-02"), interval)
	if err := a.getJSON(ctx, path, &rows); err != nil {
		return nil, err
	}
	bars := make([]domain.DailyBar, 0, len(rows))
	for i, r := range rows {
		changePct := 0.0
		if i > 0 && rows[i-1].Close != 0 {
			changePct = (r.Close - rows[i-1].Close) / rows[i-1].Close
		}
		bars = append(bars, domain.DailyBar{
			Code: code, Source: a.name, TradeDate: r.Date, Period: period,
			Open: r.Open, High: r.High, Low: r.Low, Close: r.Close,
			Volume: r.Volume, Amount: r.Volume * r.Close, ChangePercent: changePct,
		})
	}
	return bars, nil
}

func (a *YFinanceAdapter) GetFinancials(ctx context.Context, code string) (*domain.FinancialRecord, error) {
	var row struct {
		FiscalPeriod string                 `json:"fiscalPeriod"`
		Revenue      *float64               `json:"totalRevenue"`
		NetIncome    *float64               `json:"netIncome"`
		ROE          *float64               `json:"returnOnEquity"`
		DebtToAssets *float64               `json:"debtToAssets"`
		Raw          map[string]interface{} `json:"raw"`
	}
	path := fmt.Sprintf("/financials?symbol=%s", url.QueryEscape(code))
	if err := a.getJSON(ctx, path, &row); err != nil {
		return nil, err
	}
	return &domain.FinancialRecord{
		Symbol: code, ReportPeriod: row.FiscalPeriod, Source: a.name, ReportType: domain.ReportQuarterly,
		Revenue: row.Revenue, NetIncome: row.NetIncome, ROE: row.ROE, DebtToAssets: row.DebtToAssets,
		Raw: row.Raw,
	}, nil
}

func (a *YFinanceAdapter) GetNews(ctx context.Context, code string, limit int) ([]domain.NewsItem, error) {
	var rows []struct {
		Title       string    `json:"title"`
		Publisher   string    `json:"publisher"`
		Link        string    `json:"link"`
		ProviderPublishTime time.Time `json:"providerPublishTime"`
	}
	path := fmt.Sprintf("/news?symbol=%s&limit=%d", url.QueryEscape(code), limit)
	if err := a.getJSON(ctx, path, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.NewsItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.NewsItem{Symbol: code, Title: r.Title, Source: r.Publisher, URL: r.Link, PublishedAt: r.ProviderPublishTime})
	}
	return out, nil
}

func (a *YFinanceAdapter) LatestTradeDate(ctx context.Context) (string, error) {
	return time.Now().UTC().Format("2006-01-02"), nil
}

func (a *YFinanceAdapter) DailyBasicSnapshot(ctx context.Context, tradeDate string) (map[string]ValuationSnapshot, error) {
	return nil, a.unsupported("daily valuation snapshot")
}

func (a *YFinanceAdapter) HealthProbe(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	var row yfQuoteRow
	err := a.getJSON(ctx, "/quote?symbol=AAPL", &row)
	return time.Since(start), err
}
