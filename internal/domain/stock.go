package domain

import "time"

// FinancialSnapshot is the optional valuation snapshot embedded on a
// StockBasicInfo record. Fields mirror the daily_basic valuation metrics
// a CN provider publishes alongside company profile data.
type FinancialSnapshot struct {
	PE           *float64 `json:"pe,omitempty"`
	PB           *float64 `json:"pb,omitempty"`
	PS           *float64 `json:"ps,omitempty"`
	PETTM        *float64 `json:"pe_ttm,omitempty"`
	PBMRQ        *float64 `json:"pb_mrq,omitempty"`
	TotalMV      *float64 `json:"total_mv,omitempty"` // 100M-yuan units
	CircMV       *float64 `json:"circ_mv,omitempty"`
	ROE          *float64 `json:"roe,omitempty"`
	TurnoverRate *float64 `json:"turnover_rate,omitempty"`
	VolumeRatio  *float64 `json:"volume_ratio,omitempty"`
	TotalShare   *float64 `json:"total_share,omitempty"`
	FloatShare   *float64 `json:"float_share,omitempty"`
}

// StockBasicInfo is one company-profile record from one provider. The
// natural key is (Code, Source); a symbol may have one record per
// provider and readers resolve which to trust via the source router.
type StockBasicInfo struct {
	UpdatedAt         time.Time          `json:"updated_at"`
	Code              string             `json:"code"`        // 6-char zero-padded CN symbol
	FullSymbol        string             `json:"full_symbol"` // exchange-suffixed: .SS/.SZ/.BJ/.HK/""
	Name              string             `json:"name"`
	Industry          string             `json:"industry"`
	Area              string             `json:"area"`
	Market             string            `json:"market"`
	ListDate          string             `json:"list_date"`
	Source            string             `json:"source"`
	FinancialSnapshot *FinancialSnapshot `json:"financial_snapshot,omitempty"`
}

// Quote is the latest real-time tick for one symbol, irrespective of
// source. There is exactly one stored Quote per Code; writers must never
// regress TradeDate (see store.ConditionalUpsertQuote).
type Quote struct {
	UpdatedAt     time.Time `json:"updated_at"`
	Code          string    `json:"code"`
	Source        string    `json:"source"`
	TradeDate     string    `json:"trade_date"` // exchange-local date, YYYY-MM-DD
	Price         float64   `json:"price"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	PreClose      float64   `json:"pre_close"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        float64   `json:"volume"` // shares
	Amount        float64   `json:"amount"` // base currency units
}

// BarPeriod is the sampling granularity of a DailyBar.
type BarPeriod string

const (
	PeriodDaily   BarPeriod = "daily"
	PeriodWeekly  BarPeriod = "weekly"
	PeriodMonthly BarPeriod = "monthly"
)

// DailyBar is one OHLCV candle. The natural key is
// (Code, Source, TradeDate, Period); at most one document exists per key.
type DailyBar struct {
	Code          string    `json:"code"`
	Source        string    `json:"source"`
	TradeDate     string    `json:"trade_date"` // exchange-local, timezone-fixed
	Period        BarPeriod `json:"period"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	Volume        float64   `json:"volume"`
	Amount        float64   `json:"amount"`
	Turnover      float64   `json:"turnover"`
	ChangePercent float64   `json:"change_percent"`
}

// ReportType distinguishes quarterly from annual financial statements.
type ReportType string

const (
	ReportQuarterly ReportType = "quarterly"
	ReportAnnual    ReportType = "annual"
)

// FinancialRecord is one fiscal-period statement for one symbol from one
// source. The natural key is (Symbol, ReportPeriod, Source); history is
// never overwritten, one document exists per fiscal period.
type FinancialRecord struct {
	Symbol       string                 `json:"symbol"`
	ReportPeriod string                 `json:"report_period"` // YYYYMMDD
	Source       string                 `json:"source"`
	ReportType   ReportType             `json:"report_type"`
	Revenue      *float64               `json:"revenue,omitempty"`
	NetIncome    *float64               `json:"net_income,omitempty"`
	ROE          *float64               `json:"roe,omitempty"`
	DebtToAssets *float64               `json:"debt_to_assets,omitempty"`
	Raw          map[string]interface{} `json:"raw,omitempty"` // unflattened nested statements
}

// NewsItem is a single headline/article surfaced by GetNews. It has no
// dedicated store collection; callers consume it directly.
type NewsItem struct {
	Symbol      string    `json:"symbol,omitempty"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}
