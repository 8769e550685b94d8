package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/domain"
)

// UpsertBasicInfo writes one StockBasicInfo keyed by (code, source). An
// existing record for the same key is fully replaced, matching the
// round-trip idempotence property of spec.md §8.
func (s *Store) UpsertBasicInfo(ctx context.Context, info domain.StockBasicInfo) error {
	var snapshot []byte
	if info.FinancialSnapshot != nil {
		var err error
		snapshot, err = json.Marshal(info.FinancialSnapshot)
		if err != nil {
			return apperr.Wrap(apperr.Internal, "marshal financial snapshot", err)
		}
	}

	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO stock_basic_info
			(code, source, full_symbol, name, industry, area, market, list_date, financial_snapshot, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code, source) DO UPDATE SET
			full_symbol = excluded.full_symbol,
			name = excluded.name,
			industry = excluded.industry,
			area = excluded.area,
			market = excluded.market,
			list_date = excluded.list_date,
			financial_snapshot = excluded.financial_snapshot,
			updated_at = excluded.updated_at
	`, info.Code, info.Source, info.FullSymbol, info.Name, info.Industry, info.Area, info.Market, info.ListDate, snapshot, info.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "upsert basic info", err)
	}
	return nil
}

// GetBasicInfo returns the (code, source) record, or apperr.NotFound.
func (s *Store) GetBasicInfo(ctx context.Context, code, source string) (*domain.StockBasicInfo, error) {
	row := s.db.Conn().QueryRowContext(ctx, `
		SELECT code, source, full_symbol, name, industry, area, market, list_date, financial_snapshot, updated_at
		FROM stock_basic_info WHERE code = ? AND source = ?
	`, code, source)
	return scanBasicInfo(row)
}

// ListBasicInfoByCode returns every provider's record for code, ordered
// by source for determinism; the caller (typically the router-aware read
// path) picks which source to trust.
func (s *Store) ListBasicInfoByCode(ctx context.Context, code string) ([]domain.StockBasicInfo, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT code, source, full_symbol, name, industry, area, market, list_date, financial_snapshot, updated_at
		FROM stock_basic_info WHERE code = ? ORDER BY source
	`, code)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "list basic info", err)
	}
	defer rows.Close()

	var out []domain.StockBasicInfo
	for rows.Next() {
		info, err := scanBasicInfo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *info)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBasicInfo(row rowScanner) (*domain.StockBasicInfo, error) {
	var info domain.StockBasicInfo
	var snapshot sql.NullString
	var updatedAt string
	if err := row.Scan(&info.Code, &info.Source, &info.FullSymbol, &info.Name, &info.Industry,
		&info.Area, &info.Market, &info.ListDate, &snapshot, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "basic info not found")
		}
		return nil, apperr.Wrap(apperr.StoreUnavailable, "scan basic info", err)
	}
	info.UpdatedAt = parseTime(updatedAt)
	if snapshot.Valid && snapshot.String != "" {
		var fs domain.FinancialSnapshot
		if err := json.Unmarshal([]byte(snapshot.String), &fs); err == nil {
			info.FinancialSnapshot = &fs
		}
	}
	return &info, nil
}

// UpsertQuote writes the latest tick for code, honoring the monotonic
// trade-date invariant of spec.md §3/§8: it is a no-op (apperr.StoreConflict)
// if a Quote already exists for code with a trade_date greater than or
// equal to incoming.TradeDate. Returns true if the write was applied.
func (s *Store) UpsertQuote(ctx context.Context, q domain.Quote) (bool, error) {
	var existing string
	err := s.db.Conn().QueryRowContext(ctx, `SELECT trade_date FROM market_quotes WHERE code = ?`, q.Code).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// store empty for this code: always apply.
	case err != nil:
		return false, apperr.Wrap(apperr.StoreUnavailable, "read existing quote", err)
	default:
		if q.TradeDate <= existing {
			return false, apperr.New(apperr.StoreConflict, fmt.Sprintf("incoming trade_date %s not newer than stored %s", q.TradeDate, existing))
		}
	}

	_, err = s.db.Conn().ExecContext(ctx, `
		INSERT INTO market_quotes
			(code, source, trade_date, price, open, high, low, pre_close, change, change_percent, volume, amount, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			source = excluded.source, trade_date = excluded.trade_date, price = excluded.price,
			open = excluded.open, high = excluded.high, low = excluded.low, pre_close = excluded.pre_close,
			change = excluded.change, change_percent = excluded.change_percent, volume = excluded.volume,
			amount = excluded.amount, updated_at = excluded.updated_at
	`, q.Code, q.Source, q.TradeDate, q.Price, q.Open, q.High, q.Low, q.PreClose, q.Change,
		q.ChangePercent, q.Volume, q.Amount, q.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return false, apperr.Wrap(apperr.StoreUnavailable, "upsert quote", err)
	}
	return true, nil
}

// GetQuote returns the latest stored Quote for code, or apperr.NotFound.
func (s *Store) GetQuote(ctx context.Context, code string) (*domain.Quote, error) {
	var q domain.Quote
	var updatedAt string
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT code, source, trade_date, price, open, high, low, pre_close, change, change_percent, volume, amount, updated_at
		FROM market_quotes WHERE code = ?
	`, code).Scan(&q.Code, &q.Source, &q.TradeDate, &q.Price, &q.Open, &q.High, &q.Low, &q.PreClose,
		&q.Change, &q.ChangePercent, &q.Volume, &q.Amount, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "quote not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "get quote", err)
	}
	q.UpdatedAt = parseTime(updatedAt)
	return &q, nil
}

// UpsertDailyBar writes one OHLCV candle keyed by (code, source,
// trade_date, period); at most one document ever exists per key
// (spec.md §8 invariant 5), so repeated syncs over the same window are
// idempotent.
func (s *Store) UpsertDailyBar(ctx context.Context, bar domain.DailyBar) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO stock_daily_quotes
			(code, source, trade_date, period, open, high, low, close, volume, amount, turnover, change_percent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code, source, trade_date, period) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low, close = excluded.close,
			volume = excluded.volume, amount = excluded.amount, turnover = excluded.turnover,
			change_percent = excluded.change_percent
	`, bar.Code, bar.Source, bar.TradeDate, string(bar.Period), bar.Open, bar.High, bar.Low,
		bar.Close, bar.Volume, bar.Amount, bar.Turnover, bar.ChangePercent)
	if err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "upsert daily bar", err)
	}
	return nil
}

// MaxStoredTradeDate returns the newest trade_date already persisted for
// (code, source, period), or "" if none. Used by incremental historical
// sync (§4.6) to decide which rows are new.
func (s *Store) MaxStoredTradeDate(ctx context.Context, code, source string, period domain.BarPeriod) (string, error) {
	var max sql.NullString
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT MAX(trade_date) FROM stock_daily_quotes WHERE code = ? AND source = ? AND period = ?
	`, code, source, string(period)).Scan(&max)
	if err != nil {
		return "", apperr.Wrap(apperr.StoreUnavailable, "max stored trade date", err)
	}
	return max.String, nil
}

// ListDailyBars returns bars for code/source/period within [start, end]
// inclusive, ordered by trade_date ascending.
func (s *Store) ListDailyBars(ctx context.Context, code, source string, period domain.BarPeriod, start, end string) ([]domain.DailyBar, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT code, source, trade_date, period, open, high, low, close, volume, amount, turnover, change_percent
		FROM stock_daily_quotes
		WHERE code = ? AND source = ? AND period = ? AND trade_date BETWEEN ? AND ?
		ORDER BY trade_date ASC
	`, code, source, string(period), start, end)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "list daily bars", err)
	}
	defer rows.Close()

	var out []domain.DailyBar
	for rows.Next() {
		var b domain.DailyBar
		var period string
		if err := rows.Scan(&b.Code, &b.Source, &b.TradeDate, &period, &b.Open, &b.High, &b.Low,
			&b.Close, &b.Volume, &b.Amount, &b.Turnover, &b.ChangePercent); err != nil {
			return nil, apperr.Wrap(apperr.StoreUnavailable, "scan daily bar", err)
		}
		b.Period = domain.BarPeriod(period)
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpsertFinancial writes one fiscal-period statement keyed by (symbol,
// report_period, source). History is preserved: different report periods
// never collide.
func (s *Store) UpsertFinancial(ctx context.Context, rec domain.FinancialRecord) error {
	var raw []byte
	if rec.Raw != nil {
		var err error
		raw, err = json.Marshal(rec.Raw)
		if err != nil {
			return apperr.Wrap(apperr.Internal, "marshal financial raw", err)
		}
	}
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO stock_financial_data
			(symbol, report_period, data_source, report_type, revenue, net_income, roe, debt_to_assets, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, report_period, data_source) DO UPDATE SET
			report_type = excluded.report_type, revenue = excluded.revenue, net_income = excluded.net_income,
			roe = excluded.roe, debt_to_assets = excluded.debt_to_assets, raw = excluded.raw
	`, rec.Symbol, rec.ReportPeriod, rec.Source, string(rec.ReportType), rec.Revenue, rec.NetIncome, rec.ROE, rec.DebtToAssets, raw)
	if err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "upsert financial", err)
	}
	return nil
}

// ListFinancials returns every persisted report period for symbol/source,
// newest first. An empty source matches every source.
func (s *Store) ListFinancials(ctx context.Context, symbol, source string) ([]domain.FinancialRecord, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT symbol, report_period, data_source, report_type, revenue, net_income, roe, debt_to_assets, raw
		FROM stock_financial_data WHERE symbol = ? AND (? = '' OR data_source = ?) ORDER BY report_period DESC
	`, symbol, source, source)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "list financials", err)
	}
	defer rows.Close()

	var out []domain.FinancialRecord
	for rows.Next() {
		var rec domain.FinancialRecord
		var reportType string
		var raw sql.NullString
		if err := rows.Scan(&rec.Symbol, &rec.ReportPeriod, &rec.Source, &reportType, &rec.Revenue,
			&rec.NetIncome, &rec.ROE, &rec.DebtToAssets, &raw); err != nil {
			return nil, apperr.Wrap(apperr.StoreUnavailable, "scan financial", err)
		}
		rec.ReportType = domain.ReportType(reportType)
		if raw.Valid && raw.String != "" {
			_ = json.Unmarshal([]byte(raw.String), &rec.Raw)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListBasicInfo returns one row per distinct code (the lowest-priority
// source is irrelevant here; callers needing a specific source's record
// use ListBasicInfoByCode), paginated by limit/offset, ordered by code.
// Used by GET /stock-data/list.
func (s *Store) ListBasicInfo(ctx context.Context, limit, offset int) ([]domain.StockBasicInfo, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT code, source, full_symbol, name, industry, area, market, list_date, financial_snapshot, updated_at
		FROM stock_basic_info
		GROUP BY code
		ORDER BY code
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "list basic info page", err)
	}
	defer rows.Close()

	var out []domain.StockBasicInfo
	for rows.Next() {
		info, err := scanBasicInfo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *info)
	}
	return out, rows.Err()
}

// SearchBasicInfo returns records whose code or name contains query
// (case-insensitive), one row per distinct code, for GET /stock-data/search.
func (s *Store) SearchBasicInfo(ctx context.Context, query string, limit int) ([]domain.StockBasicInfo, error) {
	like := "%" + query + "%"
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT code, source, full_symbol, name, industry, area, market, list_date, financial_snapshot, updated_at
		FROM stock_basic_info
		WHERE code LIKE ? OR name LIKE ?
		GROUP BY code
		ORDER BY code
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "search basic info", err)
	}
	defer rows.Close()

	var out []domain.StockBasicInfo
	for rows.Next() {
		info, err := scanBasicInfo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *info)
	}
	return out, rows.Err()
}

// ListMarkets returns the distinct non-empty market values currently
// stored, for GET /stock-data/markets.
func (s *Store) ListMarkets(ctx context.Context) ([]string, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT DISTINCT market FROM stock_basic_info WHERE market != '' ORDER BY market
	`)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "list markets", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, apperr.Wrap(apperr.StoreUnavailable, "scan market", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const timeLayout = time.RFC3339Nano

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
