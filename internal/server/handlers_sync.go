package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/domain"
	"github.com/sermady/stockdata-core/internal/sync"
)

type stockSyncRequest struct {
	Symbol    string          `json:"symbol,omitempty"`
	Symbols   []string        `json:"symbols,omitempty"`
	DataClass domain.DataClass `json:"data_class"`
	Force     bool            `json:"force,omitempty"`
}

// handleStockSyncSingle implements POST /stock-sync/single: an ad hoc,
// operator- or user-triggered sync of one data class scoped to one
// symbol, reusing the same C6 service methods the scheduler drives.
func (s *Server) handleStockSyncSingle(w http.ResponseWriter, r *http.Request) {
	var req stockSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		writeError(w, apperr.New(apperr.BadRequest, "symbol is required"))
		return
	}
	s.runSyncFor(w, r, req.DataClass, []string{req.Symbol}, req.Force)
}

// handleStockSyncBatch implements POST /stock-sync/batch.
func (s *Server) handleStockSyncBatch(w http.ResponseWriter, r *http.Request) {
	var req stockSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Symbols) == 0 {
		writeError(w, apperr.New(apperr.BadRequest, "symbols is required"))
		return
	}
	s.runSyncFor(w, r, req.DataClass, req.Symbols, req.Force)
}

func (s *Server) runSyncFor(w http.ResponseWriter, r *http.Request, dataClass domain.DataClass, symbols []string, force bool) {
	ctx := r.Context()
	var status *domain.SyncStatus
	var err error

	switch dataClass {
	case domain.DataClassQuotes:
		status, err = s.container.Sync.SyncQuotes(ctx, symbols, force)
	case domain.DataClassHistorical:
		status, err = s.container.Sync.SyncHistorical(ctx, sync.HistoricalSyncRequest{
			Symbols:     symbols,
			Incremental: true,
		}, force)
	case domain.DataClassFinancial:
		status, err = s.container.Sync.SyncFinancial(ctx, symbols, force)
	case domain.DataClassBasicInfo:
		status, err = s.container.Sync.SyncBasicInfo(ctx, force)
	default:
		writeError(w, apperr.New(apperr.BadRequest, "unknown data_class "+string(dataClass)))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleStockSyncStatus implements GET /stock-sync/status/{symbol}: a
// synthesized per-symbol view, since sync_status is keyed by (job,
// data_type) rather than by symbol - this assembles what is actually
// known about symbol from the store instead.
func (s *Server) handleStockSyncStatus(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	ctx := r.Context()

	resp := map[string]interface{}{"symbol": symbol}

	if q, err := s.container.Store.GetQuote(ctx, symbol); err == nil {
		resp["latest_quote_trade_date"] = q.TradeDate
		resp["latest_quote_source"] = q.Source
	}

	latestBars := map[string]string{}
	for _, period := range []domain.BarPeriod{domain.PeriodDaily, domain.PeriodWeekly, domain.PeriodMonthly} {
		for name := range s.container.Adapters {
			if max, err := s.container.Store.MaxStoredTradeDate(ctx, symbol, name, period); err == nil && max != "" {
				latestBars[string(period)+":"+name] = max
			}
		}
	}
	resp["latest_bars"] = latestBars

	if fin, err := s.container.Store.ListFinancials(ctx, symbol, ""); err == nil {
		resp["financial_records"] = len(fin)
	}
	if info, err := s.container.Store.ListBasicInfoByCode(ctx, symbol); err == nil {
		resp["basic_info_sources"] = len(info)
	}

	resp["checked_at"] = time.Now().UTC().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, resp)
}
