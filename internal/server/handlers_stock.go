package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sermady/stockdata-core/internal/apperr"
)

// handleBasicInfo implements GET /stock-data/basic-info/{symbol}. When
// more than one source has an entry for symbol, every source's record is
// returned, ordered by source name; no single source is picked.
func (s *Server) handleBasicInfo(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	const cachePrefix = "stock_info"
	var cached []interface{}
	if hit, _ := s.container.Cache.Get(r.Context(), cachePrefix, symbol, &cached); hit {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	records, err := s.container.Store.ListBasicInfoByCode(r.Context(), symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(records) == 0 {
		writeError(w, apperr.New(apperr.NotFound, "no basic info for symbol "+symbol))
		return
	}

	out := make([]interface{}, len(records))
	for i, rec := range records {
		out[i] = rec
	}
	_ = s.container.Cache.Put(r.Context(), cachePrefix, symbol, out)
	writeJSON(w, http.StatusOK, out)
}

// handleQuote implements GET /stock-data/quotes/{symbol}.
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	const cachePrefix = "stock_quotes"
	var cached interface{}
	if hit, _ := s.container.Cache.Get(r.Context(), cachePrefix, symbol, &cached); hit {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	q, err := s.container.Store.GetQuote(r.Context(), symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = s.container.Cache.Put(r.Context(), cachePrefix, symbol, q)
	writeJSON(w, http.StatusOK, q)
}

// handleListBasicInfo implements GET /stock-data/list?limit=&offset=.
func (s *Server) handleListBasicInfo(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	records, err := s.container.Store.ListBasicInfo(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleSearchBasicInfo implements GET /stock-data/search?q=.
func (s *Server) handleSearchBasicInfo(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, apperr.New(apperr.BadRequest, "query parameter q is required"))
		return
	}
	limit := queryInt(r, "limit", 20)

	records, err := s.container.Store.SearchBasicInfo(r.Context(), query, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleCombined implements GET /stock-data/combined/{symbol}: basic
// info, latest quote, and most recent financial record in one payload,
// per spec.md §6's combined read path.
func (s *Server) handleCombined(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	ctx := r.Context()

	resp := map[string]interface{}{"symbol": symbol}

	if info, err := s.container.Store.ListBasicInfoByCode(ctx, symbol); err == nil && len(info) > 0 {
		resp["basic_info"] = info
	}
	if q, err := s.container.Store.GetQuote(ctx, symbol); err == nil {
		resp["quote"] = q
	}
	if fin, err := s.container.Store.ListFinancials(ctx, symbol, ""); err == nil && len(fin) > 0 {
		resp["financial"] = fin[0]
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleMarkets implements GET /stock-data/markets.
func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.container.Store.ListMarkets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, markets)
}

// handleQuoteSyncStatus implements GET /stock-data/sync-status/quotes.
func (s *Server) handleQuoteSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.container.Store.GetSyncStatus(r.Context(), "quote_sync", "quotes")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
