package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sermady/stockdata-core/internal/apperr"
)

type analysisSingleRequest struct {
	Symbol     string                 `json:"symbol"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

type analysisBatchRequest struct {
	Symbols    []string               `json:"symbols"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// handleAnalysisSingle implements POST /analysis/single.
func (s *Server) handleAnalysisSingle(w http.ResponseWriter, r *http.Request) {
	var req analysisSingleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		writeError(w, apperr.New(apperr.BadRequest, "symbol is required"))
		return
	}

	task, err := s.container.Tasks.Enqueue(r.Context(), userID(r), req.Symbol, req.Parameters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

// handleAnalysisBatch implements POST /analysis/batch.
func (s *Server) handleAnalysisBatch(w http.ResponseWriter, r *http.Request) {
	var req analysisBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.BadRequest, "invalid request body"))
		return
	}

	batch, err := s.container.Tasks.EnqueueBatch(r.Context(), userID(r), req.Symbols, req.Parameters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, batch)
}

// handleAnalysisTask implements GET /analysis/task/{id}, returning either
// a single task or, if id names a batch, the batch and its children.
func (s *Server) handleAnalysisTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	task, err := s.container.Tasks.GetTask(r.Context(), id)
	if err == nil {
		writeJSON(w, http.StatusOK, task)
		return
	}
	if apperr.CodeOf(err) != apperr.NotFound {
		writeError(w, err)
		return
	}

	batch, tasks, berr := s.container.Tasks.GetBatch(r.Context(), id)
	if berr != nil {
		writeError(w, apperr.New(apperr.NotFound, "no task or batch found for id "+id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"batch": batch, "tasks": tasks})
}

// handleAnalysisCancel implements POST /analysis/task/{id}/cancel.
func (s *Server) handleAnalysisCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.container.Tasks.Cancel(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": id, "status": "cancel-requested"})
}
