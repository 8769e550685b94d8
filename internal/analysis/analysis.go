// Package analysis provides the worker pool's Analyst implementation.
// The actual multi-agent LLM debate is explicitly out of scope (spec's
// "LLM adapter internals" / "the agent debate prompts themselves" are
// named external collaborators, contracts only) - this package instead
// assembles the already-ingested, store-backed data a real analyst
// would be handed as its prompt context, and reports it back as the
// task result. Swapping in a real LLM-backed Analyst means implementing
// this package's single interface against an actual model client; no
// other part of C8 needs to change.
package analysis

import (
	"context"
	"time"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/domain"
	"github.com/sermady/stockdata-core/internal/store"
)

// Collaborator runs one phase of the analysis over a symbol's persisted
// data, returning whatever that phase contributes. Phases exist so
// progress can be reported monotonically between them, per spec.md
// §4.8 - a real LLM-backed Collaborator would have one per agent role
// (fundamentals, technicals, sentiment, ...).
type Collaborator interface {
	Name() string
	Run(ctx context.Context, symbol string, accumulated map[string]interface{}) (map[string]interface{}, error)
}

// Service assembles store-backed context and runs each configured
// Collaborator phase in sequence, satisfying internal/tasks.Analyst.
type Service struct {
	store         *store.Store
	collaborators []Collaborator
}

// New builds a Service. With no collaborators it still produces a
// result: the raw store snapshot alone (basic info, quote, financials).
func New(st *store.Store, collaborators ...Collaborator) *Service {
	return &Service{store: st, collaborators: collaborators}
}

// Analyze gathers symbol's persisted basic info, latest quote, and most
// recent financial record, then runs each Collaborator phase over that
// context in turn, reporting progress monotonically between phases.
func (s *Service) Analyze(ctx context.Context, task *domain.AnalysisTask, progress func(percent int)) (map[string]interface{}, error) {
	result := map[string]interface{}{
		"symbol":       task.Symbol,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	}

	if info, err := s.store.ListBasicInfoByCode(ctx, task.Symbol); err == nil && len(info) > 0 {
		result["basic_info"] = info[0]
	}
	if quote, err := s.store.GetQuote(ctx, task.Symbol); err == nil {
		result["quote"] = quote
	}
	if fin, err := s.store.ListFinancials(ctx, task.Symbol, ""); err == nil && len(fin) > 0 {
		result["financial"] = fin[0]
	}
	progress(20)

	phaseBudget := 0
	if len(s.collaborators) > 0 {
		phaseBudget = 70 / len(s.collaborators)
	}
	done := 20
	for _, c := range s.collaborators {
		if task.CancelRequested() {
			return nil, apperr.New(apperr.Cancelled, "analysis cancelled between phases")
		}
		out, err := c.Run(ctx, task.Symbol, result)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "collaborator "+c.Name()+" failed", err)
		}
		for k, v := range out {
			result[k] = v
		}
		done += phaseBudget
		progress(done)
	}

	progress(99)
	return result, nil
}
