package tasks

import (
	"sync"

	"github.com/sermady/stockdata-core/internal/domain"
)

// inflightRegistry tracks the live *domain.AnalysisTask objects workers
// are currently processing, so Cancel can flag a processing task's
// in-memory cancel bit without a second store round-trip.
type inflightRegistry struct {
	mu    sync.Mutex
	tasks map[string]*taskHandle
}

type taskHandle struct {
	task   *domain.AnalysisTask
	cancel func()
}

func newInflightRegistry() *inflightRegistry {
	return &inflightRegistry{tasks: make(map[string]*taskHandle)}
}

func (r *inflightRegistry) add(taskID string, t *domain.AnalysisTask, cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[taskID] = &taskHandle{task: t, cancel: cancel}
}

func (r *inflightRegistry) remove(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, taskID)
}

func (r *inflightRegistry) requestCancel(taskID string) {
	r.mu.Lock()
	h, ok := r.tasks[taskID]
	r.mu.Unlock()
	if !ok {
		return
	}
	h.task.RequestCancel()
	if h.cancel != nil {
		h.cancel()
	}
}
