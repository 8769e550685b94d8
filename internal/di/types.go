// Package di wires every component (C1-C11) plus the backup service into
// one Container, following the teacher's sequential-init-with-cleanup
// pattern rather than a reflection-based DI framework.
package di

import (
	"github.com/sermady/stockdata-core/internal/backup"
	"github.com/sermady/stockdata-core/internal/cache"
	"github.com/sermady/stockdata-core/internal/calendar"
	"github.com/sermady/stockdata-core/internal/config"
	"github.com/sermady/stockdata-core/internal/consistency"
	"github.com/sermady/stockdata-core/internal/database"
	"github.com/sermady/stockdata-core/internal/health"
	"github.com/sermady/stockdata-core/internal/notify"
	"github.com/sermady/stockdata-core/internal/observability"
	"github.com/sermady/stockdata-core/internal/providers"
	"github.com/sermady/stockdata-core/internal/router"
	"github.com/sermady/stockdata-core/internal/scheduler"
	"github.com/sermady/stockdata-core/internal/store"
	"github.com/sermady/stockdata-core/internal/sync"
	"github.com/sermady/stockdata-core/internal/tasks"
)

// Container holds every wired component. cmd/server/main.go and
// internal/server both depend on it rather than on the individual
// constructors, so adding a component never touches either of them.
type Container struct {
	Config *config.Config

	// Databases
	StockDB *database.DB
	CacheDB *database.DB

	// Clients
	Adapters map[string]providers.Adapter

	// Repositories
	Store *store.Store

	// Core services (C2-C4, C10, C11)
	Calendar      *calendar.Calendar
	Health        *health.Monitor
	Router        *router.Router
	Consistency   *consistency.Checker
	Cache         *cache.Service
	Observability *observability.Service

	// Work components (C6-C9)
	Sync     *sync.Service
	Tasks    *tasks.Service
	Notify   *notify.Service
	Scheduler *scheduler.Scheduler

	// Reliability
	Backup *backup.Service
}

// Close releases the databases and provider adapters. It does not stop
// the long-running services (Health, Scheduler, Tasks) - those are only
// safe to stop once Start has actually been called on them, which is
// cmd/server/main.go's responsibility as part of its own graceful
// shutdown sequence. Close is what Wire calls on its own failure path,
// and what main.go calls after it has stopped every started service.
func (c *Container) Close() {
	if c.Adapters != nil {
		providers.CloseAll(c.Adapters)
	}
	if c.StockDB != nil {
		_ = c.StockDB.Close()
	}
	if c.CacheDB != nil {
		_ = c.CacheDB.Close()
	}
}
