package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sermady/stockdata-core/internal/analysis"
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

// Wire initializes every component in dependency order and returns a
// fully assembled Container. On any step's failure it closes whatever it
// had already opened (databases, adapters) before returning the error,
// mirroring the teacher's InitializeDatabases/Repositories/Services
// sequence collapsed into the one Go-idiomatic function this spec's
// smaller component count actually needs.
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{Config: cfg}

	// Step 1: databases.
	stockDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/stockdata.db",
		Profile: database.ProfileStandard,
		Name:    "stockdata",
	})
	if err != nil {
		return nil, fmt.Errorf("open stockdata database: %w", err)
	}
	c.StockDB = stockDB

	cacheDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/cache.db",
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	c.CacheDB = cacheDB

	if err := c.StockDB.Migrate(); err != nil {
		c.Close()
		return nil, fmt.Errorf("migrate stockdata database: %w", err)
	}
	if err := c.CacheDB.Migrate(); err != nil {
		c.Close()
		return nil, fmt.Errorf("migrate cache database: %w", err)
	}

	// Step 2: provider adapters + repository.
	adapters, err := providers.Build(cfg, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("build provider adapters: %w", err)
	}
	c.Adapters = adapters
	c.Store = store.New(c.StockDB, log)

	// Step 3: core services (C2-C4, C10, C11) that everything else
	// depends on but which have no further dependencies of their own.
	c.Calendar = calendar.New()
	c.Observability = observability.New(log)
	c.Health = health.NewMonitorFromAdapters(cfg.HealthMonitor, adapters, log)
	c.Router = router.New(cfg.Providers, c.Health)
	c.Consistency = consistency.New(cfg.Consistency)
	c.Cache = cache.New(c.CacheDB, cfg.CachePolicies, log)

	// Step 4: the notification bus, which C6 and C8 both publish
	// through - built before either so neither needs a nil check.
	c.Notify = notify.New(c.Store, log)

	// Step 5: work components (C6-C8).
	c.Sync = sync.New(adapters, c.Router, c.Store, c.Consistency, c.Notify, log)

	analyst := analysis.New(c.Store)
	c.Tasks = tasks.New(c.Store, analyst, c.Notify, cfg.WorkerPool, cfg.Quotas, log)

	// Step 6: scheduler, registering one job per configured sync class.
	c.Scheduler = scheduler.New(log)
	if err := registerSyncJobs(c, cfg.SyncJobs); err != nil {
		c.Close()
		return nil, fmt.Errorf("register sync jobs: %w", err)
	}

	// Step 7: reliability - nightly backup, only wired if an S3-compatible
	// bucket was actually configured (backup.Service is optional). It rides
	// the same cron scheduler as the sync jobs, at a fixed off-hours slot.
	if cfg.S3Bucket != "" {
		backupClient, err := backup.NewS3Client(context.Background(), cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey)
		if err != nil {
			log.Warn().Err(err).Msg("backup S3 client could not be constructed, nightly backups disabled")
		} else {
			c.Backup = backup.New(map[string]*database.DB{
				"stockdata": c.StockDB,
				"cache":     c.CacheDB,
			}, cfg.DataDir, backupClient, log)

			backupJob := scheduler.NewJob("nightly_backup", func(ctx context.Context, force bool) error {
				return c.Backup.CreateAndUpload(ctx)
			})
			if err := c.Scheduler.Register("0 0 3 * * *", backupJob); err != nil {
				log.Warn().Err(err).Msg("failed to register nightly backup job")
			}
		}
	}

	log.Info().Msg("dependency wiring completed successfully")
	return c, nil
}

// registerSyncJobs binds each configured sync job's name to the concrete
// Service method for its data class, and to a market-hour gate for the
// quotes class specifically (spec.md §4.7).
func registerSyncJobs(c *Container, jobs []config.SyncJobConfig) error {
	for _, j := range jobs {
		run, market, gated := runFuncFor(c, j)
		var job scheduler.Job
		if gated {
			job = scheduler.NewMarketHourGatedJob(j.Name, market, c.Calendar, run)
		} else {
			job = scheduler.NewJob(j.Name, run)
		}
		if err := c.Scheduler.Register(j.Schedule, job); err != nil {
			return fmt.Errorf("job %s: %w", j.Name, err)
		}
	}
	return nil
}
