// Package main is the entry point for stockdata-core: a market-data
// ingestion and analysis-orchestration backend. It wires every component
// (C1-C11) via the DI container, starts the HTTP API and the background
// scheduler/worker pool/health monitor, and shuts all of it down
// gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sermady/stockdata-core/internal/config"
	"github.com/sermady/stockdata-core/internal/di"
	"github.com/sermady/stockdata-core/internal/logging"
	"github.com/sermady/stockdata-core/internal/server"
)

const systemGaugeInterval = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logging.New(logging.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Msg("starting stockdata-core")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuration failed validation")
	}

	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire dependencies")
	}

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("HTTP server started")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container.Health.Start(ctx)
	log.Info().Msg("health monitor started")

	container.Scheduler.Start()
	log.Info().Msg("scheduler started")

	container.Tasks.Start()
	log.Info().Msg("task worker pool started")

	go container.Observability.RunSystemGaugeLoop(ctx, systemGaugeInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received, draining")
	cancel()

	container.Scheduler.Stop()
	log.Info().Msg("scheduler stopped")

	container.Tasks.Stop()
	log.Info().Msg("task worker pool stopped")

	container.Health.Stop()
	log.Info().Msg("health monitor stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	container.Close()
	log.Info().Msg("stockdata-core stopped")
}
