// Package main is the entry point for the stockselect portfolio selection
// service. It loads the instrument catalog, serves the strategy run API and
// keeps the catalog fresh on a schedule.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/stockselect/internal/config"
	"github.com/aristath/stockselect/internal/di"
	"github.com/aristath/stockselect/internal/server"
	"github.com/aristath/stockselect/pkg/logger"
)

// main starts the service:
// 1. Loads configuration (.env, optional TOML file, environment)
// 2. Wires databases, repositories, services and jobs
// 3. Loads the catalog from its source
// 4. Starts the scheduler and the HTTP server
// 5. Waits for SIGINT/SIGTERM and shuts down gracefully
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting stockselect")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close resources")
		}
	}()

	// A missing catalog is not fatal: it can be ingested or refreshed later
	refreshCtx, refreshCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if n, err := container.UniverseService.Refresh(refreshCtx); err != nil {
		log.Warn().Err(err).Str("source", cfg.Catalog.Source).Msg("Initial catalog refresh failed")
	} else {
		log.Info().Int("instruments", n).Msg("Catalog loaded")
	}
	refreshCancel()

	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
		Jobs:      jobs,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop the scheduler first so no job touches a closing database
	container.Scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
