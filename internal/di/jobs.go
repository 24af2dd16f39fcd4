// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"
	"time"

	"github.com/aristath/stockselect/internal/config"
	"github.com/aristath/stockselect/internal/scheduler"
	"github.com/rs/zerolog"
)

// Fixed maintenance schedules (seconds field first)
const (
	checkDatabasesSchedule = "0 */30 * * * *"
	pruneRunsSchedule      = "0 15 3 * * *"
	refreshTimeout         = 2 * time.Minute
)

// RegisterJobs creates the scheduler and registers the maintenance jobs.
// The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(log)
	instances := &JobInstances{}

	// Job 1: catalog refresh
	instances.RefreshCatalog = scheduler.NewRefreshCatalogJob(container.UniverseService, refreshTimeout)
	instances.RefreshCatalog.SetLogger(log)
	if cfg.Catalog.RefreshSchedule != "" {
		if err := sched.AddJob(cfg.Catalog.RefreshSchedule, instances.RefreshCatalog); err != nil {
			return nil, fmt.Errorf("failed to register refresh_catalog job: %w", err)
		}
	}

	// Job 2: database health and WAL checkpoints
	instances.CheckDatabases = scheduler.NewCheckDatabasesJob(container.UniverseDB, container.RunsDB)
	instances.CheckDatabases.SetLogger(log)
	if err := sched.AddJob(checkDatabasesSchedule, instances.CheckDatabases); err != nil {
		return nil, fmt.Errorf("failed to register check_databases job: %w", err)
	}

	// Job 3: run history retention
	if cfg.RunRetentionDays > 0 {
		retention := time.Duration(cfg.RunRetentionDays) * 24 * time.Hour
		instances.PruneRuns = scheduler.NewPruneRunsJob(container.RunRepo, retention)
		instances.PruneRuns.SetLogger(log)
		if err := sched.AddJob(pruneRunsSchedule, instances.PruneRuns); err != nil {
			return nil, fmt.Errorf("failed to register prune_runs job: %w", err)
		}
	}

	container.Scheduler = sched
	log.Info().Int("jobs", sched.Jobs()).Msg("Jobs registered")
	return instances, nil
}
