// Package di provides dependency injection type definitions.
package di

import (
	"github.com/aristath/stockselect/internal/database"
	"github.com/aristath/stockselect/internal/events"
	"github.com/aristath/stockselect/internal/modules/runs"
	"github.com/aristath/stockselect/internal/modules/universe"
	"github.com/aristath/stockselect/internal/scheduler"
)

// Container holds all dependencies for the application.
//
// It is created by Wire() and handed to the server and the entry point.
type Container struct {
	// Databases
	UniverseDB *database.DB // instruments and price history
	RunsDB     *database.DB // run history

	// Repositories
	UniverseRepo *universe.Repository
	RunRepo      *runs.Repository

	// Catalog
	CatalogSource   universe.Source
	UniverseService *universe.Service

	// Runs
	Registry   *runs.Registry
	RunService *runs.Service
	RunCache   *runs.RedisCache // nil unless redis is configured

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered jobs so they can be triggered manually
type JobInstances struct {
	RefreshCatalog *scheduler.RefreshCatalogJob
	CheckDatabases *scheduler.CheckDatabasesJob
	PruneRuns      *scheduler.PruneRunsJob // nil when retention is disabled
}

// All returns the non-nil jobs keyed by name
func (j *JobInstances) All() map[string]scheduler.Job {
	jobs := make(map[string]scheduler.Job)
	if j == nil {
		return jobs
	}
	if j.RefreshCatalog != nil {
		jobs[j.RefreshCatalog.Name()] = j.RefreshCatalog
	}
	if j.CheckDatabases != nil {
		jobs[j.CheckDatabases.Name()] = j.CheckDatabases
	}
	if j.PruneRuns != nil {
		jobs[j.PruneRuns.Name()] = j.PruneRuns
	}
	return jobs
}

// Close releases the cache connection and both databases
func (c *Container) Close() error {
	var firstErr error
	if c.RunCache != nil {
		if err := c.RunCache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, db := range []*database.DB{c.RunsDB, c.UniverseDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
