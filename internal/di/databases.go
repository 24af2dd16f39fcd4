// Package di provides dependency injection for database connections.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/stockselect/internal/config"
	"github.com/aristath/stockselect/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens universe.db and runs.db in the data directory
// and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. universe.db - instrument catalog and daily closes
	universeDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, database.NameUniverse+".db"),
		Profile: database.ProfileStandard,
		Name:    database.NameUniverse,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize universe database: %w", err)
	}
	container.UniverseDB = universeDB

	// 2. runs.db - strategy run history
	runsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, database.NameRuns+".db"),
		Profile: database.ProfileStandard,
		Name:    database.NameRuns,
	})
	if err != nil {
		universeDB.Close()
		return nil, fmt.Errorf("failed to initialize runs database: %w", err)
	}
	container.RunsDB = runsDB

	for _, db := range []*database.DB{universeDB, runsDB} {
		if err := db.Migrate(); err != nil {
			universeDB.Close()
			runsDB.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized and schemas applied")

	return container, nil
}
