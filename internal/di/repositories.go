// Package di provides dependency injection for repository implementations.
package di

import (
	"fmt"

	"github.com/aristath/stockselect/internal/modules/runs"
	"github.com/aristath/stockselect/internal/modules/universe"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates all repositories and stores them in the container
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.UniverseRepo = universe.NewRepository(container.UniverseDB.Conn(), log)
	container.RunRepo = runs.NewRepository(container.RunsDB.Conn(), log)

	log.Info().Msg("Repositories initialized")
	return nil
}
