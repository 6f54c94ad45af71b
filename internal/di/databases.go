// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/aristath/yieldopt/internal/config"
	"github.com/aristath/yieldopt/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens both databases and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{Config: cfg}

	// 1. universe.db - Instrument universe (bond attributes and metrics)
	universeDB, err := database.New(database.Config{
		Path:    cfg.UniverseDBPath(),
		Profile: database.ProfileStandard,
		Name:    database.NameUniverse,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize universe database: %w", err)
	}
	container.UniverseDB = universeDB

	// 2. cache.db - Optimization run history
	cacheDB, err := database.New(database.Config{
		Path:    cfg.CacheDBPath(),
		Profile: database.ProfileCache, // Maximum speed for ephemeral data
		Name:    database.NameCache,
	})
	if err != nil {
		universeDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	// Apply schemas to all databases (single source of truth)
	for _, db := range container.Databases() {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Msg("Databases initialized")

	return container, nil
}
