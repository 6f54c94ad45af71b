/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server and the CLI for access to services.
 */
package di

import (
	"errors"

	"github.com/aristath/yieldopt/internal/config"
	"github.com/aristath/yieldopt/internal/database"
	"github.com/aristath/yieldopt/internal/events"
	"github.com/aristath/yieldopt/internal/modules/optimization"
	"github.com/aristath/yieldopt/internal/modules/universe"
	"github.com/aristath/yieldopt/internal/reliability"
	"github.com/aristath/yieldopt/internal/scheduler"
)

// Container holds all dependencies for the application.
type Container struct {
	Config *config.Config

	// Databases
	UniverseDB *database.DB // instrument universe
	CacheDB    *database.DB // optimization run history

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Repositories
	InstrumentRepo *universe.InstrumentRepository
	RunRepo        *optimization.RunRepository

	// Services
	Solver           optimization.Solver
	OptimizerService *optimization.OptimizerService
	BackupService    *reliability.BackupService

	// Jobs
	Scheduler      *scheduler.Scheduler
	BackupJob      *reliability.BackupJob
	MaintenanceJob *reliability.MaintenanceJob
}

// Databases returns every open database in a stable order
func (c *Container) Databases() []*database.DB {
	dbs := make([]*database.DB, 0, 2)
	for _, db := range []*database.DB{c.UniverseDB, c.CacheDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Jobs returns the jobs that can be triggered manually
func (c *Container) Jobs() []scheduler.Job {
	var jobs []scheduler.Job
	if c.BackupJob != nil {
		jobs = append(jobs, c.BackupJob)
	}
	if c.MaintenanceJob != nil {
		jobs = append(jobs, c.MaintenanceJob)
	}
	return jobs
}

// Close closes all databases
func (c *Container) Close() error {
	var errs []error
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
