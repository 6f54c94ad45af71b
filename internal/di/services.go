package di

import (
	"context"
	"fmt"

	"github.com/aristath/yieldopt/internal/config"
	"github.com/aristath/yieldopt/internal/events"
	"github.com/aristath/yieldopt/internal/modules/optimization"
	"github.com/aristath/yieldopt/internal/modules/universe"
	"github.com/aristath/yieldopt/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories on top of the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container.UniverseDB == nil || container.CacheDB == nil {
		return fmt.Errorf("databases not initialized")
	}

	container.InstrumentRepo = universe.NewInstrumentRepository(container.UniverseDB.Conn(), log)
	if choices := container.Config.Optimizer.UpperBoundChoices; len(choices) > 0 {
		container.InstrumentRepo.SetUpperBoundChoices(choices)
	}

	container.RunRepo = optimization.NewRunRepository(container.CacheDB.Conn(), log)

	return nil
}

// InitializeServices creates the event bus, the optimizer and the backup service
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)

	container.Solver = optimization.NewSimplexSolver(cfg.Optimizer.SimplexTolerance, log)

	optimizer := optimization.NewOptimizerService(container.Solver, log)
	optimizer.SetSolveTimeout(cfg.Optimizer.SolveTimeout)
	optimizer.SetZeroTolerance(cfg.Optimizer.ZeroTolerance)
	optimizer.SetRecorder(container.RunRepo)
	optimizer.SetEventManager(container.EventManager)
	container.OptimizerService = optimizer

	backup := reliability.NewBackupService(cfg.Backup.Dir, cfg.Backup.Keep, log, container.Databases()...)
	backup.SetEventManager(container.EventManager)
	if cfg.Backup.S3Enabled() {
		uploader, err := reliability.NewS3Uploader(ctx, cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to create backup uploader: %w", err)
		}
		backup.SetUploader(uploader)
	}
	container.BackupService = backup

	return nil
}
