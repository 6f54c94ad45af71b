package di

import (
	"fmt"
	"time"

	"github.com/aristath/yieldopt/internal/config"
	"github.com/aristath/yieldopt/internal/reliability"
	"github.com/aristath/yieldopt/internal/scheduler"
	"github.com/rs/zerolog"
)

// backupTimeout bounds one scheduled backup run
const backupTimeout = 30 * time.Minute

// RegisterJobs creates the background jobs and schedules the ones with a cron expression.
// The scheduler is returned stopped; the caller starts it.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Scheduler = scheduler.New(log)
	container.Scheduler.SetEventManager(container.EventManager)

	container.BackupJob = reliability.NewBackupJob(container.BackupService, backupTimeout)

	container.MaintenanceJob = reliability.NewMaintenanceJob(cfg.DataDir, log, container.Databases()...)
	container.MaintenanceJob.SetRunPruner(container.RunRepo, cfg.Maintenance.RunRetention)

	if cfg.Backup.Schedule != "" {
		if err := container.Scheduler.AddJob(cfg.Backup.Schedule, container.BackupJob); err != nil {
			return fmt.Errorf("failed to register backup job: %w", err)
		}
	}

	if cfg.Maintenance.Schedule != "" {
		if err := container.Scheduler.AddJob(cfg.Maintenance.Schedule, container.MaintenanceJob); err != nil {
			return fmt.Errorf("failed to register maintenance job: %w", err)
		}
	}

	return nil
}
