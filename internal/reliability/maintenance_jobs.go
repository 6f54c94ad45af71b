package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/yieldopt/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// minFreeDiskBytes halts maintenance when the data volume is nearly full
const minFreeDiskBytes = 500 * 1024 * 1024

// RunPruner removes optimization runs created before cutoff
type RunPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// BackupJob runs BackupService.Backup on a schedule
type BackupJob struct {
	service *BackupService
	timeout time.Duration
}

// NewBackupJob creates a backup job. A zero timeout means no limit.
func NewBackupJob(service *BackupService, timeout time.Duration) *BackupJob {
	return &BackupJob{service: service, timeout: timeout}
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	_, err := j.service.Backup(ctx)
	return err
}

// MaintenanceJob checks database integrity, truncates WAL files, watches
// free disk space and prunes old optimization runs.
type MaintenanceJob struct {
	databases    []*database.DB
	dataDir      string
	pruner       RunPruner
	runRetention time.Duration
	log          zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(dataDir string, log zerolog.Logger, databases ...*database.DB) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		dataDir:   dataDir,
		log:       log.With().Str("job", "maintenance").Logger(),
	}
}

// SetRunPruner enables pruning of runs older than retention
func (j *MaintenanceJob) SetRunPruner(p RunPruner, retention time.Duration) {
	j.pruner = p
	j.runRetention = retention
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance job
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting maintenance")
	startTime := time.Now()
	ctx := context.Background()

	for _, db := range j.databases {
		j.log.Debug().Str("database", db.Name()).Msg("Running integrity check")

		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().
				Str("database", db.Name()).
				Err(err).
				Msg("CRITICAL: Database failed health check")
			return fmt.Errorf("health check failed for %s: %w", db.Name(), err)
		}

		if _, err := db.Conn().ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			// Not critical, the next checkpoint will catch up
			j.log.Warn().
				Str("database", db.Name()).
				Err(err).
				Msg("WAL checkpoint failed")
		}
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	if j.pruner != nil && j.runRetention > 0 {
		cutoff := time.Now().Add(-j.runRetention)
		removed, err := j.pruner.Prune(ctx, cutoff)
		if err != nil {
			j.log.Error().Err(err).Msg("Failed to prune optimization runs")
		} else if removed > 0 {
			j.log.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("Pruned optimization runs")
		}
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Maintenance completed successfully")

	return nil
}

// checkDiskSpace verifies sufficient disk space is available
func (j *MaintenanceJob) checkDiskSpace() error {
	usage, err := disk.Usage(j.dataDir)
	if err != nil {
		j.log.Warn().Err(err).Str("path", j.dataDir).Msg("Failed to read disk usage")
		return nil
	}

	availableGB := float64(usage.Free) / 1e9
	j.log.Debug().Float64("available_gb", availableGB).Float64("used_percent", usage.UsedPercent).Msg("Disk space check")

	if usage.Free < minFreeDiskBytes {
		j.log.Error().
			Float64("available_gb", availableGB).
			Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("only %.2f GB free on %s", availableGB, j.dataDir)
	}

	if availableGB < 5.0 {
		j.log.Warn().
			Float64("available_gb", availableGB).
			Msg("Disk space running low")
	}

	return nil
}
