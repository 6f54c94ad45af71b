package di

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/yieldopt/internal/config"
	"github.com/aristath/yieldopt/internal/domain"
	"github.com/aristath/yieldopt/internal/modules/optimization"
	"github.com/aristath/yieldopt/internal/modules/universe"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	tmpDir := t.TempDir()
	return &config.Config{
		DataDir: tmpDir,
		Port:    8001,
		Optimizer: config.OptimizerConfig{
			SolveTimeout:      5 * time.Second,
			ZeroTolerance:     1e-9,
			UpperBoundChoices: []float64{0.01, 0.02, 0.03},
		},
		Backup: config.BackupConfig{
			Schedule: "0 0 3 * * *",
			Keep:     2,
			Dir:      filepath.Join(tmpDir, "backups"),
		},
		Maintenance: config.MaintenanceConfig{
			Schedule:     "0 30 2 * * *",
			RunRetention: time.Hour,
		},
	}
}

func TestInitializeDatabases(t *testing.T) {
	cfg := testConfig(t)

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.UniverseDB)
	assert.NotNil(t, container.CacheDB)
	assert.Len(t, container.Databases(), 2)

	assert.FileExists(t, filepath.Join(cfg.DataDir, "universe.db"))
	assert.FileExists(t, filepath.Join(cfg.DataDir, "cache.db"))
}

func TestInitializeRepositories_RequiresDatabases(t *testing.T) {
	err := InitializeRepositories(&Container{Config: testConfig(t)}, zerolog.Nop())
	assert.Error(t, err)
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	assert.NotNil(t, container.InstrumentRepo)
	assert.NotNil(t, container.RunRepo)
	assert.NotNil(t, container.OptimizerService)
	assert.NotNil(t, container.BackupService)
	assert.NotNil(t, container.EventManager)
	assert.Len(t, container.Jobs(), 2)
	assert.Equal(t, []string{"backup", "maintenance"}, container.Scheduler.Jobs())
}

func TestWire_NoSchedules(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup.Schedule = ""
	cfg.Maintenance.Schedule = ""

	container, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	assert.Empty(t, container.Scheduler.Jobs())
	assert.Len(t, container.Jobs(), 2, "jobs stay available for manual runs")
}

func TestWire_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup.Schedule = "every now and then"

	_, err := Wire(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestWire_OptimizeRecordsRun(t *testing.T) {
	container, err := Wire(context.Background(), testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	ctx := context.Background()
	_, err = container.InstrumentRepo.Insert(ctx, []universe.Instrument{
		{ID: 1, Class2: "FINANCIAL", YTM: 0.04, OAS: 0.01, EffDur: 2},
		{ID: 2, Class2: "INDUSTRIAL", YTM: 0.05, OAS: 0.01, EffDur: 5},
		{ID: 3, Class2: "UTILITY", YTM: 0.06, OAS: 0.01, EffDur: 8},
	}, false)
	require.NoError(t, err)

	instruments, err := container.InstrumentRepo.List(ctx, universe.Filters{})
	require.NoError(t, err)

	req := optimization.Request{Objective: domain.ObjectiveYTM, UpperBound: 0.5, TargetDuration: 5, SectorCap: 0.4}
	result := container.OptimizerService.Optimize(ctx, req, universe.Rows(instruments, req.Objective))
	require.True(t, result.OK(), result.Diagnostic)
	assert.InDelta(t, 0.05, result.ObjectiveValue, 1e-6)

	run, err := container.RunRepo.Get(ctx, result.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, optimization.StateFiltered, run.State)
}
