package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("YIELDOPT_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Optimizer.SolveTimeout)
	assert.Equal(t, 1e-9, cfg.Optimizer.ZeroTolerance)
	assert.Equal(t, []float64{0.01, 0.02, 0.03}, cfg.Optimizer.UpperBoundChoices)
	assert.Equal(t, filepath.Join(dir, "universe.db"), cfg.UniverseDBPath())
	assert.Equal(t, filepath.Join(dir, "cache.db"), cfg.CacheDBPath())
	assert.False(t, cfg.Backup.S3Enabled())
	assert.Equal(t, "0 30 2 * * *", cfg.Maintenance.Schedule)
	assert.Equal(t, 90*24*time.Hour, cfg.Maintenance.RunRetention)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("YIELDOPT_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "9100")
	t.Setenv("SOLVE_TIMEOUT", "2s")
	t.Setenv("ZERO_TOLERANCE", "1e-6")
	t.Setenv("BACKUP_S3_BUCKET", "snapshots")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.Optimizer.SolveTimeout)
	assert.Equal(t, 1e-6, cfg.Optimizer.ZeroTolerance)
	assert.True(t, cfg.Backup.S3Enabled())
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("YIELDOPT_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "not-a-port")
	t.Setenv("SOLVE_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Optimizer.SolveTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:      8001,
			Optimizer: OptimizerConfig{ZeroTolerance: 1e-9},
			Backup:    BackupConfig{Keep: 3},
		}
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Optimizer.ZeroTolerance = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Optimizer.SolveTimeout = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Maintenance.RunRetention = -time.Hour
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Backup.Keep = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Backup.S3Bucket = "b"
	cfg.Backup.S3AccessKey = "key"
	assert.Error(t, cfg.Validate(), "access key without secret")
}
