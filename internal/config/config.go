// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	Optimizer   OptimizerConfig
	Backup      BackupConfig
	Maintenance MaintenanceConfig
}

// OptimizerConfig holds solver settings for the optimization pipeline
type OptimizerConfig struct {
	SolveTimeout      time.Duration // 0 disables the timeout
	SimplexTolerance  float64
	ZeroTolerance     float64 // weights with |w| below this are dropped from allocations
	UpperBoundChoices []float64
}

// BackupConfig holds database backup settings
type BackupConfig struct {
	Schedule string // cron expression with seconds; empty disables scheduled backups
	Keep     int    // local snapshots kept per database
	Dir      string

	S3Bucket    string
	S3Endpoint  string // custom endpoint for R2 / MinIO
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string
}

// MaintenanceConfig holds database maintenance settings
type MaintenanceConfig struct {
	Schedule     string        // cron expression with seconds; empty disables maintenance
	RunRetention time.Duration // optimization runs older than this are pruned; 0 keeps all
}

// S3Enabled reports whether snapshots should be uploaded to object storage.
func (b BackupConfig) S3Enabled() bool {
	return b.S3Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("YIELDOPT_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("GO_PORT", 8001),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Optimizer: OptimizerConfig{
			SolveTimeout:      getEnvAsDuration("SOLVE_TIMEOUT", 30*time.Second),
			SimplexTolerance:  getEnvAsFloat("SIMPLEX_TOLERANCE", 1e-10),
			ZeroTolerance:     getEnvAsFloat("ZERO_TOLERANCE", 1e-9),
			UpperBoundChoices: []float64{0.01, 0.02, 0.03},
		},
		Backup: BackupConfig{
			Schedule:    getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"), // 03:00 daily
			Keep:        getEnvAsInt("BACKUP_KEEP", 7),
			Dir:         getEnv("BACKUP_DIR", filepath.Join(absDataDir, "backups")),
			S3Bucket:    getEnv("BACKUP_S3_BUCKET", ""),
			S3Endpoint:  getEnv("BACKUP_S3_ENDPOINT", ""),
			S3Region:    getEnv("BACKUP_S3_REGION", "auto"),
			S3AccessKey: getEnv("BACKUP_S3_ACCESS_KEY", ""),
			S3SecretKey: getEnv("BACKUP_S3_SECRET_KEY", ""),
			S3Prefix:    getEnv("BACKUP_S3_PREFIX", "yieldopt/"),
		},
		Maintenance: MaintenanceConfig{
			Schedule:     getEnv("MAINTENANCE_SCHEDULE", "0 30 2 * * *"), // 02:30 daily
			RunRetention: getEnvAsDuration("RUN_RETENTION", 90*24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Optimizer.SolveTimeout < 0 {
		return fmt.Errorf("SOLVE_TIMEOUT must not be negative, got %s", c.Optimizer.SolveTimeout)
	}
	if c.Optimizer.SimplexTolerance < 0 {
		return fmt.Errorf("SIMPLEX_TOLERANCE must not be negative, got %g", c.Optimizer.SimplexTolerance)
	}
	if c.Optimizer.ZeroTolerance <= 0 {
		return fmt.Errorf("ZERO_TOLERANCE must be positive, got %g", c.Optimizer.ZeroTolerance)
	}
	if c.Backup.Keep < 1 {
		return fmt.Errorf("BACKUP_KEEP must be at least 1, got %d", c.Backup.Keep)
	}
	if c.Maintenance.RunRetention < 0 {
		return fmt.Errorf("RUN_RETENTION must not be negative, got %s", c.Maintenance.RunRetention)
	}
	if c.Backup.S3Enabled() && (c.Backup.S3AccessKey == "") != (c.Backup.S3SecretKey == "") {
		return fmt.Errorf("BACKUP_S3_ACCESS_KEY and BACKUP_S3_SECRET_KEY must be set together")
	}
	return nil
}

// UniverseDBPath returns the path of the instrument universe database
func (c *Config) UniverseDBPath() string {
	return filepath.Join(c.DataDir, "universe.db")
}

// CacheDBPath returns the path of the run history database
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
