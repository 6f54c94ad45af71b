// Package reliability provides database backup and maintenance.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/yieldopt/internal/database"
	"github.com/aristath/yieldopt/internal/events"
	"github.com/rs/zerolog"
)

const (
	archivePrefix   = "yieldopt-backup-"
	archiveSuffix   = ".tar.gz"
	timestampLayout = "2006-01-02-150405"
	metadataFile    = "backup-metadata.json"
)

// Uploader ships a finished backup archive off the machine.
type Uploader interface {
	Upload(ctx context.Context, name string, body io.Reader, size int64) error
}

// BackupMetadata is written into every archive next to the snapshots
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes one snapshot inside an archive
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo describes an archive in the local backup directory
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// BackupService snapshots databases into rotated tar.gz archives
type BackupService struct {
	databases    []*database.DB
	dir          string
	keep         int
	uploader     Uploader
	eventManager *events.Manager
	now          func() time.Time
	log          zerolog.Logger
}

// NewBackupService creates a backup service writing archives to dir and keeping the newest keep.
func NewBackupService(dir string, keep int, log zerolog.Logger, databases ...*database.DB) *BackupService {
	if keep < 1 {
		keep = 1
	}
	return &BackupService{
		databases: databases,
		dir:       dir,
		keep:      keep,
		now:       time.Now,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// SetUploader enables off-site upload of each archive
func (s *BackupService) SetUploader(u Uploader) {
	s.uploader = u
}

// SetEventManager sets the event manager used to announce finished backups
func (s *BackupService) SetEventManager(m *events.Manager) {
	s.eventManager = m
}

// DatabaseNames returns the names of the databases included in each backup
func (s *BackupService) DatabaseNames() []string {
	names := make([]string, 0, len(s.databases))
	for _, db := range s.databases {
		names = append(names, db.Name())
	}
	return names
}

// Backup snapshots every database, verifies the snapshots, archives them,
// uploads the archive when an uploader is set and rotates old archives.
func (s *BackupService) Backup(ctx context.Context) (*BackupInfo, error) {
	s.log.Info().Strs("databases", s.DatabaseNames()).Msg("Starting backup")
	startTime := time.Now()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	stagingDir, err := os.MkdirTemp(s.dir, "staging-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	timestamp := s.now().UTC()
	metadata := BackupMetadata{
		Timestamp: timestamp,
		Databases: make([]DatabaseMetadata, 0, len(s.databases)),
	}
	files := make([]string, 0, len(s.databases)+1)

	for _, db := range s.databases {
		filename := db.Name() + ".db"
		snapshotPath := filepath.Join(stagingDir, filename)

		if err := db.Snapshot(ctx, snapshotPath); err != nil {
			return nil, fmt.Errorf("failed to snapshot %s: %w", db.Name(), err)
		}
		if err := VerifySnapshot(ctx, snapshotPath); err != nil {
			return nil, fmt.Errorf("failed to verify %s snapshot: %w", db.Name(), err)
		}

		info, err := os.Stat(snapshotPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s snapshot: %w", db.Name(), err)
		}
		checksum, err := calculateChecksum(snapshotPath)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate checksum for %s: %w", db.Name(), err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      db.Name(),
			Filename:  filename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
		files = append(files, filename)
	}

	if err := writeMetadata(filepath.Join(stagingDir, metadataFile), metadata); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	files = append(files, metadataFile)

	archiveName := archivePrefix + timestamp.Format(timestampLayout) + archiveSuffix
	archivePath := filepath.Join(s.dir, archiveName)
	if err := createArchive(archivePath, stagingDir, files); err != nil {
		_ = os.Remove(archivePath)
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}
	backup := &BackupInfo{
		Filename:  archiveName,
		Path:      archivePath,
		Timestamp: timestamp,
		SizeBytes: archiveInfo.Size(),
	}

	uploaded := false
	if s.uploader != nil {
		if err := s.upload(ctx, backup); err != nil {
			return nil, err
		}
		uploaded = true
	}

	if _, err := s.Rotate(); err != nil {
		// The new archive is already in place
		s.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archiveName).
		Int64("size_bytes", backup.SizeBytes).
		Bool("uploaded", uploaded).
		Msg("Backup completed")

	if s.eventManager != nil {
		s.eventManager.EmitTyped("reliability", &events.BackupCompletedData{
			Databases: s.DatabaseNames(),
			Uploaded:  uploaded,
			SizeBytes: backup.SizeBytes,
		})
	}

	return backup, nil
}

func (s *BackupService) upload(ctx context.Context, backup *BackupInfo) error {
	f, err := os.Open(backup.Path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	if err := s.uploader.Upload(ctx, backup.Filename, f, backup.SizeBytes); err != nil {
		return fmt.Errorf("failed to upload %s: %w", backup.Filename, err)
	}
	return nil
}

// ListBackups returns the archives in the backup directory, newest first
func (s *BackupService) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := make([]BackupInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
			continue
		}

		raw := strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveSuffix)
		timestamp, err := time.Parse(timestampLayout, raw)
		if err != nil {
			s.log.Warn().Str("filename", name).Msg("Failed to parse timestamp from filename")
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		backups = append(backups, BackupInfo{
			Filename:  name,
			Path:      filepath.Join(s.dir, name),
			Timestamp: timestamp,
			SizeBytes: info.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// Rotate deletes all but the newest keep archives and returns how many were removed
func (s *BackupService) Rotate() (int, error) {
	backups, err := s.ListBackups()
	if err != nil {
		return 0, err
	}
	if len(backups) <= s.keep {
		return 0, nil
	}

	deleted := 0
	for _, backup := range backups[s.keep:] {
		if err := os.Remove(backup.Path); err != nil {
			s.log.Error().Err(err).Str("filename", backup.Filename).Msg("Failed to delete old backup")
			continue
		}
		s.log.Debug().Str("filename", backup.Filename).Time("timestamp", backup.Timestamp).Msg("Deleted old backup")
		deleted++
	}

	return deleted, nil
}

// VerifySnapshot opens a snapshot file and runs PRAGMA integrity_check on it
func VerifySnapshot(ctx context.Context, path string) error {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer conn.Close()

	var result string
	if err := conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

func calculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

func createArchive(archivePath, sourceDir string, filenames []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, filename := range filenames {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, filename), filename); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filename, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzipWriter.Close()
}

func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tarWriter, file)
	return err
}
