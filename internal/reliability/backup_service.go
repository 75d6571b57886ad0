// Package reliability keeps verified local and remote copies of the databases.
package reliability

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aristath/assetflow/internal/database"
	"github.com/rs/zerolog"
)

const backupDateLayout = "2006-01-02"

// LocalBackup describes one run of the local backup
type LocalBackup struct {
	Dir       string   `json:"dir"`
	Files     []string `json:"files"`
	Databases []string `json:"databases"`
	SizeBytes int64    `json:"size_bytes"`
}

// BackupService writes verified VACUUM INTO copies of the databases into
// dated directories and rotates old ones
type BackupService struct {
	databases     map[string]*database.DB
	backupDir     string
	retentionDays int
	now           func() time.Time
	log           zerolog.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(
	databases map[string]*database.DB,
	backupDir string,
	retentionDays int,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		databases:     databases,
		backupDir:     backupDir,
		retentionDays: retentionDays,
		now:           time.Now,
		log:           log.With().Str("service", "backup").Logger(),
	}
}

// DatabaseNames returns the databases worth backing up, sorted. The client
// data cache is rebuilt from providers and is skipped.
func (s *BackupService) DatabaseNames() []string {
	names := make([]string, 0, len(s.databases))
	for name, db := range s.databases {
		if name == database.NameClientData || db == nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BackupFileName is the file name of a database copy taken on date
func BackupFileName(dbName string, date time.Time) string {
	if dbName == database.NamePortfolio {
		return fmt.Sprintf("assetflow_backup_%s.db", date.Format(backupDateLayout))
	}
	return fmt.Sprintf("assetflow_%s_backup_%s.db", dbName, date.Format(backupDateLayout))
}

// LocalBackup copies every database into backups/YYYY-MM-DD, verifies each
// copy and rotates directories past the retention period. A copy that fails
// verification is removed and the run fails.
func (s *BackupService) LocalBackup(ctx context.Context) (LocalBackup, error) {
	startTime := s.now()
	dailyDir := filepath.Join(s.backupDir, startTime.Format(backupDateLayout))
	if err := os.MkdirAll(dailyDir, 0755); err != nil {
		return LocalBackup{}, fmt.Errorf("failed to create backup directory: %w", err)
	}

	result := LocalBackup{Dir: dailyDir}
	for _, name := range s.DatabaseNames() {
		dest := filepath.Join(dailyDir, BackupFileName(name, startTime))

		size, err := s.BackupDatabase(ctx, name, dest)
		if err != nil {
			return result, fmt.Errorf("failed to backup %s: %w", name, err)
		}
		result.Files = append(result.Files, dest)
		result.Databases = append(result.Databases, name)
		result.SizeBytes += size
	}

	if removed, err := s.RotateLocal(); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate local backups")
	} else if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("Rotated local backups")
	}

	s.log.Info().
		Dur("duration_ms", s.now().Sub(startTime)).
		Str("backup_dir", dailyDir).
		Int("databases", len(result.Databases)).
		Msg("Local backup completed")

	return result, nil
}

// BackupDatabase writes a verified copy of one database to dest, replacing
// any earlier copy, and returns its size
func (s *BackupService) BackupDatabase(ctx context.Context, name, dest string) (int64, error) {
	db, ok := s.databases[name]
	if !ok || db == nil {
		return 0, fmt.Errorf("database %s not found", name)
	}

	// VACUUM INTO refuses to overwrite
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("failed to remove previous backup: %w", err)
	}

	if err := db.VacuumInto(ctx, dest); err != nil {
		return 0, err
	}

	if err := VerifyBackup(ctx, dest); err != nil {
		_ = os.Remove(dest)
		return 0, fmt.Errorf("backup verification failed: %w", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to stat backup: %w", err)
	}

	s.log.Debug().
		Str("database", name).
		Str("backup_path", dest).
		Float64("size_mb", float64(info.Size())/1024/1024).
		Msg("Backup created")

	return info.Size(), nil
}

// VerifyBackup runs PRAGMA integrity_check against a backup file
func VerifyBackup(ctx context.Context, path string) error {
	backupDB, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer backupDB.Close()

	var result string
	if err := backupDB.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// RotateLocal deletes dated backup directories older than the retention
// period and returns how many were removed
func (s *BackupService) RotateLocal() (int, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read backup directory: %w", err)
	}

	today := s.now().UTC()
	cutoff := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -s.retentionDays)

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dirDate, err := time.Parse(backupDateLayout, entry.Name())
		if err != nil {
			s.log.Warn().Str("dir", entry.Name()).Msg("Failed to parse date from directory name")
			continue
		}

		if dirDate.Before(cutoff) {
			path := filepath.Join(s.backupDir, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				s.log.Warn().Str("path", path).Err(err).Msg("Failed to delete old backup")
				continue
			}
			s.log.Debug().Str("path", path).Msg("Deleted old backup")
			removed++
		}
	}
	return removed, nil
}
