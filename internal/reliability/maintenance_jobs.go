package reliability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/assetflow/internal/database"
	"github.com/aristath/assetflow/internal/domain"
	"github.com/aristath/assetflow/internal/events"
	"github.com/aristath/assetflow/internal/scheduler/base"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

const (
	backupTimeout      = 10 * time.Minute
	maintenanceTimeout = 5 * time.Minute

	// Below this much free space the maintenance job fails
	criticalFreeBytes = 500 * 1024 * 1024
	lowFreeBytes      = 5 * 1024 * 1024 * 1024
)

// BackupJob takes the local backup, ships it to the object store when one
// is configured and announces the result
type BackupJob struct {
	base.JobBase
	local   *BackupService
	remote  *RemoteBackupService
	emitter domain.EventEmitter
	log     zerolog.Logger
}

// NewBackupJob creates a backup job. remote may be nil.
func NewBackupJob(local *BackupService, remote *RemoteBackupService, emitter domain.EventEmitter, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		local:   local,
		remote:  remote,
		emitter: emitter,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	_, err := j.Backup(ctx)
	return err
}

// Backup runs one backup. A failed upload is logged and reported through
// Remote=false; only the local copy is mandatory.
func (j *BackupJob) Backup(ctx context.Context) (events.BackupCompletedData, error) {
	result := events.BackupCompletedData{RunID: uuid.NewString()}

	local, err := j.local.LocalBackup(ctx)
	if err != nil {
		j.log.Error().Err(err).Str("run_id", result.RunID).Msg("Local backup failed")
		return result, fmt.Errorf("local backup failed: %w", err)
	}
	result.Path = local.Dir
	result.Databases = local.Databases
	result.SizeBytes = local.SizeBytes

	if j.remote != nil {
		if key, err := j.remote.CreateAndUpload(ctx); err != nil {
			j.log.Error().Err(err).Str("run_id", result.RunID).Msg("Remote backup failed")
		} else {
			result.Remote = true
			j.log.Info().Str("key", key).Msg("Backup uploaded")
			if _, err := j.remote.RotateOldBackups(ctx); err != nil {
				j.log.Warn().Err(err).Msg("Failed to rotate remote backups")
			}
		}
	}

	if j.emitter != nil {
		events.Publish(j.emitter, &result)
	}

	return result, nil
}

// DailyMaintenanceJob checks integrity of every database, truncates WAL
// files and watches free disk space
type DailyMaintenanceJob struct {
	base.JobBase
	databases map[string]*database.DB
	dataDir   string
	diskUsage func(path string) (*disk.UsageStat, error)
	log       zerolog.Logger
}

// NewDailyMaintenanceJob creates a new daily maintenance job
func NewDailyMaintenanceJob(databases map[string]*database.DB, dataDir string, log zerolog.Logger) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		databases: databases,
		dataDir:   dataDir,
		diskUsage: disk.Usage,
		log:       log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Name returns the job name
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// Run executes the daily maintenance job
func (j *DailyMaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()

	startTime := time.Now()

	names := make([]string, 0, len(j.databases))
	for name, db := range j.databases {
		if db != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var failed []string
	for _, name := range names {
		db := j.databases[name]
		if err := db.QuickCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("Integrity check failed")
			failed = append(failed, name)
			continue
		}

		// Not critical
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
		}
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	if len(failed) > 0 {
		return fmt.Errorf("integrity check failed for %v", failed)
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Int("databases", len(names)).
		Msg("Daily maintenance completed")
	return nil
}

func (j *DailyMaintenanceJob) checkDiskSpace() error {
	usage, err := j.diskUsage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(usage.Free) / 1e9
	j.log.Debug().Float64("available_gb", availableGB).Float64("used_percent", usage.UsedPercent).Msg("Disk space check")

	if usage.Free < criticalFreeBytes {
		j.log.Error().Float64("available_gb", availableGB).Msg("Insufficient disk space")
		return fmt.Errorf("only %.2f GB free", availableGB)
	}
	if usage.Free < lowFreeBytes {
		j.log.Warn().Float64("available_gb", availableGB).Msg("Disk space running low")
	}
	return nil
}
