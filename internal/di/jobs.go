package di

import (
	"fmt"

	"github.com/aristath/assetflow/internal/clientdata"
	"github.com/aristath/assetflow/internal/config"
	"github.com/aristath/assetflow/internal/reliability"
	"github.com/aristath/assetflow/internal/scheduler"
	"github.com/rs/zerolog"
)

// Fixed schedules for housekeeping jobs
const (
	clientDataCleanupSchedule = "0 30 3 * * *"
	walCheckpointSchedule     = "0 0 * * * *"
)

// RegisterJobs creates every job and adds it to the scheduler. The scheduler
// is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Scheduler == nil {
		return nil, fmt.Errorf("container is not initialized")
	}

	backup := reliability.NewBackupJob(container.BackupService, container.RemoteBackupService, container.EventHub, log)
	instances := &JobInstances{
		MarketRefresh:     scheduler.NewMarketRefreshJob(container.RefreshService, log),
		Snapshot:          scheduler.NewSnapshotJob(container.SnapshotService, backup, log),
		Backup:            backup,
		DailyMaintenance:  reliability.NewDailyMaintenanceJob(container.Databases(), cfg.DataDir, log),
		ClientDataCleanup: clientdata.NewCleanupJob(container.ClientDataRepo, log),
		WALCheckpoints:    scheduler.NewWALCheckpointJob(container.Databases(), log),
	}

	schedules := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.RefreshSchedule, instances.MarketRefresh},
		{cfg.SnapshotSchedule, instances.Snapshot},
		{cfg.BackupSchedule, instances.DailyMaintenance},
		{clientDataCleanupSchedule, instances.ClientDataCleanup},
		{walCheckpointSchedule, instances.WALCheckpoints},
	}
	for _, s := range schedules {
		if err := container.Scheduler.AddJob(s.schedule, s.job); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", s.job.Name(), err)
		}
	}

	log.Info().Int("jobs", len(schedules)).Msg("Jobs registered")
	return instances, nil
}
