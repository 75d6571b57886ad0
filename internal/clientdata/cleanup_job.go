package clientdata

import (
	"context"
	"time"

	"github.com/aristath/assetflow/internal/scheduler/base"
	"github.com/rs/zerolog"
)

const cleanupTimeout = 2 * time.Minute

// CleanupJob purges expired cache entries so client_data.db does not grow
// without bound. Fresh and stale-but-recent entries are handled by the
// clients themselves.
type CleanupJob struct {
	base.JobBase
	repo *Repository
	log  zerolog.Logger
}

// NewCleanupJob creates the purge job
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "client_data_cleanup").Logger(),
	}
}

// Name implements scheduler.Job
func (j *CleanupJob) Name() string { return "client_data_cleanup" }

// Run implements scheduler.Job
func (j *CleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	report, err := j.repo.PurgeAll(ctx)
	if err != nil {
		return err
	}

	evt := j.log.Debug()
	if report.Total > 0 {
		evt = j.log.Info()
	}
	for table, n := range report.Deleted {
		evt = evt.Int64(table, n)
	}
	evt.Int64("total", report.Total).Msg("Purged expired client data")
	return nil
}
