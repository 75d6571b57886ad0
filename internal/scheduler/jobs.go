package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/assetflow/internal/domain"
	"github.com/aristath/assetflow/internal/events"
	"github.com/aristath/assetflow/internal/modules/marketdata"
	"github.com/rs/zerolog"
)

const (
	refreshTimeout  = 5 * time.Minute
	snapshotTimeout = 15 * time.Minute
)

// PriceRefresher refreshes stored quotes
type PriceRefresher interface {
	Refresh(ctx context.Context) (marketdata.RefreshResult, error)
}

// SnapshotTaker records the daily portfolio snapshot
type SnapshotTaker interface {
	TakeDailySnapshot(ctx context.Context, date time.Time) (domain.PortfolioSnapshot, error)
}

// Backuper takes a backup of the databases
type Backuper interface {
	Backup(ctx context.Context) (events.BackupCompletedData, error)
}

// MarketRefreshJob pulls fresh quotes for every holding
type MarketRefreshJob struct {
	JobBase
	refresher PriceRefresher
	log       zerolog.Logger
}

// NewMarketRefreshJob creates a new MarketRefreshJob
func NewMarketRefreshJob(refresher PriceRefresher, log zerolog.Logger) *MarketRefreshJob {
	return &MarketRefreshJob{
		refresher: refresher,
		log:       log.With().Str("job", "market_refresh").Logger(),
	}
}

// Name returns the job name
func (j *MarketRefreshJob) Name() string {
	return "market_refresh"
}

// Run executes the market refresh job
func (j *MarketRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	res, err := j.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("market refresh failed: %w", err)
	}

	j.log.Info().
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Dur("duration", res.Duration).
		Msg("Market refresh completed")
	return nil
}

// SnapshotJob records today's snapshot and then backs the databases up.
// A failed snapshot does not prevent the backup.
type SnapshotJob struct {
	JobBase
	snapshots SnapshotTaker
	backups   Backuper
	now       func() time.Time
	log       zerolog.Logger
}

// NewSnapshotJob creates a new SnapshotJob. backups may be nil.
func NewSnapshotJob(snapshots SnapshotTaker, backups Backuper, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		snapshots: snapshots,
		backups:   backups,
		now:       time.Now,
		log:       log.With().Str("job", "snapshot").Logger(),
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "snapshot"
}

// Run executes the snapshot job
func (j *SnapshotJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	snap, snapErr := j.snapshots.TakeDailySnapshot(ctx, j.now())
	if snapErr != nil {
		j.log.Error().Err(snapErr).Msg("Failed to take snapshot")
	} else {
		j.log.Info().
			Time("date", snap.Date).
			Float64("total_equity", snap.TotalEquity).
			Msg("Snapshot taken")
	}

	if j.backups != nil {
		if _, err := j.backups.Backup(ctx); err != nil {
			if snapErr != nil {
				return fmt.Errorf("snapshot failed: %v; backup failed: %w", snapErr, err)
			}
			return fmt.Errorf("backup failed: %w", err)
		}
	}

	if snapErr != nil {
		return fmt.Errorf("snapshot failed: %w", snapErr)
	}
	return nil
}
