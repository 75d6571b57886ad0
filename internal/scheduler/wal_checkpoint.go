package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/assetflow/internal/database"
	"github.com/rs/zerolog"
)

// WALTruncateFrames is the WAL length, in frames, past which a passive
// checkpoint is followed by a TRUNCATE
const WALTruncateFrames = 1000

// WALStatus is one database's state after a passive checkpoint
type WALStatus struct {
	Database     string
	Frames       int
	Checkpointed int
	Busy         bool
	Truncated    bool
	Err          error
}

// WALCheckpointJob runs a passive checkpoint on every database each hour and
// truncates any WAL that is still long afterwards
type WALCheckpointJob struct {
	JobBase
	databases map[string]*database.DB
	threshold int
	log       zerolog.Logger
}

// NewWALCheckpointJob creates the job over the named databases
func NewWALCheckpointJob(databases map[string]*database.DB, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		databases: databases,
		threshold: WALTruncateFrames,
		log:       log.With().Str("job", "check_wal_checkpoints").Logger(),
	}
}

// Name implements Job
func (j *WALCheckpointJob) Name() string { return "check_wal_checkpoints" }

// Run implements Job. Per-database failures are logged, never returned.
func (j *WALCheckpointJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var truncated, failed int
	for _, st := range j.Checkpoint(ctx) {
		switch {
		case st.Err != nil:
			failed++
			j.log.Warn().Err(st.Err).Str("database", st.Database).Msg("WAL checkpoint failed")
		case st.Truncated:
			truncated++
			j.log.Warn().Str("database", st.Database).Int("wal_frames", st.Frames).Msg("Truncated oversized WAL")
		default:
			j.log.Debug().Str("database", st.Database).Int("wal_frames", st.Frames).Bool("busy", st.Busy).Msg("WAL checkpointed")
		}
	}

	j.log.Info().Int("databases", len(j.databases)).Int("truncated", truncated).Int("failed", failed).Msg("WAL checkpoints done")
	return nil
}

// Checkpoint checkpoints every non-nil database in name order
func (j *WALCheckpointJob) Checkpoint(ctx context.Context) []WALStatus {
	names := make([]string, 0, len(j.databases))
	for name, db := range j.databases {
		if db != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]WALStatus, 0, len(names))
	for _, name := range names {
		out = append(out, j.checkpoint(ctx, name, j.databases[name]))
	}
	return out
}

func (j *WALCheckpointJob) checkpoint(ctx context.Context, name string, db *database.DB) WALStatus {
	st := WALStatus{Database: name}

	// Columns: busy flag, WAL frames, frames checkpointed
	var busy int
	if err := db.Conn().QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &st.Frames, &st.Checkpointed); err != nil {
		st.Err = fmt.Errorf("passive checkpoint: %w", err)
		return st
	}
	st.Busy = busy != 0

	if st.Frames > j.threshold {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			st.Err = err
			return st
		}
		st.Truncated = true
	}
	return st
}
