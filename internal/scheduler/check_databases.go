package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/stockselect/internal/database"
	"github.com/rs/zerolog"
)

// walWarnFrames is the WAL size, in frames, above which a warning is logged
const walWarnFrames = 1000

// CheckDatabasesJob verifies integrity and reports WAL checkpoint status of
// the SQLite databases
type CheckDatabasesJob struct {
	databases []*database.DB
	log       zerolog.Logger
}

// NewCheckDatabasesJob creates a new CheckDatabasesJob
func NewCheckDatabasesJob(databases ...*database.DB) *CheckDatabasesJob {
	return &CheckDatabasesJob{
		databases: databases,
		log:       zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *CheckDatabasesJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *CheckDatabasesJob) Name() string {
	return "check_databases"
}

// Run checks every database. Integrity failures abort the job; WAL status
// is informational.
func (j *CheckDatabasesJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, db := range j.databases {
		if db == nil {
			continue
		}
		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().
				Err(err).
				Str("database", db.Name()).
				Msg("Database integrity check failed")
			return fmt.Errorf("database %s is corrupted: %w", db.Name(), err)
		}
		j.checkWAL(ctx, db)
	}

	j.log.Info().Int("checked", len(j.databases)).Msg("Database check completed")
	return nil
}

// checkWAL runs a passive checkpoint. The pragma returns busy, log and
// checkpointed frame counts.
func (j *CheckDatabasesJob) checkWAL(ctx context.Context, db *database.DB) {
	var busy, frames, checkpointed int
	err := db.Conn().QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
	if err != nil {
		j.log.Warn().
			Err(err).
			Str("database", db.Name()).
			Msg("Failed to check WAL checkpoint")
		return
	}

	if frames > walWarnFrames {
		j.log.Warn().
			Str("database", db.Name()).
			Int("wal_frames", frames).
			Int("checkpointed", checkpointed).
			Msg("WAL file is large, checkpoint may be needed")
		return
	}
	j.log.Debug().
		Str("database", db.Name()).
		Int("wal_frames", frames).
		Msg("WAL checkpoint status OK")
}
