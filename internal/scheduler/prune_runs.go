package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RunPruner deletes run history older than a cutoff
type RunPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneRunsJob enforces the run history retention window
type PruneRunsJob struct {
	pruner    RunPruner
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewPruneRunsJob creates a job removing runs older than retention
func NewPruneRunsJob(pruner RunPruner, retention time.Duration) *PruneRunsJob {
	return &PruneRunsJob{
		pruner:    pruner,
		retention: retention,
		now:       time.Now,
		log:       zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *PruneRunsJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *PruneRunsJob) Name() string {
	return "prune_runs"
}

// Run deletes expired runs
func (j *PruneRunsJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := j.now().Add(-j.retention)
	n, err := j.pruner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune runs: %w", err)
	}

	j.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("Pruned run history")
	return nil
}
