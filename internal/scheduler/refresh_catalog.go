package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// CatalogRefresher reloads the catalog from its configured source
type CatalogRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

// RefreshCatalogJob reloads the instrument catalog
type RefreshCatalogJob struct {
	refresher CatalogRefresher
	timeout   time.Duration
	log       zerolog.Logger
}

// NewRefreshCatalogJob creates a new RefreshCatalogJob
func NewRefreshCatalogJob(refresher CatalogRefresher, timeout time.Duration) *RefreshCatalogJob {
	return &RefreshCatalogJob{
		refresher: refresher,
		timeout:   timeout,
		log:       zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *RefreshCatalogJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *RefreshCatalogJob) Name() string {
	return "refresh_catalog"
}

// Run executes the refresh
func (j *RefreshCatalogJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("catalog refresh failed: %w", err)
	}

	j.log.Info().Int("instruments", n).Msg("Scheduled catalog refresh completed")
	return nil
}
