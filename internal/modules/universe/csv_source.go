package universe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/aristath/stockselect/internal/domain"
	"github.com/rs/zerolog"
)

// CSVSource reads summaries from a local file
type CSVSource struct {
	path string
	log  zerolog.Logger
}

// NewCSVSource creates a CSV file source
func NewCSVSource(path string, log zerolog.Logger) *CSVSource {
	return &CSVSource{
		path: path,
		log:  log.With().Str("source", "csv").Logger(),
	}
}

// Name implements Source
func (s *CSVSource) Name() string {
	return "csv"
}

// Load implements Source
func (s *CSVSource) Load(ctx context.Context) (*domain.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("summary file %s: %w", s.path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open summary file: %w", err)
	}
	defer f.Close()

	instruments, skipped, err := ParseSummaries(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return buildCatalog(instruments, skipped, s.path, s.log)
}
