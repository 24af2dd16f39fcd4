package universe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/stockselect/internal/domain"
	"github.com/aristath/stockselect/internal/events"
	"github.com/rs/zerolog"
)

// Publisher pushes summaries to a shared location after ingest.
type Publisher interface {
	Upload(ctx context.Context, instruments []domain.Instrument) error
}

// Service owns the in-memory catalog used by strategy runs.
type Service struct {
	source    Source
	repo      *Repository
	events    *events.Manager
	publisher Publisher
	log       zerolog.Logger

	mu          sync.RWMutex
	catalog     *domain.Catalog
	refreshedAt time.Time
}

// NewService creates the catalog service. source may be the repository
// itself, in which case Refresh simply reloads from the database.
func NewService(source Source, repo *Repository, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		source: source,
		repo:   repo,
		events: eventManager,
		log:    log.With().Str("service", "universe").Logger(),
	}
}

// SetPublisher enables publishing summaries after ingest.
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// SourceName returns the configured source name.
func (s *Service) SourceName() string {
	return s.source.Name()
}

// Catalog returns the current catalog, loading it from the database on
// first use.
func (s *Service) Catalog(ctx context.Context) (*domain.Catalog, error) {
	s.mu.RLock()
	catalog := s.catalog
	s.mu.RUnlock()
	if catalog != nil {
		return catalog, nil
	}

	catalog, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if catalog.Len() == 0 {
		return nil, fmt.Errorf("catalog is empty: %w", domain.ErrNotFound)
	}
	s.setCatalog(catalog)
	return catalog, nil
}

// RefreshedAt returns when the catalog was last replaced.
func (s *Service) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshedAt
}

// Refresh loads the catalog from the configured source, persists it and
// swaps it in. Returns the number of instruments.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	catalog, err := s.source.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load catalog from %s: %w", s.source.Name(), err)
	}
	if catalog.Len() == 0 {
		return 0, fmt.Errorf("%w: source %s returned no instruments", domain.ErrInvalidConfiguration, s.source.Name())
	}

	if s.source != Source(s.repo) {
		if err := s.repo.ReplaceAll(ctx, catalog.Instruments(), s.source.Name()); err != nil {
			return 0, fmt.Errorf("failed to persist catalog: %w", err)
		}
	}

	s.setCatalog(catalog)
	s.log.Info().Str("source", s.source.Name()).Int("instruments", catalog.Len()).Msg("Catalog refreshed")
	s.emitRefreshed(s.source.Name(), catalog.Len())
	return catalog.Len(), nil
}

// Ingest summarizes raw price series, stores prices and summaries, and
// reloads the catalog from the database. Existing instruments not in the
// batch are kept.
func (s *Service) Ingest(ctx context.Context, series []Series) ([]domain.Instrument, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no series provided", domain.ErrInvalidConfiguration)
	}

	summaries := make([]domain.Instrument, 0, len(series))
	for _, ser := range series {
		inst, err := SummarizeSeries(ser)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, inst)
	}

	for _, ser := range series {
		if err := s.repo.SavePrices(ctx, ser.Identifier, ser.Prices); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Upsert(ctx, summaries, "ingest"); err != nil {
		return nil, err
	}

	catalog, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reload catalog: %w", err)
	}
	s.setCatalog(catalog)
	s.emitRefreshed("ingest", catalog.Len())

	if s.publisher != nil {
		if err := s.publisher.Upload(ctx, catalog.Instruments()); err != nil {
			s.log.Warn().Err(err).Msg("Failed to publish summaries")
		}
	}

	s.log.Info().Int("series", len(series)).Int("instruments", catalog.Len()).Msg("Ingested price series")
	return summaries, nil
}

func (s *Service) setCatalog(c *domain.Catalog) {
	s.mu.Lock()
	s.catalog = c
	s.refreshedAt = time.Now()
	s.mu.Unlock()
}

func (s *Service) emitRefreshed(source string, n int) {
	if s.events == nil {
		return
	}
	s.events.EmitTyped("universe", &events.CatalogRefreshedData{Source: source, Instruments: n})
}
