package runs

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/stockselect/internal/domain"
	"github.com/aristath/stockselect/internal/events"
	"github.com/aristath/stockselect/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrentRuns bounds RunBatch when nothing else is configured.
const DefaultMaxConcurrentRuns = 4

// progressEvents is the approximate number of progress events per run.
const progressEvents = 50

// CatalogProvider returns the catalog runs select from.
type CatalogProvider interface {
	Catalog(ctx context.Context) (*domain.Catalog, error)
}

// Service runs strategies and records their results.
type Service struct {
	registry      *Registry
	catalogs      CatalogProvider
	repo          *Repository
	cache         Cache
	events        *events.Manager
	maxConcurrent int
	log           zerolog.Logger
}

// NewService creates the run service. The cache is disabled until SetCache.
func NewService(registry *Registry, catalogs CatalogProvider, repo *Repository, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		registry:      registry,
		catalogs:      catalogs,
		repo:          repo,
		events:        eventManager,
		maxConcurrent: DefaultMaxConcurrentRuns,
		log:           log.With().Str("service", "runs").Logger(),
	}
}

// SetCache enables result caching.
func (s *Service) SetCache(c Cache) {
	s.cache = c
}

// SetMaxConcurrentRuns bounds RunBatch; values below 1 are ignored.
func (s *Service) SetMaxConcurrentRuns(n int) {
	if n >= 1 {
		s.maxConcurrent = n
	}
}

// Registry returns the strategy registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Run executes one request on the current catalog and records it.
func (s *Service) Run(ctx context.Context, req Request) (*Run, error) {
	catalog, err := s.catalogs.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	log := s.log.With().Str("run_id", id).Str("strategy", req.Strategy).Logger()

	b, err := s.registry.Build(req.Strategy, req.Params, req.Seed, s.progressFunc(id, req.Strategy), log)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateSearch(catalog, req.Size); err != nil {
		return nil, err
	}

	run := &Run{
		ID:       id,
		Strategy: req.Strategy,
		Size:     req.Size,
		Seed:     b.Seed,
		Params:   b.Params,
	}

	var cacheKey string
	if s.cache != nil && !req.NoCache {
		fingerprint, err := Fingerprint(catalog)
		if err != nil {
			return nil, err
		}
		cacheKey = CacheKey(req.Strategy, b.Params, req.Size, fingerprint)
		if result, ok := s.lookup(ctx, cacheKey, log); ok {
			run.Result = result
			run.Cached = true
			return s.complete(ctx, run, log), nil
		}
	}

	s.emit(&events.RunStartedData{RunID: id, Strategy: req.Strategy, Size: req.Size, Seed: b.Seed})
	log.Info().Int("size", req.Size).Int64("seed", b.Seed).Int("catalog", catalog.Len()).Msg("Starting run")

	timer := utils.NewTimer(req.Strategy+" run", log)
	result, err := b.Strategy.Search(ctx, catalog, req.Size)
	timer.Stop()
	if err != nil {
		log.Warn().Err(err).Msg("Run failed")
		s.emit(&events.RunFailedData{RunID: id, Strategy: req.Strategy, Error: err.Error()})
		return nil, fmt.Errorf("%s run failed: %w", req.Strategy, err)
	}
	run.Result = result

	if cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, result); err != nil {
			log.Warn().Err(err).Msg("Failed to cache result")
		}
	}
	return s.complete(ctx, run, log), nil
}

// RunBatch executes requests concurrently, bounded by the configured limit.
// Individual failures are reported per item; only cancellation of ctx fails
// the batch.
func (s *Service) RunBatch(ctx context.Context, reqs []Request) ([]BatchItem, error) {
	items := make([]BatchItem, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for i, req := range reqs {
		i, req := i, req
		items[i].Request = req
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				items[i].err = err
				items[i].Error = err.Error()
				return nil
			}
			run, err := s.Run(gctx, req)
			if err != nil {
				items[i].err = err
				items[i].Error = err.Error()
				return nil
			}
			items[i].Run = run
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return items, err
	}
	return items, nil
}

// Compare runs every registered strategy with the same size and seed.
func (s *Service) Compare(ctx context.Context, size int, seed *int64) ([]BatchItem, error) {
	names := s.registry.Names()
	reqs := make([]Request, len(names))
	for i, name := range names {
		reqs[i] = Request{Strategy: name, Size: size, Seed: seed}
	}
	return s.RunBatch(ctx, reqs)
}

// Get returns a recorded run.
func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	return s.repo.Get(ctx, id)
}

// List returns recorded runs, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Run, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) lookup(ctx context.Context, key string, log zerolog.Logger) (*domain.Result, bool) {
	result, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("Cache lookup failed")
		return nil, false
	}
	if ok {
		log.Debug().Str("key", key).Msg("Cache hit")
	}
	return result, ok
}

// complete records the run and emits RunCompleted. History failures are
// logged; the result is still returned.
func (s *Service) complete(ctx context.Context, run *Run, log zerolog.Logger) *Run {
	run.CreatedAt = time.Now().UTC()
	if s.repo != nil {
		if err := s.repo.Save(ctx, run); err != nil {
			log.Error().Err(err).Msg("Failed to record run")
		}
	}

	s.emit(&events.RunCompletedData{
		RunID:      run.ID,
		Strategy:   run.Strategy,
		Score:      run.Result.Score,
		Members:    run.Result.Identifiers(),
		DurationMs: run.Result.Duration.Milliseconds(),
		Cached:     run.Cached,
	})
	log.Info().
		Float64("score", run.Result.Score).
		Strs("members", run.Result.Identifiers()).
		Bool("cached", run.Cached).
		Msg("Run completed")
	return run
}

func (s *Service) progressFunc(runID, strategy string) domain.ProgressFunc {
	if s.events == nil {
		return nil
	}
	return func(p domain.Progress) {
		stride := p.Total / progressEvents
		if stride < 1 {
			stride = 1
		}
		if p.Step%stride != 0 && p.Step != p.Total {
			return
		}
		s.emit(&events.RunProgressData{
			RunID:     runID,
			Strategy:  strategy,
			Step:      p.Step,
			Total:     p.Total,
			BestScore: p.BestScore,
		})
	}
}

func (s *Service) emit(data events.EventData) {
	if s.events != nil {
		s.events.EmitTyped("runs", data)
	}
}
