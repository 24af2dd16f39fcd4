// Package di provides dependency injection for service implementations.
package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/stockselect/internal/config"
	"github.com/aristath/stockselect/internal/events"
	"github.com/aristath/stockselect/internal/modules/runs"
	"github.com/aristath/stockselect/internal/modules/universe"
	"github.com/rs/zerolog"
)

const connectTimeout = 10 * time.Second

// InitializeServices creates the event bus, the catalog service and the run
// service, and connects the optional S3 publisher and redis cache
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	var s3Source *universe.S3Source
	if cfg.Catalog.Source == config.SourceS3 || cfg.Catalog.PublishToS3 {
		var err error
		s3Source, err = newS3Source(ctx, cfg, log)
		if err != nil {
			return err
		}
	}

	switch cfg.Catalog.Source {
	case config.SourceCSV:
		container.CatalogSource = universe.NewCSVSource(cfg.Catalog.CSVPath, log)
	case config.SourceS3:
		container.CatalogSource = s3Source
	case config.SourceDB:
		container.CatalogSource = container.UniverseRepo
	default:
		return fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}

	container.UniverseService = universe.NewService(
		container.CatalogSource,
		container.UniverseRepo,
		container.EventManager,
		log,
	)
	if cfg.Catalog.PublishToS3 {
		container.UniverseService.SetPublisher(s3Source)
	}

	container.Registry = runs.NewRegistry(cfg.Strategies)
	container.RunService = runs.NewService(
		container.Registry,
		container.UniverseService,
		container.RunRepo,
		container.EventManager,
		log,
	)
	container.RunService.SetMaxConcurrentRuns(cfg.MaxConcurrentRuns)

	if cfg.Redis.Addr != "" {
		cache, err := runs.NewRedisCache(ctx, runs.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      time.Duration(cfg.Redis.TTLSeconds) * time.Second,
		})
		if err != nil {
			// Runs still work uncached
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Result cache unavailable")
		} else {
			container.RunCache = cache
			container.RunService.SetCache(cache)
			log.Info().Str("addr", cfg.Redis.Addr).Msg("Result cache connected")
		}
	}

	log.Info().
		Str("catalog_source", container.CatalogSource.Name()).
		Strs("strategies", container.Registry.Names()).
		Msg("Services initialized")
	return nil
}

func newS3Source(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*universe.S3Source, error) {
	s3cfg := universe.S3Config{
		Endpoint:       cfg.S3.Endpoint,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		Key:            cfg.S3.Key,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	}
	client, err := universe.NewS3Client(ctx, s3cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}
	return universe.NewS3Source(client, s3cfg, log), nil
}
