// Package app wires configuration into the running components shared by
// the API server and the CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/timmy/promptmart/internal/cache"
	"github.com/timmy/promptmart/internal/config"
	"github.com/timmy/promptmart/internal/logger"
	"github.com/timmy/promptmart/internal/metrics"
	"github.com/timmy/promptmart/internal/repository"
	"github.com/timmy/promptmart/internal/service"
	"github.com/timmy/promptmart/internal/source"
	"github.com/timmy/promptmart/internal/source/staging"
	"github.com/timmy/promptmart/internal/storage"
	"github.com/timmy/promptmart/internal/telemetry"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	StoreGorm = "gorm"
	StoreREST = "rest"
)

// Options toggles the optional components.
type Options struct {
	Cache   bool // result cache, off for one-shot CLI runs
	Tracing bool // honour tracing.enabled
}

// App holds the wired components. Repo, DB and Importer are nil when the
// REST store is selected; Media is nil when storage is disabled.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *sql.DB
	Repo     *repository.PromptRepository
	Store    repository.RecordStore
	Media    storage.MediaStorage
	Cache    cache.ResultCache
	Metrics  *metrics.Metrics
	Search   *service.SearchService
	Importer *service.ImportService

	tracer *sdktrace.TracerProvider
}

// New builds every component described by cfg.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	if log == nil {
		log = logger.GetDefault()
	}
	a := &App{Config: cfg, Logger: log}
	ctx = log.WithContext(ctx)

	if opts.Tracing && cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracer(cfg.Tracing.ServiceName, nil)
		if err != nil {
			return nil, err
		}
		a.tracer = tp
		log.WithField("service_name", cfg.Tracing.ServiceName).Info("Tracing enabled")
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.Default()
	}

	if err := a.initStore(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	if cfg.Storage.Enabled {
		s3, err := storage.NewFromConfig(&cfg.Storage)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			log.WithError(err).Warn("Failed to ensure storage bucket")
		}
		a.Media = s3
	}

	if opts.Cache {
		a.Cache = cache.NewFromConfig(ctx, &cfg.Cache)
	}

	normalizer := service.NewNormalizer(cfg.Search.PlaceholderImage, cfg.Search.FallbackAuthor, a.Media)
	a.Search = service.NewSearchService(a.Store, normalizer, a.Cache, a.Metrics, log, service.SearchConfig{
		StoreTimeout:   cfg.Search.StoreTimeout,
		CounterTimeout: cfg.Search.CounterTimeout,
		FeaturedLimit:  cfg.Search.FeaturedLimit,
		TopLimit:       cfg.Search.TopLimit,
	})

	if a.Repo != nil {
		a.Importer = service.NewImportService(a.Repo, a.Media, a.Metrics, log, &service.ImportConfig{
			Workers:   cfg.Catalog.Workers,
			BatchSize: cfg.Catalog.BatchSize,
		})
	}

	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	switch a.Config.Store.Driver {
	case StoreGorm, "":
		db, err := repository.InitDB(&a.Config.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to get sql.DB instance: %w", err)
		}
		a.DB = sqlDB
		a.Repo = repository.NewPromptRepository(db)
		a.Store = a.Repo
	case StoreREST:
		rest := a.Config.Store.REST
		if rest.BaseURL == "" {
			return fmt.Errorf("store.rest.base_url is required for the rest store")
		}
		a.Store = repository.NewRESTStore(repository.RESTStoreConfig{
			BaseURL: rest.BaseURL,
			APIKey:  rest.APIKey,
			Table:   rest.Table,
			Timeout: rest.Timeout,
		})
	default:
		return fmt.Errorf("unsupported store driver %q", a.Config.Store.Driver)
	}

	logger.CtxInfo(ctx, "Record store: %s", a.storeName())
	return nil
}

func (a *App) storeName() string {
	if a.Repo != nil {
		return StoreGorm
	}
	return StoreREST
}

// OpenSource resolves a staging source under catalog.staging_path.
func (a *App) OpenSource(name string) (source.Source, error) {
	return staging.Open(a.Config.Catalog.StagingPath, name)
}

// Close waits for background counter updates and releases resources.
func (a *App) Close(ctx context.Context) {
	if a.Search != nil {
		a.Search.Wait()
	}
	if mc, ok := a.Cache.(*cache.MemoryCache); ok {
		mc.Stop()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.WithError(err).Warn("Failed to close database")
		}
	}
	telemetry.Shutdown(ctx, a.tracer)
}
