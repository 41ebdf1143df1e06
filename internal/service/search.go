package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/promptmart/internal/cache"
	"github.com/timmy/promptmart/internal/domain"
	"github.com/timmy/promptmart/internal/logger"
	"github.com/timmy/promptmart/internal/metrics"
	"github.com/timmy/promptmart/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	entrySearch = "search"
	entryAdmin  = "admin"
	entryGet    = "get"

	defaultStoreTimeout   = 5 * time.Second
	defaultCounterTimeout = 3 * time.Second
	defaultFeaturedLimit  = 6
	defaultTopLimit       = 10
)

// SearchConfig holds configuration for the search service.
type SearchConfig struct {
	StoreTimeout   time.Duration // bound on every store call
	CounterTimeout time.Duration // bound on background counter increments
	FeaturedLimit  int
	TopLimit       int
}

func (c SearchConfig) withDefaults() SearchConfig {
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = defaultStoreTimeout
	}
	if c.CounterTimeout <= 0 {
		c.CounterTimeout = defaultCounterTimeout
	}
	if c.FeaturedLimit <= 0 {
		c.FeaturedLimit = defaultFeaturedLimit
	}
	if c.TopLimit <= 0 {
		c.TopLimit = defaultTopLimit
	}
	return c
}

// SearchService composes catalog searches: it plans a store query from a
// SearchRequest, normalizes the raw records, re-applies the canonical
// predicates, sorts and truncates. Search never returns an error; store
// failures yield an empty result and are logged and counted.
type SearchService struct {
	store      repository.RecordStore
	normalizer *Normalizer
	cache      cache.ResultCache
	metrics    *metrics.Metrics
	logger     *logger.Logger
	tracer     trace.Tracer
	cfg        SearchConfig

	// background counter increments
	pending sync.WaitGroup
}

// NewSearchService creates a new search service.
// Parameters:
//   - store: record store queried by every search.
//   - normalizer: raw record normalizer; nil uses the defaults.
//   - resultCache: optional result cache; nil disables caching.
//   - m: optional metrics; nil records nothing.
//   - log: logger used when the context carries none.
//   - cfg: timeouts and preset limits; zero values select defaults.
//
// Returns:
//   - *SearchService: initialized search service.
func NewSearchService(
	store repository.RecordStore,
	normalizer *Normalizer,
	resultCache cache.ResultCache,
	m *metrics.Metrics,
	log *logger.Logger,
	cfg SearchConfig,
) *SearchService {
	if normalizer == nil {
		normalizer = NewNormalizer("", "", nil)
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &SearchService{
		store:      store,
		normalizer: normalizer,
		cache:      resultCache,
		metrics:    m,
		logger:     log,
		tracer:     otel.Tracer("github.com/timmy/promptmart/internal/service"),
		cfg:        cfg.withDefaults(),
	}
}

// withLogger attaches the service logger unless ctx already carries one.
func (s *SearchService) withLogger(ctx context.Context) context.Context {
	if logger.FromContext(ctx) == logger.GetDefault() {
		return s.logger.WithContext(ctx)
	}
	return ctx
}

// Search returns the active prompts matching req, in the requested order.
// The result is never nil.
func (s *SearchService) Search(ctx context.Context, req domain.SearchRequest) []domain.Prompt {
	return s.search(ctx, entrySearch, req, activeOnly)
}

// AdminSearch is Search without the visibility predicate: inactive
// (unapproved) prompts are included. It never reads or fills the cache.
func (s *SearchService) AdminSearch(ctx context.Context, req domain.SearchRequest) []domain.Prompt {
	return s.search(ctx, entryAdmin, req, includeInactive)
}

func (s *SearchService) search(ctx context.Context, entry string, req domain.SearchRequest, vis visibility) []domain.Prompt {
	start := time.Now()
	req = req.Normalized()

	ctx = s.withLogger(ctx)
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldComponent:  "search",
		logger.FieldSearchID:   uuid.NewString(),
		logger.FieldEntryPoint: entry,
	})

	ctx, span := s.tracer.Start(ctx, "SearchService.search", trace.WithAttributes(
		attribute.String("search.entry", entry),
		attribute.String("search.sort", string(req.SortBy)),
		attribute.String("search.price", string(req.PriceFilter)),
		attribute.Int("search.limit", req.Limit),
		attribute.Bool("search.has_query", req.Query != ""),
		attribute.Int("search.tags", len(req.Tags)),
	))
	defer span.End()

	useCache := s.cache != nil && vis == activeOnly
	var key string
	if useCache {
		key = req.CacheKey()
		if cached, ok := s.cache.Get(ctx, key); ok {
			s.metrics.CacheLookup(true)
			span.SetAttributes(attribute.Bool("search.cache_hit", true), attribute.Int("search.results", len(cached)))
			s.metrics.ObserveSearch(entry, statusFor(cached), time.Since(start))
			if cached == nil {
				cached = []domain.Prompt{}
			}
			return cached
		}
		s.metrics.CacheLookup(false)
	}

	results, err := s.evaluate(ctx, req, vis)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store unavailable")
		s.metrics.StoreFailure("find")
		s.metrics.ObserveSearch(entry, metrics.StatusError, time.Since(start))
		logger.With(logger.Fields{
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
		}).Error(ctx, "Search failed, returning empty result: query=%q, category=%q, error=%v",
			req.Query, req.Category, err)
		return []domain.Prompt{}
	}

	if useCache {
		s.cache.Set(ctx, key, results)
	}

	span.SetAttributes(attribute.Int("search.results", len(results)))
	s.metrics.ObserveSearch(entry, statusFor(results), time.Since(start))
	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldCount:      len(results),
	}).Debug(ctx, "Search completed: query=%q, category=%q, tags=%v, price=%s, sort=%s, limit=%d",
		req.Query, req.Category, req.Tags, req.PriceFilter, req.SortBy, req.Limit)

	return results
}

// evaluate runs the pipeline for a normalized request.
func (s *SearchService) evaluate(ctx context.Context, req domain.SearchRequest, vis visibility) ([]domain.Prompt, error) {
	q := buildQuery(req, vis, s.normalizer.FallbackAuthor())

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	records, err := s.store.Find(storeCtx, q)
	if err != nil {
		return nil, err
	}

	prompts, dropped := s.normalizer.NormalizeAll(records)
	if dropped > 0 {
		logger.CtxWarn(ctx, "Dropped %d records without id", dropped)
	}

	results := prompts[:0]
	for _, p := range prompts {
		if matches(p, req, vis) {
			results = append(results, p)
		}
	}

	sortPrompts(results, req.SortBy)
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}
	return results, nil
}

func statusFor(results []domain.Prompt) string {
	if len(results) == 0 {
		return metrics.StatusEmpty
	}
	return metrics.StatusOK
}

// Get returns the active prompt with id. It reports false when the prompt
// does not exist, is inactive, or the store fails.
func (s *SearchService) Get(ctx context.Context, id string) (domain.Prompt, bool) {
	ctx = logger.SetEntryPoint(logger.SetPromptID(s.withLogger(ctx), id), entryGet)

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	records, err := s.store.Find(storeCtx, repository.Query{
		Filters: []repository.Filter{
			repository.Where(repository.FieldID, repository.OpEq, id),
			repository.Where(repository.FieldIsActive, repository.OpEq, true),
		},
		Limit: 1,
	})
	if err != nil {
		s.metrics.StoreFailure("get")
		logger.CtxError(ctx, "Failed to load prompt: error=%v", err)
		return domain.Prompt{}, false
	}
	for _, raw := range records {
		if p, ok := s.normalizer.Normalize(raw); ok && p.ID == id && p.IsActive {
			return p, true
		}
	}
	return domain.Prompt{}, false
}

// IncrementViews adds one view to the prompt. Failures, including an
// unknown id, are logged and never returned.
func (s *SearchService) IncrementViews(ctx context.Context, id string) {
	s.increment(ctx, id, repository.CounterViews)
}

// IncrementDownloads adds one download to the prompt. Failures are logged
// and never returned.
func (s *SearchService) IncrementDownloads(ctx context.Context, id string) {
	s.increment(ctx, id, repository.CounterDownloads)
}

func (s *SearchService) increment(ctx context.Context, id string, counter repository.Counter) {
	ctx = logger.SetPromptID(s.withLogger(ctx), id)

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	err := s.store.Increment(storeCtx, id, counter)
	switch {
	case err == nil:
		s.metrics.CounterIncrement(string(counter), metrics.StatusOK)
	case errors.Is(err, repository.ErrNotFound):
		s.metrics.CounterIncrement(string(counter), "not_found")
		logger.CtxWarn(ctx, "Increment %s skipped: prompt not found", counter)
	default:
		s.metrics.CounterIncrement(string(counter), metrics.StatusError)
		s.metrics.StoreFailure("increment")
		logger.CtxError(ctx, "Increment %s failed: error=%v", counter, err)
	}
}

// TrackView increments views in the background. The caller's cancellation
// does not abort the increment; CounterTimeout bounds it instead.
func (s *SearchService) TrackView(ctx context.Context, id string) {
	s.track(ctx, id, s.IncrementViews)
}

// TrackDownload increments downloads in the background.
func (s *SearchService) TrackDownload(ctx context.Context, id string) {
	s.track(ctx, id, s.IncrementDownloads)
}

func (s *SearchService) track(ctx context.Context, id string, inc func(context.Context, string)) {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CounterTimeout)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()
		inc(bg, id)
	}()
}

// Wait blocks until background increments have finished.
func (s *SearchService) Wait() {
	s.pending.Wait()
}
