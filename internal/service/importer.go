package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/promptmart/internal/domain"
	"github.com/timmy/promptmart/internal/logger"
	"github.com/timmy/promptmart/internal/metrics"
	"github.com/timmy/promptmart/internal/source"
	"github.com/timmy/promptmart/internal/storage"
)

// importNamespace seeds deterministic prompt ids for catalog items that
// carry none.
var importNamespace = uuid.MustParse("8f7c1d2e-6a4b-5c3d-9e8f-0a1b2c3d4e5f")

// PromptWriter is the write side of the catalog used by imports.
type PromptWriter interface {
	Exists(ctx context.Context, id string) (bool, error)
	Upsert(ctx context.Context, prompt *domain.Prompt) error
}

// ImportService loads catalog sources into the prompt store.
type ImportService struct {
	repo       PromptWriter
	media      storage.MediaStorage
	normalizer *Normalizer
	metrics    *metrics.Metrics
	logger     *logger.Logger
	workers    int
	batchSize  int
	now        func() time.Time
}

// ImportConfig holds configuration for the import service
type ImportConfig struct {
	Workers   int
	BatchSize int
}

// NewImportService creates a new import service. media may be nil, in
// which case local images are skipped with a warning.
func NewImportService(
	repo PromptWriter,
	media storage.MediaStorage,
	m *metrics.Metrics,
	log *logger.Logger,
	cfg *ImportConfig,
) *ImportService {
	if log == nil {
		log = logger.GetDefault()
	}
	workers, batchSize := 4, 50
	if cfg != nil {
		if cfg.Workers > 0 {
			workers = cfg.Workers
		}
		if cfg.BatchSize > 0 {
			batchSize = cfg.BatchSize
		}
	}
	return &ImportService{
		repo: repo,
		// keys are stored unresolved; search resolves them at read time
		normalizer: NewNormalizer("", "", nil),
		media:      media,
		metrics:    m,
		logger:     log,
		workers:    workers,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// log returns a logger from context if available, otherwise returns the service logger
func (s *ImportService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != logger.GetDefault() {
		return l
	}
	return s.logger
}

// ImportStats holds statistics for an import run
type ImportStats struct {
	TotalItems    int64
	ImportedItems int64
	SkippedItems  int64
	FailedItems   int64
	StartTime     time.Time
	EndTime       time.Time
}

// ImportOptions holds options for an import run
type ImportOptions struct {
	Force    bool // Overwrite prompts that already exist
	Activate bool // Publish imported prompts instead of leaving them for approval
}

type importResult struct {
	sourceID string
	skipped  bool
	err      error
}

var errAlreadyImported = errors.New("skipped: already imported")

// ImportFromSource imports up to limit items from src. limit <= 0 imports
// everything.
func (s *ImportService) ImportFromSource(ctx context.Context, src source.Source, limit int, opts *ImportOptions) (*ImportStats, error) {
	if opts == nil {
		opts = &ImportOptions{}
	}

	stats := &ImportStats{
		StartTime: s.now(),
	}
	sourceID := src.GetSourceID()
	ctx = logger.WithFields(s.log(ctx).WithContext(ctx), logger.Fields{
		logger.FieldComponent: "import",
		logger.FieldSource:    sourceID,
	})

	s.log(ctx).WithFields(logger.Fields{
		"limit":    limit,
		"force":    opts.Force,
		"activate": opts.Activate,
	}).Info("Starting catalog import")

	itemsChan := make(chan source.Item, s.workers*2)
	resultsChan := make(chan *importResult, s.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, sourceID, itemsChan, resultsChan, opts)
		}()
	}

	done := make(chan struct{})
	go func() {
		for result := range resultsChan {
			switch {
			case result.skipped:
				atomic.AddInt64(&stats.SkippedItems, 1)
				s.metrics.ImportItem(sourceID, "skipped")
			case result.err != nil:
				atomic.AddInt64(&stats.FailedItems, 1)
				s.metrics.ImportItem(sourceID, metrics.StatusError)
				s.log(ctx).WithFields(logger.Fields{
					"source_item": result.sourceID,
				}).WithError(result.err).Error("Failed to import item")
			default:
				atomic.AddInt64(&stats.ImportedItems, 1)
				s.metrics.ImportItem(sourceID, "imported")
			}
		}
		close(done)
	}()

	var fetchErr error
	cursor := ""
	totalFetched := 0
fetch:
	for ctx.Err() == nil {
		batchLimit := s.batchSize
		if limit > 0 {
			remaining := limit - totalFetched
			if remaining <= 0 {
				break
			}
			if batchLimit > remaining {
				batchLimit = remaining
			}
		}

		items, nextCursor, err := src.FetchBatch(ctx, cursor, batchLimit)
		if err != nil {
			fetchErr = fmt.Errorf("failed to fetch batch: %w", err)
			break
		}
		if len(items) == 0 {
			break
		}

		atomic.AddInt64(&stats.TotalItems, int64(len(items)))
		totalFetched += len(items)

		for _, item := range items {
			select {
			case itemsChan <- item:
			case <-ctx.Done():
				break fetch
			}
		}

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	close(itemsChan)
	wg.Wait()
	close(resultsChan)
	<-done

	stats.EndTime = s.now()

	s.log(ctx).WithFields(logger.Fields{
		"total":    stats.TotalItems,
		"imported": stats.ImportedItems,
		"skipped":  stats.SkippedItems,
		"failed":   stats.FailedItems,
		"duration": stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Catalog import completed")

	if fetchErr != nil {
		return stats, fetchErr
	}
	return stats, ctx.Err()
}

func (s *ImportService) worker(ctx context.Context, sourceID string, items <-chan source.Item, results chan<- *importResult, opts *ImportOptions) {
	for item := range items {
		result := &importResult{sourceID: item.SourceID}
		if ctx.Err() != nil {
			result.err = ctx.Err()
			results <- result
			continue
		}

		err := s.importItem(ctx, sourceID, item, opts)
		switch {
		case errors.Is(err, errAlreadyImported):
			result.skipped = true
		case err != nil:
			result.err = err
		}
		results <- result
	}
}

// PromptID returns the id an item is stored under: its own id when it has
// one, otherwise a UUIDv5 of the source and item ids so re-imports land on
// the same row.
func PromptID(sourceID string, item source.Item) string {
	if id := strings.TrimSpace(asString(pick(item.Record, "id"))); id != "" {
		return id
	}
	return uuid.NewSHA1(importNamespace, []byte(sourceID+"/"+item.SourceID)).String()
}

func (s *ImportService) importItem(ctx context.Context, sourceID string, item source.Item, opts *ImportOptions) error {
	record := make(domain.RawRecord, len(item.Record)+1)
	for k, v := range item.Record {
		record[k] = v
	}
	id := PromptID(sourceID, item)
	record["id"] = id
	ctx = logger.SetPromptID(ctx, id)

	if !opts.Force {
		exists, err := s.repo.Exists(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to check existence: %w", err)
		}
		if exists {
			return errAlreadyImported
		}
	}

	prompt, ok := s.normalizer.Normalize(record)
	if !ok {
		return fmt.Errorf("record has no id")
	}
	if opts.Activate {
		prompt.IsActive = true
	}

	// store the images the record names, without the placeholder default
	images := asStrings(pick(record, imageFields...))
	keys, uploaded, err := s.uploadImages(ctx, id, item.ImagePaths)
	if err != nil {
		return err
	}
	prompt.Images = append(images, keys...)

	now := s.now().UTC()
	if prompt.CreatedAt.IsZero() {
		prompt.CreatedAt = now
	}
	prompt.UpdatedAt = now

	if err := s.repo.Upsert(ctx, &prompt); err != nil {
		s.rollback(ctx, uploaded)
		return fmt.Errorf("failed to save prompt: %w", err)
	}
	return nil
}

// uploadImages stores local files under the prompt's media prefix. It
// returns every key and, separately, the keys this call uploaded. Objects
// already present are not uploaded again.
func (s *ImportService) uploadImages(ctx context.Context, id string, paths []string) (keys, uploaded []string, err error) {
	if len(paths) == 0 {
		return nil, nil, nil
	}
	if s.media == nil {
		s.log(ctx).WithField(logger.FieldCount, len(paths)).Warn("Media storage disabled, skipping local images")
		return nil, nil, nil
	}

	for _, path := range paths {
		key := storage.MediaKey(id, filepath.Base(path))

		exists, err := s.media.Exists(ctx, key)
		if err != nil {
			s.rollback(ctx, uploaded)
			return nil, nil, fmt.Errorf("failed to check storage existence: %w", err)
		}
		if !exists {
			if err := s.uploadFile(ctx, key, path); err != nil {
				s.rollback(ctx, uploaded)
				return nil, nil, err
			}
			uploaded = append(uploaded, key)
		} else {
			s.log(ctx).WithField("storage_key", key).Debug("Media already stored, skipping upload")
		}
		keys = append(keys, key)
	}
	return keys, uploaded, nil
}

func (s *ImportService) uploadFile(ctx context.Context, key, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open media: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat media: %w", err)
	}
	if err := s.media.Upload(ctx, key, file, info.Size(), storage.ContentTypeFor(path)); err != nil {
		return fmt.Errorf("failed to upload to storage: %w", err)
	}
	return nil
}

func (s *ImportService) rollback(ctx context.Context, keys []string) {
	if s.media == nil {
		return
	}
	for _, key := range keys {
		if err := s.media.Delete(ctx, key); err != nil {
			s.log(ctx).WithFields(logger.Fields{
				"storage_key": key,
			}).WithError(err).Error("Failed to rollback storage upload")
		}
	}
}
