package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/timmy/promptmart/internal/domain"
	"github.com/timmy/promptmart/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	t1 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t2 = t1.Add(24 * time.Hour)
)

// fakeStore ignores filters, order and limit: the loosest legal store.
type fakeStore struct {
	mu       sync.Mutex
	records  []domain.RawRecord
	queries  []repository.Query
	findErr  error
	block    bool // wait for ctx cancellation
	counters map[string]map[repository.Counter]int64
}

func newFakeStore(records ...domain.RawRecord) *fakeStore {
	return &fakeStore{records: records, counters: map[string]map[repository.Counter]int64{}}
}

func (f *fakeStore) Find(ctx context.Context, q repository.Query) ([]domain.RawRecord, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	records := append([]domain.RawRecord(nil), f.records...)
	err := f.findErr
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (f *fakeStore) Increment(ctx context.Context, id string, counter repository.Counter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return f.findErr
	}
	for _, r := range f.records {
		if fmt.Sprint(r["id"]) == id {
			if f.counters[id] == nil {
				f.counters[id] = map[repository.Counter]int64{}
			}
			f.counters[id][counter]++
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeStore) lastQuery() repository.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func (f *fakeStore) findCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeStore) count(id string, c repository.Counter) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters[id][c]
}

var errStoreDown = errors.New("connection refused")

// catalogRecords are the two listings most tests search over,
// plus an inactive draft.
func catalogRecords() []domain.RawRecord {
	return []domain.RawRecord{
		{"id": "1", "title": "Cyberpunk City", "price": 0.0, "category": "midjourney", "tags": []interface{}{"futurismo"}, "is_active": true, "created_at": t1.Format(time.RFC3339), "rating": 4.5, "downloads": 10.0},
		{"id": "2", "title": "Portrait Pro", "price": 29.90, "category": "midjourney", "tags": []interface{}{"retrato"}, "is_active": true, "created_at": t2.Format(time.RFC3339), "rating": 4.9, "downloads": 3.0},
		{"id": "3", "title": "Cyber Draft", "price": nil, "category": "midjourney", "tags": "futurismo, retrato", "is_active": false, "created_at": t2.Add(time.Hour).Format(time.RFC3339)},
	}
}

func newTestService(store repository.RecordStore) *SearchService {
	return NewSearchService(store, nil, nil, nil, nil, SearchConfig{StoreTimeout: time.Second})
}

func promptIDs(prompts []domain.Prompt) []string {
	out := make([]string, 0, len(prompts))
	for _, p := range prompts {
		out = append(out, p.ID)
	}
	return out
}

var dbSeq int64

func newTestRepo(t *testing.T) *repository.PromptRepository {
	t.Helper()
	repo, _ := newTestRepoDB(t)
	return repo
}

func newTestRepoDB(t *testing.T) (*repository.PromptRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:service_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, repository.Migrate(db))
	return repository.NewPromptRepository(db), db
}
