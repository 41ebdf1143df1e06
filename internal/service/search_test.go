package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/promptmart/internal/cache"
	"github.com/timmy/promptmart/internal/domain"
	"github.com/timmy/promptmart/internal/repository"
)

func TestSearchBasics(t *testing.T) {
	svc := newTestService(newFakeStore(catalogRecords()...))
	ctx := context.Background()

	tests := []struct {
		name string
		req  domain.SearchRequest
		want []string
	}{
		{"category newest first", domain.SearchRequest{Category: "midjourney", SortBy: domain.SortNewest}, []string{"2", "1"}},
		{"free only", domain.SearchRequest{PriceFilter: domain.PriceFree}, []string{"1"}},
		{"text is case-insensitive substring", domain.SearchRequest{Query: "cyber"}, []string{"1"}},
		{"tags use OR", domain.SearchRequest{Tags: []string{"retrato", "futurismo"}}, []string{"2", "1"}},
		{"paid only", domain.SearchRequest{PriceFilter: domain.PricePaid}, []string{"2"}},
		{"all category sentinel", domain.SearchRequest{Category: "all", SortBy: domain.SortOldest}, []string{"1", "2"}},
		{"unknown sort falls back to newest", domain.SearchRequest{SortBy: "popularity"}, []string{"2", "1"}},
		{"unknown category matches nothing", domain.SearchRequest{Category: "sora"}, []string{}},
		{"query whitespace is trimmed", domain.SearchRequest{Query: "  PORTRAIT "}, []string{"2"}},
		{"tag match is case-sensitive", domain.SearchRequest{Tags: []string{"Retrato"}}, []string{}},
		{"text matches tags", domain.SearchRequest{Query: "futur"}, []string{"1"}},
		{"price high", domain.SearchRequest{SortBy: domain.SortPriceHigh}, []string{"2", "1"}},
		{"limit", domain.SearchRequest{SortBy: domain.SortRating, Limit: 1}, []string{"2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.Search(ctx, tt.req)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, promptIDs(got))
		})
	}
}

func TestSearchVisibility(t *testing.T) {
	svc := newTestService(newFakeStore(catalogRecords()...))
	ctx := context.Background()

	requests := []domain.SearchRequest{
		{},
		{Query: "cyber"},
		{Tags: []string{"futurismo"}},
		{PriceFilter: domain.PriceFree},
		{Category: "midjourney", SortBy: domain.SortOldest},
	}
	for _, req := range requests {
		t.Run(fmt.Sprintf("%+v", req), func(t *testing.T) {
			assert.NotContains(t, promptIDs(svc.Search(ctx, req)), "3")
			assert.Contains(t, promptIDs(svc.AdminSearch(ctx, req)), "3")
		})
	}
}

func TestSearchPricePartition(t *testing.T) {
	records := append(catalogRecords(),
		domain.RawRecord{"id": "4", "title": "Bad price", "price": "abc", "is_active": true},
		domain.RawRecord{"id": "5", "title": "Negative", "price": -3.0, "is_active": true},
		domain.RawRecord{"id": "6", "title": "Cheap", "price": "0.01", "is_active": true},
	)
	svc := newTestService(newFakeStore(records...))
	ctx := context.Background()

	all := svc.AdminSearch(ctx, domain.SearchRequest{SortBy: domain.SortPriceLow})
	free := map[string]bool{}
	for _, p := range svc.AdminSearch(ctx, domain.SearchRequest{PriceFilter: domain.PriceFree}) {
		free[p.ID] = true
	}
	paid := map[string]bool{}
	for _, p := range svc.AdminSearch(ctx, domain.SearchRequest{PriceFilter: domain.PricePaid}) {
		paid[p.ID] = true
	}

	require.Len(t, all, 6)
	for _, p := range all {
		assert.NotEqual(t, free[p.ID], paid[p.ID], "record %s must be in exactly one class", p.ID)
		assert.Equal(t, p.Price == 0, p.IsFree)
	}
	assert.True(t, free["4"])
	assert.True(t, free["5"])
	assert.True(t, paid["6"])
}

func TestSearchTieBreakIsDeterministic(t *testing.T) {
	var records []domain.RawRecord
	for _, id := range []string{"d", "b", "e", "a", "c"} {
		records = append(records, domain.RawRecord{"id": id, "title": id, "is_active": true, "rating": 4.0, "downloads": 7.0, "created_at": t1})
	}
	svc := newTestService(newFakeStore(records...))
	ctx := context.Background()

	for _, key := range domain.ValidSortKeys() {
		t.Run(string(key), func(t *testing.T) {
			first := promptIDs(svc.Search(ctx, domain.SearchRequest{SortBy: key}))
			assert.Equal(t, []string{"a", "b", "c", "d", "e"}, first)
			assert.Equal(t, first, promptIDs(svc.Search(ctx, domain.SearchRequest{SortBy: key})))
		})
	}
}

func TestSearchRatingTieBreaksOnDownloads(t *testing.T) {
	svc := newTestService(newFakeStore(
		domain.RawRecord{"id": "a", "is_active": true, "rating": 4.0, "downloads": 1.0},
		domain.RawRecord{"id": "b", "is_active": true, "rating": 4.0, "downloads": 9.0},
		domain.RawRecord{"id": "c", "is_active": true, "rating": 4.5, "downloads": 0.0},
	))
	got := svc.Search(context.Background(), domain.SearchRequest{SortBy: domain.SortRating})
	assert.Equal(t, []string{"c", "b", "a"}, promptIDs(got))
}

func TestSearchLimitIsPrefixOfUnlimited(t *testing.T) {
	var records []domain.RawRecord
	for i := 0; i < 12; i++ {
		records = append(records, domain.RawRecord{
			"id":         fmt.Sprintf("p%02d", i),
			"is_active":  true,
			"views":      float64(i % 4),
			"created_at": t1.Add(time.Duration(i%3) * time.Hour),
		})
	}
	svc := newTestService(newFakeStore(records...))
	ctx := context.Background()

	for _, key := range domain.ValidSortKeys() {
		full := promptIDs(svc.Search(ctx, domain.SearchRequest{SortBy: key}))
		for n := 1; n <= len(full)+2; n++ {
			got := promptIDs(svc.Search(ctx, domain.SearchRequest{SortBy: key, Limit: n}))
			want := full
			if n < len(full) {
				want = full[:n]
			}
			assert.Equal(t, want, got, "sort=%s limit=%d", key, n)
		}
	}
}

func TestSearchStoreFailureIsSoft(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		store := newFakeStore(catalogRecords()...)
		store.findErr = errStoreDown
		svc := newTestService(store)

		got := svc.Search(context.Background(), domain.SearchRequest{Query: "cyber"})
		require.NotNil(t, got)
		assert.Empty(t, got)
		assert.NotNil(t, svc.AdminSearch(context.Background(), domain.SearchRequest{}))
		assert.NotNil(t, svc.Featured(context.Background()))
	})

	t.Run("timeout", func(t *testing.T) {
		store := newFakeStore(catalogRecords()...)
		store.block = true
		svc := NewSearchService(store, nil, nil, nil, nil, SearchConfig{StoreTimeout: 20 * time.Millisecond})

		start := time.Now()
		got := svc.Search(context.Background(), domain.SearchRequest{})
		require.NotNil(t, got)
		assert.Empty(t, got)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestSearchDropsRecordsWithoutID(t *testing.T) {
	svc := newTestService(newFakeStore(
		domain.RawRecord{"title": "orphan", "is_active": true},
		domain.RawRecord{"id": "  ", "title": "blank", "is_active": true},
		domain.RawRecord{"id": "ok", "title": "fine", "is_active": true, "price": "oops"},
	))
	got := svc.Search(context.Background(), domain.SearchRequest{})
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].ID)
	assert.True(t, got[0].IsFree)
}

func TestSearchCache(t *testing.T) {
	store := newFakeStore(catalogRecords()...)
	c := cache.NewMemoryCache(time.Minute)
	defer c.Stop()
	svc := NewSearchService(store, nil, c, nil, nil, SearchConfig{})
	ctx := context.Background()

	first := svc.Search(ctx, domain.SearchRequest{Tags: []string{"retrato", "futurismo"}})
	second := svc.Search(ctx, domain.SearchRequest{Tags: []string{"futurismo", "retrato"}, SortBy: "newest"})
	assert.Equal(t, promptIDs(first), promptIDs(second))
	assert.Equal(t, 1, store.findCalls())

	// the elevated path always goes to the store
	svc.AdminSearch(ctx, domain.SearchRequest{Tags: []string{"retrato", "futurismo"}})
	svc.AdminSearch(ctx, domain.SearchRequest{Tags: []string{"retrato", "futurismo"}})
	assert.Equal(t, 3, store.findCalls())
}

func TestSearchFailuresAreNotCached(t *testing.T) {
	store := newFakeStore(catalogRecords()...)
	store.findErr = errStoreDown
	c := cache.NewMemoryCache(time.Minute)
	defer c.Stop()
	svc := NewSearchService(store, nil, c, nil, nil, SearchConfig{})
	ctx := context.Background()

	assert.Empty(t, svc.Search(ctx, domain.SearchRequest{}))

	store.mu.Lock()
	store.findErr = nil
	store.mu.Unlock()
	assert.Len(t, svc.Search(ctx, domain.SearchRequest{}), 2)
}

func TestBuildQuery(t *testing.T) {
	t.Run("public request pushes exact predicates", func(t *testing.T) {
		q := buildQuery(domain.SearchRequest{Category: "claude", PriceFilter: domain.PricePaid, SortBy: domain.SortViews, Limit: 5}.Normalized(), activeOnly, DefaultFallbackAuthor)
		assert.Equal(t, []repository.Filter{
			repository.Where(repository.FieldIsActive, repository.OpEq, true),
			repository.Where(repository.FieldCategory, repository.OpEq, "claude"),
			repository.Where(repository.FieldPrice, repository.OpGt, 0),
		}, q.Filters)
		assert.Equal(t, []repository.Order{{Field: repository.FieldViews, Desc: true}, {Field: repository.FieldID}}, q.Order)
	})

	t.Run("limit is always applied locally", func(t *testing.T) {
		for _, key := range domain.ValidSortKeys() {
			q := buildQuery(domain.SearchRequest{SortBy: key, Limit: 3}.Normalized(), activeOnly, DefaultFallbackAuthor)
			assert.Zero(t, q.Limit, "sort=%s", key)
		}
	})

	t.Run("admin omits visibility", func(t *testing.T) {
		q := buildQuery(domain.SearchRequest{}.Normalized(), includeInactive, DefaultFallbackAuthor)
		assert.Empty(t, q.Filters)
	})

	t.Run("text and tags are pushed as loose filters", func(t *testing.T) {
		q := buildQuery(domain.SearchRequest{Query: "cyber", Tags: []string{"a"}, Limit: 3}.Normalized(), activeOnly, DefaultFallbackAuthor)
		assert.Len(t, q.Filters, 3)
	})

	t.Run("free is evaluated locally", func(t *testing.T) {
		q := buildQuery(domain.SearchRequest{PriceFilter: domain.PriceFree, Limit: 3}.Normalized(), activeOnly, DefaultFallbackAuthor)
		assert.Len(t, q.Filters, 1)
	})

	t.Run("query matching the fallback author is not pushed", func(t *testing.T) {
		q := buildQuery(domain.SearchRequest{Query: "unknown"}.Normalized(), activeOnly, DefaultFallbackAuthor)
		assert.Len(t, q.Filters, 1)
	})

	t.Run("non-ASCII query is not pushed", func(t *testing.T) {
		q := buildQuery(domain.SearchRequest{Query: "Café"}.Normalized(), activeOnly, DefaultFallbackAuthor)
		assert.Len(t, q.Filters, 1)
	})

	t.Run("non-ASCII tags are pushed", func(t *testing.T) {
		q := buildQuery(domain.SearchRequest{Tags: []string{"café"}}.Normalized(), activeOnly, DefaultFallbackAuthor)
		assert.Len(t, q.Filters, 2)
	})

	for _, needle := range []string{"p&b", "<b>", `say "hi"`, `a\b`} {
		t.Run("needle "+needle+" is not pushed", func(t *testing.T) {
			q := buildQuery(domain.SearchRequest{Query: needle}.Normalized(), activeOnly, DefaultFallbackAuthor)
			assert.Len(t, q.Filters, 1)

			q = buildQuery(domain.SearchRequest{Tags: []string{"ok", needle}}.Normalized(), activeOnly, DefaultFallbackAuthor)
			assert.Len(t, q.Filters, 1)
		})
	}
}

func TestSearchFallbackAuthorIsSearchable(t *testing.T) {
	svc := newTestService(newFakeStore(domain.RawRecord{"id": "x", "title": "Anonymous", "is_active": true}))
	got := svc.Search(context.Background(), domain.SearchRequest{Query: "unknown author"})
	assert.Equal(t, []string{"x"}, promptIDs(got))
}

func TestIncrementCounters(t *testing.T) {
	store := newFakeStore(catalogRecords()...)
	svc := newTestService(store)
	ctx := context.Background()

	svc.IncrementViews(ctx, "1")
	svc.IncrementDownloads(ctx, "1")
	svc.IncrementDownloads(ctx, "1")
	assert.NotPanics(t, func() { svc.IncrementViews(ctx, "missing") })

	assert.EqualValues(t, 1, store.count("1", repository.CounterViews))
	assert.EqualValues(t, 2, store.count("1", repository.CounterDownloads))

	store.findErr = errStoreDown
	assert.NotPanics(t, func() { svc.IncrementViews(ctx, "1") })
}

func TestTrackSurvivesCallerCancellation(t *testing.T) {
	store := newFakeStore(catalogRecords()...)
	svc := newTestService(store)

	ctx, cancel := context.WithCancel(context.Background())
	svc.TrackView(ctx, "2")
	svc.TrackDownload(ctx, "2")
	cancel()
	svc.Wait()

	assert.EqualValues(t, 1, store.count("2", repository.CounterViews))
	assert.EqualValues(t, 1, store.count("2", repository.CounterDownloads))
}

func TestGet(t *testing.T) {
	svc := newTestService(newFakeStore(catalogRecords()...))
	ctx := context.Background()

	p, ok := svc.Get(ctx, "2")
	require.True(t, ok)
	assert.Equal(t, "Portrait Pro", p.Title)

	_, ok = svc.Get(ctx, "3")
	assert.False(t, ok, "inactive prompts are hidden")

	_, ok = svc.Get(ctx, "nope")
	assert.False(t, ok)
}

// The same searches against the relational store, where filters and order
// are evaluated in SQL.
func TestSearchWithPromptRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	for _, p := range []domain.Prompt{
		{ID: "1", Title: "Cyberpunk City", Category: "midjourney", Tags: domain.StringArray{"futurismo"}, IsActive: true, Author: "Ana", CreatedAt: t1},
		{ID: "2", Title: "Portrait Pro", Category: "midjourney", Tags: domain.StringArray{"retrato"}, Price: 29.90, IsActive: true, Author: "Bia", CreatedAt: t2},
		{ID: "3", Title: "Cyber Draft", Category: "midjourney", Tags: domain.StringArray{"futurismo"}, IsActive: false, CreatedAt: t2.Add(time.Hour)},
	} {
		p := p
		require.NoError(t, repo.Create(ctx, &p))
	}
	svc := newTestService(repo)

	assert.Equal(t, []string{"2", "1"}, promptIDs(svc.Search(ctx, domain.SearchRequest{Category: "midjourney", SortBy: domain.SortNewest})))
	assert.Equal(t, []string{"1"}, promptIDs(svc.Search(ctx, domain.SearchRequest{PriceFilter: domain.PriceFree})))
	assert.Equal(t, []string{"1"}, promptIDs(svc.Search(ctx, domain.SearchRequest{Query: "CYBER"})))
	assert.Equal(t, []string{"2", "1"}, promptIDs(svc.Search(ctx, domain.SearchRequest{Tags: []string{"retrato", "futurismo"}})))
	assert.Equal(t, []string{"2"}, promptIDs(svc.Search(ctx, domain.SearchRequest{Limit: 1})))
	assert.Equal(t, []string{"3", "2", "1"}, promptIDs(svc.AdminSearch(ctx, domain.SearchRequest{})))

	// two concurrent callers, no lost update
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.IncrementViews(ctx, "1")
		}()
	}
	wg.Wait()

	p, err := repo.GetByID(ctx, "1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.Views)
}

func TestSearchRepositoryTagsWithEscapedCharacters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tags := []string{"P&B", "<b>", `say "hi"`, `a\b`}
	for i, tag := range tags {
		require.NoError(t, repo.Create(ctx, &domain.Prompt{
			ID:        fmt.Sprintf("%d", i+1),
			Title:     "Listing",
			Tags:      domain.StringArray{tag},
			IsActive:  true,
			CreatedAt: t1,
		}))
	}
	svc := newTestService(repo)

	for i, tag := range tags {
		want := []string{fmt.Sprintf("%d", i+1)}
		t.Run(tag, func(t *testing.T) {
			assert.Equal(t, want, promptIDs(svc.Search(ctx, domain.SearchRequest{Tags: []string{tag}})))
			assert.Equal(t, want, promptIDs(svc.Search(ctx, domain.SearchRequest{Query: strings.ToLower(tag)})))
			assert.Equal(t, want, promptIDs(svc.AdminSearch(ctx, domain.SearchRequest{Tags: []string{tag}})))
		})
	}
}

// Rows written around the repository hold values the normalizer clamps or
// defaults, so the store's raw order differs from the canonical one.
func TestSearchRepositoryLimitIsPrefixOfUnlimited(t *testing.T) {
	repo, db := newTestRepoDB(t)
	ctx := context.Background()

	rows := []struct {
		id               string
		rating           float64
		downloads, views int64
		price, createdAt interface{}
	}{
		{"a", 7, 1, 0, -3.0, t1},
		{"b", 5, 100, 2, 2.0, nil},
		{"c", 4, -2, -1, nil, t2},
		{"d", 4, 0, 3, 0.0, t1},
		{"e", -1, 5, 1, 9.5, t2.Add(time.Hour)},
	}
	for _, r := range rows {
		require.NoError(t, db.Exec(
			"INSERT INTO prompts (id, title, tags, images, is_active, rating, downloads, views, price, created_at) VALUES (?, ?, '[]', '[]', ?, ?, ?, ?, ?, ?)",
			r.id, "Listing "+r.id, true, r.rating, r.downloads, r.views, r.price, r.createdAt,
		).Error)
	}
	svc := newTestService(repo)

	rated := promptIDs(svc.Search(ctx, domain.SearchRequest{SortBy: domain.SortRating}))
	require.Len(t, rated, len(rows))
	assert.Equal(t, []string{"b", "a"}, rated[:2], "ratings above 5 clamp and tie on downloads")
	assert.Equal(t, []string{"b"}, promptIDs(svc.Search(ctx, domain.SearchRequest{SortBy: domain.SortRating, Limit: 1})))

	for _, key := range domain.ValidSortKeys() {
		full := promptIDs(svc.Search(ctx, domain.SearchRequest{SortBy: key}))
		require.Len(t, full, len(rows), "sort=%s", key)
		for n := 1; n <= len(full); n++ {
			got := promptIDs(svc.Search(ctx, domain.SearchRequest{SortBy: key, Limit: n}))
			assert.Equal(t, full[:n], got, "sort=%s limit=%d", key, n)
		}
	}
}
