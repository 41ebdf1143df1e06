package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/promptmart/internal/domain"
)

func TestPresetRequests(t *testing.T) {
	svc := NewSearchService(newFakeStore(), nil, nil, nil, nil, SearchConfig{FeaturedLimit: 4, TopLimit: 8})

	tests := []struct {
		name string
		arg  string
		want domain.SearchRequest
	}{
		{PresetFeatured, "", domain.SearchRequest{SortBy: domain.SortRating, Limit: 4}},
		{PresetByCategory, "claude", domain.SearchRequest{Category: "claude", SortBy: domain.SortNewest}},
		{PresetFree, "", domain.SearchRequest{PriceFilter: domain.PriceFree, SortBy: domain.SortNewest}},
		{PresetTopRated, "", domain.SearchRequest{SortBy: domain.SortRating, Limit: 8}},
		{PresetNewest, "", domain.SearchRequest{SortBy: domain.SortNewest, Limit: 8}},
		{PresetMostDownloaded, "", domain.SearchRequest{SortBy: domain.SortDownloads, Limit: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.PresetRequest(tt.name, tt.arg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := svc.PresetRequest("trending", "")
	assert.ErrorIs(t, err, ErrUnknownPreset)
	assert.Len(t, PresetNames(), len(tests))
}

func TestPresetsMatchSearch(t *testing.T) {
	var records []domain.RawRecord
	for i := 0; i < 15; i++ {
		records = append(records, domain.RawRecord{
			"id":         fmt.Sprintf("p%02d", i),
			"is_active":  i%5 != 0,
			"category":   []string{"claude", "midjourney", "chatgpt"}[i%3],
			"price":      float64(i % 2),
			"rating":     float64(i%6) * 0.9,
			"downloads":  float64(i * 7 % 11),
			"created_at": t1.Unix() + int64(i%4)*3600,
		})
	}
	svc := newTestService(newFakeStore(records...))
	ctx := context.Background()

	defaults := svc.cfg
	assert.Equal(t, svc.Search(ctx, domain.SearchRequest{SortBy: domain.SortRating, Limit: defaults.FeaturedLimit}), svc.Featured(ctx))
	assert.Equal(t, svc.Search(ctx, domain.SearchRequest{Category: "claude"}), svc.ByCategory(ctx, "claude"))
	assert.Equal(t, svc.Search(ctx, domain.SearchRequest{PriceFilter: domain.PriceFree}), svc.FreePrompts(ctx))
	assert.Equal(t, svc.Search(ctx, domain.SearchRequest{SortBy: domain.SortRating, Limit: defaults.TopLimit}), svc.TopRated(ctx))
	assert.Equal(t, svc.Search(ctx, domain.SearchRequest{Limit: defaults.TopLimit}), svc.Newest(ctx))
	assert.Equal(t, svc.Search(ctx, domain.SearchRequest{SortBy: domain.SortDownloads, Limit: defaults.TopLimit}), svc.MostDownloaded(ctx))

	assert.Len(t, svc.Featured(ctx), 6)
	for _, p := range svc.Featured(ctx) {
		assert.True(t, p.IsActive)
	}

	_, err := svc.Preset(ctx, "nope", "")
	assert.ErrorIs(t, err, ErrUnknownPreset)
}
