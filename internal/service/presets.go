package service

import (
	"context"
	"errors"
	"sort"

	"github.com/timmy/promptmart/internal/domain"
)

// ErrUnknownPreset is returned by Preset for names not in the preset table.
var ErrUnknownPreset = errors.New("unknown preset")

// Preset names.
const (
	PresetFeatured       = "featured"
	PresetByCategory     = "by-category"
	PresetFree           = "free"
	PresetTopRated       = "top-rated"
	PresetNewest         = "newest"
	PresetMostDownloaded = "most-downloaded"
)

// presetFunc builds the request for a preset; arg is only used by
// by-category.
type presetFunc func(cfg SearchConfig, arg string) domain.SearchRequest

var presets = map[string]presetFunc{
	PresetFeatured: func(cfg SearchConfig, _ string) domain.SearchRequest {
		return domain.SearchRequest{SortBy: domain.SortRating, Limit: cfg.FeaturedLimit}
	},
	PresetByCategory: func(_ SearchConfig, category string) domain.SearchRequest {
		return domain.SearchRequest{Category: category, SortBy: domain.SortNewest}
	},
	PresetFree: func(_ SearchConfig, _ string) domain.SearchRequest {
		return domain.SearchRequest{PriceFilter: domain.PriceFree, SortBy: domain.SortNewest}
	},
	PresetTopRated: func(cfg SearchConfig, _ string) domain.SearchRequest {
		return domain.SearchRequest{SortBy: domain.SortRating, Limit: cfg.TopLimit}
	},
	PresetNewest: func(cfg SearchConfig, _ string) domain.SearchRequest {
		return domain.SearchRequest{SortBy: domain.SortNewest, Limit: cfg.TopLimit}
	},
	PresetMostDownloaded: func(cfg SearchConfig, _ string) domain.SearchRequest {
		return domain.SearchRequest{SortBy: domain.SortDownloads, Limit: cfg.TopLimit}
	},
}

// PresetNames lists the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PresetRequest returns the SearchRequest a preset stands for.
func (s *SearchService) PresetRequest(name, arg string) (domain.SearchRequest, error) {
	build, ok := presets[name]
	if !ok {
		return domain.SearchRequest{}, ErrUnknownPreset
	}
	return build(s.cfg, arg), nil
}

// Preset runs a named preset through Search.
func (s *SearchService) Preset(ctx context.Context, name, arg string) ([]domain.Prompt, error) {
	req, err := s.PresetRequest(name, arg)
	if err != nil {
		return nil, err
	}
	return s.search(ctx, "preset:"+name, req, activeOnly), nil
}

// Featured returns the highest rated prompts, a short page.
func (s *SearchService) Featured(ctx context.Context) []domain.Prompt {
	return s.mustPreset(ctx, PresetFeatured, "")
}

// ByCategory returns the active prompts of one category, newest first.
func (s *SearchService) ByCategory(ctx context.Context, category string) []domain.Prompt {
	return s.mustPreset(ctx, PresetByCategory, category)
}

// FreePrompts returns the free prompts, newest first.
func (s *SearchService) FreePrompts(ctx context.Context) []domain.Prompt {
	return s.mustPreset(ctx, PresetFree, "")
}

// TopRated returns the best rated prompts.
func (s *SearchService) TopRated(ctx context.Context) []domain.Prompt {
	return s.mustPreset(ctx, PresetTopRated, "")
}

// Newest returns the most recently created prompts.
func (s *SearchService) Newest(ctx context.Context) []domain.Prompt {
	return s.mustPreset(ctx, PresetNewest, "")
}

// MostDownloaded returns the prompts with the most downloads.
func (s *SearchService) MostDownloaded(ctx context.Context) []domain.Prompt {
	return s.mustPreset(ctx, PresetMostDownloaded, "")
}

func (s *SearchService) mustPreset(ctx context.Context, name, arg string) []domain.Prompt {
	results, _ := s.Preset(ctx, name, arg)
	return results
}
