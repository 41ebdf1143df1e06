package domain

import (
	"encoding/json"
	"sort"
	"strings"
)

// PriceFilter selects records by price class.
// Values include PriceAll, PriceFree, and PricePaid.
type PriceFilter string

const (
	PriceAll  PriceFilter = "all"
	PriceFree PriceFilter = "free"
	PricePaid PriceFilter = "paid"
)

// ParsePriceFilter maps a caller-supplied string onto a PriceFilter.
// Unknown values fall back to PriceAll.
func ParsePriceFilter(s string) PriceFilter {
	switch PriceFilter(strings.ToLower(strings.TrimSpace(s))) {
	case PriceFree:
		return PriceFree
	case PricePaid:
		return PricePaid
	default:
		return PriceAll
	}
}

// SortKey selects the single ordering applied to a result set.
type SortKey string

const (
	SortNewest    SortKey = "newest"
	SortOldest    SortKey = "oldest"
	SortRating    SortKey = "rating"
	SortDownloads SortKey = "downloads"
	SortViews     SortKey = "views"
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
)

// ValidSortKeys returns the recognised sort keys.
func ValidSortKeys() []SortKey {
	return []SortKey{SortNewest, SortOldest, SortRating, SortDownloads, SortViews, SortPriceLow, SortPriceHigh}
}

// ParseSortKey maps a caller-supplied string onto a SortKey.
// Unknown values fall back to SortNewest.
func ParseSortKey(s string) SortKey {
	key := SortKey(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range ValidSortKeys() {
		if k == key {
			return k
		}
	}
	return SortNewest
}

// SearchRequest describes one search over the catalog. The zero value means
// "all visible records, newest first, unlimited".
type SearchRequest struct {
	Query       string      `json:"query,omitempty"`
	Category    string      `json:"category,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	PriceFilter PriceFilter `json:"price_filter,omitempty"`
	SortBy      SortKey     `json:"sort_by,omitempty"`
	Limit       int         `json:"limit,omitempty"`
}

// Normalized returns the canonical form of the request: trimmed query,
// blank and duplicate tags removed (first occurrence wins), the "all"
// category cleared, enums sanitised and negative limits zeroed.
func (r SearchRequest) Normalized() SearchRequest {
	out := SearchRequest{
		Query:       strings.TrimSpace(r.Query),
		Category:    strings.TrimSpace(r.Category),
		PriceFilter: ParsePriceFilter(string(r.PriceFilter)),
		SortBy:      ParseSortKey(string(r.SortBy)),
		Limit:       r.Limit,
	}
	if out.Category == CategoryAll {
		out.Category = ""
	}
	if out.Limit < 0 {
		out.Limit = 0
	}
	if len(r.Tags) > 0 {
		seen := make(map[string]bool, len(r.Tags))
		for _, tag := range r.Tags {
			tag = strings.TrimSpace(tag)
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			out.Tags = append(out.Tags, tag)
		}
	}
	return out
}

// CacheKey returns a stable key for the normalized request. Tag order does
// not affect the key.
func (r SearchRequest) CacheKey() string {
	n := r.Normalized()
	if len(n.Tags) > 1 {
		tags := append([]string(nil), n.Tags...)
		sort.Strings(tags)
		n.Tags = tags
	}
	b, _ := json.Marshal(n)
	return "search:" + string(b)
}
