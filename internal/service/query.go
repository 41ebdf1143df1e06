package service

import (
	"sort"
	"strings"
	"unicode"

	"github.com/timmy/promptmart/internal/domain"
	"github.com/timmy/promptmart/internal/repository"
)

// visibility selects whether inactive records may be returned.
type visibility bool

const (
	activeOnly      visibility = false
	includeInactive visibility = true
)

// buildQuery translates a normalized request into the store vocabulary.
//
// The store query only narrows the candidate set. Anything the store could
// evaluate differently from matches (null prices, the fallback author,
// non-ASCII case folding, needles that change when tags are JSON-encoded)
// is left out. The limit is never pushed down: stores order by raw column
// values, which can disagree with the normalized order (ratings above 5,
// negative or null prices and counters, null timestamps).
func buildQuery(req domain.SearchRequest, vis visibility, fallbackAuthor string) repository.Query {
	var q repository.Query

	if vis == activeOnly {
		q.Filters = append(q.Filters, repository.Where(repository.FieldIsActive, repository.OpEq, true))
	}

	if req.Query != "" {
		needle := strings.ToLower(req.Query)
		if isASCII(needle) && jsonStable(needle) && !strings.Contains(strings.ToLower(fallbackAuthor), needle) {
			q.Filters = append(q.Filters, repository.Filter{AnyOf: []repository.Condition{
				{Field: repository.FieldTitle, Op: repository.OpILike, Value: req.Query},
				{Field: repository.FieldDescription, Op: repository.OpILike, Value: req.Query},
				{Field: repository.FieldAuthor, Op: repository.OpILike, Value: req.Query},
				{Field: repository.FieldTags, Op: repository.OpILike, Value: req.Query},
			}})
		}
	}

	if req.Category != "" {
		q.Filters = append(q.Filters, repository.Where(repository.FieldCategory, repository.OpEq, req.Category))
	}

	if len(req.Tags) > 0 && allJSONStable(req.Tags) {
		q.Filters = append(q.Filters, repository.Where(repository.FieldTags, repository.OpOverlaps, append([]string(nil), req.Tags...)))
	}

	// free is evaluated locally: missing and negative prices count as free
	if req.PriceFilter == domain.PricePaid {
		q.Filters = append(q.Filters, repository.Where(repository.FieldPrice, repository.OpGt, 0))
	}

	q.Order = storeOrder(req.SortBy)
	return q
}

// jsonStable reports whether s survives JSON encoding unchanged and holds
// no LIKE escape character, so a substring match against the encoded tags
// column finds it.
func jsonStable(s string) bool {
	for _, r := range s {
		switch {
		case r < 0x20, r == '"', r == '\\', r == '<', r == '>', r == '&', r == '\u2028', r == '\u2029':
			return false
		}
	}
	return true
}

func allJSONStable(values []string) bool {
	for _, v := range values {
		if !jsonStable(v) {
			return false
		}
	}
	return true
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// storeOrder mirrors sortPrompts in the store vocabulary.
func storeOrder(key domain.SortKey) []repository.Order {
	byID := repository.Order{Field: repository.FieldID}
	switch key {
	case domain.SortOldest:
		return []repository.Order{{Field: repository.FieldCreatedAt}, byID}
	case domain.SortRating:
		return []repository.Order{{Field: repository.FieldRating, Desc: true}, {Field: repository.FieldDownloads, Desc: true}, byID}
	case domain.SortDownloads:
		return []repository.Order{{Field: repository.FieldDownloads, Desc: true}, byID}
	case domain.SortViews:
		return []repository.Order{{Field: repository.FieldViews, Desc: true}, byID}
	case domain.SortPriceLow:
		return []repository.Order{{Field: repository.FieldPrice}, byID}
	case domain.SortPriceHigh:
		return []repository.Order{{Field: repository.FieldPrice, Desc: true}, byID}
	default:
		return []repository.Order{{Field: repository.FieldCreatedAt, Desc: true}, byID}
	}
}

// matches evaluates the canonical predicates against a normalized prompt.
func matches(p domain.Prompt, req domain.SearchRequest, vis visibility) bool {
	if vis == activeOnly && !p.IsActive {
		return false
	}
	if req.Query != "" && !matchesText(p, strings.ToLower(req.Query)) {
		return false
	}
	if req.Category != "" && p.Category != req.Category {
		return false
	}
	if len(req.Tags) > 0 && !sharesTag(p.Tags, req.Tags) {
		return false
	}
	switch req.PriceFilter {
	case domain.PriceFree:
		return p.IsFree
	case domain.PricePaid:
		return !p.IsFree
	}
	return true
}

func matchesText(p domain.Prompt, needle string) bool {
	if strings.Contains(strings.ToLower(p.Title), needle) ||
		strings.Contains(strings.ToLower(p.Description), needle) ||
		strings.Contains(strings.ToLower(p.Author), needle) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// sharesTag reports whether any wanted tag is present (OR semantics).
func sharesTag(tags domain.StringArray, wanted []string) bool {
	for _, w := range wanted {
		if tags.Contains(w) {
			return true
		}
	}
	return false
}

// sortPrompts orders prompts by key, breaking ties by id ascending.
func sortPrompts(prompts []domain.Prompt, key domain.SortKey) {
	sort.SliceStable(prompts, func(i, j int) bool {
		a, b := prompts[i], prompts[j]
		switch key {
		case domain.SortOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case domain.SortRating:
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
			if a.Downloads != b.Downloads {
				return a.Downloads > b.Downloads
			}
		case domain.SortDownloads:
			if a.Downloads != b.Downloads {
				return a.Downloads > b.Downloads
			}
		case domain.SortViews:
			if a.Views != b.Views {
				return a.Views > b.Views
			}
		case domain.SortPriceLow:
			if a.Price != b.Price {
				return a.Price < b.Price
			}
		case domain.SortPriceHigh:
			if a.Price != b.Price {
				return a.Price > b.Price
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	})
}
