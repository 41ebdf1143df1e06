package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/timmy/promptmart/internal/domain"
	"github.com/timmy/promptmart/internal/storage"
)

const (
	DefaultPlaceholderImage = "/placeholder.svg"
	DefaultFallbackAuthor   = "Unknown Author"
	maxRating               = 5.0
)

// imageFields are the record keys that may carry media references.
var imageFields = []string{"images", "image", "image_url", "imageUrl"}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Normalizer turns raw store records into canonical prompts.
type Normalizer struct {
	placeholder    string
	fallbackAuthor string
	media          storage.MediaStorage
}

// NewNormalizer creates a Normalizer. Empty strings select the defaults;
// media may be nil, in which case storage keys are kept as-is.
func NewNormalizer(placeholder, fallbackAuthor string, media storage.MediaStorage) *Normalizer {
	if placeholder == "" {
		placeholder = DefaultPlaceholderImage
	}
	if fallbackAuthor == "" {
		fallbackAuthor = DefaultFallbackAuthor
	}
	return &Normalizer{placeholder: placeholder, fallbackAuthor: fallbackAuthor, media: media}
}

// FallbackAuthor is the author given to records without one.
func (n *Normalizer) FallbackAuthor() string {
	return n.fallbackAuthor
}

// Normalize converts one raw record. It reports false only when the record
// has no id; every other defect is replaced by a default.
// Parameters:
//   - raw: record as returned by a store.
//
// Returns:
//   - domain.Prompt: canonical prompt.
//   - bool: false if the record must be dropped.
func (n *Normalizer) Normalize(raw domain.RawRecord) (domain.Prompt, bool) {
	id := strings.TrimSpace(asString(pick(raw, "id")))
	if id == "" {
		return domain.Prompt{}, false
	}

	p := domain.Prompt{
		ID:             id,
		Title:          asString(pick(raw, "title")),
		Description:    asString(pick(raw, "description")),
		Content:        asString(pick(raw, "content", "prompt")),
		Category:       asString(pick(raw, "category")),
		Tags:           asStrings(pick(raw, "tags")),
		Author:         strings.TrimSpace(asString(pick(raw, "author", "author_name", "authorName"))),
		AuthorID:       asString(pick(raw, "author_id", "authorId", "user_id", "userId")),
		IsAdminCreated: asBool(pick(raw, "is_admin_created", "isAdminCreated")),
		IsActive:       asBool(pick(raw, "is_active", "isActive")),
		Views:          asCount(pick(raw, "views")),
		Downloads:      asCount(pick(raw, "downloads")),
		Images:         asStrings(pick(raw, imageFields...)),
		VideoURL:       strings.TrimSpace(asString(pick(raw, "video_url", "videoUrl"))),
		CreatedAt:      asTime(pick(raw, "created_at", "createdAt")),
		UpdatedAt:      asTime(pick(raw, "updated_at", "updatedAt")),
	}

	if price, ok := asFloat(pick(raw, "price")); ok && price > 0 {
		p.Price = price
	}
	if rating, ok := asFloat(pick(raw, "rating")); ok {
		p.Rating = math.Min(math.Max(rating, 0), maxRating)
	}
	if p.Author == "" {
		p.Author = n.fallbackAuthor
	}

	for i, img := range p.Images {
		p.Images[i] = n.mediaURL(img)
	}
	if len(p.Images) == 0 {
		p.Images = domain.StringArray{n.placeholder}
	}
	if p.VideoURL != "" {
		p.VideoURL = n.mediaURL(p.VideoURL)
	}

	p.Derive()
	return p, true
}

// NormalizeAll normalizes records in order, dropping those without an id.
func (n *Normalizer) NormalizeAll(records []domain.RawRecord) (prompts []domain.Prompt, dropped int) {
	prompts = make([]domain.Prompt, 0, len(records))
	for _, raw := range records {
		p, ok := n.Normalize(raw)
		if !ok {
			dropped++
			continue
		}
		prompts = append(prompts, p)
	}
	return prompts, dropped
}

func (n *Normalizer) mediaURL(ref string) string {
	if n.media != nil && storage.IsObjectKey(ref) {
		return n.media.GetURL(ref)
	}
	return ref
}

// pick returns the first non-nil value among keys.
func pick(raw domain.RawRecord, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func asFloat(v interface{}) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	case uint:
		f = float64(val)
	case uint64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string, []byte:
		s := strings.TrimSpace(asString(val))
		// decimal comma, as in "29,90"
		if !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func asCount(v interface{}) int64 {
	f, ok := asFloat(v)
	if !ok || f < 0 {
		return 0
	}
	if f > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

func asBool(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string, []byte:
		b, err := strconv.ParseBool(strings.TrimSpace(asString(val)))
		return err == nil && b
	default:
		f, ok := asFloat(val)
		return ok && f != 0
	}
}

func asTime(v interface{}) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val.UTC()
	case *time.Time:
		if val != nil {
			return val.UTC()
		}
	case string, []byte:
		s := strings.TrimSpace(asString(val))
		if s == "" {
			return time.Time{}
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC()
		}
	default:
		if f, ok := asFloat(val); ok {
			return time.Unix(int64(f), 0).UTC()
		}
	}
	return time.Time{}
}

// asStrings accepts arrays, JSON-array strings and comma-joined strings.
// Entries are trimmed and empty ones dropped. The result is never nil.
func asStrings(v interface{}) domain.StringArray {
	out := domain.StringArray{}
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	switch val := v.(type) {
	case nil:
	case []string:
		for _, s := range val {
			add(s)
		}
	case domain.StringArray:
		for _, s := range val {
			add(s)
		}
	case []interface{}:
		for _, item := range val {
			if item != nil {
				add(asString(item))
			}
		}
	case string, []byte:
		s := strings.TrimSpace(asString(val))
		if strings.HasPrefix(s, "[") {
			var arr []interface{}
			if err := json.Unmarshal([]byte(s), &arr); err == nil {
				return asStrings(arr)
			}
		}
		// postgres array literal {a,b}
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
			s = s[1 : len(s)-1]
		}
		for _, part := range strings.Split(s, ",") {
			add(strings.Trim(strings.TrimSpace(part), `"`))
		}
	default:
		add(asString(val))
	}
	return out
}
