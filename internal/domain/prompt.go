package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Category slugs recognised by the storefront.
const (
	CategoryChatGPT         = "chatgpt"
	CategoryClaude          = "claude"
	CategoryGemini          = "gemini"
	CategoryMidjourney      = "midjourney"
	CategoryDallE           = "dall-e"
	CategoryStableDiffusion = "stable-diffusion"
	CategoryLeonardo        = "leonardo"
	CategoryCopilot         = "copilot"
	CategoryVideo           = "video"
	CategoryAudio           = "audio"
	CategoryOther           = "other"

	// CategoryAll is the sentinel used by listing pages for "no category constraint".
	CategoryAll = "all"
)

// Categories is the closed enumeration of category slugs, in display order.
var Categories = []string{
	CategoryChatGPT,
	CategoryClaude,
	CategoryGemini,
	CategoryMidjourney,
	CategoryDallE,
	CategoryStableDiffusion,
	CategoryLeonardo,
	CategoryCopilot,
	CategoryVideo,
	CategoryAudio,
	CategoryOther,
}

// IsKnownCategory reports whether slug belongs to Categories.
func IsKnownCategory(slug string) bool {
	for _, c := range Categories {
		if c == slug {
			return true
		}
	}
	return false
}

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the slice.
//   - error: non-nil if marshaling fails.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	// keep &, < and > literal so LIKE patterns over the column see the tag text
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]string(a)); err != nil {
		return nil, err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// Contains reports whether s is an exact member of the array.
func (a StringArray) Contains(s string) bool {
	for _, v := range a {
		if v == s {
			return true
		}
	}
	return false
}

// Prompt is a marketplace listing: an AI prompt with its commercial and
// metadata attributes. It is the canonical shape returned by search.
//
// IsFree is never stored; it is derived from Price by Derive.
type Prompt struct {
	ID             string      `gorm:"type:text;primaryKey" json:"id"`
	Title          string      `gorm:"type:text;not null" json:"title"`
	Description    string      `gorm:"type:text" json:"description"`
	Content        string      `gorm:"type:text" json:"content"`
	Category       string      `gorm:"type:text;index:idx_prompts_category" json:"category"`
	Tags           StringArray `gorm:"type:text" json:"tags"`
	Price          float64     `gorm:"default:0" json:"price"`
	IsFree         bool        `gorm:"-" json:"is_free"`
	Author         string      `gorm:"type:text" json:"author"`
	AuthorID       string      `gorm:"type:text;index:idx_prompts_author" json:"author_id"`
	IsAdminCreated bool        `gorm:"default:false" json:"is_admin_created"`
	IsActive       bool        `gorm:"index:idx_prompts_active;default:false" json:"is_active"`
	Views          int64       `gorm:"default:0" json:"views"`
	Downloads      int64       `gorm:"default:0" json:"downloads"`
	Rating         float64     `gorm:"default:0" json:"rating"`
	Images         StringArray `gorm:"type:text" json:"images"`
	VideoURL       string      `gorm:"type:text" json:"video_url,omitempty"`
	CreatedAt      time.Time   `gorm:"index:idx_prompts_created" json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Prompt.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Prompt) TableName() string {
	return "prompts"
}

// Derive recomputes derived fields. IsFree is exactly Price == 0.
func (p *Prompt) Derive() {
	p.IsFree = p.Price == 0
}

// AfterFind keeps IsFree consistent for records loaded through GORM.
func (p *Prompt) AfterFind(_ *gorm.DB) error {
	p.Derive()
	return nil
}

// RawRecord is a record as returned by a store, before normalization.
// Shapes vary between stores and over time: tags may arrive as a
// comma-joined string, prices as null, keys in snake_case or camelCase.
type RawRecord map[string]interface{}
