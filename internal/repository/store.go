package repository

import (
	"context"
	"errors"

	"github.com/timmy/promptmart/internal/domain"
)

// ErrNotFound is returned when a record addressed by id does not exist.
var ErrNotFound = errors.New("record not found")

// Record field names understood by every RecordStore.
const (
	FieldID          = "id"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldAuthor      = "author"
	FieldCategory    = "category"
	FieldTags        = "tags"
	FieldPrice       = "price"
	FieldIsActive    = "is_active"
	FieldCreatedAt   = "created_at"
	FieldRating      = "rating"
	FieldDownloads   = "downloads"
	FieldViews       = "views"
)

// Op is a comparison operator in the store query vocabulary.
type Op string

const (
	OpEq       Op = "eq"    // field equals value
	OpGt       Op = "gt"    // field greater than value
	OpILike    Op = "ilike" // case-insensitive substring; on tags, any element
	OpOverlaps Op = "ov"    // tags share at least one element with a []string value
)

// Condition is a single comparison against a named field.
type Condition struct {
	Field string
	Op    Op
	Value interface{}
}

// Filter is satisfied when any of its conditions holds.
// The filters of a Query combine conjunctively.
type Filter struct {
	AnyOf []Condition
}

// Where builds a single-condition filter.
func Where(field string, op Op, value interface{}) Filter {
	return Filter{AnyOf: []Condition{{Field: field, Op: op, Value: value}}}
}

// Order sorts by one field.
type Order struct {
	Field string
	Desc  bool
}

// Query is the logical request sent to a RecordStore. A zero Limit means
// unbounded.
//
// A store may evaluate a filter more loosely than written (returning extra
// records) but never more strictly; callers re-check results.
type Query struct {
	Filters []Filter
	Order   []Order
	Limit   int
}

// Counter names a numeric field that can be incremented.
type Counter string

const (
	CounterViews     Counter = "views"
	CounterDownloads Counter = "downloads"
)

// Valid reports whether c is a known counter.
func (c Counter) Valid() bool {
	return c == CounterViews || c == CounterDownloads
}

// RecordStore is the queryable prompt collection backing search.
type RecordStore interface {
	// Find returns raw records matching q. Shapes vary between stores.
	Find(ctx context.Context, q Query) ([]domain.RawRecord, error)
	// Increment atomically adds one to counter on the record with id.
	Increment(ctx context.Context, id string, counter Counter) error
}
