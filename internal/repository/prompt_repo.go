package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/timmy/promptmart/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// queryable columns; anything else is rejected before reaching SQL
var promptColumns = map[string]bool{
	FieldID:          true,
	FieldTitle:       true,
	FieldDescription: true,
	FieldAuthor:      true,
	FieldCategory:    true,
	FieldTags:        true,
	FieldPrice:       true,
	FieldIsActive:    true,
	FieldCreatedAt:   true,
	FieldRating:      true,
	FieldDownloads:   true,
	FieldViews:       true,
}

// PromptRepository handles prompt data operations on a relational database.
// It implements RecordStore.
type PromptRepository struct {
	db *gorm.DB
}

// NewPromptRepository creates a new PromptRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *PromptRepository: repository instance bound to db.
func NewPromptRepository(db *gorm.DB) *PromptRepository {
	return &PromptRepository{db: db}
}

// Find translates q into SQL and returns the matching rows as raw records.
// Tags are stored as a JSON array in a text column, so tag conditions are
// evaluated with LIKE over that text and may over-match.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - q: logical query.
// Returns:
//   - []domain.RawRecord: matching rows keyed by column name.
//   - error: non-nil if the query is invalid or fails.
func (r *PromptRepository) Find(ctx context.Context, q Query) ([]domain.RawRecord, error) {
	tx := r.db.WithContext(ctx).Model(&domain.Prompt{})

	for _, f := range q.Filters {
		expr, args, err := filterSQL(f)
		if err != nil {
			return nil, err
		}
		if expr == "" {
			continue
		}
		tx = tx.Where(expr, args...)
	}

	for _, o := range q.Order {
		if !promptColumns[o.Field] {
			return nil, fmt.Errorf("unknown order field %q", o.Field)
		}
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Field}, Desc: o.Desc})
	}

	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []map[string]interface{}
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query prompts: %w", err)
	}

	records := make([]domain.RawRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, domain.RawRecord(row))
	}
	return records, nil
}

func filterSQL(f Filter) (string, []interface{}, error) {
	var parts []string
	var args []interface{}
	for _, c := range f.AnyOf {
		if !promptColumns[c.Field] {
			return "", nil, fmt.Errorf("unknown filter field %q", c.Field)
		}
		switch c.Op {
		case OpEq:
			parts = append(parts, c.Field+" = ?")
			args = append(args, c.Value)
		case OpGt:
			parts = append(parts, c.Field+" > ?")
			args = append(args, c.Value)
		case OpILike:
			parts = append(parts, "LOWER("+c.Field+") LIKE ?")
			args = append(args, "%"+strings.ToLower(fmt.Sprint(c.Value))+"%")
		case OpOverlaps:
			values, ok := c.Value.([]string)
			if !ok {
				return "", nil, fmt.Errorf("overlaps on %q needs []string, got %T", c.Field, c.Value)
			}
			// substring over the JSON text; also matches untrimmed stored tags
			for _, v := range values {
				parts = append(parts, c.Field+" LIKE ?")
				args = append(args, "%"+v+"%")
			}
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", c.Op)
		}
	}
	if len(parts) == 0 {
		return "", nil, nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args, nil
}

// Increment adds one to the counter column in a single UPDATE statement.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: prompt ID.
//   - counter: counter to increment.
// Returns:
//   - error: ErrNotFound if no row has id; non-nil if the update fails.
func (r *PromptRepository) Increment(ctx context.Context, id string, counter Counter) error {
	if !counter.Valid() {
		return fmt.Errorf("unknown counter %q", counter)
	}
	col := string(counter)
	result := r.db.WithContext(ctx).Model(&domain.Prompt{}).
		Where("id = ?", id).
		UpdateColumn(col, gorm.Expr(col+" + ?", 1))
	if result.Error != nil {
		return fmt.Errorf("failed to increment %s: %w", col, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Create inserts a new prompt.
func (r *PromptRepository) Create(ctx context.Context, prompt *domain.Prompt) error {
	return r.db.WithContext(ctx).Create(prompt).Error
}

// Upsert creates a prompt or overwrites the existing row with the same id.
// Counters are kept from the existing row.
func (r *PromptRepository) Upsert(ctx context.Context, prompt *domain.Prompt) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "content", "category", "tags", "price",
			"author", "author_id", "is_admin_created", "is_active", "rating",
			"images", "video_url", "updated_at",
		}),
	}).Create(prompt).Error
}

// GetByID retrieves a prompt by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: prompt ID.
// Returns:
//   - *domain.Prompt: prompt if found.
//   - error: ErrNotFound if missing; non-nil if lookup fails.
func (r *PromptRepository) GetByID(ctx context.Context, id string) (*domain.Prompt, error) {
	var prompt domain.Prompt
	if err := r.db.WithContext(ctx).First(&prompt, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &prompt, nil
}

// Exists reports whether a prompt with id is stored.
func (r *PromptRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Prompt{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetActive flips the visibility of a prompt (approval / unpublish).
func (r *PromptRepository) SetActive(ctx context.Context, id string, active bool) error {
	result := r.db.WithContext(ctx).Model(&domain.Prompt{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a prompt by ID.
func (r *PromptRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&domain.Prompt{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Categories returns the distinct categories that have at least one active prompt.
func (r *PromptRepository) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := r.db.WithContext(ctx).Model(&domain.Prompt{}).
		Where("is_active = ?", true).
		Where("category <> ''").
		Distinct("category").
		Order("category").
		Pluck("category", &categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// CountByActive counts prompts with the given visibility.
func (r *PromptRepository) CountByActive(ctx context.Context, active bool) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Prompt{}).Where("is_active = ?", active).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
