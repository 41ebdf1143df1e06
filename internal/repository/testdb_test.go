package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/timmy/promptmart/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq int64

// newTestDB opens a private shared-cache in-memory sqlite database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:promptmart_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(db))
	return db
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func seedPrompts(t *testing.T, repo *PromptRepository) {
	t.Helper()
	prompts := []domain.Prompt{
		{ID: "1", Title: "Cyberpunk City", Category: "midjourney", Tags: domain.StringArray{"futurismo"}, Price: 0, Author: "Ana", IsActive: true, Rating: 4.5, Downloads: 10, Views: 100, CreatedAt: baseTime},
		{ID: "2", Title: "Portrait Pro", Category: "midjourney", Tags: domain.StringArray{"retrato"}, Price: 29.9, Author: "Bruno", IsActive: true, Rating: 4.8, Downloads: 3, Views: 50, CreatedAt: baseTime.Add(time.Hour)},
		{ID: "3", Title: "Draft Essay Helper", Category: "chatgpt", Tags: domain.StringArray{"writing", "Essay"}, Price: 5, Author: "Carla", IsActive: false, CreatedAt: baseTime.Add(2 * time.Hour)},
	}
	for i := range prompts {
		require.NoError(t, repo.Create(context.Background(), &prompts[i]))
	}
}

func ids(records []domain.RawRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, fmt.Sprint(r["id"]))
	}
	return out
}
