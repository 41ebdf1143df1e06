package staging

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStaging(t *testing.T, lines []string, images ...string) string {
	t.Helper()
	base := t.TempDir()
	dir := filepath.Join(base, "launch")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ImagesDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(strings.Join(lines, "\n")), 0o644))
	for _, name := range images {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ImagesDir, name), []byte("png"), 0o644))
	}
	return base
}

func TestAdapterFetchBatch(t *testing.T) {
	base := writeStaging(t, []string{
		`{"id": "b", "title": "Second", "price": 9.9}`,
		`not json`,
		``,
		`{"id": "a", "title": "First", "images": ["cover.png", "https://cdn.example.com/x.png"]}`,
		`{"title": "No id"}`,
		`{"id": "a", "title": "Duplicate"}`,
	}, "cover.png")

	adapter := NewAdapter(base, "launch")
	assert.Equal(t, "staging:launch", adapter.GetSourceID())

	items, next, err := adapter.FetchBatch(context.Background(), "", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "2", next)
	assert.Equal(t, "a", items[0].SourceID)
	assert.Equal(t, "b", items[1].SourceID)
	assert.Equal(t, 2, adapter.Skipped())

	assert.Equal(t, []string{filepath.Join(base, "launch", ImagesDir, "cover.png")}, items[0].ImagePaths)
	assert.Equal(t, []interface{}{"https://cdn.example.com/x.png"}, items[0].Record["images"])
	assert.Equal(t, json.Number("9.9"), items[1].Record["price"])

	items, next, err = adapter.FetchBatch(context.Background(), next, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Empty(t, next)
	assert.True(t, strings.HasPrefix(items[0].SourceID, "line-"))

	items, next, err = adapter.FetchBatch(context.Background(), "10", 2)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, next)
}

func TestAdapterRejectsBadInput(t *testing.T) {
	_, _, err := NewAdapter(t.TempDir(), "missing").FetchBatch(context.Background(), "", 10)
	require.Error(t, err)

	base := writeStaging(t, []string{`{"id": "a"}`})
	_, _, err = NewAdapter(base, "launch").FetchBatch(context.Background(), "abc", 10)
	require.Error(t, err)
}

func TestExtractLocalImagesStaysInsideImagesDir(t *testing.T) {
	base := writeStaging(t, []string{`{"id": "a", "images": ["../manifest.jsonl", "missing.png"]}`})

	items, _, err := NewAdapter(base, "launch").FetchBatch(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Empty(t, items[0].ImagePaths)
	assert.Equal(t, []interface{}{"../manifest.jsonl", "missing.png"}, items[0].Record["images"])
}

func TestOpen(t *testing.T) {
	base := writeStaging(t, []string{`{"id": "a"}`})

	adapter, err := Open(base, "launch")
	require.NoError(t, err)
	assert.Equal(t, "staging:launch", adapter.GetSourceID())

	for _, name := range []string{"", "../launch", "a/b", "missing"} {
		_, err := Open(base, name)
		assert.Error(t, err, name)
	}
}
