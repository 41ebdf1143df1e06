package staging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/timmy/promptmart/internal/domain"
	"github.com/timmy/promptmart/internal/source"
	"github.com/timmy/promptmart/internal/storage"
)

const (
	// ManifestFileName is the JSONL manifest file name in staging sources.
	ManifestFileName = "manifest.jsonl"
	// ImagesDir is the directory name for staged media.
	ImagesDir = "images"

	maxManifestLine = 4 << 20
)

// imageKeys are the record keys that may reference media files.
var imageKeys = []string{"images", "image", "image_url", "imageUrl"}

// Adapter implements the Source interface for a staging directory laid out as
//
//	<base>/<source>/manifest.jsonl
//	<base>/<source>/images/...
//
// Each manifest line is one listing. Lines are kept as raw records; image
// entries naming a file under images/ become local uploads.
type Adapter struct {
	basePath string
	sourceID string
	items    []source.Item
	skipped  int
	loaded   bool
}

// NewAdapter creates a new staging adapter.
// Parameters:
//   - basePath: base path to the staging directory.
//   - sourceID: identifier for the staging source.
// Returns:
//   - *Adapter: initialized staging adapter.
func NewAdapter(basePath, sourceID string) *Adapter {
	return &Adapter{
		basePath: basePath,
		sourceID: sourceID,
	}
}

// Open validates name and returns an adapter for <basePath>/<name>. Names
// are single path elements made of letters, digits, '-' and '_'.
func Open(basePath, name string) (*Adapter, error) {
	if name == "" || strings.Trim(name, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_") != "" {
		return nil, fmt.Errorf("invalid source name: %q", name)
	}
	dir := filepath.Join(basePath, name)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("unknown source: %s", name)
	}
	return NewAdapter(basePath, name), nil
}

// GetSourceID returns the unique identifier for this source.
// Parameters: none.
// Returns:
//   - string: source identifier with "staging:" prefix.
func (a *Adapter) GetSourceID() string {
	return "staging:" + a.sourceID
}

// GetDisplayName returns a human-readable name for this source.
// Parameters: none.
// Returns:
//   - string: display name for the staging source.
func (a *Adapter) GetDisplayName() string {
	return fmt.Sprintf("Staging (%s)", a.sourceID)
}

// Skipped returns how many manifest lines could not be parsed.
func (a *Adapter) Skipped() int {
	return a.skipped
}

// FetchBatch fetches a batch of catalog items from the staging directory.
// Parameters:
//   - ctx: context for cancellation and deadlines (unused for local reads).
//   - cursor: pagination cursor as an index string.
//   - limit: maximum number of items to fetch.
// Returns:
//   - []source.Item: batch of catalog items.
//   - string: next cursor or empty if no more items.
//   - error: non-nil if loading or parsing fails.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.Item, string, error) {
	if !a.loaded {
		if err := a.loadItems(); err != nil {
			return nil, "", fmt.Errorf("failed to load staging items: %w", err)
		}
		a.loaded = true
	}

	startIndex := 0
	if cursor != "" {
		var err error
		startIndex, err = strconv.Atoi(cursor)
		if err != nil || startIndex < 0 {
			return nil, "", fmt.Errorf("invalid cursor: %q", cursor)
		}
	}

	if startIndex >= len(a.items) {
		return []source.Item{}, "", nil
	}

	endIndex := startIndex + limit
	if limit <= 0 || endIndex > len(a.items) {
		endIndex = len(a.items)
	}

	nextCursor := ""
	if endIndex < len(a.items) {
		nextCursor = strconv.Itoa(endIndex)
	}

	return a.items[startIndex:endIndex], nextCursor, nil
}

// loadItems loads all items from the manifest file
func (a *Adapter) loadItems() error {
	stagingPath := filepath.Join(a.basePath, a.sourceID)
	manifestPath := filepath.Join(stagingPath, ManifestFileName)
	imagesPath := filepath.Join(stagingPath, ImagesDir)

	file, err := os.Open(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("manifest file not found: %s", manifestPath)
		}
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	a.items = []source.Item{}
	a.skipped = 0
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxManifestLine)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		record, err := decodeRecord(line)
		if err != nil {
			a.skipped++
			continue
		}

		itemID := recordID(record)
		if itemID == "" {
			itemID = fmt.Sprintf("line-%d", lineNo)
		}
		if seen[itemID] {
			a.skipped++
			continue
		}
		seen[itemID] = true

		a.items = append(a.items, source.Item{
			SourceID:   itemID,
			Record:     record,
			ImagePaths: extractLocalImages(record, imagesPath),
		})
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading manifest: %w", err)
	}

	sort.SliceStable(a.items, func(i, j int) bool {
		return a.items[i].SourceID < a.items[j].SourceID
	})

	return nil
}

// decodeRecord keeps numbers as json.Number so ids and prices survive
// without float rounding.
func decodeRecord(line []byte) (domain.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var record domain.RawRecord
	if err := dec.Decode(&record); err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("not an object")
	}
	return record, nil
}

func recordID(record domain.RawRecord) string {
	for _, key := range []string{"source_id", "sourceId", "id"} {
		if v, ok := record[key]; ok && v != nil {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// extractLocalImages moves image entries that name a staged file out of the
// record and returns their paths. Remote URLs and unknown keys stay.
func extractLocalImages(record domain.RawRecord, imagesPath string) []string {
	var local []string
	for _, key := range imageKeys {
		v, ok := record[key]
		if !ok || v == nil {
			continue
		}

		var refs []interface{}
		switch val := v.(type) {
		case []interface{}:
			refs = val
		case string:
			refs = []interface{}{val}
		default:
			continue
		}

		kept := make([]interface{}, 0, len(refs))
		for _, ref := range refs {
			name, ok := ref.(string)
			if !ok || !storage.IsObjectKey(name) {
				kept = append(kept, ref)
				continue
			}
			path := filepath.Join(imagesPath, name)
			if rel, err := filepath.Rel(imagesPath, path); err != nil || strings.HasPrefix(rel, "..") {
				kept = append(kept, ref)
				continue
			}
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				local = append(local, path)
				continue
			}
			kept = append(kept, ref)
		}
		record[key] = kept
	}
	return local
}
