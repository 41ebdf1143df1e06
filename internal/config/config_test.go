package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "gorm", cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.Search.StoreTimeout)
	assert.Equal(t, "/placeholder.svg", cfg.Search.PlaceholderImage)
	assert.Equal(t, "Unknown Author", cfg.Search.FallbackAuthor)
	assert.Equal(t, 6, cfg.Search.FeaturedLimit)
	assert.Equal(t, 10, cfg.Search.TopLimit)
	assert.True(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Storage.Enabled)
	assert.Equal(t, 4, cfg.Catalog.Workers)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
store:
  driver: rest
  rest:
    base_url: https://example.test
search:
  store_timeout: 750ms
cache:
  ttl: 30s
`), 0o644))

	t.Setenv("ADMIN_TOKEN", "secret")
	t.Setenv("SEARCH_TOP_LIMIT", "25")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Server.AdminToken)
	assert.Equal(t, "rest", cfg.Store.Driver)
	assert.Equal(t, "https://example.test", cfg.Store.REST.BaseURL)
	assert.Equal(t, 750*time.Millisecond, cfg.Search.StoreTimeout)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 25, cfg.Search.TopLimit)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
