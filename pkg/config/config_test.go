package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"API_URL", "REQUEST_TIMEOUT", "WEB_ADDR", "SESSION_IDLE_TIMEOUT", "SHUTDOWN_TIMEOUT", "PAGE_SIZE",
		"CACHE_BACKEND", "CACHE_TTL", "CACHE_NAMESPACE", "CACHE_SQLITE_PATH", "CACHE_COMPRESS",
		"CACHE_MAX_VALUE_BYTES", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "LOG_LEVEL", "LOG_FORMAT", "CONFIG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 20, cfg.PageSize)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadLayersYAMLThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "explorer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: https://api.example.com
page_size: 50
cache:
  backend: sqlite
  ttl: 2m
  sqlite_path: /tmp/cache.db
log:
  format: text
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PAGE_SIZE", "10")
	t.Setenv("CACHE_COMPRESS", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.APIURL)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.True(t, cfg.Cache.Compress)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("REDIS_DB=3\n"), 0o600))
	// godotenv keeps variables that are already set, even when empty.
	require.NoError(t, os.Unsetenv("REDIS_DB"))

	cfg := LoadWithDefaults()
	assert.Equal(t, 3, cfg.Cache.Redis.DB)
}

func TestValidate(t *testing.T) {
	valid := defaults()
	require.NoError(t, valid.Validate())

	cases := map[string]func(c *Config){
		"relative api url": func(c *Config) { c.APIURL = "/api" },
		"zero page size":   func(c *Config) { c.PageSize = 0 },
		"zero ttl":         func(c *Config) { c.Cache.TTL = 0 },
		"unknown backend":  func(c *Config) { c.Cache.Backend = "memcached" },
		"redis no addr":    func(c *Config) { c.Cache.Backend = "redis" },
		"sqlite no path":   func(c *Config) { c.Cache.Backend = "sqlite"; c.Cache.SQLitePath = "" },
		"bad log format":   func(c *Config) { c.Log.Format = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := defaults()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
