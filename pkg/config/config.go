// Package config provides environment-based configuration for the log explorer.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables (including those loaded from a .env file).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the web portal and the CLI.
type Config struct {
	// Backend
	APIURL         string        `yaml:"api_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Server configuration
	WebAddr            string        `yaml:"web_addr"`
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`

	// Explorer
	PageSize int `yaml:"page_size"`

	Cache CacheConfig `yaml:"cache"`
	Log   LogConfig   `yaml:"log"`
}

// CacheConfig selects the cache storage and its freshness window.
type CacheConfig struct {
	Backend       string        `yaml:"backend"`
	TTL           time.Duration `yaml:"ttl"`
	Namespace     string        `yaml:"namespace"`
	SQLitePath    string        `yaml:"sqlite_path"`
	Compress      bool          `yaml:"compress"`
	MaxValueBytes int           `yaml:"max_value_bytes"`
	Redis         RedisConfig   `yaml:"redis"`
}

// RedisConfig holds the connection settings for the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		APIURL:             "http://localhost:4000",
		RequestTimeout:     30 * time.Second,
		WebAddr:            ":8090",
		SessionIdleTimeout: 30 * time.Minute,
		ShutdownTimeout:    30 * time.Second,
		PageSize:           20,
		Cache: CacheConfig{
			Backend:       "memory",
			TTL:           5 * time.Minute,
			Namespace:     "dsecure:admin_logs",
			SQLitePath:    "./data/explorer-cache.db",
			MaxValueBytes: 5 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from .env, the YAML file named by CONFIG_FILE and
// environment variables, then validates it.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit YAML path. An empty path falls back to
// CONFIG_FILE.
func LoadFile(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithDefaults loads configuration with defaults for development.
// It does not validate, and ignores an unreadable YAML file.
func LoadWithDefaults() *Config {
	cfg, err := load("")
	if err != nil {
		cfg = defaults()
		applyEnv(cfg)
	}
	return cfg
}

func load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := defaults()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.APIURL = getEnv("API_URL", cfg.APIURL)
	cfg.RequestTimeout = getDurationEnv("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.WebAddr = getEnv("WEB_ADDR", cfg.WebAddr)
	cfg.SessionIdleTimeout = getDurationEnv("SESSION_IDLE_TIMEOUT", cfg.SessionIdleTimeout)
	cfg.ShutdownTimeout = getDurationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.PageSize = getIntEnv("PAGE_SIZE", cfg.PageSize)

	cfg.Cache.Backend = strings.ToLower(getEnv("CACHE_BACKEND", cfg.Cache.Backend))
	cfg.Cache.TTL = getDurationEnv("CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.Namespace = getEnv("CACHE_NAMESPACE", cfg.Cache.Namespace)
	cfg.Cache.SQLitePath = getEnv("CACHE_SQLITE_PATH", cfg.Cache.SQLitePath)
	cfg.Cache.Compress = getBoolEnv("CACHE_COMPRESS", cfg.Cache.Compress)
	cfg.Cache.MaxValueBytes = getIntEnv("CACHE_MAX_VALUE_BYTES", cfg.Cache.MaxValueBytes)
	cfg.Cache.Redis.Addr = getEnv("REDIS_ADDR", cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Cache.Redis.Password)
	cfg.Cache.Redis.DB = getIntEnv("REDIS_DB", cfg.Cache.Redis.DB)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(getEnv("LOG_FORMAT", cfg.Log.Format))
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if c.APIURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API_URL must be an absolute http(s) URL, got %q", c.APIURL)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	switch c.Cache.Backend {
	case "memory":
	case "sqlite":
		if c.Cache.SQLitePath == "" {
			return fmt.Errorf("CACHE_SQLITE_PATH is required for the sqlite cache backend")
		}
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be memory, sqlite or redis, got %q", c.Cache.Backend)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
