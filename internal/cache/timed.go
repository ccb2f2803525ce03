package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// DefaultTTL is the freshness window for cached records.
const DefaultTTL = 5 * time.Minute

// Clock returns the current time.
type Clock func() time.Time

// record is the stored shape: the payload plus the epoch-ms it was written at.
type record[T any] struct {
	Data      T     `json:"data"`
	Timestamp int64 `json:"timestamp"`
}

// TimedCache stores values of type T under namespaced keys and only returns
// them while they are younger than the TTL. Stale records are ignored, not
// deleted; the next Set overwrites them.
//
// The cache is best effort: storage and decoding failures are logged and
// reported to the caller as a miss.
type TimedCache[T any] struct {
	storage   Storage
	namespace string
	ttl       time.Duration
	now       Clock
	logger    *slog.Logger
}

type settings struct {
	ttl    time.Duration
	now    Clock
	logger *slog.Logger
}

// Option configures a TimedCache.
type Option func(*settings)

// WithTTL sets the freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(now Clock) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for swallowed failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewTimed creates a cache over storage whose keys are prefixed by namespace.
func NewTimed[T any](storage Storage, namespace string, opts ...Option) *TimedCache[T] {
	s := settings{
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &TimedCache[T]{
		storage:   storage,
		namespace: strings.TrimSuffix(namespace, ":"),
		ttl:       s.ttl,
		now:       s.now,
		logger:    s.logger.With("component", "cache"),
	}
}

// Key returns the storage key for key.
func (c *TimedCache[T]) Key(key string) string {
	if c.namespace == "" {
		return key
	}
	return c.namespace + ":" + key
}

// TTL returns the freshness window.
func (c *TimedCache[T]) TTL() time.Duration {
	return c.ttl
}

// Get returns the value stored under key if it is still fresh.
func (c *TimedCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	if c == nil || c.storage == nil {
		return zero, false
	}

	storageKey := c.Key(key)
	raw, ok, err := c.storage.Get(ctx, storageKey)
	if err != nil {
		c.logger.Warn("cache read failed", "key", storageKey, "error", err)
		return zero, false
	}
	if !ok {
		return zero, false
	}

	var rec record[T]
	if err := json.Unmarshal(raw, &rec); err != nil {
		c.logger.Warn("corrupt cache record", "key", storageKey, "error", err)
		return zero, false
	}

	if c.now().Sub(time.UnixMilli(rec.Timestamp)) >= c.ttl {
		return zero, false
	}
	return rec.Data, true
}

// Set overwrites the record under key with value stamped at the current time.
func (c *TimedCache[T]) Set(ctx context.Context, key string, value T) {
	if c == nil || c.storage == nil {
		return
	}

	storageKey := c.Key(key)
	raw, err := json.Marshal(record[T]{Data: value, Timestamp: c.now().UnixMilli()})
	if err != nil {
		c.logger.Warn("cache encode failed", "key", storageKey, "error", err)
		return
	}
	if err := c.storage.Set(ctx, storageKey, raw); err != nil {
		c.logger.Warn("cache write failed", "key", storageKey, "error", err)
	}
}
