// Package cache provides the time-bounded record cache used to paint the
// log explorer instantly on revisit, and the storages it can persist to.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrQuotaExceeded is returned by a limited storage when a value is too large.
var ErrQuotaExceeded = errors.New("cache quota exceeded")

// Storage is a flat key/value byte store.
type Storage interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set overwrites the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Ping checks that the storage is reachable.
	Ping(ctx context.Context) error
	// Close releases the storage's resources.
	Close() error
}

// MemoryStorage keeps values in process memory.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string][]byte)}
}

// Get implements Storage.
func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set implements Storage.
func (s *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	s.mu.Lock()
	s.items[key] = v
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Ping implements Storage.
func (s *MemoryStorage) Ping(context.Context) error { return nil }

// Close implements Storage.
func (s *MemoryStorage) Close() error { return nil }

// limited rejects values above a byte budget.
type limited struct {
	Storage
	max int
}

// Limit wraps storage so that writes larger than maxBytes fail with
// ErrQuotaExceeded. A non-positive maxBytes disables the limit.
func Limit(storage Storage, maxBytes int) Storage {
	if maxBytes <= 0 {
		return storage
	}
	return &limited{Storage: storage, max: maxBytes}
}

func (l *limited) Set(ctx context.Context, key string, value []byte) error {
	if len(value) > l.max {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrQuotaExceeded, len(value), l.max)
	}
	return l.Storage.Set(ctx, key, value)
}
