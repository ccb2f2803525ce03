package cache

import (
	"fmt"

	"github.com/dsecure/portal/pkg/config"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Options selects and configures a storage.
type Options struct {
	Backend       string
	SQLitePath    string
	Redis         RedisOptions
	Compress      bool
	MaxValueBytes int
}

// Open builds the storage described by opts, including the compression and
// quota wrappers.
func Open(opts Options) (Storage, error) {
	var (
		storage Storage
		err     error
	)
	switch opts.Backend {
	case "", BackendMemory:
		storage = NewMemoryStorage()
	case BackendSQLite:
		storage, err = OpenSQLite(opts.SQLitePath)
	case BackendRedis:
		storage = NewRedisStorage(opts.Redis)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	if opts.Compress {
		storage, err = Compressed(storage)
		if err != nil {
			return nil, err
		}
	}
	return Limit(storage, opts.MaxValueBytes), nil
}

// OptionsFromConfig maps the cache section of the configuration to Options.
func OptionsFromConfig(c config.CacheConfig) Options {
	return Options{
		Backend:    c.Backend,
		SQLitePath: c.SQLitePath,
		Redis: RedisOptions{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		},
		Compress:      c.Compress,
		MaxValueBytes: c.MaxValueBytes,
	}
}
