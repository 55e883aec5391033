package app

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/rosterd/internal/cache"
)

// Supported cache backends.
const (
	CacheBackendMemory   = "memory"
	CacheBackendDatabase = "database"
	CacheBackendRedis    = "redis"
)

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  c.Redis.Timeout,
	}
}

// BackendName returns the normalised backend name, defaulting to memory.
func (c CacheConfig) BackendName() string {
	backend := strings.ToLower(strings.TrimSpace(c.Backend))
	if backend == "" {
		return CacheBackendMemory
	}
	return backend
}

// OpenStore builds the configured cache backend. An unreachable Redis server
// falls back to the in-process store so the service still starts; the returned
// name reports the backend actually in use.
func (c CacheConfig) OpenStore(db *gorm.DB, log *zap.Logger) (cache.Store, string, error) {
	if log == nil {
		log = zap.NewNop()
	}

	switch backend := c.BackendName(); backend {
	case CacheBackendMemory:
		return cache.NewMemoryStore(), backend, nil
	case CacheBackendDatabase:
		if db == nil {
			return nil, "", fmt.Errorf("cache: database backend requires a database handle")
		}
		return cache.NewDatabaseStore(db), backend, nil
	case CacheBackendRedis:
		client, err := cache.NewRedisClient(c.RedisClientConfig())
		if err != nil {
			log.Warn("redis unavailable; falling back to in-memory cache", zap.Error(err))
			return cache.NewMemoryStore(), CacheBackendMemory, nil
		}
		log.Info("redis connected", zap.String("addr", c.Redis.Address))
		return client, backend, nil
	default:
		return nil, "", fmt.Errorf("cache: unsupported backend %q", c.Backend)
	}
}

// LayerOptions converts CacheConfig into cache layer options.
func (c CacheConfig) LayerOptions() []cache.LayerOption {
	var opts []cache.LayerOption
	if c.TTL > 0 {
		opts = append(opts, cache.WithDefaultTTL(c.TTL))
	}
	return opts
}
