package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/charlesng35/rosterd/pkg/errors"
	"github.com/charlesng35/rosterd/pkg/logger"
	"github.com/charlesng35/rosterd/pkg/metrics"
)

// DefaultTTL applies to entries written without an explicit ttl.
const DefaultTTL = 300 * time.Second

// Layer fronts a Store for query results. Backend failures never reach the
// caller: reads degrade to misses and writes to no-ops, with a warning logged.
// A nil *Layer behaves as a cache that always misses.
type Layer struct {
	store Store
	ttl   time.Duration
	log   *zap.Logger
}

// LayerOption customises a Layer.
type LayerOption func(*Layer)

// WithDefaultTTL overrides DefaultTTL.
func WithDefaultTTL(ttl time.Duration) LayerOption {
	return func(l *Layer) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithLogger overrides the module logger.
func WithLogger(log *zap.Logger) LayerOption {
	return func(l *Layer) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLayer wraps store. A nil store yields a nil Layer.
func NewLayer(store Store, opts ...LayerOption) *Layer {
	if store == nil {
		return nil
	}
	layer := &Layer{
		store: store,
		ttl:   DefaultTTL,
		log:   logger.WithModule("cache"),
	}
	for _, opt := range opts {
		opt(layer)
	}
	return layer
}

// TTL returns the default entry lifetime.
func (l *Layer) TTL() time.Duration {
	if l == nil {
		return DefaultTTL
	}
	return l.ttl
}

// Get returns the cached bytes for key, or false on a miss or backend failure.
func (l *Layer) Get(ctx context.Context, key string) ([]byte, bool) {
	if l == nil {
		return nil, false
	}
	value, ok, err := l.store.Get(ctx, key)
	if err != nil {
		l.degraded("get", err, zap.String("key", key))
		return nil, false
	}
	if !ok {
		metrics.CacheOperations.WithLabelValues("get", "miss").Inc()
		return nil, false
	}
	metrics.CacheOperations.WithLabelValues("get", "hit").Inc()
	return value, true
}

// Put stores value under key. A non-positive ttl selects the default TTL.
func (l *Layer) Put(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if l == nil {
		return
	}
	if ttl <= 0 {
		ttl = l.ttl
	}
	if err := l.store.Set(ctx, key, value, ttl); err != nil {
		l.degraded("put", err, zap.String("key", key))
		return
	}
	metrics.CacheOperations.WithLabelValues("put", "ok").Inc()
}

// Delete removes keys; missing keys are ignored.
func (l *Layer) Delete(ctx context.Context, keys ...string) {
	if l == nil || len(keys) == 0 {
		return
	}
	if err := l.store.Delete(ctx, keys...); err != nil {
		l.degraded("delete", err, zap.Strings("keys", keys))
		return
	}
	metrics.CacheOperations.WithLabelValues("delete", "ok").Inc()
}

// DeleteByPattern removes every key matching pattern and returns the number
// removed. A trailing "*" matches any suffix; otherwise the pattern is an exact key.
func (l *Layer) DeleteByPattern(ctx context.Context, pattern string) int64 {
	if l == nil {
		return 0
	}
	removed, err := l.store.DeleteByPattern(ctx, pattern)
	if err != nil {
		l.degraded("delete_pattern", err, zap.String("pattern", pattern))
		return removed
	}
	metrics.CacheOperations.WithLabelValues("delete_pattern", "ok").Inc()
	return removed
}

// Clear drops every entry and reports whether the backend accepted the request.
func (l *Layer) Clear(ctx context.Context) bool {
	if l == nil {
		return true
	}
	if err := l.store.Clear(ctx); err != nil {
		l.degraded("clear", err)
		return false
	}
	metrics.CacheOperations.WithLabelValues("clear", "ok").Inc()
	l.log.Info("cache cleared")
	return true
}

// GetJSON decodes the cached value under key into dest. Undecodable entries
// are dropped and reported as misses.
func (l *Layer) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	raw, ok := l.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		l.log.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		l.Delete(ctx, key)
		return false
	}
	return true
}

// PutJSON encodes value as JSON and stores it.
func (l *Layer) PutJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if l == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		l.log.Warn("cache value not encodable", zap.String("key", key), zap.Error(err))
		return
	}
	l.Put(ctx, key, raw, ttl)
}

func (l *Layer) degraded(op string, err error, fields ...zap.Field) {
	metrics.CacheOperations.WithLabelValues(op, "error").Inc()
	fields = append(fields,
		zap.String("op", op),
		zap.Error(apperrors.ErrCacheUnavailable.WithInternal(err)),
	)
	l.log.Warn("cache backend unavailable, continuing without cache", fields...)
}
