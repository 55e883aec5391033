package cache

import (
	"context"
	"strings"
	"time"
)

// Store represents a shared cache interface used across the application.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPattern removes every key matching pattern and returns how many were removed.
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
	Clear(ctx context.Context) error
}

// Purger is implemented by stores that keep expired entries around until swept.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// splitPattern returns the literal part of a pattern and whether it ends in the
// "*" wildcard. Only a trailing "*" is special; anywhere else it is literal.
func splitPattern(pattern string) (string, bool) {
	if strings.HasSuffix(pattern, "*") {
		return strings.TrimSuffix(pattern, "*"), true
	}
	return pattern, false
}

// MatchPattern reports whether key is selected by pattern. A pattern without a
// trailing "*" matches exactly one key.
func MatchPattern(pattern, key string) bool {
	prefix, wildcard := splitPattern(pattern)
	if wildcard {
		return strings.HasPrefix(key, prefix)
	}
	return key == prefix
}
