package middleware

import (
	"context"
	"time"

	"github.com/charlesng35/rosterd/internal/cache"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateStore coordinates rate limiting counters for a specific key.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

// storeRateStore keeps counters in the shared cache backend, so limits hold
// across instances when the backend is Redis or the database.
type storeRateStore struct {
	store cache.Store
}

// NewRateStore wraps a cache store in a RateStore implementation.
func NewRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return &storeRateStore{store: store}
}

func (s *storeRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, rateLimitKeyPrefix+key, window)
	return int(count), ttl, err
}
