package checks

import (
	"context"
	"time"

	"github.com/charlesng35/rosterd/internal/cache"
	"github.com/charlesng35/rosterd/internal/monitoring"
)

const defaultCacheTimeout = 2 * time.Second

// Pinger is implemented by cache backends that live outside the process.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache returns a probe for the cache backend. An unreachable cache is only
// degraded: reads fall through to the record store.
func Cache(store cache.Store, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("cache", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if store == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "cache not configured"}
		}

		pinger, ok := store.(Pinger)
		if !ok {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "in-process"}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultCacheTimeout))
		defer cancel()

		return monitoring.ResultFromError(pinger.Ping(probeCtx), monitoring.StatusDegraded, time.Since(start))
	})
}
