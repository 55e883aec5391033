package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/rosterd/internal/cache"
	sharedtestutil "github.com/charlesng35/rosterd/internal/database/testutil"
	"github.com/charlesng35/rosterd/internal/monitoring"
	"github.com/charlesng35/rosterd/internal/monitoring/checks"
)

type failingPinger struct {
	cache.Store
	err error
}

func (p failingPinger) Ping(context.Context) error { return p.err }

func TestHealthManagerEvaluate(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager(
		monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
			return monitoring.ProbeResult{Status: monitoring.StatusUp}
		}),
		monitoring.NewCheck("cache", func(ctx context.Context) monitoring.ProbeResult {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "connection refused"}
		}),
	)

	report := manager.Evaluate(context.Background())
	require.False(t, report.Serving())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "cache", report.Checks[1].Component)
}

func TestHealthManagerRecoversPanics(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager(monitoring.NewCheck("boom", func(ctx context.Context) monitoring.ProbeResult {
		panic("probe exploded")
	}))

	report := manager.Evaluate(context.Background())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Equal(t, "probe exploded", report.Checks[0].Details)
	require.Equal(t, "boom", report.Checks[0].Component)
}

func TestDatabaseCheck(t *testing.T) {
	db := sharedtestutil.MustOpenTestDB(t)

	result := checks.Database(db, time.Second).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)

	result = checks.Database(nil, time.Second).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
}

func TestCacheCheckDegradesOnFailure(t *testing.T) {
	t.Parallel()

	result := checks.Cache(cache.NewMemoryStore(), 0).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)

	result = checks.Cache(failingPinger{Store: cache.NewMemoryStore(), err: errors.New("connection refused")}, 0).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "connection refused")

	manager := monitoring.NewHealthManager(checks.Cache(failingPinger{Store: cache.NewMemoryStore(), err: errors.New("down")}, 0))
	report := manager.Evaluate(context.Background())
	require.True(t, report.Serving())
	require.Equal(t, monitoring.StatusDegraded, report.Status)
}
