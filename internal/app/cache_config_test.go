package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/rosterd/internal/cache"
	"github.com/charlesng35/rosterd/internal/database/testutil"
)

func TestCacheConfigOpenStore(t *testing.T) {
	store, name, err := CacheConfig{}.OpenStore(nil, nil)
	require.NoError(t, err)
	require.Equal(t, CacheBackendMemory, name)
	require.IsType(t, &cache.MemoryStore{}, store)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, name, err = CacheConfig{Backend: " Database "}.OpenStore(db, nil)
	require.NoError(t, err)
	require.Equal(t, CacheBackendDatabase, name)
	require.IsType(t, &cache.DatabaseStore{}, store)

	_, _, err = CacheConfig{Backend: "database"}.OpenStore(nil, nil)
	require.Error(t, err)

	_, _, err = CacheConfig{Backend: "memcached"}.OpenStore(nil, nil)
	require.Error(t, err)
}

func TestCacheConfigRedisFallsBackToMemory(t *testing.T) {
	cfg := CacheConfig{Backend: "redis", Redis: RedisCacheConfig{Address: "127.0.0.1:1", Timeout: 100 * time.Millisecond}}

	store, name, err := cfg.OpenStore(nil, nil)
	require.NoError(t, err)
	require.Equal(t, CacheBackendMemory, name)
	require.IsType(t, &cache.MemoryStore{}, store)
}

func TestCacheConfigLayerOptions(t *testing.T) {
	require.Empty(t, CacheConfig{}.LayerOptions())

	layer := cache.NewLayer(cache.NewMemoryStore(), CacheConfig{TTL: time.Minute}.LayerOptions()...)
	require.Equal(t, time.Minute, layer.TTL())
}

func TestDatabaseOptions(t *testing.T) {
	opts, err := DatabaseConfig{Path: " ./data/x.sqlite "}.DatabaseOptions()
	require.NoError(t, err)
	require.Equal(t, "sqlite", opts.Driver)
	require.Equal(t, "./data/x.sqlite", opts.Path)

	opts, err = DatabaseConfig{
		Driver:       "MariaDB",
		MaxOpenConns: 5,
		MySQL:        DBAuthConfig{Host: "db", Port: 3307, Database: "roster", Username: "u", Password: "p"},
	}.DatabaseOptions()
	require.NoError(t, err)
	require.Equal(t, "mysql", opts.Driver)
	require.Equal(t, "db", opts.Host)
	require.Equal(t, 3307, opts.Port)
	require.Equal(t, "roster", opts.Name)
	require.Equal(t, 5, opts.MaxOpenConns)

	_, err = DatabaseConfig{Driver: "oracle"}.DatabaseOptions()
	require.Error(t, err)
}

func TestAuthConfigLoginLimit(t *testing.T) {
	requests, window := AuthConfig{}.LoginLimit()
	require.Zero(t, requests)
	require.Equal(t, time.Minute, window)

	requests, window = AuthConfig{LoginRateLimit: RateLimitSettings{Requests: 5, Window: time.Second}}.LoginLimit()
	require.Equal(t, 5, requests)
	require.Equal(t, time.Second, window)

	require.Len(t, AuthConfig{BcryptCost: 12}.CredentialOptions(), 1)
	require.Equal(t, 30*time.Minute, AuthConfig{}.JWTServiceConfig().AccessTokenTTL)
}
