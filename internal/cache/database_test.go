package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/rosterd/internal/database/testutil"
	"github.com/charlesng35/rosterd/internal/models"
)

func newTestDatabaseStore(t *testing.T, clock *fakeClock) Store {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	store.now = clock.Now
	return store
}

func TestDatabaseStoreContract(t *testing.T) {
	runStoreContract(t, newTestDatabaseStore)
}

func TestNewDatabaseStoreNilDB(t *testing.T) {
	require.Nil(t, NewDatabaseStore(nil))

	var store *DatabaseStore
	_, _, err := store.Get(context.Background(), "k")
	require.Error(t, err)
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	clock := newFakeClock()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	store.now = clock.Now
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, store.Set(ctx, "long", []byte("2"), time.Hour))
	require.NoError(t, store.Set(ctx, "forever", []byte("3"), 0))
	clock.Advance(time.Minute)

	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)

	var remaining int64
	require.NoError(t, db.Model(&models.CacheEntry{}).Count(&remaining).Error)
	require.Equal(t, int64(2), remaining)
}

func TestDatabaseStoreSetOverwrites(t *testing.T) {
	store := newTestDatabaseStore(t, newFakeClock())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "students:all", []byte("v1"), time.Minute))
	require.NoError(t, store.Set(ctx, "students:all", []byte("v2"), time.Minute))

	value, ok, err := store.Get(ctx, "students:all")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v2"), value)
}

func TestDatabaseStorePatternDeleteMultibytePrefix(t *testing.T) {
	store := newTestDatabaseStore(t, newFakeClock())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "faculties:Физика:stats", []byte("a"), time.Minute))
	require.NoError(t, store.Set(ctx, "faculties:Физика:students", []byte("b"), time.Minute))
	require.NoError(t, store.Set(ctx, "faculties:Химия:stats", []byte("c"), time.Minute))

	removed, err := store.DeleteByPattern(ctx, "faculties:Физика:*")
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	_, ok, _ := store.Get(ctx, "faculties:Химия:stats")
	require.True(t, ok)
}
