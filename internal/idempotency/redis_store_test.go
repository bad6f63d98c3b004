package idempotency

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return client, mr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisStore_RecordRoundTrip(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewRedisStore(client, testLogger())
	ctx := context.Background()

	key := UpdateKey("msg", int64(42), 7)
	err := store.Set(ctx, key, &Record{
		Status:   StatusCompleted,
		Response: []byte(`{"handled":true}`),
	}, time.Hour)
	require.NoError(t, err)

	record, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, StatusCompleted, record.Status)
	assert.Equal(t, []byte(`{"handled":true}`), record.Response)
}

func TestRedisStore_MissingRecordIsNil(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewRedisStore(client, testLogger())

	record, err := store.Get(context.Background(), "never-set")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestRedisStore_KeysScopedToUpdateNamespace(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore(client, testLogger())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "abc", &Record{Status: StatusProcessing}, time.Hour))

	locked, err := store.Lock(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)

	assert.True(t, mr.Exists("resin:update:abc"))
	assert.True(t, mr.Exists("resin:update:abc:lock"))
}

func TestRedisStore_LockContention(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewRedisStore(client, testLogger())
	ctx := context.Background()

	locked, err := store.Lock(ctx, "update-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)

	again, err := store.Lock(ctx, "update-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, store.ReleaseLock(ctx, "update-1"))

	retried, err := store.Lock(ctx, "update-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, retried)
}

func TestCleaner_DropsRecordsWithoutTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore(client, testLogger())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "fresh", &Record{Status: StatusCompleted}, time.Hour))

	// Simulates a record that lost its expiry.
	mr.HSet("resin:update:orphan", "status", StatusCompleted)

	// Unrelated keys stay untouched.
	require.NoError(t, mr.Set("user:state:42", "awaiting_offset"))

	cleaner := NewCleaner(client, testLogger(), time.Minute)
	cleaner.cleanup(ctx)

	assert.True(t, mr.Exists("resin:update:fresh"))
	assert.False(t, mr.Exists("resin:update:orphan"))
	assert.True(t, mr.Exists("user:state:42"))
}

func TestUpdateKey_Deterministic(t *testing.T) {
	t.Parallel()

	a := UpdateKey("cb", "callback-17")
	b := UpdateKey("cb", "callback-17")
	c := UpdateKey("cb", "callback-18")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
