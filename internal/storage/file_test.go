package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teyvat-tools/resin-bot/internal/domain"
)

func TestFileStoreLoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "users.json"), testLogger())

	users, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.NotNil(t, users)
}

func TestFileStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	store := NewFileStore(path, testLogger())
	ctx := context.Background()

	end := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	users := map[int64]*domain.UserRecord{
		100: {
			ID:             100,
			DisplayName:    "Aether",
			UTCOffsetHours: 3,
			Expedition:     &domain.ExpeditionTimer{EndUTC: end},
			Resin: &domain.ResinTracker{
				BaselineValue:   120,
				BaselineUTC:     end.Add(-2 * time.Hour),
				NotifiedNearCap: true,
			},
			RegisteredAt: end.Add(-48 * time.Hour),
		},
		200: {ID: 200, DisplayName: "Lumine", UTCOffsetHours: -5},
	}

	require.NoError(t, store.SaveAll(ctx, users))

	loaded, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	got := loaded[100]
	require.NotNil(t, got)
	assert.Equal(t, "Aether", got.DisplayName)
	assert.Equal(t, 3, got.UTCOffsetHours)
	require.NotNil(t, got.Expedition)
	assert.True(t, got.Expedition.EndUTC.Equal(end))
	require.NotNil(t, got.Resin)
	assert.Equal(t, 120, got.Resin.BaselineValue)
	assert.True(t, got.Resin.NotifiedNearCap)
	assert.False(t, got.Resin.NotifiedFull)

	require.NotNil(t, loaded[200])
	assert.Nil(t, loaded[200].Expedition)
	assert.Nil(t, loaded[200].Resin)
}

func TestFileStoreSaveSupersedesPreviousSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	store := NewFileStore(path, testLogger())
	ctx := context.Background()

	require.NoError(t, store.SaveAll(ctx, map[int64]*domain.UserRecord{
		1: {ID: 1, DisplayName: "first"},
		2: {ID: 2, DisplayName: "second"},
	}))
	require.NoError(t, store.SaveAll(ctx, map[int64]*domain.UserRecord{
		1: {ID: 1, DisplayName: "renamed"},
	}))

	loaded, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "renamed", loaded[1].DisplayName)

	// No stray temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStoreLoadCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := NewFileStore(path, testLogger())
	_, err := store.LoadAll(context.Background())
	assert.Error(t, err)
}

func TestFileStoreHealthCheck(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "users.json"), testLogger())
	assert.NoError(t, store.HealthCheck(context.Background()))
}
