package handlers

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teyvat-tools/resin-bot/internal/jobs"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func listBackups(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSnapshotBackup_CopiesSnapshot(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "users.json")
	backupDir := filepath.Join(dir, "backups")
	require.NoError(t, os.WriteFile(snapshot, []byte(`{"1":{}}`), 0o600))

	task, err := jobs.NewSnapshotBackupTask(snapshot, backupDir, 5)
	require.NoError(t, err)

	h := NewSnapshotBackupHandler(testLogger())
	require.NoError(t, h.ProcessTask(context.Background(), task))

	backups := listBackups(t, backupDir)
	require.Len(t, backups, 1)
	assert.Contains(t, backups[0], "users-")

	data, err := os.ReadFile(filepath.Join(backupDir, backups[0]))
	require.NoError(t, err)
	assert.Equal(t, `{"1":{}}`, string(data))
}

func TestSnapshotBackup_MissingSnapshotIsNoop(t *testing.T) {
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backups")

	task, err := jobs.NewSnapshotBackupTask(filepath.Join(dir, "absent.json"), backupDir, 5)
	require.NoError(t, err)

	h := NewSnapshotBackupHandler(testLogger())
	require.NoError(t, h.ProcessTask(context.Background(), task))

	_, statErr := os.Stat(backupDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSnapshotBackup_PrunesOldCopies(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "users.json")
	backupDir := filepath.Join(dir, "backups")
	require.NoError(t, os.WriteFile(snapshot, []byte(`{}`), 0o600))
	require.NoError(t, os.MkdirAll(backupDir, 0o750))

	stale := []string{
		"users-20240101T000000.json",
		"users-20240102T000000.json",
		"users-20240103T000000.json",
	}
	for _, name := range stale {
		require.NoError(t, os.WriteFile(filepath.Join(backupDir, name), []byte(`{}`), 0o600))
	}
	// An unrelated file must survive pruning.
	require.NoError(t, os.WriteFile(filepath.Join(backupDir, "notes.txt"), []byte("keep"), 0o600))

	task, err := jobs.NewSnapshotBackupTask(snapshot, backupDir, 2)
	require.NoError(t, err)

	h := NewSnapshotBackupHandler(testLogger())
	require.NoError(t, h.ProcessTask(context.Background(), task))

	backups := listBackups(t, backupDir)
	assert.Len(t, backups, 3) // two retained backups plus notes.txt
	assert.Contains(t, backups, "notes.txt")
	assert.NotContains(t, backups, "users-20240101T000000.json")
	assert.NotContains(t, backups, "users-20240102T000000.json")
}
