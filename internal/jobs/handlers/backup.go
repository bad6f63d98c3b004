// Package handlers contains asynq task handlers for background jobs.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/teyvat-tools/resin-bot/internal/jobs"
)

const backupTimeLayout = "20060102T150405"

// SnapshotBackupHandler copies the current snapshot file into the backup
// directory and prunes old copies beyond the retention count.
type SnapshotBackupHandler struct {
	log *slog.Logger
}

// NewSnapshotBackupHandler constructs the handler.
func NewSnapshotBackupHandler(log *slog.Logger) *SnapshotBackupHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SnapshotBackupHandler{log: log}
}

// ProcessTask performs one backup run.
func (h *SnapshotBackupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.SnapshotBackupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "snapshot backup: failed to decode payload",
			slog.String("task_type", t.Type()),
			slog.Any("error", err),
		)
		return err
	}

	data, err := os.ReadFile(payload.SnapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			h.log.InfoContext(ctx, "snapshot backup: no snapshot file yet, nothing to back up",
				slog.String("path", payload.SnapshotPath),
			)
			return nil
		}
		return fmt.Errorf("read snapshot %q: %w", payload.SnapshotPath, err)
	}

	if err := os.MkdirAll(payload.BackupDir, 0o750); err != nil {
		return fmt.Errorf("create backup dir %q: %w", payload.BackupDir, err)
	}

	name := backupName(payload.SnapshotPath, time.Now().UTC())
	dst := filepath.Join(payload.BackupDir, name)

	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return fmt.Errorf("write backup %q: %w", dst, err)
	}

	h.log.InfoContext(ctx, "snapshot backup written",
		slog.String("backup", dst),
		slog.Int("bytes", len(data)),
	)

	if payload.Retention > 0 {
		if err := h.prune(ctx, payload); err != nil {
			return err
		}
	}

	return nil
}

func (h *SnapshotBackupHandler) prune(ctx context.Context, payload jobs.SnapshotBackupPayload) error {
	prefix := backupPrefix(payload.SnapshotPath)

	entries, err := os.ReadDir(payload.BackupDir)
	if err != nil {
		return fmt.Errorf("read backup dir %q: %w", payload.BackupDir, err)
	}

	var backups []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, entry.Name())
		}
	}

	if len(backups) <= payload.Retention {
		return nil
	}

	// Timestamped names sort chronologically, oldest first.
	sort.Strings(backups)

	for _, name := range backups[:len(backups)-payload.Retention] {
		path := filepath.Join(payload.BackupDir, name)
		if err := os.Remove(path); err != nil {
			h.log.WarnContext(ctx, "snapshot backup: failed to prune old copy",
				slog.String("path", path),
				slog.Any("error", err),
			)
			continue
		}
		h.log.DebugContext(ctx, "snapshot backup: pruned old copy", slog.String("path", path))
	}

	return nil
}

func backupPrefix(snapshotPath string) string {
	base := filepath.Base(snapshotPath)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "-"
}

func backupName(snapshotPath string, now time.Time) string {
	base := filepath.Base(snapshotPath)
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s%s%s", backupPrefix(snapshotPath), now.Format(backupTimeLayout), ext)
}
