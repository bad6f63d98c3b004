// Package jobs runs background maintenance tasks over an asynq queue.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeSnapshotBackup = "snapshot:backup"
)

const (
	QueueDefault = "default"
	QueueLow     = "low"
)

// SnapshotBackupPayload describes one backup run: which snapshot file to
// copy, where to put the copy, and how many copies to keep.
type SnapshotBackupPayload struct {
	SnapshotPath string `json:"snapshot_path"`
	BackupDir    string `json:"backup_dir"`
	Retention    int    `json:"retention"`
}

// NewSnapshotBackupTask builds the backup task for the scheduler.
func NewSnapshotBackupTask(snapshotPath, backupDir string, retention int) (*asynq.Task, error) {
	payload, err := json.Marshal(SnapshotBackupPayload{
		SnapshotPath: snapshotPath,
		BackupDir:    backupDir,
		Retention:    retention,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeSnapshotBackup, payload, asynq.Queue(QueueLow)), nil
}
