package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/teyvat-tools/resin-bot/internal/domain"
	"github.com/teyvat-tools/resin-bot/internal/errors"
)

// FileStore keeps the snapshot in a single JSON file. Writes go to a
// temporary file in the same directory followed by a rename, so a crash
// mid-write leaves the previous snapshot intact.
type FileStore struct {
	path string
	log  *slog.Logger
}

// NewFileStore constructs a Store writing to the given path.
func NewFileStore(path string, log *slog.Logger) *FileStore {
	if log == nil {
		log = slog.Default()
	}

	return &FileStore{
		path: path,
		log:  log,
	}
}

// LoadAll reads the snapshot file. A missing file yields an empty map.
func (s *FileStore) LoadAll(ctx context.Context) (map[int64]*domain.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Info("no snapshot file found, starting with empty store", slog.String("path", s.path))
			return map[int64]*domain.UserRecord{}, nil
		}

		return nil, errors.NewPersistenceError(fmt.Errorf("read snapshot %q: %w", s.path, err))
	}

	var users map[int64]*domain.UserRecord
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, errors.NewPersistenceError(fmt.Errorf("decode snapshot %q: %w", s.path, err))
	}

	if users == nil {
		users = map[int64]*domain.UserRecord{}
	}

	return users, nil
}

// SaveAll replaces the snapshot file atomically.
func (s *FileStore) SaveAll(ctx context.Context, users map[int64]*domain.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return errors.NewPersistenceError(fmt.Errorf("encode snapshot: %w", err))
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewPersistenceError(fmt.Errorf("create snapshot dir %q: %w", dir, err))
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.NewPersistenceError(fmt.Errorf("create temp snapshot: %w", err))
	}

	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.NewPersistenceError(fmt.Errorf("write temp snapshot: %w", err))
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.NewPersistenceError(fmt.Errorf("close temp snapshot: %w", err))
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.NewPersistenceError(fmt.Errorf("replace snapshot %q: %w", s.path, err))
	}

	return nil
}

// Path returns the snapshot file location. The backup job reads it.
func (s *FileStore) Path() string {
	return s.path
}

// HealthCheck verifies the snapshot directory is writable.
func (s *FileStore) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	probe, err := os.CreateTemp(dir, ".healthz-*")
	if err != nil {
		return fmt.Errorf("snapshot dir %q not writable: %w", dir, err)
	}

	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
