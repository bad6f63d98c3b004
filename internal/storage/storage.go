// Package storage defines the snapshot persistence contract for user records
// and its file and PostgreSQL implementations.
package storage

import (
	"context"

	"github.com/teyvat-tools/resin-bot/internal/domain"
)

// Store persists the whole user map as a single snapshot. SaveAll is
// all-or-nothing: a snapshot that fails to write must never be partially
// visible to a later LoadAll.
type Store interface {
	// LoadAll returns every persisted user record, or an empty map when no
	// snapshot exists yet.
	LoadAll(ctx context.Context) (map[int64]*domain.UserRecord, error)
	// SaveAll atomically replaces the persisted snapshot.
	SaveAll(ctx context.Context, users map[int64]*domain.UserRecord) error
}
