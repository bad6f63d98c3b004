package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/teyvat-tools/resin-bot/internal/domain"
	"github.com/teyvat-tools/resin-bot/internal/errors"
)

// PostgresStore keeps the snapshot in a single users table. SaveAll rewrites
// the whole table inside one transaction, which gives the same
// all-or-nothing snapshot semantics as the file backend.
type PostgresStore struct {
	db  *sql.DB
	log *slog.Logger
}

// NewPostgresStore constructs a Store backed by the given database handle.
func NewPostgresStore(db *sql.DB, log *slog.Logger) *PostgresStore {
	if log == nil {
		log = slog.Default()
	}

	return &PostgresStore{
		db:  db,
		log: log,
	}
}

// LoadAll reads every user row into the in-memory map.
func (s *PostgresStore) LoadAll(ctx context.Context) (map[int64]*domain.UserRecord, error) {
	const query = `
		SELECT id, display_name, utc_offset_hours, expedition_end,
		       resin_baseline_value, resin_baseline_at,
		       resin_notified_near_cap, resin_notified_full, registered_at
		FROM users
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewPersistenceError(fmt.Errorf("select users: %w", err))
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.log.Error("failed to close users cursor", slog.Any("error", cerr))
		}
	}()

	users := map[int64]*domain.UserRecord{}
	for rows.Next() {
		record, err := scanUser(rows)
		if err != nil {
			return nil, errors.NewPersistenceError(fmt.Errorf("scan user: %w", err))
		}

		users[record.ID] = record
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistenceError(fmt.Errorf("iterate users: %w", err))
	}

	return users, nil
}

// SaveAll replaces the users table contents with the provided snapshot.
func (s *PostgresStore) SaveAll(ctx context.Context, users map[int64]*domain.UserRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewPersistenceError(fmt.Errorf("begin snapshot tx: %w", err))
	}

	if err := s.writeSnapshot(ctx, tx, users); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.log.Error("snapshot rollback failed", slog.Any("error", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewPersistenceError(fmt.Errorf("commit snapshot tx: %w", err))
	}

	return nil
}

func (s *PostgresStore) writeSnapshot(ctx context.Context, tx *sql.Tx, users map[int64]*domain.UserRecord) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return errors.NewPersistenceError(fmt.Errorf("clear users: %w", err))
	}

	const insert = `
		INSERT INTO users (id, display_name, utc_offset_hours, expedition_end,
		                   resin_baseline_value, resin_baseline_at,
		                   resin_notified_near_cap, resin_notified_full, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, user := range users {
		var expeditionEnd sql.NullTime
		if user.Expedition != nil {
			expeditionEnd = sql.NullTime{Time: user.Expedition.EndUTC, Valid: true}
		}

		var (
			baselineValue   sql.NullInt64
			baselineAt      sql.NullTime
			notifiedNearCap bool
			notifiedFull    bool
		)
		if user.Resin != nil {
			baselineValue = sql.NullInt64{Int64: int64(user.Resin.BaselineValue), Valid: true}
			baselineAt = sql.NullTime{Time: user.Resin.BaselineUTC, Valid: true}
			notifiedNearCap = user.Resin.NotifiedNearCap
			notifiedFull = user.Resin.NotifiedFull
		}

		if _, err := tx.ExecContext(ctx, insert,
			user.ID,
			user.DisplayName,
			user.UTCOffsetHours,
			expeditionEnd,
			baselineValue,
			baselineAt,
			notifiedNearCap,
			notifiedFull,
			user.RegisteredAt,
		); err != nil {
			return errors.NewPersistenceError(fmt.Errorf("insert user %d: %w", user.ID, err))
		}
	}

	return nil
}

func scanUser(rows *sql.Rows) (*domain.UserRecord, error) {
	var (
		record          domain.UserRecord
		expeditionEnd   sql.NullTime
		baselineValue   sql.NullInt64
		baselineAt      sql.NullTime
		notifiedNearCap bool
		notifiedFull    bool
		registeredAt    time.Time
	)

	if err := rows.Scan(
		&record.ID,
		&record.DisplayName,
		&record.UTCOffsetHours,
		&expeditionEnd,
		&baselineValue,
		&baselineAt,
		&notifiedNearCap,
		&notifiedFull,
		&registeredAt,
	); err != nil {
		return nil, err
	}

	record.RegisteredAt = registeredAt
	if expeditionEnd.Valid {
		record.Expedition = &domain.ExpeditionTimer{EndUTC: expeditionEnd.Time.UTC()}
	}
	if baselineValue.Valid && baselineAt.Valid {
		record.Resin = &domain.ResinTracker{
			BaselineValue:   int(baselineValue.Int64),
			BaselineUTC:     baselineAt.Time.UTC(),
			NotifiedNearCap: notifiedNearCap,
			NotifiedFull:    notifiedFull,
		}
	}

	return &record, nil
}

// HealthCheck pings the database.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	if s == nil || s.db == nil {
		return sql.ErrConnDone
	}
	return s.db.PingContext(ctx)
}
