// Package tracker owns the in-memory user record store. Every read-modify-write
// of a record, whether from a command handler or from the notifier's polling
// loop, goes through the service's single mutex, so neither side can observe a
// torn update.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teyvat-tools/resin-bot/internal/domain"
	apperrors "github.com/teyvat-tools/resin-bot/internal/errors"
	"github.com/teyvat-tools/resin-bot/internal/expedition"
	"github.com/teyvat-tools/resin-bot/internal/resin"
	"github.com/teyvat-tools/resin-bot/internal/storage"
)

// ErrNotRegistered is returned for operations on unknown users.
var ErrNotRegistered = apperrors.NewStateError("user is not registered")

// ExpeditionStatus describes a user's expedition for rendering.
type ExpeditionStatus struct {
	Active    bool
	Remaining time.Duration
	EndUTC    time.Time
	EndLocal  time.Time
}

// ResinStatus describes a user's computed resin state for rendering.
type ResinStatus struct {
	Tracked   bool
	Current   int
	ToNearCap time.Duration
	ToFull    time.Duration
}

// Service is the authoritative user record store. Command handlers mutate it
// synchronously; the notifier scans and mutates it on its own cadence.
type Service struct {
	mu    sync.Mutex
	users map[int64]*domain.UserRecord
	store storage.Store
	log   *slog.Logger
	now   func() time.Time
}

// Option customizes Service construction.
type Option func(*Service)

// WithClock overrides the time source. Tests use it to pin now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService constructs an empty service around the given snapshot store.
func NewService(store storage.Store, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		users: make(map[int64]*domain.UserRecord),
		store: store,
		log:   log,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Load replaces the in-memory state with the persisted snapshot. Called once
// at startup before the bot or the notifier start.
func (s *Service) Load(ctx context.Context) error {
	users, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load user snapshot: %w", err)
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()

	s.log.Info("user snapshot loaded", slog.Int("users", len(users)))
	return nil
}

// Register creates or updates the user's profile. The display name and offset
// are validated before any state changes.
func (s *Service) Register(ctx context.Context, id int64, displayName string, utcOffsetHours int) (*domain.UserRecord, error) {
	name, err := domain.ValidateDisplayName(displayName)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	if err := domain.ValidateUTCOffset(utcOffsetHours); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	s.mu.Lock()
	record, exists := s.users[id]
	if !exists {
		record = &domain.UserRecord{ID: id, RegisteredAt: s.now().UTC()}
		s.users[id] = record
	}
	record.DisplayName = name
	record.UTCOffsetHours = utcOffsetHours
	copied := *record
	s.mu.Unlock()

	s.persist(ctx, "register")
	return &copied, nil
}

// IsRegistered reports whether the user has completed registration.
func (s *Service) IsRegistered(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok
}

// Get returns a copy of the user's record.
func (s *Service) Get(id int64) (*domain.UserRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.users[id]
	if !ok {
		return nil, false
	}

	copied := *record
	if record.Expedition != nil {
		exp := *record.Expedition
		copied.Expedition = &exp
	}
	if record.Resin != nil {
		res := *record.Resin
		copied.Resin = &res
	}

	return &copied, true
}

// StartExpedition replaces any pending expedition with a new one ending at
// now + duration, and returns the completion instant in the user's local time.
func (s *Service) StartExpedition(ctx context.Context, id int64, duration time.Duration) (time.Time, error) {
	timer, err := expedition.Start(duration, s.now())
	if err != nil {
		return time.Time{}, err
	}

	s.mu.Lock()
	record, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		return time.Time{}, ErrNotRegistered
	}

	record.Expedition = timer
	endLocal := record.LocalTime(timer.EndUTC)
	s.mu.Unlock()

	s.persist(ctx, "start_expedition")
	return endLocal, nil
}

// SetResinBaseline re-baselines the user's resin tracker from a reported
// value, clearing both notified flags.
func (s *Service) SetResinBaseline(ctx context.Context, id int64, value int) (*ResinStatus, error) {
	tracker, err := resin.NewBaseline(value, s.now())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	record, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotRegistered
	}

	record.Resin = tracker
	status := resinStatusLocked(record, s.now())
	s.mu.Unlock()

	s.persist(ctx, "set_resin_baseline")
	return status, nil
}

// ExpeditionStatus reports the user's expedition state at the current instant.
func (s *Service) ExpeditionStatus(id int64) (*ExpeditionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.users[id]
	if !ok {
		return nil, ErrNotRegistered
	}

	if record.Expedition == nil {
		return &ExpeditionStatus{}, nil
	}

	now := s.now()
	return &ExpeditionStatus{
		Active:    !expedition.IsComplete(record.Expedition, now),
		Remaining: expedition.Remaining(record.Expedition, now),
		EndUTC:    record.Expedition.EndUTC,
		EndLocal:  record.LocalTime(record.Expedition.EndUTC),
	}, nil
}

// ResinStatus reports the user's computed resin state at the current instant.
func (s *Service) ResinStatus(id int64) (*ResinStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.users[id]
	if !ok {
		return nil, ErrNotRegistered
	}

	return resinStatusLocked(record, s.now()), nil
}

// Sweep runs fn over every record while holding the store lock. The notifier
// uses it to evaluate thresholds and flip acknowledgement flags in the same
// critical section; fn must not block. It returns whether any fn call
// reported the record dirty.
func (s *Service) Sweep(fn func(record *domain.UserRecord) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirty := false
	for _, record := range s.users {
		if fn(record) {
			dirty = true
		}
	}

	return dirty
}

// Persist writes the whole store as one snapshot.
func (s *Service) Persist(ctx context.Context) error {
	s.mu.Lock()
	snapshot := make(map[int64]*domain.UserRecord, len(s.users))
	for id, record := range s.users {
		copied := *record
		if record.Expedition != nil {
			exp := *record.Expedition
			copied.Expedition = &exp
		}
		if record.Resin != nil {
			res := *record.Resin
			copied.Resin = &res
		}
		snapshot[id] = &copied
	}
	s.mu.Unlock()

	if err := s.store.SaveAll(ctx, snapshot); err != nil {
		return fmt.Errorf("save user snapshot: %w", err)
	}

	return nil
}

// Count returns the number of registered users.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// ActiveExpeditions returns how many users currently have a pending timer.
func (s *Service) ActiveExpeditions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.users {
		if record.Expedition != nil {
			count++
		}
	}

	return count
}

// persist saves the snapshot after a command mutation. A failed write is
// logged but does not fail the command: the in-memory state stays
// authoritative and the next successful write includes it.
func (s *Service) persist(ctx context.Context, operation string) {
	if err := s.Persist(ctx); err != nil {
		s.log.Error("snapshot write failed after command",
			slog.String("operation", operation),
			slog.Any("error", err),
		)
	}
}

func resinStatusLocked(record *domain.UserRecord, now time.Time) *ResinStatus {
	if record.Resin == nil {
		return &ResinStatus{}
	}

	return &ResinStatus{
		Tracked:   true,
		Current:   resin.Current(record.Resin, now),
		ToNearCap: resin.TimeToThreshold(record.Resin, now, resin.NearCap),
		ToFull:    resin.TimeToThreshold(record.Resin, now, resin.Max),
	}
}
