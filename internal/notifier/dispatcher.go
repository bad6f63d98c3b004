// Package notifier implements the polling loop that detects threshold
// crossings and delivers exactly one notification per crossing.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/teyvat-tools/resin-bot/internal/domain"
	apperrors "github.com/teyvat-tools/resin-bot/internal/errors"
	"github.com/teyvat-tools/resin-bot/internal/expedition"
	"github.com/teyvat-tools/resin-bot/internal/resin"
	"github.com/teyvat-tools/resin-bot/internal/tracker"
	"github.com/teyvat-tools/resin-bot/internal/transport"
	"github.com/teyvat-tools/resin-bot/pkg/metrics"
)

// Notification kinds reported to metrics and logs.
const (
	KindExpeditionComplete = "expedition_complete"
	KindResinNearCap       = "resin_near_cap"
	KindResinFull          = "resin_full"
)

const defaultPollInterval = time.Minute

// Messages renders the localized notification texts.
type Messages interface {
	ExpeditionComplete(name string, endLocal time.Time) string
	ResinNearCap(name string, current int, toFull time.Duration) string
	ResinFull(name string) string
}

// notification is one pending delivery produced by a scan.
type notification struct {
	userID int64
	kind   string
	text   string
}

// Dispatcher scans all user records on a fixed cadence, sends newly due
// notifications, and flips the per-threshold acknowledgement flags. Flags are
// one-way per baseline or expedition instance: once set, only an explicit
// re-baseline or a new expedition clears them, never the passage of time.
type Dispatcher struct {
	tracker      *tracker.Service
	transport    transport.Transport
	messages     Messages
	pollInterval time.Duration
	log          *slog.Logger
	now          func() time.Time
}

// Option customizes Dispatcher construction.
type Option func(*Dispatcher)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// New builds a Dispatcher polling at the given interval.
func New(trk *tracker.Service, tp transport.Transport, msgs Messages, pollInterval time.Duration, log *slog.Logger, opts ...Option) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if log == nil {
		log = slog.Default()
	}

	d := &Dispatcher{
		tracker:      trk,
		transport:    tp,
		messages:     msgs,
		pollInterval: pollInterval,
		log:          log,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Run executes cycles until ctx is cancelled. A failed cycle is logged and
// the loop simply waits for the next tick; nothing here is fatal.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Info("notification dispatcher started", slog.Duration("poll_interval", d.pollInterval))

	for {
		if err := d.runCycle(ctx); err != nil {
			d.log.Error("dispatcher cycle failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			d.log.Info("notification dispatcher stopped")
			return
		case <-time.After(d.pollInterval):
		}
	}
}

// runCycle performs one scan-send-persist pass.
func (d *Dispatcher) runCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("panic in dispatcher cycle", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("dispatcher cycle panicked: %v", r)
		}
	}()

	start := time.Now()
	now := d.now().UTC()

	pending, dirty := d.scan(now)

	for _, n := range pending {
		if ctx.Err() != nil {
			break
		}
		d.deliver(ctx, n)
	}

	if dirty {
		if persistErr := d.persist(ctx); persistErr != nil {
			// The in-memory flags stay set and the records stay dirty from
			// the snapshot's point of view; the next successful write heals
			// this, at the cost of a possible duplicate across a crash.
			metrics.RecordSnapshotSave("error")
			err = persistErr
		} else {
			metrics.RecordSnapshotSave("ok")
		}
	}

	metrics.RecordDispatcherCycle(time.Since(start), len(pending))
	return err
}

// scan walks every record inside the tracker's critical section, collecting
// due notifications and flipping their flags in the same pass. Evaluating a
// record that was already processed is a no-op because its flags are set, so
// repeated scans around a crossing never duplicate a send.
func (d *Dispatcher) scan(now time.Time) ([]notification, bool) {
	var pending []notification

	dirty := d.tracker.Sweep(func(record *domain.UserRecord) bool {
		changed := false

		func() {
			defer func() {
				if r := recover(); r != nil {
					d.log.Error("skipping malformed record",
						slog.Int64("user_id", record.ID),
						slog.Any("panic", r),
					)
				}
			}()

			due, recordChanged := d.evaluate(record, now)
			pending = append(pending, due...)
			changed = recordChanged
		}()

		return changed
	})

	return pending, dirty
}

// evaluate applies the expedition and resin checks to one record. Both resin
// thresholds can fire in the same cycle when the process was stopped long
// enough for resin to jump past both.
func (d *Dispatcher) evaluate(record *domain.UserRecord, now time.Time) ([]notification, bool) {
	var due []notification
	changed := false

	if record.Expedition != nil && expedition.IsComplete(record.Expedition, now) {
		due = append(due, notification{
			userID: record.ID,
			kind:   KindExpeditionComplete,
			text:   d.messages.ExpeditionComplete(record.DisplayName, record.LocalTime(record.Expedition.EndUTC)),
		})
		// Cleared before delivery is attempted: a permanently failing
		// recipient must not turn into an endless re-notification storm.
		record.Expedition = nil
		changed = true
	}

	if record.Resin != nil {
		current := resin.Current(record.Resin, now)

		if current >= resin.NearCap && !record.Resin.NotifiedNearCap {
			due = append(due, notification{
				userID: record.ID,
				kind:   KindResinNearCap,
				text:   d.messages.ResinNearCap(record.DisplayName, current, resin.TimeToThreshold(record.Resin, now, resin.Max)),
			})
			record.Resin.NotifiedNearCap = true
			changed = true
		}

		if current >= resin.Max && !record.Resin.NotifiedFull {
			due = append(due, notification{
				userID: record.ID,
				kind:   KindResinFull,
				text:   d.messages.ResinFull(record.DisplayName),
			})
			record.Resin.NotifiedFull = true
			changed = true
		}
	}

	return due, changed
}

// deliver attempts one send. Failures are logged and counted, never retried
// within the cycle, and never unset the acknowledgement flag.
func (d *Dispatcher) deliver(ctx context.Context, n notification) {
	if err := d.transport.Send(ctx, n.userID, n.text); err != nil {
		metrics.RecordNotification(n.kind, "error")
		d.log.Error("notification delivery failed",
			slog.Int64("user_id", n.userID),
			slog.String("kind", n.kind),
			slog.Any("error", err),
		)
		return
	}

	metrics.RecordNotification(n.kind, "ok")
	d.log.Info("notification delivered", slog.Int64("user_id", n.userID), slog.String("kind", n.kind))
}

// persist writes the snapshot, retrying transient persistence failures.
func (d *Dispatcher) persist(ctx context.Context) error {
	err := apperrors.WithRetry(ctx, func() error {
		return d.tracker.Persist(ctx)
	})
	if err != nil {
		d.log.Error("failed to persist snapshot after cycle", slog.Any("error", err))
		return err
	}

	return nil
}
