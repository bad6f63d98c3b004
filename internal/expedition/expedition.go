// Package expedition implements the one-shot expedition countdown model.
package expedition

import (
	"time"

	"github.com/teyvat-tools/resin-bot/internal/domain"
	"github.com/teyvat-tools/resin-bot/internal/errors"
)

// Durations offered by the command interface. The model itself accepts any
// positive duration.
var Durations = []time.Duration{4 * time.Hour, 8 * time.Hour, 12 * time.Hour, 20 * time.Hour}

// Start builds a timer completing at now + duration. Starting a new
// expedition always replaces a pending one; most recent wins, no queuing.
func Start(duration time.Duration, now time.Time) (*domain.ExpeditionTimer, error) {
	if duration <= 0 {
		return nil, errors.NewValidationError("expedition duration must be positive")
	}

	return &domain.ExpeditionTimer{EndUTC: now.UTC().Add(duration)}, nil
}

// Remaining returns the time left until completion. Zero or negative once
// the expedition is complete.
func Remaining(timer *domain.ExpeditionTimer, now time.Time) time.Duration {
	return timer.EndUTC.Sub(now.UTC())
}

// IsComplete reports whether the completion instant has been reached.
func IsComplete(timer *domain.ExpeditionTimer, now time.Time) bool {
	return Remaining(timer, now) <= 0
}
