// Package resin implements the capped, linearly-regenerating resin model.
// All functions are pure computations over a stored baseline; nothing here
// ticks or mutates shared state.
package resin

import (
	"time"

	"github.com/teyvat-tools/resin-bot/internal/domain"
	"github.com/teyvat-tools/resin-bot/internal/errors"
)

const (
	// Max is the resin cap.
	Max = 200
	// NearCap is the "approaching cap" notification threshold.
	NearCap = 192
)

// RegenInterval is the time to regenerate one unit of resin. Set once from
// configuration before the bot starts serving; never mutated afterwards.
var RegenInterval = 8 * time.Minute

// Current computes the resin value at the given instant:
//
//	min(Max, baseline + floor(elapsed / RegenInterval))
//
// The result is monotonically non-decreasing in now. Instants before the
// baseline clamp to the baseline value.
func Current(tracker *domain.ResinTracker, now time.Time) int {
	elapsed := now.UTC().Sub(tracker.BaselineUTC)
	if elapsed < 0 {
		elapsed = 0
	}

	regenerated := int(elapsed / RegenInterval)
	value := tracker.BaselineValue + regenerated
	if value > Max {
		return Max
	}

	return value
}

// TimeToThreshold returns how long until the computed resin reaches the
// threshold, or zero when it already has.
func TimeToThreshold(tracker *domain.ResinTracker, now time.Time, threshold int) time.Duration {
	current := Current(tracker, now)
	if current >= threshold {
		return 0
	}

	return time.Duration(threshold-current) * RegenInterval
}

// NewBaseline validates the reported value and returns a fresh tracker with
// both notification flags cleared. Re-baselining is the only way the flags
// ever transition back to false.
func NewBaseline(value int, now time.Time) (*domain.ResinTracker, error) {
	if value < 0 || value > Max {
		return nil, errors.NewValidationError("resin value must be between 0 and 200")
	}

	return &domain.ResinTracker{
		BaselineValue: value,
		BaselineUTC:   now.UTC(),
	}, nil
}
