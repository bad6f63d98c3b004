// Package domain defines the user record and timed-resource types shared
// by the command layer, the notifier, and the persistence backends.
package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MinUTCOffsetHours and MaxUTCOffsetHours bound the presentation timezone.
	MinUTCOffsetHours = -12
	MaxUTCOffsetHours = 12

	minDisplayNameLen = 1
	maxDisplayNameLen = 50
)

// deniedNameSubstrings rejects names that look like SQL injection attempts.
// Matching is case-insensitive.
var deniedNameSubstrings = []string{"--", ";", "/*", "*/", "union", "select", "drop", "insert"}

// UserRecord is one registered user together with their timed-resource state.
// Records are owned by the tracker service; neither the command handlers nor
// the notifier hold private copies.
type UserRecord struct {
	ID             int64            `json:"id"`
	DisplayName    string           `json:"display_name"`
	UTCOffsetHours int              `json:"utc_offset_hours"`
	Expedition     *ExpeditionTimer `json:"expedition,omitempty"`
	Resin          *ResinTracker    `json:"resin,omitempty"`
	RegisteredAt   time.Time        `json:"registered_at"`
}

// ExpeditionTimer is a one-shot countdown toward a single completion instant.
type ExpeditionTimer struct {
	EndUTC time.Time `json:"end_utc"`
}

// ResinTracker derives the current resin value from a recorded baseline.
// There is no stored "current" field; the value is always recomputed from
// the baseline pair so stored and computed state cannot drift apart.
type ResinTracker struct {
	BaselineValue   int       `json:"baseline_value"`
	BaselineUTC     time.Time `json:"baseline_utc"`
	NotifiedNearCap bool      `json:"notified_near_cap"`
	NotifiedFull    bool      `json:"notified_full"`
}

// LocalTime converts a UTC instant into the user's local clock. The offset is
// presentation-only and never affects timer correctness.
func (u *UserRecord) LocalTime(t time.Time) time.Time {
	return t.UTC().Add(time.Duration(u.UTCOffsetHours) * time.Hour)
}

// ValidateDisplayName trims the candidate name, enforces the 1-50 character
// bound, and rejects names containing a denylisted substring. It returns the
// sanitized name on success.
func ValidateDisplayName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < minDisplayNameLen || len(trimmed) > maxDisplayNameLen {
		return "", fmt.Errorf("display name must be %d-%d characters", minDisplayNameLen, maxDisplayNameLen)
	}

	lowered := strings.ToLower(trimmed)
	for _, denied := range deniedNameSubstrings {
		if strings.Contains(lowered, denied) {
			return "", fmt.Errorf("display name contains forbidden sequence %q", denied)
		}
	}

	return trimmed, nil
}

// ValidateUTCOffset checks the offset against the [-12, 12] presentation range.
func ValidateUTCOffset(offset int) error {
	if offset < MinUTCOffsetHours || offset > MaxUTCOffsetHours {
		return fmt.Errorf("utc offset must be between %d and %d hours", MinUTCOffsetHours, MaxUTCOffsetHours)
	}

	return nil
}
