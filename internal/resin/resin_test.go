package resin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teyvat-tools/resin-bot/internal/domain"
)

var baselineInstant = time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)

func trackerAt(value int) *domain.ResinTracker {
	return &domain.ResinTracker{BaselineValue: value, BaselineUTC: baselineInstant}
}

func TestCurrent(t *testing.T) {
	testCases := []struct {
		name     string
		baseline int
		elapsed  time.Duration
		want     int
	}{
		{name: "no elapsed time", baseline: 50, elapsed: 0, want: 50},
		{name: "one interval", baseline: 50, elapsed: 8 * time.Minute, want: 51},
		{name: "partial interval floors", baseline: 50, elapsed: 7*time.Minute + 59*time.Second, want: 50},
		{name: "many intervals", baseline: 0, elapsed: 1536 * time.Minute, want: 192},
		{name: "exactly at cap", baseline: 0, elapsed: 1600 * time.Minute, want: 200},
		{name: "caps at max", baseline: 190, elapsed: 100 * time.Minute, want: 200},
		{name: "clock before baseline clamps", baseline: 42, elapsed: -time.Hour, want: 42},
		{name: "baseline already at max", baseline: 200, elapsed: time.Hour, want: 200},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := Current(trackerAt(tc.baseline), baselineInstant.Add(tc.elapsed))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCurrentMonotonic(t *testing.T) {
	tracker := trackerAt(17)

	prev := Current(tracker, baselineInstant)
	for step := time.Minute; step <= 30*time.Hour; step += 13 * time.Minute {
		current := Current(tracker, baselineInstant.Add(step))
		require.GreaterOrEqual(t, current, prev, "resin must never decrease over time")
		require.LessOrEqual(t, current, Max)
		prev = current
	}
}

func TestTimeToThreshold(t *testing.T) {
	tracker := trackerAt(190)

	assert.Equal(t, 2*RegenInterval, TimeToThreshold(tracker, baselineInstant, NearCap))
	assert.Equal(t, 10*RegenInterval, TimeToThreshold(tracker, baselineInstant, Max))

	// Already past the threshold.
	assert.Equal(t, time.Duration(0), TimeToThreshold(trackerAt(195), baselineInstant, NearCap))
	assert.Equal(t, time.Duration(0), TimeToThreshold(trackerAt(200), baselineInstant, Max))
}

func TestNewBaseline(t *testing.T) {
	now := time.Date(2024, 3, 10, 6, 0, 0, 42, time.UTC)

	tracker, err := NewBaseline(120, now)
	require.NoError(t, err)
	assert.Equal(t, 120, tracker.BaselineValue)
	assert.Equal(t, now.UTC(), tracker.BaselineUTC)
	assert.False(t, tracker.NotifiedNearCap)
	assert.False(t, tracker.NotifiedFull)

	_, err = NewBaseline(-1, now)
	assert.Error(t, err)

	_, err = NewBaseline(201, now)
	assert.Error(t, err)

	// Bounds are inclusive.
	_, err = NewBaseline(0, now)
	assert.NoError(t, err)
	_, err = NewBaseline(Max, now)
	assert.NoError(t, err)
}
