package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teyvat-tools/resin-bot/internal/storage"
	"github.com/teyvat-tools/resin-bot/internal/tracker"
)

type sentMessage struct {
	UserID int64
	Text   string
}

// fakeTransport records sends and can be told to fail for given users.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[int64]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failFor: make(map[int64]bool)}
}

func (f *fakeTransport) Send(_ context.Context, userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failFor[userID] {
		return errors.New("recipient unreachable")
	}

	f.sent = append(f.sent, sentMessage{UserID: userID, Text: text})
	return nil
}

func (f *fakeTransport) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	texts := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		texts = append(texts, m.Text)
	}
	return texts
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// stubMessages renders deterministic texts so assertions can match on kind.
type stubMessages struct{}

func (stubMessages) ExpeditionComplete(name string, endLocal time.Time) string {
	return fmt.Sprintf("expedition-done:%s:%s", name, endLocal.Format("15:04"))
}

func (stubMessages) ResinNearCap(name string, current int, _ time.Duration) string {
	return fmt.Sprintf("resin-near-cap:%s:%d", name, current)
}

func (stubMessages) ResinFull(name string) string {
	return fmt.Sprintf("resin-full:%s", name)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	tracker   *tracker.Service
	transport *fakeTransport
	disp      *Dispatcher
	now       *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := storage.NewFileStore(filepath.Join(t.TempDir(), "users.json"), testLogger())
	trk := tracker.NewService(store, testLogger(), tracker.WithClock(clock))
	require.NoError(t, trk.Load(context.Background()))

	tp := newFakeTransport()
	f := &fixture{tracker: trk, transport: tp, now: &now}
	f.disp = New(trk, tp, stubMessages{}, time.Minute, testLogger(), WithClock(func() time.Time { return *f.now }))
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.now = f.now.Add(d)
}

func (f *fixture) cycle(t *testing.T) {
	t.Helper()
	require.NoError(t, f.disp.runCycle(context.Background()))
}

func TestExpeditionNotificationSentOnceAndCleared(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.Register(ctx, 1, "Aether", 3)
	require.NoError(t, err)
	_, err = f.tracker.StartExpedition(ctx, 1, 4*time.Hour)
	require.NoError(t, err)

	// Still running: nothing due.
	f.advance(3*time.Hour + 59*time.Minute)
	f.cycle(t)
	assert.Equal(t, 0, f.transport.count())

	// Past the end instant: exactly one notification, timer cleared.
	f.advance(2 * time.Minute)
	f.cycle(t)
	require.Equal(t, 1, f.transport.count())
	assert.Contains(t, f.transport.sentTexts()[0], "expedition-done:Aether")

	status, err := f.tracker.ExpeditionStatus(1)
	require.NoError(t, err)
	assert.False(t, status.Active)
	assert.True(t, status.EndUTC.IsZero(), "expedition must be cleared after notification")

	// Later cycles stay silent.
	f.advance(time.Hour)
	f.cycle(t)
	f.cycle(t)
	assert.Equal(t, 1, f.transport.count())
}

func TestExpeditionClearedEvenWhenDeliveryFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.Register(ctx, 1, "Aether", 0)
	require.NoError(t, err)
	_, err = f.tracker.StartExpedition(ctx, 1, 4*time.Hour)
	require.NoError(t, err)

	f.transport.failFor[1] = true
	f.advance(5 * time.Hour)
	f.cycle(t)

	// Delivery failed, but the timer is gone: no re-notification storm.
	status, err := f.tracker.ExpeditionStatus(1)
	require.NoError(t, err)
	assert.True(t, status.EndUTC.IsZero())

	f.transport.failFor[1] = false
	f.cycle(t)
	assert.Equal(t, 0, f.transport.count())
}

func TestResinThresholdScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.Register(ctx, 1, "Aether", 0)
	require.NoError(t, err)
	_, err = f.tracker.SetResinBaseline(ctx, 1, 0)
	require.NoError(t, err)

	// 192 * 8 minutes: the near-cap threshold is reached.
	f.advance(1536 * time.Minute)
	f.cycle(t)
	require.Equal(t, 1, f.transport.count())
	assert.Equal(t, "resin-near-cap:Aether:192", f.transport.sentTexts()[0])

	// Re-scanning before the next crossing stays silent.
	f.cycle(t)
	assert.Equal(t, 1, f.transport.count())

	// 200 * 8 minutes: the cap is reached.
	f.advance(64 * time.Minute)
	f.cycle(t)
	require.Equal(t, 2, f.transport.count())
	assert.Equal(t, "resin-full:Aether", f.transport.sentTexts()[1])

	// Long after the cap: no more notifications for this baseline.
	f.advance(400 * time.Minute)
	f.cycle(t)
	assert.Equal(t, 2, f.transport.count())
}

func TestBothResinThresholdsCrossedInOneGap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.Register(ctx, 1, "Aether", 0)
	require.NoError(t, err)
	_, err = f.tracker.SetResinBaseline(ctx, 1, 190)
	require.NoError(t, err)

	// 100 minutes adds 12 resin: 202 capped to 200, both thresholds crossed.
	f.advance(100 * time.Minute)
	f.cycle(t)

	texts := f.transport.sentTexts()
	require.Len(t, texts, 2)
	assert.Equal(t, "resin-near-cap:Aether:200", texts[0])
	assert.Equal(t, "resin-full:Aether", texts[1])
}

func TestDeliveryFailureStillMarksNotified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.Register(ctx, 1, "Aether", 0)
	require.NoError(t, err)
	_, err = f.tracker.SetResinBaseline(ctx, 1, 195)
	require.NoError(t, err)

	f.transport.failFor[1] = true
	f.cycle(t)
	assert.Equal(t, 0, f.transport.count())

	// Deliberate trade-off: the flag is set even though delivery failed, so
	// recovery of the recipient does not trigger a late duplicate.
	f.transport.failFor[1] = false
	f.cycle(t)
	assert.Equal(t, 0, f.transport.count())

	record, ok := f.tracker.Get(1)
	require.True(t, ok)
	assert.True(t, record.Resin.NotifiedNearCap)
}

func TestRebaselineRearmsNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.Register(ctx, 1, "Aether", 0)
	require.NoError(t, err)
	_, err = f.tracker.SetResinBaseline(ctx, 1, 200)
	require.NoError(t, err)

	f.cycle(t)
	assert.Equal(t, 2, f.transport.count(), "baseline at cap fires both notifications")

	// User spends resin and reports the new value: flags re-arm.
	_, err = f.tracker.SetResinBaseline(ctx, 1, 150)
	require.NoError(t, err)

	f.cycle(t)
	assert.Equal(t, 2, f.transport.count())

	f.advance(50 * 8 * time.Minute)
	f.cycle(t)
	assert.Equal(t, 4, f.transport.count(), "new baseline crossings notify again")
}

func TestOneUsersFailureDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		_, err := f.tracker.Register(ctx, id, fmt.Sprintf("user%d", id), 0)
		require.NoError(t, err)
		_, err = f.tracker.StartExpedition(ctx, id, time.Hour)
		require.NoError(t, err)
	}

	f.transport.failFor[2] = true
	f.advance(2 * time.Hour)
	f.cycle(t)

	// Users 1 and 3 are notified despite user 2 failing.
	assert.Equal(t, 2, f.transport.count())
}

func TestCycleNotificationsSurviveRestart(t *testing.T) {
	now := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	path := filepath.Join(t.TempDir(), "users.json")
	store := storage.NewFileStore(path, testLogger())
	ctx := context.Background()

	trk := tracker.NewService(store, testLogger(), tracker.WithClock(clock))
	require.NoError(t, trk.Load(ctx))

	_, err := trk.Register(ctx, 1, "Aether", 0)
	require.NoError(t, err)
	_, err = trk.SetResinBaseline(ctx, 1, 195)
	require.NoError(t, err)

	tp := newFakeTransport()
	disp := New(trk, tp, stubMessages{}, time.Minute, testLogger(), WithClock(clock))
	require.NoError(t, disp.runCycle(ctx))
	require.Equal(t, 1, tp.count())

	// Restart: a fresh tracker over the same snapshot must not re-notify.
	restored := tracker.NewService(store, testLogger(), tracker.WithClock(clock))
	require.NoError(t, restored.Load(ctx))

	tp2 := newFakeTransport()
	disp2 := New(restored, tp2, stubMessages{}, time.Minute, testLogger(), WithClock(clock))
	require.NoError(t, disp2.runCycle(ctx))
	assert.Equal(t, 0, tp2.count(), "persisted flags suppress duplicates across restarts")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		f.disp.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop after context cancellation")
	}
}
