package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/teyvat-tools/resin-bot/internal/state"
)

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of dispatched notifications labeled by kind and delivery status",
		},
		[]string{"kind", "status"},
	)
	dispatcherCycleSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatcher_cycle_seconds",
			Help:    "Duration of a full dispatcher scan cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	dispatcherCycleNotifications = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatcher_cycle_notifications",
			Help:    "Number of notifications produced per dispatcher cycle",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)
	snapshotSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_saves_total",
			Help: "Total number of user snapshot writes labeled by status",
		},
		[]string{"status"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of dialog state transitions",
		},
		[]string{"from", "to"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	trackedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracked_users",
			Help: "Current number of registered users",
		},
	)
	activeExpeditions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_expeditions",
			Help: "Current number of running expedition timers",
		},
	)
)

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botCommandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordStateTransition tracks dialog FSM transitions.
func RecordStateTransition(from, to string) {
	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}

	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordNotification counts one delivery attempt by kind and outcome.
func RecordNotification(kind, status string) {
	if kind == "" {
		kind = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	notificationsTotal.WithLabelValues(kind, status).Inc()
}

// RecordDispatcherCycle records the duration and output size of one scan cycle.
func RecordDispatcherCycle(duration time.Duration, sent int) {
	dispatcherCycleSeconds.Observe(duration.Seconds())
	dispatcherCycleNotifications.Observe(float64(sent))
}

// RecordSnapshotSave counts one snapshot write attempt.
func RecordSnapshotSave(status string) {
	if status == "" {
		status = "unknown"
	}

	snapshotSavesTotal.WithLabelValues(status).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	if errType == "" {
		errType = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(errType, severity).Inc()
}

// SetTrackedUsers updates the gauge for registered users.
func SetTrackedUsers(count int) {
	trackedUsers.Set(float64(count))
}

// SetActiveExpeditions updates the gauge for running expedition timers.
func SetActiveExpeditions(count int) {
	activeExpeditions.Set(float64(count))
}

// UserCounter exposes the counts the collector polls.
type UserCounter interface {
	Count() int
	ActiveExpeditions() int
}

// Collector periodically samples the tracker and emits gauge metrics.
type Collector struct {
	counter  UserCounter
	interval time.Duration
}

// NewCollector builds a metrics collector bound to the provided counter.
func NewCollector(counter UserCounter) *Collector {
	return &Collector{counter: counter, interval: 10 * time.Second}
}

// Run samples the counter on a fixed cadence until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) {
	if c == nil || c.counter == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		SetTrackedUsers(c.counter.Count())
		SetActiveExpeditions(c.counter.ActiveExpeditions())

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
	}
}
