package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/teyvat-tools/resin-bot/pkg/config"
)

// Scheduler registers periodic tasks and drives the asynq scheduler loop.
type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	cfg            config.JobsConfig
	snapshotPath   string
	log            *slog.Logger
}

// NewScheduler builds a Scheduler that backs up snapshotPath on the
// configured cron schedule.
func NewScheduler(redisOpt asynq.RedisConnOpt, cfg config.JobsConfig, snapshotPath string, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, nil),
		cfg:            cfg,
		snapshotPath:   snapshotPath,
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	task, err := NewSnapshotBackupTask(s.snapshotPath, s.cfg.BackupDir, s.cfg.BackupRetention)
	if err != nil {
		return err
	}

	if _, err := s.asynqScheduler.Register(s.cfg.BackupSchedule, task); err != nil {
		return err
	}

	s.log.Info("scheduler: registered snapshot backup task",
		slog.String("schedule", s.cfg.BackupSchedule),
		slog.String("backup_dir", s.cfg.BackupDir),
	)

	return nil
}

func (s *scheduler) Run() {
	s.log.InfoContext(context.Background(), "scheduler: starting")

	go func() {
		if err := s.asynqScheduler.Run(); err != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", slog.Any("error", err))
		}
	}()
}

func (s *scheduler) Shutdown() {
	s.log.Info("scheduler: shutting down")
	s.asynqScheduler.Shutdown()
}
