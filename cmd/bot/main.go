package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teyvat-tools/resin-bot/internal/bot"
	"github.com/teyvat-tools/resin-bot/internal/database"
	"github.com/teyvat-tools/resin-bot/internal/health"
	"github.com/teyvat-tools/resin-bot/internal/i18n"
	"github.com/teyvat-tools/resin-bot/internal/idempotency"
	"github.com/teyvat-tools/resin-bot/internal/jobs"
	jobhandlers "github.com/teyvat-tools/resin-bot/internal/jobs/handlers"
	"github.com/teyvat-tools/resin-bot/internal/lifecycle"
	"github.com/teyvat-tools/resin-bot/internal/middleware"
	"github.com/teyvat-tools/resin-bot/internal/notifier"
	"github.com/teyvat-tools/resin-bot/internal/ratelimit"
	"github.com/teyvat-tools/resin-bot/internal/resin"
	"github.com/teyvat-tools/resin-bot/internal/state"
	"github.com/teyvat-tools/resin-bot/internal/storage"
	"github.com/teyvat-tools/resin-bot/internal/tracker"
	"github.com/teyvat-tools/resin-bot/internal/transport"
	"github.com/teyvat-tools/resin-bot/pkg/config"
	"github.com/teyvat-tools/resin-bot/pkg/graceful"
	"github.com/teyvat-tools/resin-bot/pkg/logger"
	"github.com/teyvat-tools/resin-bot/pkg/metrics"
	redisclient "github.com/teyvat-tools/resin-bot/pkg/redis"

	_ "github.com/lib/pq"
)

const cleanupInterval = time.Hour

func main() {
	if err := run(); err != nil {
		slog.Error("bot terminated", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Sentry.Enabled() {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log := logger.New(cfg.Logger, cfg.Sentry.Enabled())
	slog.SetDefault(log)

	log.Info("starting resin bot",
		slog.String("env", cfg.AppEnv),
		slog.String("language", cfg.App.Language),
		slog.String("store_backend", cfg.Store.Backend),
	)

	if cfg.Resin.RegenInterval > 0 {
		resin.RegenInterval = cfg.Resin.RegenInterval
	}

	var (
		store        storage.Store
		storeCheck   health.Checkable
		snapshotPath string
	)
	switch cfg.Store.Backend {
	case "postgres":
		db, err := sql.Open("postgres", cfg.Store.DSN())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() {
			if cerr := db.Close(); cerr != nil {
				log.Error("error closing database", slog.Any("error", cerr))
			}
		}()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}

		if err := database.NewMigrator(db, log).ApplyDir(ctx, "migrations"); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}

		pg := storage.NewPostgresStore(db, log)
		store, storeCheck = pg, pg
	default:
		fs := storage.NewFileStore(cfg.Store.Path, log)
		store, storeCheck = fs, fs
		snapshotPath = fs.Path()
	}

	redisClient, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	trk := tracker.NewService(store, log)
	if err := trk.Load(ctx); err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	locales, err := i18n.Load(cfg.App.Language)
	if err != nil {
		return fmt.Errorf("load locales: %w", err)
	}
	translator := locales.Translator(cfg.App.Language)

	stateStorage := state.NewRedisStorage(redisClient, log)
	fsm := state.NewStateMachine(stateStorage, log, redisClient)
	idem := idempotency.NewManager(idempotency.NewRedisStore(redisClient, log), log)

	rules := ratelimit.NewRules(cfg.RateLimit)
	limiter := ratelimit.NewAdaptiveLimiter(
		ratelimit.NewRedisLimiter(redisClient, log),
		ratelimit.NewMemoryLimiter(log),
		log,
	)
	rateLimitMw := middleware.NewRateLimitMiddleware(limiter, rules, log)

	b, err := bot.New(*cfg, log, fsm, trk, translator, idem, rateLimitMw)
	if err != nil {
		return err
	}

	disp := notifier.New(
		trk,
		transport.NewTelegram(b.Telebot(), cfg.Bot.SendTimeout, log),
		notifier.NewCatalogMessages(translator),
		cfg.Dispatcher.PollInterval,
		log,
	)

	checker := health.NewChecker(log)
	checker.AddCheck("store", storeCheck)
	checker.AddCheck("redis", health.NewRedisChecker(redisClient))
	checker.AddCheck("telegram", health.NewTelegramChecker(b.Telebot()))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", checker.Handler())
	srv := graceful.NewServer(log, cfg.Server.Port, middleware.New(log)(mux), cfg.Server.ShutdownTimeout)

	// Only the rate limit section applies live; everything else needs a restart.
	config.Watch(v, cfg.AppEnv, log, func(next *config.Config) {
		rules.Update(next.RateLimit)
	})

	go disp.Run(ctx)
	go metrics.NewCollector(trk).Run(ctx)
	go state.NewCleaner(redisClient, stateStorage, log, time.Hour, cleanupInterval).Run(ctx)
	go ratelimit.NewCleaner(redisClient, log, cleanupInterval).Run(ctx)
	go idempotency.NewCleaner(redisClient, log, cleanupInterval).Run(ctx)

	shutdown := lifecycle.NewShutdown(log)

	if cfg.Jobs.Enabled {
		if snapshotPath == "" {
			log.Warn("snapshot backups require the file store backend, jobs disabled")
		} else {
			startJobs(cfg, snapshotPath, log, shutdown)
		}
	}

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil {
			log.Error("http server stopped", slog.Any("error", err))
		}
	}()

	go b.Start()
	log.Info("bot is running")

	<-ctx.Done()

	shutdown.Register("telegram-bot", func(context.Context) error {
		b.Stop()
		return nil
	})
	shutdown.Register("snapshot", trk.Persist)
	shutdown.Register("redis", func(context.Context) error {
		return redisClient.Close()
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return shutdown.Execute(shutdownCtx)
}

func startJobs(cfg *config.Config, snapshotPath string, log *slog.Logger, shutdown *lifecycle.Shutdown) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	scheduler := jobs.NewScheduler(redisOpt, cfg.Jobs, snapshotPath, log)
	if err := scheduler.RegisterTasks(); err != nil {
		log.Error("failed to register background tasks, jobs disabled", slog.Any("error", err))
		return
	}
	scheduler.Run()

	worker := jobs.NewWorker(redisOpt, map[string]int{jobs.QueueDefault: 2, jobs.QueueLow: 1}, log)
	worker.RegisterHandler(jobs.TaskTypeSnapshotBackup, jobhandlers.NewSnapshotBackupHandler(log))

	go func() {
		if err := worker.Run(); err != nil {
			log.Error("jobs worker stopped", slog.Any("error", err))
		}
	}()

	shutdown.Register("jobs-scheduler", func(context.Context) error {
		scheduler.Shutdown()
		return nil
	})
	shutdown.Register("jobs-worker", func(context.Context) error {
		worker.Shutdown()
		return nil
	})
}
