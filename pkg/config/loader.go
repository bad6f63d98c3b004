// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from YAML files and environment variables, validates
// it, and returns the resulting Config together with the viper instance so the
// caller can enable hot reload.
func Load() (*Config, *viper.Viper, error) {
	if err := godotenv.Load(".env.local", ".env"); err != nil {
		// env files are optional
		_ = err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := unmarshal(v, env)
	if err != nil {
		return nil, nil, err
	}

	return cfg, v, nil
}

// Watch re-reads and re-validates configuration whenever the config file
// changes, publishing valid snapshots through onChange. Invalid edits are
// logged and skipped; the previous config stays in effect.
func Watch(v *viper.Viper, env string, log *slog.Logger, onChange func(*Config)) {
	if log == nil {
		log = slog.Default()
	}

	v.OnConfigChange(func(event fsnotify.Event) {
		cfg, err := unmarshal(v, env)
		if err != nil {
			log.Error("ignoring invalid config change",
				slog.String("file", event.Name),
				slog.Any("error", err),
			)
			return
		}

		log.Info("configuration reloaded", slog.String("file", event.Name))
		onChange(cfg)
	})
	v.WatchConfig()
}

func unmarshal(v *viper.Viper, env string) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AppEnv = env

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "resin-bot")
	v.SetDefault("app.language", "ru")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 28)

	v.SetDefault("bot.poll_timeout", 10*time.Second)
	v.SetDefault("bot.send_timeout", 10*time.Second)

	v.SetDefault("dispatcher.poll_interval", time.Minute)
	v.SetDefault("resin.regen_interval", 8*time.Minute)

	v.SetDefault("store.backend", "file")
	v.SetDefault("store.path", "users.json")
	v.SetDefault("store.db_host", "localhost")
	v.SetDefault("store.db_port", "5432")
	v.SetDefault("store.db_sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.limit", 20)
	v.SetDefault("ratelimit.interval", time.Minute)

	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("jobs.enabled", false)
	v.SetDefault("jobs.backup_schedule", "@every 6h")
	v.SetDefault("jobs.backup_dir", "backups")
	v.SetDefault("jobs.backup_retention", 14)
}
