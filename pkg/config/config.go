package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the resin tracker bot.
type Config struct {
	AppEnv string `mapstructure:"-"`

	App        AppConfig        `mapstructure:"app" validate:"required"`
	Logger     LoggerConfig     `mapstructure:"logger" validate:"required"`
	Bot        BotConfig        `mapstructure:"bot" validate:"required"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher" validate:"required"`
	Resin      ResinConfig      `mapstructure:"resin" validate:"required"`
	Store      StoreConfig      `mapstructure:"store" validate:"required"`
	Redis      RedisConfig      `mapstructure:"redis" validate:"required"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
}

// AppConfig identifies the running instance.
type AppConfig struct {
	Name     string `mapstructure:"name" validate:"required"`
	Language string `mapstructure:"language" validate:"oneof=ru en"`
}

// LoggerConfig controls log output.
type LoggerConfig struct {
	Level    string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format   string `mapstructure:"format" validate:"oneof=text json"`
	FilePath string `mapstructure:"file_path"`
	// Rotation applies only when FilePath is set.
	MaxSizeMB  int `mapstructure:"max_size_mb"`
	MaxBackups int `mapstructure:"max_backups"`
	MaxAgeDays int `mapstructure:"max_age_days"`
}

// BotConfig carries the Telegram connection settings.
type BotConfig struct {
	Token       string        `mapstructure:"token" validate:"required"`
	PollTimeout time.Duration `mapstructure:"poll_timeout" validate:"required"`
	SendTimeout time.Duration `mapstructure:"send_timeout" validate:"required"`
}

// DispatcherConfig controls the notification polling loop.
type DispatcherConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required"`
}

// ResinConfig overrides the regeneration model defaults.
type ResinConfig struct {
	RegenInterval time.Duration `mapstructure:"regen_interval" validate:"required"`
}

// StoreConfig selects and configures the snapshot backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=file postgres"`

	// File backend.
	Path string `mapstructure:"path"`

	// Postgres backend.
	DBHost     string `mapstructure:"db_host"`
	DBPort     string `mapstructure:"db_port"`
	DBUser     string `mapstructure:"db_user"`
	DBPassword string `mapstructure:"db_password"`
	DBName     string `mapstructure:"db_name"`
	DBSSLMode  string `mapstructure:"db_sslmode"`
}

// DSN returns the PostgreSQL connection string for the postgres backend.
func (s StoreConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		s.DBHost,
		s.DBPort,
		s.DBUser,
		s.DBPassword,
		s.DBName,
		s.DBSSLMode,
	)
}

// RedisConfig carries the Redis connection settings for dialog state,
// idempotency, rate limiting and the job queue.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig bounds per-user command throughput.
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Limit     int           `mapstructure:"limit"`
	Interval  time.Duration `mapstructure:"interval"`
	Whitelist []int64       `mapstructure:"whitelist"`
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Enabled reports whether sentry reporting is configured.
func (s SentryConfig) Enabled() bool {
	return s.DSN != ""
}

// ServerConfig configures the HTTP surface serving metrics and health.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// JobsConfig controls the background snapshot-backup schedule.
type JobsConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	BackupSchedule  string `mapstructure:"backup_schedule"`
	BackupDir       string `mapstructure:"backup_dir"`
	BackupRetention int    `mapstructure:"backup_retention"`
}
