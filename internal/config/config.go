// Package config loads the service configuration: built-in defaults, then an
// optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"rentalcore/internal/core/tx"
	"rentalcore/internal/domain/auth"
	"rentalcore/internal/infrastructure/storage/postgres"
	"rentalcore/pkg/logger"
)

// Config is the full service configuration.
type Config struct {
	Env         string              `yaml:"env"`
	Server      ServerConfig        `yaml:"server"`
	Database    postgres.PoolConfig `yaml:"database"`
	Retry       RetryConfig         `yaml:"retry"`
	Auth        AuthConfig          `yaml:"auth"`
	Redis       RedisConfig         `yaml:"redis"`
	Worker      WorkerConfig        `yaml:"worker"`
	Idempotency IdempotencyConfig   `yaml:"idempotency"`
	Log         logger.Config       `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RetryConfig bounds transaction retries on serialization failures and deadlocks.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// Policy converts the config to a tx.RetryPolicy.
func (r RetryConfig) Policy() tx.RetryPolicy {
	return tx.RetryPolicy{
		MaxAttempts:     r.MaxAttempts,
		InitialInterval: r.InitialInterval,
		MaxInterval:     r.MaxInterval,
	}
}

// AuthConfig contains bearer token settings. An empty secret disables
// authentication, which is only allowed outside production.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// JWT returns the token validator configuration.
func (a AuthConfig) JWT() auth.JWTConfig {
	cfg := auth.DefaultJWTConfig(a.JWTSecret)
	if a.Issuer != "" {
		cfg.Issuer = a.Issuer
	}
	return cfg
}

// RedisConfig configures the worker job lock. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// WorkerConfig holds cron schedules (robfig/cron syntax, seconds optional).
type WorkerConfig struct {
	OverdueSchedule  string        `yaml:"overdue_schedule"`
	ReminderSchedule string        `yaml:"reminder_schedule"`
	OutboxSchedule   string        `yaml:"outbox_schedule"`
	CleanupSchedule  string        `yaml:"cleanup_schedule"`
	OutboxBatchSize  int           `yaml:"outbox_batch_size"`
	LockTTL          time.Duration `yaml:"lock_ttl"`
	SweepOnStart     bool          `yaml:"sweep_on_start"`
}

// IdempotencyConfig controls Idempotency-Key storage.
type IdempotencyConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// Default returns the built-in configuration.
func Default() *Config {
	policy := tx.DefaultRetryPolicy()
	return &Config{
		Env: "development",
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: postgres.DefaultPoolConfig(""),
		Retry: RetryConfig{
			MaxAttempts:     policy.MaxAttempts,
			InitialInterval: policy.InitialInterval,
			MaxInterval:     policy.MaxInterval,
		},
		Worker: WorkerConfig{
			OverdueSchedule:  "5 0 * * *",
			ReminderSchedule: "0 8 * * *",
			OutboxSchedule:   "@every 5s",
			CleanupSchedule:  "30 3 * * *",
			OutboxBatchSize:  100,
			LockTTL:          5 * time.Minute,
			SweepOnStart:     true,
		},
		Idempotency: IdempotencyConfig{
			Enabled: true,
			TTL:     24 * time.Hour,
		},
		Log: logger.Config{Level: "info"},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.overrideWithEnv(); err != nil {
		return nil, err
	}
	cfg.Log.Development = cfg.Log.Development || cfg.Env == "development"

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.IsProduction() {
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required in production"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("auth.jwt_secret is required in production"))
		}
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	if c.Worker.OutboxBatchSize < 1 {
		errs = append(errs, errors.New("worker.outbox_batch_size must be at least 1"))
	}
	return errors.Join(errs...)
}

// overrideWithEnv overrides config values with environment variables.
func (c *Config) overrideWithEnv() error {
	setString(&c.Env, "APP_ENV")
	setString(&c.Server.Addr, "SERVER_ADDR")
	if port := os.Getenv("APP_PORT"); port != "" {
		c.Server.Addr = ":" + port
	}

	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Worker.OverdueSchedule, "WORKER_OVERDUE_SCHEDULE")
	setString(&c.Worker.ReminderSchedule, "WORKER_REMINDER_SCHEDULE")
	setString(&c.Worker.OutboxSchedule, "WORKER_OUTBOX_SCHEDULE")

	var errs []error
	errs = append(errs,
		setInt(&c.Redis.DB, "REDIS_DB"),
		setInt32(&c.Database.MaxConns, "DB_MAX_CONNS"),
		setDuration(&c.Database.StatementTimeout, "DB_STATEMENT_TIMEOUT"),
		setInt(&c.Retry.MaxAttempts, "TX_RETRY_MAX_ATTEMPTS"),
		setBool(&c.Idempotency.Enabled, "IDEMPOTENCY_ENABLED"),
		setDuration(&c.Idempotency.TTL, "IDEMPOTENCY_TTL"),
	)
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(dst *int, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setInt32(dst *int32, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.ParseInt(val, 10, 32)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = int32(n)
	return nil
}

func setBool(dst *bool, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
