// Package config loads intake configuration from config.toml, an optional
// environment overlay, a .env file, and INTAKE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/intake/internal/backend"
	"github.com/JaimeStill/intake/internal/classifier"
	"github.com/JaimeStill/intake/internal/events"
	"github.com/JaimeStill/intake/internal/observability"
	"github.com/JaimeStill/intake/internal/poller"
	"github.com/JaimeStill/intake/internal/transfer"
	"github.com/JaimeStill/intake/internal/trigger"
	"github.com/JaimeStill/intake/pkg/cache"
	"github.com/JaimeStill/intake/pkg/database"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"
	DotEnvFile           = ".env"

	EnvIntakeEnv             = "INTAKE_ENV"
	EnvIntakeShutdownTimeout = "INTAKE_SHUTDOWN_TIMEOUT"
	EnvIntakeVersion         = "INTAKE_VERSION"
	EnvIntakeLogLevel        = "INTAKE_LOG_LEVEL"
)

var backendEnv = &backend.Env{
	BaseURL:      "INTAKE_BACKEND_URL",
	Timeout:      "INTAKE_BACKEND_TIMEOUT",
	RelayPattern: "INTAKE_BACKEND_RELAY_PATTERN",
	Token:        "INTAKE_BACKEND_TOKEN",
}

var transferEnv = &transfer.Env{
	BlobSuffixes: "INTAKE_TRANSFER_BLOB_SUFFIXES",
	MaxFileSize:  "INTAKE_TRANSFER_MAX_FILE_SIZE",
}

var pollingEnv = &poller.Env{
	Interval:        "INTAKE_POLL_INTERVAL",
	Deadline:        "INTAKE_POLL_DEADLINE",
	ErrorBackoff:    "INTAKE_POLL_ERROR_BACKOFF",
	MaxErrorBackoff: "INTAKE_POLL_MAX_ERROR_BACKOFF",
}

var triggerEnv = &trigger.Env{
	Disabled:    "INTAKE_TRIGGER_DISABLED",
	Latch:       "INTAKE_TRIGGER_LATCH",
	RedisPrefix: "INTAKE_TRIGGER_REDIS_PREFIX",
}

var classifierEnv = &classifier.Env{
	Disabled: "INTAKE_CLASSIFIER_DISABLED",
	Timeout:  "INTAKE_CLASSIFIER_TIMEOUT",
}

var databaseEnv = &database.Env{
	DSN:          "INTAKE_DB_DSN",
	MaxOpenConns: "INTAKE_DB_MAX_OPEN_CONNS",
	ConnTimeout:  "INTAKE_DB_CONN_TIMEOUT",
}

var redisEnv = &cache.Env{
	Addr:        "INTAKE_REDIS_ADDR",
	Username:    "INTAKE_REDIS_USERNAME",
	Password:    "INTAKE_REDIS_PASSWORD",
	DB:          "INTAKE_REDIS_DB",
	ConnTimeout: "INTAKE_REDIS_CONN_TIMEOUT",
}

var eventsEnv = &events.Env{
	URL:           "INTAKE_NATS_URL",
	SubjectPrefix: "INTAKE_EVENTS_SUBJECT_PREFIX",
}

var metricsEnv = &observability.Env{
	Addr: "INTAKE_METRICS_ADDR",
}

// Config is the root configuration for intake.
type Config struct {
	Backend         backend.Config       `toml:"backend"`
	Transfer        transfer.Config      `toml:"transfer"`
	Polling         poller.Config        `toml:"polling"`
	Trigger         trigger.Config       `toml:"trigger"`
	Classifier      classifier.Config    `toml:"classifier"`
	Database        database.Config      `toml:"database"`
	Redis           cache.Config         `toml:"redis"`
	Events          events.Config        `toml:"events"`
	Metrics         observability.Config `toml:"metrics"`
	LogLevel        string               `toml:"log_level"`
	ShutdownTimeout string               `toml:"shutdown_timeout"`
	Version         string               `toml:"version"`
}

// Env returns the INTAKE_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvIntakeEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config from dir (if present), applies any environment
// overlay, loads dir/.env without overriding variables already set, and
// finalizes all values. An empty dir means the working directory.
func Load(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, DotEnvFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DotEnvFile, err)
	}

	cfg := &Config{}

	base := filepath.Join(dir, BaseConfigFile)
	if _, err := os.Stat(base); err == nil {
		loaded, err := load(base)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(dir); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.LogLevel != "" {
		c.LogLevel = overlay.LogLevel
	}
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Backend.Merge(&overlay.Backend)
	c.Transfer.Merge(&overlay.Transfer)
	c.Polling.Merge(&overlay.Polling)
	c.Trigger.Merge(&overlay.Trigger)
	c.Classifier.Merge(&overlay.Classifier)
	c.Database.Merge(&overlay.Database)
	c.Redis.Merge(&overlay.Redis)
	c.Events.Merge(&overlay.Events)
	c.Metrics.Merge(&overlay.Metrics)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Backend.Finalize(backendEnv); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	if err := c.Transfer.Finalize(transferEnv); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if err := c.Polling.Finalize(pollingEnv); err != nil {
		return fmt.Errorf("polling: %w", err)
	}
	if err := c.Trigger.Finalize(triggerEnv); err != nil {
		return fmt.Errorf("trigger: %w", err)
	}
	if err := c.Classifier.Finalize(classifierEnv); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Redis.Finalize(redisEnv); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := c.Events.Finalize(eventsEnv); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	if err := c.Metrics.Finalize(metricsEnv); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return c.validateLatch()
}

func (c *Config) loadDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvIntakeLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvIntakeShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvIntakeVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// validateLatch checks that a shared latch backend has its store configured.
func (c *Config) validateLatch() error {
	if !c.Trigger.Enabled() {
		return nil
	}
	switch c.Trigger.Latch {
	case trigger.LatchPostgres:
		if !c.Database.Enabled() {
			return fmt.Errorf("trigger: postgres latch requires [database]")
		}
	case trigger.LatchRedis:
		if !c.Redis.Enabled() {
			return fmt.Errorf("trigger: redis latch requires [redis]")
		}
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath(dir string) string {
	if env := os.Getenv(EnvIntakeEnv); env != "" {
		path := filepath.Join(dir, fmt.Sprintf(OverlayConfigPattern, env))
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
