// Package config loads the root service configuration: a TOML base
// file, an optional per-environment overlay, COURIER_* environment
// overrides, defaults, and validation, finalized per section.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/courier-labs/courier/internal/automation"
	"github.com/courier-labs/courier/internal/suggest"
	"github.com/courier-labs/courier/pkg/database"
	"github.com/courier-labs/courier/pkg/queue"
	"github.com/courier-labs/courier/pkg/resilience"
	"github.com/courier-labs/courier/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvCourierEnv             = "COURIER_ENV"
	EnvCourierShutdownTimeout = "COURIER_SHUTDOWN_TIMEOUT"
	EnvCourierVersion         = "COURIER_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "COURIER_DB_HOST",
	Port:            "COURIER_DB_PORT",
	Name:            "COURIER_DB_NAME",
	User:            "COURIER_DB_USER",
	Password:        "COURIER_DB_PASSWORD",
	SSLMode:         "COURIER_DB_SSL_MODE",
	MaxOpenConns:    "COURIER_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "COURIER_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "COURIER_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "COURIER_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:     "COURIER_STORAGE_CONTAINER_NAME",
	ConnectionString:  "COURIER_STORAGE_CONNECTION_STRING",
	UploadConcurrency: "COURIER_STORAGE_UPLOAD_CONCURRENCY",
}

var queueEnv = &queue.Env{
	URL:            "COURIER_QUEUE_URL",
	Name:           "COURIER_QUEUE_NAME",
	ConnectTimeout: "COURIER_QUEUE_CONNECT_TIMEOUT",
	ReconnectWait:  "COURIER_QUEUE_RECONNECT_WAIT",
	MaxReconnects:  "COURIER_QUEUE_MAX_RECONNECTS",
}

var suggestEnv = &suggest.Env{
	Enabled:           "COURIER_SUGGEST_ENABLED",
	BaseURL:           "COURIER_SUGGEST_BASE_URL",
	Model:             "COURIER_SUGGEST_MODEL",
	Timeout:           "COURIER_SUGGEST_TIMEOUT",
	RequestsPerMinute: "COURIER_SUGGEST_REQUESTS_PER_MINUTE",
	Burst:             "COURIER_SUGGEST_BURST",
}

var automationEnv = &automation.Env{
	DefaultLevel:          "COURIER_AUTOMATION_DEFAULT_LEVEL",
	Levels:                "COURIER_AUTOMATION_LEVELS",
	ConfidenceThreshold:   "COURIER_AUTOMATION_CONFIDENCE_THRESHOLD",
	MatchThreshold:        "COURIER_AUTOMATION_MATCH_THRESHOLD",
	DuplicateLookbackDays: "COURIER_AUTOMATION_DUPLICATE_LOOKBACK_DAYS",
}

var resilienceEnv = &resilience.Env{
	MaxAttempts:        "COURIER_RESILIENCE_MAX_ATTEMPTS",
	InitialBackoff:     "COURIER_RESILIENCE_INITIAL_BACKOFF",
	MaxBackoff:         "COURIER_RESILIENCE_MAX_BACKOFF",
	BackoffMultiplier:  "COURIER_RESILIENCE_BACKOFF_MULTIPLIER",
	BreakerEnabled:     "COURIER_RESILIENCE_BREAKER_ENABLED",
	BreakerMinRequests: "COURIER_RESILIENCE_BREAKER_MIN_REQUESTS",
	BreakerRatio:       "COURIER_RESILIENCE_BREAKER_RATIO",
	BreakerOpenTimeout: "COURIER_RESILIENCE_BREAKER_OPEN_TIMEOUT",
	BreakerProbeCalls:  "COURIER_RESILIENCE_BREAKER_PROBE_CALLS",
}

// Config is the root configuration for the Courier service.
type Config struct {
	Server          ServerConfig      `toml:"server"`
	Database        database.Config   `toml:"database"`
	Storage         storage.Config    `toml:"storage"`
	Queue           queue.Config      `toml:"queue"`
	Suggest         suggest.Config    `toml:"suggest"`
	Automation      automation.Config `toml:"automation"`
	Resilience      resilience.Config `toml:"resilience"`
	Worker          WorkerConfig      `toml:"worker"`
	API             APIConfig         `toml:"api"`
	ShutdownTimeout string            `toml:"shutdown_timeout"`
	Version         string            `toml:"version"`
}

// Env returns the COURIER_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvCourierEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
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
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Queue.Merge(&overlay.Queue)
	c.Suggest.Merge(&overlay.Suggest)
	c.Automation.Merge(&overlay.Automation)
	c.Resilience.Merge(&overlay.Resilience)
	c.Worker.Merge(&overlay.Worker)
	c.API.Merge(&overlay.API)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Queue.Finalize(queueEnv); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	if err := c.Suggest.Finalize(suggestEnv); err != nil {
		return fmt.Errorf("suggest: %w", err)
	}
	if err := c.Automation.Finalize(automationEnv); err != nil {
		return fmt.Errorf("automation: %w", err)
	}
	if err := c.Resilience.Finalize(resilienceEnv); err != nil {
		return fmt.Errorf("resilience: %w", err)
	}
	if err := c.Worker.Finalize(); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvCourierShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvCourierVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
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

func overlayPath() string {
	if env := os.Getenv(EnvCourierEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
