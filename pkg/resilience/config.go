package resilience

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds retry and circuit breaker settings for outbound calls.
type Config struct {
	MaxAttempts        int     `toml:"max_attempts"`
	InitialBackoff     string  `toml:"initial_backoff"`
	MaxBackoff         string  `toml:"max_backoff"`
	BackoffMultiplier  float64 `toml:"backoff_multiplier"`
	BreakerEnabled     bool    `toml:"breaker_enabled"`
	BreakerMinRequests int     `toml:"breaker_min_requests"`
	BreakerRatio       float64 `toml:"breaker_ratio"`
	BreakerOpenTimeout string  `toml:"breaker_open_timeout"`
	BreakerProbeCalls  int     `toml:"breaker_probe_calls"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	MaxAttempts        string
	InitialBackoff     string
	MaxBackoff         string
	BackoffMultiplier  string
	BreakerEnabled     string
	BreakerMinRequests string
	BreakerRatio       string
	BreakerOpenTimeout string
	BreakerProbeCalls  string
}

// InitialBackoffDuration returns InitialBackoff as a time.Duration.
func (c *Config) InitialBackoffDuration() time.Duration {
	d, _ := time.ParseDuration(c.InitialBackoff)
	return d
}

// MaxBackoffDuration returns MaxBackoff as a time.Duration.
func (c *Config) MaxBackoffDuration() time.Duration {
	d, _ := time.ParseDuration(c.MaxBackoff)
	return d
}

// BreakerOpenTimeoutDuration returns BreakerOpenTimeout as a time.Duration.
func (c *Config) BreakerOpenTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.BreakerOpenTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. BreakerEnabled always applies.
func (c *Config) Merge(overlay *Config) {
	if overlay.MaxAttempts != 0 {
		c.MaxAttempts = overlay.MaxAttempts
	}
	if overlay.InitialBackoff != "" {
		c.InitialBackoff = overlay.InitialBackoff
	}
	if overlay.MaxBackoff != "" {
		c.MaxBackoff = overlay.MaxBackoff
	}
	if overlay.BackoffMultiplier != 0 {
		c.BackoffMultiplier = overlay.BackoffMultiplier
	}
	c.BreakerEnabled = overlay.BreakerEnabled
	if overlay.BreakerMinRequests != 0 {
		c.BreakerMinRequests = overlay.BreakerMinRequests
	}
	if overlay.BreakerRatio != 0 {
		c.BreakerRatio = overlay.BreakerRatio
	}
	if overlay.BreakerOpenTimeout != "" {
		c.BreakerOpenTimeout = overlay.BreakerOpenTimeout
	}
	if overlay.BreakerProbeCalls != 0 {
		c.BreakerProbeCalls = overlay.BreakerProbeCalls
	}
}

func (c *Config) loadDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff == "" {
		c.InitialBackoff = "200ms"
	}
	if c.MaxBackoff == "" {
		c.MaxBackoff = "5s"
	}
	if c.BackoffMultiplier < 1.0 {
		c.BackoffMultiplier = 2.0
	}
	if c.BreakerMinRequests <= 0 {
		c.BreakerMinRequests = 10
	}
	if c.BreakerRatio <= 0 || c.BreakerRatio > 1 {
		c.BreakerRatio = 0.5
	}
	if c.BreakerOpenTimeout == "" {
		c.BreakerOpenTimeout = "30s"
	}
	if c.BreakerProbeCalls <= 0 {
		c.BreakerProbeCalls = 2
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.MaxAttempts != "" {
		if v := os.Getenv(env.MaxAttempts); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.MaxAttempts = n
			}
		}
	}
	if env.InitialBackoff != "" {
		if v := os.Getenv(env.InitialBackoff); v != "" {
			c.InitialBackoff = v
		}
	}
	if env.MaxBackoff != "" {
		if v := os.Getenv(env.MaxBackoff); v != "" {
			c.MaxBackoff = v
		}
	}
	if env.BackoffMultiplier != "" {
		if v := os.Getenv(env.BackoffMultiplier); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 1.0 {
				c.BackoffMultiplier = f
			}
		}
	}
	if env.BreakerEnabled != "" {
		if v := os.Getenv(env.BreakerEnabled); v != "" {
			if enabled, err := strconv.ParseBool(v); err == nil {
				c.BreakerEnabled = enabled
			}
		}
	}
	if env.BreakerMinRequests != "" {
		if v := os.Getenv(env.BreakerMinRequests); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.BreakerMinRequests = n
			}
		}
	}
	if env.BreakerRatio != "" {
		if v := os.Getenv(env.BreakerRatio); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
				c.BreakerRatio = f
			}
		}
	}
	if env.BreakerOpenTimeout != "" {
		if v := os.Getenv(env.BreakerOpenTimeout); v != "" {
			c.BreakerOpenTimeout = v
		}
	}
	if env.BreakerProbeCalls != "" {
		if v := os.Getenv(env.BreakerProbeCalls); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.BreakerProbeCalls = n
			}
		}
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.InitialBackoff); err != nil {
		return fmt.Errorf("invalid initial_backoff: %w", err)
	}
	if _, err := time.ParseDuration(c.MaxBackoff); err != nil {
		return fmt.Errorf("invalid max_backoff: %w", err)
	}
	if _, err := time.ParseDuration(c.BreakerOpenTimeout); err != nil {
		return fmt.Errorf("invalid breaker_open_timeout: %w", err)
	}
	if c.MaxBackoffDuration() < c.InitialBackoffDuration() {
		return fmt.Errorf("max_backoff cannot be less than initial_backoff")
	}
	return nil
}
