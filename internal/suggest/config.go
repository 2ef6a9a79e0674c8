package suggest

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds model suggester settings.
type Config struct {
	Enabled           bool   `toml:"enabled"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	Timeout           string `toml:"timeout"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	Burst             int    `toml:"burst"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled           string
	BaseURL           string
	Model             string
	Timeout           string
	RequestsPerMinute string
	Burst             string
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
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

// Merge overwrites non-zero fields from overlay. Enabled always applies.
func (c *Config) Merge(overlay *Config) {
	c.Enabled = overlay.Enabled
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.RequestsPerMinute != 0 {
		c.RequestsPerMinute = overlay.RequestsPerMinute
	}
	if overlay.Burst != 0 {
		c.Burst = overlay.Burst
	}
}

func (c *Config) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = "llama3.1"
	}
	if c.Timeout == "" {
		c.Timeout = "10s"
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 30
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Enabled != "" {
		if v := os.Getenv(env.Enabled); v != "" {
			if enabled, err := strconv.ParseBool(v); err == nil {
				c.Enabled = enabled
			}
		}
	}
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
	}
	if env.Model != "" {
		if v := os.Getenv(env.Model); v != "" {
			c.Model = v
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
	if env.RequestsPerMinute != "" {
		if v := os.Getenv(env.RequestsPerMinute); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.RequestsPerMinute = n
			}
		}
	}
	if env.Burst != "" {
		if v := os.Getenv(env.Burst); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.Burst = n
			}
		}
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
