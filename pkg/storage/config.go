package storage

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds Azure Blob Storage connection parameters.
type Config struct {
	ContainerName     string `toml:"container_name"`
	ConnectionString  string `toml:"connection_string"`
	UploadConcurrency int    `toml:"upload_concurrency"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	ContainerName     string
	ConnectionString  string
	UploadConcurrency string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.ContainerName != "" {
		c.ContainerName = overlay.ContainerName
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
	if overlay.UploadConcurrency != 0 {
		c.UploadConcurrency = overlay.UploadConcurrency
	}
}

func (c *Config) loadDefaults() {
	if c.ContainerName == "" {
		c.ContainerName = "intake"
	}
	if c.UploadConcurrency <= 0 {
		c.UploadConcurrency = 3
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.ContainerName != "" {
		if v := os.Getenv(env.ContainerName); v != "" {
			c.ContainerName = v
		}
	}
	if env.ConnectionString != "" {
		if v := os.Getenv(env.ConnectionString); v != "" {
			c.ConnectionString = v
		}
	}
	if env.UploadConcurrency != "" {
		if v := os.Getenv(env.UploadConcurrency); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.UploadConcurrency = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.ContainerName == "" {
		return fmt.Errorf("container_name required")
	}
	if c.ConnectionString == "" {
		return fmt.Errorf("connection_string required")
	}
	return nil
}
