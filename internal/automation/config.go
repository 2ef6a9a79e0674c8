package automation

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/courier-labs/courier/internal/documents"
)

// Config holds the automation posture: a default level, per-type level
// overrides, gate thresholds, and the duplicate lookback window.
type Config struct {
	DefaultLevel          string            `toml:"default_level"`
	Levels                map[string]string `toml:"levels"`
	ConfidenceThreshold   float64           `toml:"confidence_threshold"`
	MatchThreshold        float64           `toml:"match_threshold"`
	DuplicateLookbackDays int               `toml:"duplicate_lookback_days"`
}

// Env maps config fields to environment variable names for override
// injection. Levels is parsed as comma-separated TYPE=level pairs.
type Env struct {
	DefaultLevel          string
	Levels                string
	ConfidenceThreshold   string
	MatchThreshold        string
	DuplicateLookbackDays string
}

// LevelFor returns the automation level configured for the given type,
// falling back to the default level.
func (c *Config) LevelFor(t documents.DocType) Level {
	if l, ok := c.Levels[string(t)]; ok {
		return Level(l)
	}
	return Level(c.DefaultLevel)
}

// GateThresholds returns the configured gate thresholds.
func (c *Config) GateThresholds() Thresholds {
	return Thresholds{
		Confidence: c.ConfidenceThreshold,
		MatchScore: c.MatchThreshold,
	}.Normalize()
}

// LookbackDuration returns the duplicate lookback window as a time.Duration.
func (c *Config) LookbackDuration() time.Duration {
	return time.Duration(c.DuplicateLookbackDays) * 24 * time.Hour
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. Level overrides merge
// per type rather than replacing the map.
func (c *Config) Merge(overlay *Config) {
	if overlay.DefaultLevel != "" {
		c.DefaultLevel = overlay.DefaultLevel
	}
	if len(overlay.Levels) > 0 {
		if c.Levels == nil {
			c.Levels = make(map[string]string, len(overlay.Levels))
		}
		for t, l := range overlay.Levels {
			c.Levels[t] = l
		}
	}
	if overlay.ConfidenceThreshold != 0 {
		c.ConfidenceThreshold = overlay.ConfidenceThreshold
	}
	if overlay.MatchThreshold != 0 {
		c.MatchThreshold = overlay.MatchThreshold
	}
	if overlay.DuplicateLookbackDays != 0 {
		c.DuplicateLookbackDays = overlay.DuplicateLookbackDays
	}
}

func (c *Config) loadDefaults() {
	if c.DefaultLevel == "" {
		c.DefaultLevel = string(LevelManual)
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = DefaultThreshold
	}
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = DefaultThreshold
	}
	if c.DuplicateLookbackDays <= 0 {
		c.DuplicateLookbackDays = 365
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.DefaultLevel != "" {
		if v := os.Getenv(env.DefaultLevel); v != "" {
			c.DefaultLevel = v
		}
	}
	if env.Levels != "" {
		if v := os.Getenv(env.Levels); v != "" {
			if c.Levels == nil {
				c.Levels = make(map[string]string)
			}
			for _, pair := range strings.Split(v, ",") {
				docType, level, ok := strings.Cut(strings.TrimSpace(pair), "=")
				if !ok {
					continue
				}
				c.Levels[strings.TrimSpace(docType)] = strings.TrimSpace(level)
			}
		}
	}
	if env.ConfidenceThreshold != "" {
		if v := os.Getenv(env.ConfidenceThreshold); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
				c.ConfidenceThreshold = f
			}
		}
	}
	if env.MatchThreshold != "" {
		if v := os.Getenv(env.MatchThreshold); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
				c.MatchThreshold = f
			}
		}
	}
	if env.DuplicateLookbackDays != "" {
		if v := os.Getenv(env.DuplicateLookbackDays); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.DuplicateLookbackDays = n
			}
		}
	}
}

func (c *Config) validate() error {
	if !Level(c.DefaultLevel).Valid() {
		return fmt.Errorf("invalid default_level: %s", c.DefaultLevel)
	}
	for docType, level := range c.Levels {
		if !documents.DocType(docType).Valid() {
			return fmt.Errorf("invalid document type in levels: %s", docType)
		}
		if !Level(level).Valid() {
			return fmt.Errorf("invalid level for %s: %s", docType, level)
		}
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in (0, 1]: %v", c.ConfidenceThreshold)
	}
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("match_threshold must be in (0, 1]: %v", c.MatchThreshold)
	}
	return nil
}
