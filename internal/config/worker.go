package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvWorkerIntakeSubject  = "COURIER_WORKER_INTAKE_SUBJECT"
	EnvWorkerEventSubject   = "COURIER_WORKER_EVENT_SUBJECT"
	EnvWorkerQueueGroup     = "COURIER_WORKER_QUEUE_GROUP"
	EnvWorkerConcurrency    = "COURIER_WORKER_CONCURRENCY"
	EnvWorkerMessageTimeout = "COURIER_WORKER_MESSAGE_TIMEOUT"
)

// WorkerConfig holds the intake worker's queue subjects and
// processing limits. The API server shares EventSubject for
// publishing document events.
type WorkerConfig struct {
	IntakeSubject  string `toml:"intake_subject"`
	EventSubject   string `toml:"event_subject"`
	QueueGroup     string `toml:"queue_group"`
	Concurrency    int    `toml:"concurrency"`
	MessageTimeout string `toml:"message_timeout"`
}

// MessageTimeoutDuration returns MessageTimeout as a time.Duration.
func (c *WorkerConfig) MessageTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.MessageTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *WorkerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *WorkerConfig) Merge(overlay *WorkerConfig) {
	if overlay.IntakeSubject != "" {
		c.IntakeSubject = overlay.IntakeSubject
	}
	if overlay.EventSubject != "" {
		c.EventSubject = overlay.EventSubject
	}
	if overlay.QueueGroup != "" {
		c.QueueGroup = overlay.QueueGroup
	}
	if overlay.Concurrency != 0 {
		c.Concurrency = overlay.Concurrency
	}
	if overlay.MessageTimeout != "" {
		c.MessageTimeout = overlay.MessageTimeout
	}
}

func (c *WorkerConfig) loadDefaults() {
	if c.IntakeSubject == "" {
		c.IntakeSubject = "courier.intake"
	}
	if c.EventSubject == "" {
		c.EventSubject = "courier.events"
	}
	if c.QueueGroup == "" {
		c.QueueGroup = "courier-intake"
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	if c.MessageTimeout == "" {
		c.MessageTimeout = "2m"
	}
}

func (c *WorkerConfig) loadEnv() {
	if v := os.Getenv(EnvWorkerIntakeSubject); v != "" {
		c.IntakeSubject = v
	}
	if v := os.Getenv(EnvWorkerEventSubject); v != "" {
		c.EventSubject = v
	}
	if v := os.Getenv(EnvWorkerQueueGroup); v != "" {
		c.QueueGroup = v
	}
	if v := os.Getenv(EnvWorkerConcurrency); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Concurrency = n
		}
	}
	if v := os.Getenv(EnvWorkerMessageTimeout); v != "" {
		c.MessageTimeout = v
	}
}

func (c *WorkerConfig) validate() error {
	if c.IntakeSubject == "" {
		return fmt.Errorf("intake_subject is required")
	}
	if c.EventSubject == "" {
		return fmt.Errorf("event_subject is required")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("invalid concurrency: %d", c.Concurrency)
	}
	if _, err := time.ParseDuration(c.MessageTimeout); err != nil {
		return fmt.Errorf("invalid message_timeout: %w", err)
	}
	return nil
}
