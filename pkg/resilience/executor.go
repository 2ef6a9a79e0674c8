// Package resilience provides bounded retry with exponential backoff and
// per-operation circuit breaking for outbound calls.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrorClassification describes how an error should be handled:
// whether the call may be retried and whether the failure counts
// against the circuit breaker.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

// Classifier inspects an error and returns its classification.
type Classifier func(err error) ErrorClassification

// Executor runs operations with retry and an optional per-operation
// circuit breaker.
type Executor struct {
	cfg    *Config
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewExecutor creates an Executor from a finalized configuration.
func NewExecutor(cfg *Config, logger *slog.Logger) *Executor {
	return &Executor{
		cfg:      cfg,
		logger:   logger.With("system", "resilience"),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Execute runs fn under the retry policy, wrapped in the operation's
// circuit breaker when breaking is enabled. The classifier decides which
// errors are retryable; a nil classifier treats every error as final.
func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classify Classifier) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	if operation == "" {
		operation = "unknown"
	}
	if classify == nil {
		classify = defaultClassifier
	}

	if !e.cfg.BreakerEnabled {
		return e.executeWithRetry(ctx, operation, fn, classify)
	}

	breaker := e.circuitBreaker(operation, classify)
	_, err := breaker.Execute(func() (any, error) {
		return nil, e.executeWithRetry(ctx, operation, fn, classify)
	})
	return err
}

// IsCircuitOpen reports whether err indicates the operation's circuit
// breaker rejected the call.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (e *Executor) executeWithRetry(ctx context.Context, operation string, fn func(context.Context) error, classify Classifier) error {
	maxAttempts := e.cfg.MaxAttempts
	backoff := e.cfg.InitialBackoffDuration()
	maxBackoff := e.cfg.MaxBackoffDuration()

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}

		class := classify(err)
		if !class.Retryable || attempt == maxAttempts {
			return err
		}

		wait := min(backoff, maxBackoff)
		e.logger.Warn("retrying operation",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"backoff", wait,
			"error", err,
		)

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		}

		backoff = min(time.Duration(float64(backoff)*e.cfg.BackoffMultiplier), maxBackoff)
	}

	return err
}

func (e *Executor) circuitBreaker(operation string, classify Classifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        operation,
		MaxRequests: uint32(e.cfg.BreakerProbeCalls),
		Timeout:     e.cfg.BreakerOpenTimeoutDuration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(e.cfg.BreakerMinRequests) {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= e.cfg.BreakerRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !classify(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("circuit breaker state change",
				"operation", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	e.breakers[operation] = breaker
	return breaker
}

func defaultClassifier(error) ErrorClassification {
	return ErrorClassification{Retryable: false, RecordFailure: true}
}
