package resilience_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/courier-labs/courier/pkg/resilience"
)

func newExecutor(t *testing.T, cfg resilience.Config) *resilience.Executor {
	t.Helper()
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return resilience.NewExecutor(&cfg, logger)
}

func retryable(error) resilience.ErrorClassification {
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	exec := newExecutor(t, resilience.Config{
		MaxAttempts:    3,
		InitialBackoff: "1ms",
		MaxBackoff:     "2ms",
	})

	calls := 0
	err := exec.Execute(context.Background(), "flaky", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, retryable)

	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	exec := newExecutor(t, resilience.Config{
		MaxAttempts:    3,
		InitialBackoff: "1ms",
		MaxBackoff:     "2ms",
	})

	calls := 0
	wantErr := errors.New("still down")
	err := exec.Execute(context.Background(), "down", func(context.Context) error {
		calls++
		return wantErr
	}, retryable)

	if !errors.Is(err, wantErr) {
		t.Errorf("Execute error = %v, want %v", err, wantErr)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestExecuteStopsOnNonRetryable(t *testing.T) {
	exec := newExecutor(t, resilience.Config{
		MaxAttempts:    5,
		InitialBackoff: "1ms",
	})

	calls := 0
	err := exec.Execute(context.Background(), "rejected", func(context.Context) error {
		calls++
		return errors.New("bad request")
	}, func(error) resilience.ErrorClassification {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecuteNilClassifierIsFinal(t *testing.T) {
	exec := newExecutor(t, resilience.Config{
		MaxAttempts:    5,
		InitialBackoff: "1ms",
	})

	calls := 0
	err := exec.Execute(context.Background(), "once", func(context.Context) error {
		calls++
		return errors.New("boom")
	}, nil)

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecuteCancelledContext(t *testing.T) {
	exec := newExecutor(t, resilience.Config{MaxAttempts: 3, InitialBackoff: "1ms"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := exec.Execute(ctx, "cancelled", func(context.Context) error {
		calls++
		return nil
	}, retryable)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute error = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestExecuteNilCallback(t *testing.T) {
	exec := newExecutor(t, resilience.Config{})

	if err := exec.Execute(context.Background(), "noop", nil, nil); err == nil {
		t.Fatal("expected error for nil callback")
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	exec := newExecutor(t, resilience.Config{
		MaxAttempts:        1,
		InitialBackoff:     "1ms",
		BreakerEnabled:     true,
		BreakerMinRequests: 2,
		BreakerRatio:       0.5,
		BreakerOpenTimeout: "1m",
		BreakerProbeCalls:  1,
	})

	fail := func(context.Context) error { return errors.New("erp down") }
	for range 2 {
		if err := exec.Execute(context.Background(), "erp-link", fail, retryable); err == nil {
			t.Fatal("expected failure")
		}
	}

	calls := 0
	err := exec.Execute(context.Background(), "erp-link", func(context.Context) error {
		calls++
		return nil
	}, retryable)

	if !resilience.IsCircuitOpen(err) {
		t.Errorf("Execute error = %v, want open circuit", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0 while open", calls)
	}
}

func TestBreakerIgnoresUnrecordedFailures(t *testing.T) {
	exec := newExecutor(t, resilience.Config{
		MaxAttempts:        1,
		InitialBackoff:     "1ms",
		BreakerEnabled:     true,
		BreakerMinRequests: 2,
		BreakerRatio:       0.5,
		BreakerOpenTimeout: "1m",
	})

	clientError := func(error) resilience.ErrorClassification {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	fail := func(context.Context) error { return errors.New("validation rejected") }
	for range 3 {
		if err := exec.Execute(context.Background(), "erp-create-draft", fail, clientError); err == nil {
			t.Fatal("expected failure")
		}
	}

	calls := 0
	if err := exec.Execute(context.Background(), "erp-create-draft", func(context.Context) error {
		calls++
		return nil
	}, clientError); err != nil {
		t.Fatalf("Execute error = %v, want circuit to stay closed", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBreakerScopesPerOperation(t *testing.T) {
	exec := newExecutor(t, resilience.Config{
		MaxAttempts:        1,
		InitialBackoff:     "1ms",
		BreakerEnabled:     true,
		BreakerMinRequests: 2,
		BreakerRatio:       0.5,
		BreakerOpenTimeout: "1m",
	})

	fail := func(context.Context) error { return errors.New("erp down") }
	for range 2 {
		_ = exec.Execute(context.Background(), "erp-link", fail, retryable)
	}

	err := exec.Execute(context.Background(), "erp-link", func(context.Context) error { return nil }, retryable)
	if !resilience.IsCircuitOpen(err) {
		t.Fatalf("erp-link error = %v, want open circuit", err)
	}

	if err := exec.Execute(context.Background(), "storage-upload", func(context.Context) error { return nil }, retryable); err != nil {
		t.Errorf("storage-upload error = %v, other operations should stay closed", err)
	}
}
