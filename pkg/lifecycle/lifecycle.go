package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ReadinessChecker reports whether a subsystem is ready to serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// ReadinessFunc adapts a plain function to a ReadinessChecker.
type ReadinessFunc func() bool

func (f ReadinessFunc) Ready() bool { return f() }

// Coordinator manages startup and shutdown hooks for the application
// lifecycle and aggregates readiness across registered subsystems.
type Coordinator struct {
	ctx        context.Context
	cancel     context.CancelFunc
	startupWg  sync.WaitGroup
	shutdownWg sync.WaitGroup
	started    bool
	startedMu  sync.RWMutex
	checksMu   sync.RWMutex
	checks     map[string]ReadinessChecker
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
		checks: make(map[string]ReadinessChecker),
	}
}

// Context returns the coordinator's context, cancelled on shutdown.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup registers a function to run concurrently during startup.
func (c *Coordinator) OnStartup(fn func()) {
	c.startupWg.Go(fn)
}

// OnShutdown registers a function to run concurrently during shutdown.
// Shutdown hooks should block on <-c.Context().Done() before executing cleanup.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdownWg.Go(fn)
}

// AddReadiness registers a named subsystem whose health participates in
// the aggregate Ready result.
func (c *Coordinator) AddReadiness(name string, check ReadinessChecker) {
	c.checksMu.Lock()
	defer c.checksMu.Unlock()
	c.checks[name] = check
}

// Ready returns true once all startup hooks have completed and every
// registered subsystem reports ready.
func (c *Coordinator) Ready() bool {
	c.startedMu.RLock()
	started := c.started
	c.startedMu.RUnlock()
	if !started {
		return false
	}

	c.checksMu.RLock()
	defer c.checksMu.RUnlock()
	for _, check := range c.checks {
		if !check.Ready() {
			return false
		}
	}
	return true
}

// Status reports per-subsystem readiness, keyed by registration name.
func (c *Coordinator) Status() map[string]bool {
	c.checksMu.RLock()
	defer c.checksMu.RUnlock()

	status := make(map[string]bool, len(c.checks))
	for name, check := range c.checks {
		status[name] = check.Ready()
	}
	return status
}

// WaitForStartup blocks until all startup hooks have completed and marks
// the coordinator started.
func (c *Coordinator) WaitForStartup() {
	c.startupWg.Wait()
	c.startedMu.Lock()
	c.started = true
	c.startedMu.Unlock()
}

// Shutdown cancels the context and waits for shutdown hooks to complete
// within the given timeout.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.shutdownWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}
