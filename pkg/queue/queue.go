// Package queue provides NATS messaging with lifecycle coordination.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/courier-labs/courier/pkg/lifecycle"
)

// MsgHandler processes a single message. The context is cancelled when the
// lifecycle shuts down.
type MsgHandler func(ctx context.Context, data []byte)

// System manages a NATS connection and lifecycle coordination.
type System interface {
	// Start registers startup and shutdown hooks with the lifecycle coordinator.
	// The connection is established during startup and drained on shutdown.
	Start(lc *lifecycle.Coordinator) error
	// Publish sends data to the given subject. Returns ErrNotConnected
	// before startup completes.
	Publish(ctx context.Context, subject string, data []byte) error
	// Subscribe registers a queue-group subscription. All members of a
	// group share the subject's message stream.
	Subscribe(subject, group string, handler MsgHandler) error
	// Ready reports whether the connection is established.
	Ready() bool
}

type natsQueue struct {
	cfg    *Config
	logger *slog.Logger

	mu   sync.RWMutex
	conn *nats.Conn
	lc   *lifecycle.Coordinator
}

// New creates a queue system from the given configuration. The connection
// is not established until Start is called.
func New(cfg *Config, logger *slog.Logger) System {
	return &natsQueue{
		cfg:    cfg,
		logger: logger.With("system", "queue"),
	}
}

func (q *natsQueue) Start(lc *lifecycle.Coordinator) error {
	q.mu.Lock()
	q.lc = lc
	q.mu.Unlock()

	q.logger.Info("starting queue connection", "url", q.cfg.URL)

	lc.OnStartup(func() {
		conn, err := nats.Connect(
			q.cfg.URL,
			nats.Name(q.cfg.Name),
			nats.Timeout(q.cfg.ConnectTimeoutDuration()),
			nats.ReconnectWait(q.cfg.ReconnectWaitDuration()),
			nats.MaxReconnects(q.cfg.MaxReconnects),
			nats.RetryOnFailedConnect(true),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				q.logger.Warn("queue disconnected", "error", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				q.logger.Info("queue reconnected", "url", nc.ConnectedUrl())
			}),
		)
		if err != nil {
			q.logger.Error("queue connect failed", "error", err)
			return
		}

		q.mu.Lock()
		q.conn = conn
		q.mu.Unlock()
		q.logger.Info("queue connection established")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()

		q.mu.RLock()
		conn := q.conn
		q.mu.RUnlock()
		if conn == nil {
			return
		}

		q.logger.Info("draining queue connection")
		if err := conn.Drain(); err != nil {
			q.logger.Error("queue drain failed", "error", err)
			conn.Close()
			return
		}
		q.logger.Info("queue connection drained")
	})

	lc.AddReadiness("queue", lifecycle.ReadinessFunc(q.Ready))
	return nil
}

func (q *natsQueue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	conn := q.connection()
	if conn == nil {
		return ErrNotConnected
	}

	if err := conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (q *natsQueue) Subscribe(subject, group string, handler MsgHandler) error {
	conn := q.connection()
	if conn == nil {
		return ErrNotConnected
	}

	q.mu.RLock()
	lc := q.lc
	q.mu.RUnlock()
	if lc == nil {
		return ErrNotStarted
	}

	_, err := conn.QueueSubscribe(subject, group, func(msg *nats.Msg) {
		if lc.Context().Err() != nil {
			return
		}
		handler(lc.Context(), msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}

	if err := conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("flush after subscribe: %w", err)
	}

	q.logger.Info("subscribed", "subject", subject, "group", group)
	return nil
}

func (q *natsQueue) Ready() bool {
	conn := q.connection()
	return conn != nil && conn.Status() == nats.CONNECTED
}

func (q *natsQueue) connection() *nats.Conn {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.conn
}
