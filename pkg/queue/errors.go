package queue

import "errors"

var (
	// ErrNotConnected indicates the NATS connection has not been established.
	ErrNotConnected = errors.New("queue not connected")
	// ErrNotStarted indicates Start has not been called.
	ErrNotStarted = errors.New("queue not started")
)
