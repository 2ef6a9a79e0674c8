package database

import "errors"

var (
	// ErrNotReady indicates the database connection has not been established.
	ErrNotReady = errors.New("database not ready")
	// ErrInvalidConfig indicates the connection configuration failed validation.
	ErrInvalidConfig = errors.New("invalid database config")
)
