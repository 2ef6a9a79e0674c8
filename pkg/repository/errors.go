package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgDuplicateKeyCode = "23505"
	pgForeignKeyCode   = "23503"
)

// Mapping pairs database failure classes with the domain errors a
// repository should surface for them. Nil entries leave that class
// unmapped.
type Mapping struct {
	NotFound  error
	Duplicate error
	Reference error
}

// MapError translates database errors to domain errors per the mapping:
// sql.ErrNoRows to NotFound, PostgreSQL unique violations (23505) to
// Duplicate, and foreign key violations (23503) to Reference. Other
// errors are returned unchanged.
func MapError(err error, m Mapping) error {
	if err == nil {
		return nil
	}

	if m.NotFound != nil && errors.Is(err, sql.ErrNoRows) {
		return m.NotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgDuplicateKeyCode:
			if m.Duplicate != nil {
				return m.Duplicate
			}
		case pgForeignKeyCode:
			if m.Reference != nil {
				return m.Reference
			}
		}
	}

	return err
}
