package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes for the integrity violations callers react to.
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

var (
	// ErrNotFound reports a query or statement that matched no row.
	ErrNotFound = errors.New("no matching row")
	// ErrConflict reports a unique constraint violation.
	ErrConflict = errors.New("unique constraint violated")
	// ErrInvalidValue reports a check constraint violation.
	ErrInvalidValue = errors.New("check constraint violated")
)

// MapError classifies err against the repository sentinels. sql.ErrNoRows
// becomes ErrNotFound; unique and check violations become ErrConflict and
// ErrInvalidValue, naming the violated constraint. The driver error stays in
// the chain. Other errors are returned unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w (%s): %w", ErrConflict, pgErr.ConstraintName, err)
		case codeCheckViolation:
			return fmt.Errorf("%w (%s): %w", ErrInvalidValue, pgErr.ConstraintName, err)
		}
	}

	return err
}
