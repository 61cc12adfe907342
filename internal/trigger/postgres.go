package trigger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JaimeStill/intake/pkg/repository"
)

// LatchTable is the relation PostgresLatch stores latches in.
const LatchTable = "trigger_latches"

// PostgresLatch stores latches in the trigger_latches table so every process
// sharing the database observes the same flags. The primary key on
// document_id is the check-and-set: the first insert wins.
type PostgresLatch struct {
	db *sql.DB
}

// NewPostgresLatch creates a latch over an open database.
func NewPostgresLatch(db *sql.DB) *PostgresLatch {
	return &PostgresLatch{db: db}
}

func (l *PostgresLatch) Acquire(ctx context.Context, documentID string) (bool, error) {
	const q = `INSERT INTO trigger_latches (document_id, state) VALUES ($1, $2)`

	_, err := l.db.ExecContext(ctx, q, documentID, string(Pending))
	switch err := repository.MapError(err); {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrConflict):
		return false, nil
	default:
		return false, fmt.Errorf("latch acquire: %w", err)
	}
}

// Mark updates the state of a taken latch. Marking a latch that was never
// acquired is a no-op.
func (l *PostgresLatch) Mark(ctx context.Context, documentID string, state State) error {
	const q = `
		UPDATE trigger_latches
		SET state = $2, updated_at = now()
		WHERE document_id = $1`

	_, err := l.exec(ctx, "mark", q, documentID, string(state))
	return err
}

func (l *PostgresLatch) Reclaim(ctx context.Context, documentID string) (bool, error) {
	const q = `
		UPDATE trigger_latches
		SET state = $2, updated_at = now()
		WHERE document_id = $1 AND state = $3`

	return l.exec(ctx, "reclaim", q, documentID, string(Pending), string(Failed))
}

// exec runs a single-row update and reports whether a row matched.
func (l *PostgresLatch) exec(ctx context.Context, op, query string, args ...any) (bool, error) {
	err := repository.MapError(repository.ExecExpectOne(ctx, l.db, query, args...))
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("latch %s: %w", op, err)
	}
	return true, nil
}
