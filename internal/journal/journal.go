// Package journal keeps a Postgres record of every session for diagnostics
// and for resuming work on documents across processes. Writes are
// best-effort: a failed write is logged and never affects the session.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"

	"github.com/JaimeStill/intake/internal/classifier"
	"github.com/JaimeStill/intake/internal/ingest"
	"github.com/JaimeStill/intake/pkg/repository"
)

const writeTimeout = 5 * time.Second

// Table is the relation the journal writes to.
const Table = "upload_sessions"

const upsertQuery = `
	INSERT INTO upload_sessions (
		session_id, file_key, filename, document_id, owner_entity_id, declared_type,
		status, attempts, started_at, deadline_at, result, error, soft_errors,
		evaluation_id, updated_at
	) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, NULLIF($14, ''), $15)
	ON CONFLICT (session_id) DO UPDATE SET
		document_id = EXCLUDED.document_id,
		declared_type = EXCLUDED.declared_type,
		status = EXCLUDED.status,
		attempts = EXCLUDED.attempts,
		started_at = EXCLUDED.started_at,
		deadline_at = EXCLUDED.deadline_at,
		result = EXCLUDED.result,
		error = EXCLUDED.error,
		soft_errors = EXCLUDED.soft_errors,
		evaluation_id = EXCLUDED.evaluation_id,
		updated_at = EXCLUDED.updated_at`

const selectColumns = `
	SELECT session_id, file_key, filename, COALESCE(document_id, ''), owner_entity_id,
		declared_type, status, attempts, started_at, deadline_at, result, error,
		soft_errors, COALESCE(evaluation_id, ''), updated_at
	FROM upload_sessions`

// Journal records session snapshots in the upload_sessions table.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a Journal over an open database.
func New(db *sql.DB, logger *slog.Logger) *Journal {
	return &Journal{
		db:     db,
		logger: logger.With("system", "journal"),
	}
}

// Observe records every event except poll ticks. Sessions abandoned before
// leaving idle are never journaled.
func (j *Journal) Observe(ctx context.Context, ev ingest.Event) {
	if ev.Kind == ingest.EventTick || ev.Snapshot.Status == ingest.StatusIdle {
		return
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := j.Record(wctx, ev.Snapshot); err != nil {
		j.logger.Warn(
			"journal write failed",
			"session_id", ev.Snapshot.SessionID,
			"status", ev.Snapshot.Status,
			"error", err,
		)
	}
}

// Record inserts or updates the row for a snapshot.
func (j *Journal) Record(ctx context.Context, snap ingest.Snapshot) error {
	errJSON, err := encodeNullable(snap.Error)
	if err != nil {
		return err
	}
	softJSON, err := encodeNullable(snap.SoftErrors)
	if err != nil {
		return err
	}

	var result []byte
	if len(snap.Result) > 0 {
		result = snap.Result
	}

	_, err = j.db.ExecContext(ctx, upsertQuery,
		snap.SessionID,
		snap.FileKey,
		snap.Filename,
		snap.DocumentID,
		snap.OwnerEntityID,
		string(snap.DeclaredType),
		string(snap.Status),
		snap.Attempts,
		nullTime(snap.StartedAt),
		nullTime(snap.DeadlineAt),
		result,
		errJSON,
		softJSON,
		snap.EvaluationID,
		snap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("record session %s: %w", snap.SessionID, repository.MapError(err))
	}
	return nil
}

// List returns the most recent sessions of an owner, newest first.
func (j *Journal) List(ctx context.Context, ownerEntityID string, limit int) ([]ingest.Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}

	q := selectColumns + `
	WHERE owner_entity_id = $1
	ORDER BY updated_at DESC
	LIMIT $2`

	snaps, err := repository.QueryMany(ctx, j.db, q, []any{ownerEntityID, limit}, scanSnapshot)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return snaps, nil
}

// Latest returns the most recently updated session for a document.
func (j *Journal) Latest(ctx context.Context, documentID string) (*ingest.Snapshot, error) {
	q := selectColumns + `
	WHERE document_id = $1
	ORDER BY updated_at DESC
	LIMIT 1`

	snap, err := repository.QueryOne(ctx, j.db, q, []any{documentID}, scanSnapshot)
	if err := repository.MapError(err); errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("document %s: %w", documentID, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("latest session: %w", err)
	}
	return &snap, nil
}

func scanSnapshot(s repository.Scanner) (ingest.Snapshot, error) {
	var (
		snap                      ingest.Snapshot
		declared, status          string
		startedAt, deadlineAt     sql.NullTime
		result, errJSON, softJSON []byte
	)

	err := s.Scan(
		&snap.SessionID,
		&snap.FileKey,
		&snap.Filename,
		&snap.DocumentID,
		&snap.OwnerEntityID,
		&declared,
		&status,
		&snap.Attempts,
		&startedAt,
		&deadlineAt,
		&result,
		&errJSON,
		&softJSON,
		&snap.EvaluationID,
		&snap.UpdatedAt,
	)
	if err != nil {
		return snap, err
	}

	snap.DeclaredType = classifier.DocumentType(declared)
	snap.Status = ingest.Status(status)
	snap.StartedAt = startedAt.Time
	snap.DeadlineAt = deadlineAt.Time
	if len(result) > 0 {
		snap.Result = result
	}

	if len(errJSON) > 0 {
		snap.Error = &ingest.Error{}
		if err := sonic.Unmarshal(errJSON, snap.Error); err != nil {
			return snap, fmt.Errorf("decode error column: %w", err)
		}
	}
	if len(softJSON) > 0 {
		if err := sonic.Unmarshal(softJSON, &snap.SoftErrors); err != nil {
			return snap, fmt.Errorf("decode soft_errors column: %w", err)
		}
	}
	return snap, nil
}

func encodeNullable[T any](v T) ([]byte, error) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode column: %w", err)
	}
	if string(data) == "null" {
		return nil, nil
	}
	return data, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
