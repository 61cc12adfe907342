// Package trigger creates the evaluation that depends on an extracted document,
// at most once per document id.
//
// The latch for a document is taken before the creation request is sent and is
// never released, so repeated extracted observations, concurrent sessions for
// the same document, and re-runs all collapse into a single request.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
)

// Creator sends the creation request.
type Creator interface {
	CreateEvaluation(ctx context.Context, ownerEntityID, documentID string) (string, error)
}

// Outcome describes a successful creation.
type Outcome struct {
	DocumentID   string
	EvaluationID string
	Retried      bool
}

// Trigger guards evaluation creation with a Latch.
type Trigger struct {
	creator Creator
	latch   Latch
	logger  *slog.Logger
}

// New creates a Trigger.
func New(creator Creator, latch Latch, logger *slog.Logger) *Trigger {
	return &Trigger{
		creator: creator,
		latch:   latch,
		logger:  logger.With("system", "trigger"),
	}
}

// Fire creates the evaluation for documentID unless the latch is already taken.
// A second observation returns ErrAlreadyTriggered without sending a request.
func (t *Trigger) Fire(ctx context.Context, documentID, ownerEntityID string) (*Outcome, error) {
	if documentID == "" {
		return nil, ErrDocumentRequired
	}

	acquired, err := t.latch.Acquire(ctx, documentID)
	if err != nil {
		t.logger.Error("latch unavailable", "document_id", documentID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrTriggerFailed, err)
	}
	if !acquired {
		t.logger.Debug("trigger suppressed", "document_id", documentID)
		return nil, ErrAlreadyTriggered
	}

	return t.create(ctx, documentID, ownerEntityID, false)
}

// Retry re-sends the creation only when the latest attempt for documentID
// failed. It returns ErrNotRetryable otherwise.
func (t *Trigger) Retry(ctx context.Context, documentID, ownerEntityID string) (*Outcome, error) {
	if documentID == "" {
		return nil, ErrDocumentRequired
	}

	reclaimed, err := t.latch.Reclaim(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTriggerFailed, err)
	}
	if !reclaimed {
		return nil, ErrNotRetryable
	}

	return t.create(ctx, documentID, ownerEntityID, true)
}

func (t *Trigger) create(ctx context.Context, documentID, ownerEntityID string, retried bool) (*Outcome, error) {
	logger := t.logger.With("document_id", documentID, "retry", retried)

	evaluationID, err := t.creator.CreateEvaluation(ctx, ownerEntityID, documentID)
	if err != nil {
		t.mark(ctx, documentID, Failed, logger)
		logger.Warn("evaluation creation failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrTriggerFailed, err)
	}

	t.mark(ctx, documentID, Created, logger)
	logger.Info("evaluation created", "evaluation_id", evaluationID)

	return &Outcome{
		DocumentID:   documentID,
		EvaluationID: evaluationID,
		Retried:      retried,
	}, nil
}

// mark records state even when ctx is already canceled.
func (t *Trigger) mark(ctx context.Context, documentID string, state State, logger *slog.Logger) {
	if err := t.latch.Mark(context.WithoutCancel(ctx), documentID, state); err != nil {
		logger.Error("latch state not recorded", "state", state, "error", err)
	}
}
