package ingest

import (
	"context"
	"log/slog"
)

// ConfirmRemote acknowledges completed transfers.
type ConfirmRemote interface {
	ConfirmUpload(ctx context.Context, documentID string) error
}

// Confirmer tells the backend a transfer finished, enqueuing extraction.
type Confirmer struct {
	remote ConfirmRemote
	logger *slog.Logger
}

// NewConfirmer creates a Confirmer.
func NewConfirmer(remote ConfirmRemote, logger *slog.Logger) *Confirmer {
	return &Confirmer{
		remote: remote,
		logger: logger.With("system", "confirmer"),
	}
}

// Confirm reports whether the backend acknowledged the upload. A failure is
// logged and never stops the session.
func (c *Confirmer) Confirm(ctx context.Context, documentID string) bool {
	if err := c.remote.ConfirmUpload(ctx, documentID); err != nil {
		c.logger.Warn("confirm failed, polling anyway", "document_id", documentID, "error", err)
		return false
	}
	return true
}
