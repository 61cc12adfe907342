package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/JaimeStill/intake/internal/backend"
	"github.com/JaimeStill/intake/internal/classifier"
	"github.com/JaimeStill/intake/internal/transfer"
)

// SlotRemote requests upload slots from the backend.
type SlotRemote interface {
	RequestUploadSlot(ctx context.Context, req backend.SlotRequest) (*backend.Slot, error)
}

// SlotInput is everything the Initiator sends for one file.
type SlotInput struct {
	File          transfer.File
	DeclaredType  classifier.DocumentType
	OwnerEntityID string
	IdentityHints map[string]string
}

// Initiator obtains a write slot for a file.
type Initiator struct {
	remote SlotRemote
	logger *slog.Logger
}

// NewInitiator creates an Initiator.
func NewInitiator(remote SlotRemote, logger *slog.Logger) *Initiator {
	return &Initiator{
		remote: remote,
		logger: logger.With("system", "initiator"),
	}
}

// Initiate makes exactly one slot request. Every failure wraps ErrSlotRequestFailed.
func (i *Initiator) Initiate(ctx context.Context, in SlotInput) (*backend.Slot, error) {
	if in.OwnerEntityID == "" {
		return nil, ErrOwnerRequired
	}

	declared := in.DeclaredType
	if declared == "" {
		declared = classifier.TypeGeneric
	}

	req := backend.SlotRequest{
		Filename:      in.File.Name,
		ContentType:   in.File.ContentType,
		DeclaredType:  string(declared),
		OwnerEntityID: in.OwnerEntityID,
		IdentityHints: in.IdentityHints,
		SizeBytes:     int64(len(in.File.Data)),
		PageCount:     i.pageCount(in.File),
	}

	slot, err := i.remote.RequestUploadSlot(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSlotRequestFailed, err)
	}

	i.logger.Info(
		"upload slot issued",
		"filename", in.File.Name,
		"document_id", slot.DocumentID,
		"declared_type", declared,
	)
	return slot, nil
}

func (i *Initiator) pageCount(file transfer.File) *int {
	mediaType, _, err := mime.ParseMediaType(file.ContentType)
	if err != nil || mediaType != "application/pdf" {
		return nil
	}

	count, err := api.PageCount(bytes.NewReader(file.Data), nil)
	if err != nil {
		i.logger.Warn("failed to extract PDF page count", "filename", file.Name, "error", err)
		return nil
	}
	return &count
}
