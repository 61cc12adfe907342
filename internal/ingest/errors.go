package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrOwnerRequired indicates a session without an owning entity id.
	ErrOwnerRequired = errors.New("owner entity id required")
	// ErrSlotRequestFailed indicates the backend did not issue an upload slot.
	ErrSlotRequestFailed = errors.New("slot request failed")
	// ErrInvalidTransition indicates a status change outside the forward sequence.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrSessionStarted indicates Run was called on a session that already left idle.
	ErrSessionStarted = errors.New("session already started")
	// ErrNotRepollable indicates Repoll on a session that did not time out.
	ErrNotRepollable = errors.New("session is not timed out")
	// ErrDocumentRequired indicates a resume without a document id.
	ErrDocumentRequired = errors.New("document id required")
	// ErrManagerClosed indicates Attach after Close.
	ErrManagerClosed = errors.New("session manager closed")
	// ErrFileTooLarge indicates a file above the configured size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// Error codes carried by Error.
const (
	CodeClassificationUnavailable = "CLASSIFICATION_UNAVAILABLE"
	CodeSlotRequestFailed         = "SLOT_REQUEST_FAILED"
	CodeTransferFailed            = "TRANSFER_FAILED"
	CodeConfirmFailed             = "CONFIRM_FAILED"
	CodePollTimeout               = "POLL_TIMEOUT"
	CodeTriggerFailed             = "TRIGGER_FAILED"
)

// Error is the structured failure recorded on a session.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
