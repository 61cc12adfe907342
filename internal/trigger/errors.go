package trigger

import "errors"

var (
	// ErrAlreadyTriggered indicates the latch for the document was already taken.
	ErrAlreadyTriggered = errors.New("evaluation already triggered for document")
	// ErrTriggerFailed indicates the evaluation could not be created. The
	// document itself stays extracted.
	ErrTriggerFailed = errors.New("trigger failed")
	// ErrNotRetryable indicates no failed attempt is on record for the document.
	ErrNotRetryable = errors.New("no failed trigger to retry")
	// ErrDocumentRequired indicates an empty document id.
	ErrDocumentRequired = errors.New("document id required")
	// ErrDisabled indicates triggering is turned off by configuration.
	ErrDisabled = errors.New("trigger disabled")
)
